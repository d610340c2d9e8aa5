package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/backend-bridge/bridge"
	"github.com/wippyai/backend-bridge/registry"
)

var interactive bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <backend>[@version]",
	Short: "Show the resolved entry points of a backend version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		br, err := openBridge(ctx)
		if err != nil {
			return err
		}
		defer br.Close(ctx)

		backend, version := parseTarget(args[0])
		v, err := br.Resolve(backend, version)
		if err != nil {
			return err
		}
		if interactive && isTerminal() {
			p := tea.NewProgram(newInteractiveModel(br, backend, v), tea.WithAltScreen())
			_, err := p.Run()
			return err
		}
		printEntries(cmd.OutOrStdout(), br, backend, v)
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse and call functions in a terminal UI")
}

func printEntries(w io.Writer, br *bridge.Bridge, backend, version string) {
	reg := br.Registry()
	fmt.Fprintf(w, "%s %s@%s\n", render(titleStyle, "backend"), backend, version)
	if status, ok := reg.Status(backend, version); ok && status != registry.StatusOK {
		fmt.Fprintf(w, "  %s\n", render(errorStyle, status.String()))
	}

	for _, t := range reg.Types(backend, version) {
		fmt.Fprintf(w, "\ntype %s", render(nameStyle, t.Name))
		if len(t.Capabilities) > 0 {
			fmt.Fprintf(w, " [%s]", strings.Join(t.Capabilities, ", "))
		}
		fmt.Fprintln(w)
		for _, c := range reg.Constructors(backend, version, t.Name) {
			printEntry(w, "new", c)
		}
		for _, m := range t.Methods {
			if e, err := reg.Member(backend, version, t.Name, m); err == nil {
				printEntry(w, m, e)
			}
		}
	}

	var funcs, vars []*registry.Entry
	for _, e := range reg.Entries(backend, version) {
		switch e.Kind {
		case registry.KindFunction:
			funcs = append(funcs, e)
		case registry.KindVariable:
			vars = append(vars, e)
		}
	}
	if len(funcs) > 0 {
		fmt.Fprintln(w, "\nfunctions")
		for _, e := range funcs {
			printEntry(w, e.Member, e)
		}
	}
	if len(vars) > 0 {
		fmt.Fprintln(w, "\nvariables")
		for _, e := range vars {
			typ := "?"
			if len(e.Results) == 1 {
				typ = e.Results[0].String()
			}
			line := fmt.Sprintf("  %-14s %s", e.Member, render(typeStyle, typ))
			if val, err := e.Get(); err == nil {
				line += fmt.Sprintf(" = %v", val)
			} else {
				line += " " + render(errorStyle, err.Error())
			}
			fmt.Fprintln(w, line)
		}
	}
}

func printEntry(w io.Writer, name string, e *registry.Entry) {
	line := fmt.Sprintf("  %-14s %s", name, render(typeStyle, e.Sig.String()))
	if !e.Resolved() {
		line += "  " + render(errorStyle, e.Status.String())
	}
	fmt.Fprintln(w, line)
}
