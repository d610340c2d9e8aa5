package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/backend-bridge/bridge"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backends and the state of each version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		br, err := openBridge(ctx)
		if err != nil {
			return err
		}
		defer br.Close(ctx)
		printList(cmd, br)
		return nil
	},
}

func printList(cmd *cobra.Command, br *bridge.Bridge) {
	out := cmd.OutOrStdout()
	info := br.Info()
	diags := br.Diagnostics()
	for _, name := range info.Backends() {
		active, _ := br.Active(name)
		fmt.Fprintf(out, "%s\n", render(nameStyle, name))
		for _, v := range append(info.Working(name), info.Failed(name)...) {
			marker := " "
			if v == active {
				marker = "*"
			}
			status := render(okStyle, "ok")
			if !info.Works[name][v] {
				status = render(errorStyle, "unavailable")
			}
			fmt.Fprintf(out, "  %s %-10s %s", marker, v, status)
			if d, ok := diags[name+"@"+v]; ok {
				fmt.Fprintf(out, "  %s", render(helpStyle, d))
			}
			fmt.Fprintln(out)
		}
	}
}
