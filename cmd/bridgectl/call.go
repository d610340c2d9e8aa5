package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/backend-bridge/abstract"
	"github.com/wippyai/backend-bridge/bridge"
)

var callCmd = &cobra.Command{
	Use:   "call <backend>[@version] <function> [args...]",
	Short: "Call a backend function",
	Example: `  bridgectl call widgets add 2 3
  bridgectl call widgets@1 measure hello`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		br, err := openBridge(ctx)
		if err != nil {
			return err
		}
		defer br.Close(ctx)

		backend, version := parseTarget(args[0])
		out, err := call(ctx, br, backend, version, args[1], args[2:])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatResults(out))
		return nil
	},
}

// call invokes a function with string arguments. Host-owned objects the
// function returns are released once their identity has been recorded.
func call(ctx context.Context, br *bridge.Bridge, backend, version, name string, args []string) ([]any, error) {
	v, err := br.Resolve(backend, version)
	if err != nil {
		return nil, err
	}
	e, err := br.Registry().Function(backend, v, name)
	if err != nil {
		return nil, err
	}
	params, err := parseArgs(e.Sig.ParamTypes(), args)
	if err != nil {
		return nil, err
	}
	out, err := br.Call(ctx, backend, v, name, params...)
	if err != nil {
		return nil, err
	}
	for _, r := range out {
		if inst, ok := r.(*abstract.Instance); ok && inst != nil && !inst.Borrowed() {
			if err := inst.Release(ctx); err != nil {
				zap.L().Warn("release returned object", zap.Error(err))
			}
		}
	}
	return out, nil
}
