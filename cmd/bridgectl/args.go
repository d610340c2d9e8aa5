package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/backend-bridge/abstract"
	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
)

// parseTarget splits "backend@version". The version may be empty.
func parseTarget(s string) (backend, version string) {
	backend, version, _ = strings.Cut(s, "@")
	return backend, version
}

// parseArg converts a command-line argument to the host value of t.
func parseArg(t engine.ValueType, s string) (any, error) {
	var (
		v   any
		err error
	)
	switch t.Kind {
	case engine.KindBool:
		v, err = strconv.ParseBool(s)
	case engine.KindS32:
		var n int64
		n, err = strconv.ParseInt(s, 10, 32)
		v = int32(n)
	case engine.KindU32:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 32)
		v = uint32(n)
	case engine.KindS64:
		v, err = strconv.ParseInt(s, 10, 64)
	case engine.KindU64:
		v, err = strconv.ParseUint(s, 10, 64)
	case engine.KindF32:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		v = float32(f)
	case engine.KindF64:
		v, err = strconv.ParseFloat(s, 64)
	case engine.KindString:
		v = s
	default:
		return nil, errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Detail("%s arguments cannot be given on the command line", t).
			Build()
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidInput, err, fmt.Sprintf("%q as %s", s, t))
	}
	return v, nil
}

func parseArgs(params []engine.ValueType, args []string) ([]any, error) {
	if len(args) != len(params) {
		return nil, errors.InvalidInput(errors.PhaseEncode,
			fmt.Sprintf("want %d arguments, got %d", len(params), len(args)))
	}
	out := make([]any, len(args))
	for i, a := range args {
		v, err := parseArg(params[i], a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatResults(out []any) string {
	parts := make([]string, len(out))
	for i, v := range out {
		switch v := v.(type) {
		case *abstract.Instance:
			if v == nil {
				parts[i] = "<nil>"
			} else {
				parts[i] = v.Identity().String()
			}
		case string:
			parts[i] = strconv.Quote(v)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, ", ")
}
