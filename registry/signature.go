package registry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
)

// Param is one named parameter of a signature.
type Param struct {
	Name string
	Type engine.ValueType
}

// Signature is a parsed entry point signature.
type Signature struct {
	Params  []Param
	Results []engine.ValueType
}

var signaturePattern = regexp.MustCompile(`^\s*func\s*\(([^)]*)\)(?:\s*->\s*(.+?))?\s*;?\s*$`)

// ParseSignature parses "func(name: type, ...) -> result" or
// "func(...) -> (a, b)". Parameter names are optional.
func ParseSignature(s string) (Signature, error) {
	match := signaturePattern.FindStringSubmatch(s)
	if match == nil {
		return Signature{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("malformed signature %q", s).
			Build()
	}

	var sig Signature
	paramsStr := strings.TrimSpace(match[1])
	if paramsStr != "" {
		for i, p := range splitParams(paramsStr) {
			name, typStr := "", p
			if idx := strings.LastIndex(p, ":"); idx != -1 {
				name = strings.TrimSpace(p[:idx])
				typStr = strings.TrimSpace(p[idx+1:])
			}
			t, err := engine.ParseValueType(typStr)
			if err != nil {
				return Signature{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse param type "+typStr)
			}
			if name == "" {
				name = "arg" + strconv.Itoa(i)
			}
			sig.Params = append(sig.Params, Param{Name: name, Type: t})
		}
	}

	resultStr := strings.TrimSpace(match[2])
	if resultStr != "" && resultStr != "()" {
		parts := []string{resultStr}
		if strings.HasPrefix(resultStr, "(") && strings.HasSuffix(resultStr, ")") {
			parts = splitParams(resultStr[1 : len(resultStr)-1])
		}
		for _, part := range parts {
			t, err := engine.ParseValueType(part)
			if err != nil {
				return Signature{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse result type "+part)
			}
			sig.Results = append(sig.Results, t)
		}
	}

	return sig, nil
}

// MustParseSignature is like ParseSignature but panics on error.
func MustParseSignature(s string) Signature {
	sig, err := ParseSignature(s)
	if err != nil {
		panic(err)
	}
	return sig
}

// ParamTypes returns the parameter types in order.
func (s Signature) ParamTypes() []engine.ValueType {
	out := make([]engine.ValueType, len(s.Params))
	for i, p := range s.Params {
		out[i] = p.Type
	}
	return out
}

// Key returns the overload key: parameter types only, "(f64,string)".
func (s Signature) Key() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	return b.String()
}

// String returns the canonical form "func(name: type) -> result".
func (s Signature) String() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	switch len(s.Results) {
	case 0:
	case 1:
		b.WriteString(" -> ")
		b.WriteString(s.Results[0].String())
	default:
		b.WriteString(" -> (")
		for i, r := range s.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Accepts reports whether args match the parameter list.
func (s Signature) Accepts(args []any) bool {
	if len(args) != len(s.Params) {
		return false
	}
	for i, p := range s.Params {
		if !p.Type.Accepts(args[i]) {
			return false
		}
	}
	return true
}

// splitParams splits parameter list, handling nested parens and angle brackets.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}

	return result
}
