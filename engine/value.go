package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/backend-bridge/errors"
)

// ValueKind is the host-side category of a value crossing the boundary.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindBool
	KindS32
	KindU32
	KindS64
	KindU64
	KindF32
	KindF64
	KindString
	KindHandle // owned object reference, handle<T> or own<T>
	KindBorrow // backend-owned object reference, borrow<T>
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindS32:     "s32",
	KindU32:     "u32",
	KindS64:     "s64",
	KindU64:     "u64",
	KindF32:     "f32",
	KindF64:     "f64",
	KindString:  "string",
	KindHandle:  "handle",
	KindBorrow:  "borrow",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ValueType describes one parameter or result of a backend entry point.
// Resource is set for handle and borrow kinds and names the backend type.
type ValueType struct {
	WIT      wit.Type
	Resource string
	Kind     ValueKind
}

// Handle returns the owned handle type of a backend type.
func Handle(resource string) ValueType {
	return ValueType{Kind: KindHandle, Resource: resource}
}

// Borrow returns the borrowed handle type of a backend type.
func Borrow(resource string) ValueType {
	return ValueType{Kind: KindBorrow, Resource: resource}
}

// ParseValueType parses a WIT type string such as "f64", "string" or
// "handle<Widget>". Handle forms are recognised here; every other type is
// parsed by the WIT package and must be a scalar or a string.
func ParseValueType(s string) (ValueType, error) {
	s = strings.TrimSpace(s)
	for prefix, kind := range map[string]ValueKind{
		"handle<": KindHandle,
		"own<":    KindHandle,
		"borrow<": KindBorrow,
	} {
		if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, ">") {
			name := strings.TrimSpace(s[len(prefix) : len(s)-1])
			if name == "" {
				return ValueType{}, errors.InvalidInput(errors.PhaseConfig, "empty resource name in "+s)
			}
			return ValueType{Kind: kind, Resource: name}, nil
		}
	}

	t, err := wit.ParseType(s)
	if err != nil {
		return ValueType{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse type "+s)
	}

	vt := ValueType{WIT: t}
	switch t.(type) {
	case wit.Bool, *wit.Bool:
		vt.Kind = KindBool
	case wit.S32, *wit.S32:
		vt.Kind = KindS32
	case wit.U32, *wit.U32:
		vt.Kind = KindU32
	case wit.S64, *wit.S64:
		vt.Kind = KindS64
	case wit.U64, *wit.U64:
		vt.Kind = KindU64
	case wit.F32, *wit.F32:
		vt.Kind = KindF32
	case wit.F64, *wit.F64:
		vt.Kind = KindF64
	case wit.String, *wit.String:
		vt.Kind = KindString
	default:
		return ValueType{}, errors.New(errors.PhaseConfig, errors.KindUnsupported).
			Detail("type %s cannot cross the backend boundary", s).
			Build()
	}
	return vt, nil
}

// MustParseValueType is like ParseValueType but panics on error.
// It is meant for static declarations.
func MustParseValueType(s string) ValueType {
	vt, err := ParseValueType(s)
	if err != nil {
		panic(err)
	}
	return vt
}

func (t ValueType) String() string {
	switch t.Kind {
	case KindHandle:
		return "handle<" + t.Resource + ">"
	case KindBorrow:
		return "borrow<" + t.Resource + ">"
	}
	return t.Kind.String()
}

// IsObject reports whether values of this type are object references.
func (t ValueType) IsObject() bool {
	return t.Kind == KindHandle || t.Kind == KindBorrow
}

// Flat returns the core WASM types this value occupies.
func (t ValueType) Flat() []api.ValueType {
	switch t.Kind {
	case KindBool, KindS32, KindU32, KindHandle, KindBorrow:
		return []api.ValueType{api.ValueTypeI32}
	case KindS64, KindU64:
		return []api.ValueType{api.ValueTypeI64}
	case KindF32:
		return []api.ValueType{api.ValueTypeF32}
	case KindF64:
		return []api.ValueType{api.ValueTypeF64}
	case KindString:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	}
	return nil
}

// Flatten returns the concatenated core types of a value list.
func Flatten(types []ValueType) []api.ValueType {
	var out []api.ValueType
	for _, t := range types {
		out = append(out, t.Flat()...)
	}
	return out
}

// Accepts reports whether v can be lowered as a value of this type.
func (t ValueType) Accepts(v any) bool {
	if t.Kind == KindString {
		_, ok := v.(string)
		return ok
	}
	_, err := lowerScalar(t, v)
	return err == nil
}

// lowerScalar encodes a Go value of a single-slot kind.
func lowerScalar(t ValueType, v any) (uint64, error) {
	switch t.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return 0, mismatch(t, v)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case KindS32:
		switch n := v.(type) {
		case int32:
			return api.EncodeI32(n), nil
		case int:
			if n < math.MinInt32 || n > math.MaxInt32 {
				return 0, overflow(t, v)
			}
			return api.EncodeI32(int32(n)), nil
		}
	case KindU32:
		switch n := v.(type) {
		case uint32:
			return api.EncodeU32(n), nil
		case int:
			if n < 0 || n > math.MaxUint32 {
				return 0, overflow(t, v)
			}
			return api.EncodeU32(uint32(n)), nil
		}
	case KindS64:
		switch n := v.(type) {
		case int64:
			return api.EncodeI64(n), nil
		case int:
			return api.EncodeI64(int64(n)), nil
		}
	case KindU64:
		switch n := v.(type) {
		case uint64:
			return n, nil
		case int:
			if n < 0 {
				return 0, overflow(t, v)
			}
			return uint64(n), nil
		}
	case KindF32:
		if f, ok := v.(float32); ok {
			return api.EncodeF32(f), nil
		}
	case KindF64:
		switch f := v.(type) {
		case float64:
			return api.EncodeF64(f), nil
		case float32:
			return api.EncodeF64(float64(f)), nil
		}
	case KindHandle, KindBorrow:
		if rep, ok := v.(uint32); ok {
			return api.EncodeU32(rep), nil
		}
	}
	return 0, mismatch(t, v)
}

// liftScalar decodes a single-slot value.
func liftScalar(t ValueType, raw uint64) (any, error) {
	switch t.Kind {
	case KindBool:
		return uint32(raw) != 0, nil
	case KindS32:
		return api.DecodeI32(raw), nil
	case KindU32, KindHandle, KindBorrow:
		return api.DecodeU32(raw), nil
	case KindS64:
		return int64(raw), nil
	case KindU64:
		return raw, nil
	case KindF32:
		return api.DecodeF32(raw), nil
	case KindF64:
		return api.DecodeF64(raw), nil
	}
	return nil, errors.New(errors.PhaseDecode, errors.KindUnsupported).
		Detail("%s is not a single-slot type", t).
		Build()
}

func mismatch(t ValueType, v any) error {
	return errors.TypeMismatch(errors.PhaseEncode, nil, fmt.Sprintf("%T", v), t.String())
}

func overflow(t ValueType, v any) error {
	return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
		Value(v).
		Detail("%v overflows %s", v, t).
		Build()
}
