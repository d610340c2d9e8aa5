package registry

import (
	"testing"

	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
)

func TestParseSignature(t *testing.T) {
	tests := []struct {
		in      string
		key     string
		str     string
		results int
	}{
		{"func()", "()", "func()", 0},
		{"func() -> handle<Widget>", "()", "func() -> handle<Widget>", 1},
		{"func(size: f64) -> handle<Widget>", "(f64)", "func(size: f64) -> handle<Widget>", 1},
		{"func(f64, string)", "(f64,string)", "func(arg0: f64, arg1: string)", 0},
		{"func(a: s32, b: s32) -> s32;", "(s32,s32)", "func(a: s32, b: s32) -> s32", 1},
		{"func() -> (string, u64)", "()", "func() -> (string, u64)", 2},
		{"func(other: borrow<Widget>)", "(borrow<Widget>)", "func(other: borrow<Widget>)", 0},
		{"  func ( x : bool ) -> ()  ", "(bool)", "func(x: bool)", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sig, err := ParseSignature(tt.in)
			if err != nil {
				t.Fatalf("ParseSignature: %v", err)
			}
			if got := sig.Key(); got != tt.key {
				t.Errorf("Key = %q, want %q", got, tt.key)
			}
			if got := sig.String(); got != tt.str {
				t.Errorf("String = %q, want %q", got, tt.str)
			}
			if len(sig.Results) != tt.results {
				t.Errorf("len(Results) = %d, want %d", len(sig.Results), tt.results)
			}
		})
	}
}

func TestParseSignature_Errors(t *testing.T) {
	for _, in := range []string{
		"",
		"fn() -> s32",
		"func(x: list<u8>)",
		"func(x: handle<>)",
		"func() -> record",
	} {
		if _, err := ParseSignature(in); err == nil {
			t.Errorf("ParseSignature(%q) should fail", in)
		} else if errors.KindOf(err) != errors.KindInvalidInput {
			t.Errorf("ParseSignature(%q) kind = %v", in, errors.KindOf(err))
		}
	}
}

func TestSignature_Accepts(t *testing.T) {
	sig := MustParseSignature("func(size: f64, label: string)")

	if !sig.Accepts([]any{2.5, "x"}) {
		t.Error("should accept (float64, string)")
	}
	if !sig.Accepts([]any{float32(2.5), ""}) {
		t.Error("float32 should widen to f64")
	}
	if sig.Accepts([]any{2.5}) {
		t.Error("arity mismatch should not be accepted")
	}
	if sig.Accepts([]any{"x", 2.5}) {
		t.Error("swapped arguments should not be accepted")
	}

	empty := MustParseSignature("func()")
	if !empty.Accepts(nil) {
		t.Error("empty signature should accept no arguments")
	}
}

func TestSignature_ParamTypes(t *testing.T) {
	sig := MustParseSignature("func(a: s32, w: handle<Widget>)")
	types := sig.ParamTypes()
	if len(types) != 2 {
		t.Fatalf("len = %d", len(types))
	}
	if types[0].Kind != engine.KindS32 {
		t.Errorf("types[0] = %v", types[0])
	}
	if types[1].Kind != engine.KindHandle || types[1].Resource != "Widget" {
		t.Errorf("types[1] = %v", types[1])
	}
	if sig.Params[1].Name != "w" {
		t.Errorf("Params[1].Name = %q", sig.Params[1].Name)
	}
}

func TestMustParseSignature_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParseSignature should panic")
		}
	}()
	MustParseSignature("not a signature")
}

func TestSplitParams(t *testing.T) {
	got := splitParams("a: s32, b: handle<Widget>, c: string")
	want := []string{"a: s32", "b: handle<Widget>", "c: string"}
	if len(got) != len(want) {
		t.Fatalf("splitParams = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
