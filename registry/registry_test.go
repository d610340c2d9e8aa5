package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
)

func widgetsDecl(version string) Declaration {
	lifecycle := func(name string) TypeDecl {
		return TypeDecl{
			Name:   name,
			Clone:  name + "__clone",
			Assign: name + "__assign",
			Drop:   name + "__drop",
		}
	}
	widget := lifecycle("Widget")
	widget.Capabilities = []string{"Tagged", "Sized"}
	widget.Constructors = []FuncDecl{
		{Symbol: "Widget__new_0", Signature: "func() -> handle<Widget>"},
		{Symbol: "Widget__new_1", Signature: "func(size: f64) -> handle<Widget>"},
	}
	widget.Methods = []FuncDecl{
		{Name: "tag", Symbol: "Widget__tag", Signature: "func() -> string"},
		{Name: "size", Symbol: "Widget__size", Signature: "func() -> f64"},
		{Name: "area", Symbol: "Widget__area", Signature: "func() -> f64"},
		{Name: "scale", Symbol: "Widget__scale", Signature: "func(by: f64)"},
	}

	gadget := lifecycle("Gadget")
	gadget.Capabilities = []string{"Tagged"}
	gadget.Constructors = []FuncDecl{
		{Symbol: "Gadget__new_0", Signature: "func() -> handle<Gadget>"},
	}
	gadget.Methods = []FuncDecl{
		{Name: "tag", Symbol: "Gadget__tag", Signature: "func() -> string"},
	}

	return Declaration{
		Backend: "widgets",
		Version: version,
		Init:    "__bridge_init",
		Fini:    "__bridge_fini",
		Types:   []TypeDecl{widget, gadget},
		Functions: []FuncDecl{
			{Name: "add", Symbol: "add", Signature: "func(a: s32, b: s32) -> s32"},
			{Name: "measure", Symbol: "measure", Signature: "func(s: string) -> u32"},
			{Name: "version_tag", Symbol: "version_tag", Signature: "func() -> string"},
		},
		Variables: []VarDecl{
			{Name: "scale_factor", Symbol: "scale_factor", Type: "f64"},
			{Name: "live_count", Symbol: "live_count", Type: "s32"},
		},
	}
}

func loadNamespace(t *testing.T, version string) *engine.Namespace {
	t.Helper()
	ctx := context.Background()
	e, err := engine.New(ctx, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(ctx) })

	file := "widgets_" + map[string]string{"1.0.0": "1_0_0", "2.0.0": "2_0_0"}[version] + ".wasm"
	wasm, err := os.ReadFile(filepath.Join("..", "testdata", file))
	if err != nil {
		t.Fatalf("read %s: %v", file, err)
	}
	ns, err := e.Instantiate(ctx, "widgets@"+version, wasm)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return ns
}

func TestRegistry_RegisterResolvesEveryEntry(t *testing.T) {
	ns := loadNamespace(t, "1.0.0")
	r := New()
	if err := r.Register(ns, widgetsDecl("1.0.0")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	entries := r.Entries("widgets", "1.0.0")
	if len(entries) == 0 {
		t.Fatal("no entries registered")
	}
	for _, e := range entries {
		if !e.Resolved() {
			t.Errorf("%s not resolved: %v", e, e.Err)
		}
		if e.Kind != KindVariable && e.invoke == nil {
			t.Errorf("%s has no callable", e)
		}
	}

	if st, ok := r.Status("widgets", "1.0.0"); !ok || st != StatusOK {
		t.Errorf("Status = %v, %v", st, ok)
	}
	ti, ok := r.Type("widgets", "1.0.0", "Widget")
	if !ok || ti.Status != StatusOK {
		t.Fatalf("Type(Widget) = %+v, %v", ti, ok)
	}
	if len(ti.Methods) != 4 || len(ti.Capabilities) != 2 {
		t.Errorf("Widget info = %+v", ti)
	}
}

func TestRegistry_ConstructorOverloads(t *testing.T) {
	ctx := context.Background()
	ns := loadNamespace(t, "1.0.0")
	r := New()
	if err := r.Register(ns, widgetsDecl("1.0.0")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctors := r.Constructors("widgets", "1.0.0", "Widget")
	if len(ctors) != 2 {
		t.Fatalf("len(ctors) = %d", len(ctors))
	}
	if ctors[0].Key.Signature != "()" || ctors[1].Key.Signature != "(f64)" {
		t.Errorf("overload order = %s, %s", ctors[0].Key.Signature, ctors[1].Key.Signature)
	}

	c, err := r.Constructor("widgets", "1.0.0", "Widget", 4.0)
	if err != nil {
		t.Fatalf("Constructor(f64): %v", err)
	}
	if c.Symbol != "Widget__new_1" {
		t.Errorf("picked %s", c.Symbol)
	}
	out, err := c.Call(ctx, 4.0)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	rep := out[0].(uint32)

	area, err := r.Member("widgets", "1.0.0", "Widget", "area")
	if err != nil {
		t.Fatalf("Member(area): %v", err)
	}
	out, err = area.Call(ctx, rep)
	if err != nil {
		t.Fatalf("area: %v", err)
	}
	if out[0] != 16.0 {
		t.Errorf("area = %v, want 16", out[0])
	}

	c, err = r.Constructor("widgets", "1.0.0", "Widget")
	if err != nil || c.Symbol != "Widget__new_0" {
		t.Errorf("Constructor() = %v, %v", c, err)
	}

	_, err = r.Constructor("widgets", "1.0.0", "Widget", "big")
	if errors.KindOf(err) != errors.KindTypeMismatch {
		t.Errorf("Constructor(string) err = %v", err)
	}
	_, err = r.Constructor("widgets", "1.0.0", "Sprocket")
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Constructor(Sprocket) err = %v", err)
	}
	_, err = r.Constructor("widgets", "9.0.0", "Widget")
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("unknown version err = %v", err)
	}
}

func TestRegistry_MissingSymbols(t *testing.T) {
	ctx := context.Background()
	ns := loadNamespace(t, "1.0.0")

	decl := widgetsDecl("1.0.0")
	decl.Functions = append(decl.Functions, FuncDecl{Name: "multiply", Symbol: "multiply", Signature: "func(a: s32, b: s32) -> s32"})
	decl.Types[1].Drop = "Gadget__destroy"

	r := New()
	err := r.Register(ns, decl)
	var missing *errors.MissingSymbolsError
	if !errors.As(err, &missing) {
		t.Fatalf("Register err = %v, want MissingSymbolsError", err)
	}
	if len(missing.Symbols) != 2 {
		t.Errorf("missing = %+v", missing.Symbols)
	}
	if !errors.Is(err, &errors.Error{Kind: errors.KindSymbolResolution}) {
		t.Error("MissingSymbolsError should match KindSymbolResolution")
	}

	mul, err := r.Function("widgets", "1.0.0", "multiply")
	if err != nil {
		t.Fatalf("Function(multiply): %v", err)
	}
	if mul.Status != StatusMissingFactory {
		t.Errorf("multiply status = %v", mul.Status)
	}
	if _, err := mul.Call(ctx, int32(2), int32(3)); errors.KindOf(err) != errors.KindSymbolResolution {
		t.Errorf("stand-in err = %v", err)
	}

	// Gadget lost its drop entry, so it cannot be constructed.
	gctors := r.Constructors("widgets", "1.0.0", "Gadget")
	if len(gctors) != 1 || gctors[0].Status != StatusMissingFactory {
		t.Fatalf("Gadget ctors = %v", gctors)
	}
	if _, err := gctors[0].Call(ctx); errors.KindOf(err) != errors.KindUnavailable {
		t.Errorf("Gadget ctor err = %v", err)
	}
	if ti, _ := r.Type("widgets", "1.0.0", "Gadget"); ti.Status != StatusMissingFactory {
		t.Errorf("Gadget status = %v", ti.Status)
	}

	// Widget and the other functions are unaffected.
	w, err := r.Constructor("widgets", "1.0.0", "Widget")
	if err != nil || !w.Resolved() {
		t.Fatalf("Widget ctor = %v, %v", w, err)
	}
	add, _ := r.Function("widgets", "1.0.0", "add")
	out, err := add.Call(ctx, int32(2), int32(3))
	if err != nil || out[0] != int32(5) {
		t.Errorf("add = %v, %v", out, err)
	}
}

func TestRegistry_CoreSignatureMismatch(t *testing.T) {
	ns := loadNamespace(t, "1.0.0")
	decl := widgetsDecl("1.0.0")
	decl.Functions[0].Signature = "func(a: f64, b: f64) -> f64"

	r := New()
	err := r.Register(ns, decl)
	if err == nil {
		t.Fatal("Register should report the mismatched function")
	}
	add, _ := r.Function("widgets", "1.0.0", "add")
	if add.Status != StatusMissingFactory || errors.KindOf(add.Err) != errors.KindTypeMismatch {
		t.Errorf("add = %v, err %v", add, add.Err)
	}
}

func TestRegistry_Unavailable(t *testing.T) {
	ctx := context.Background()
	cause := errors.LoadFailure("widgets", "3.0.0", "/missing.wasm", os.ErrNotExist)

	r := New()
	if err := r.RegisterUnavailable(widgetsDecl("3.0.0"), cause); err != nil {
		t.Fatalf("RegisterUnavailable: %v", err)
	}
	if st, _ := r.Status("widgets", "3.0.0"); st != StatusMissingBackend {
		t.Errorf("Status = %v", st)
	}
	c, err := r.Constructor("widgets", "3.0.0", "Widget")
	if err != nil {
		t.Fatalf("Constructor: %v", err)
	}
	if c.Status != StatusMissingBackend {
		t.Errorf("ctor status = %v", c.Status)
	}
	_, err = c.Call(ctx)
	if errors.KindOf(err) != errors.KindUnavailable {
		t.Errorf("Call err = %v", err)
	}
	if !errors.Is(err, &errors.Error{Kind: errors.KindLoadFailure}) {
		t.Error("unavailable error should carry the load failure")
	}
	v, _ := r.Variable("widgets", "3.0.0", "scale_factor")
	if _, err := v.Get(); errors.KindOf(err) != errors.KindUnavailable {
		t.Errorf("Get err = %v", err)
	}
}

func TestRegistry_Variables(t *testing.T) {
	ns := loadNamespace(t, "1.0.0")
	r := New()
	if err := r.Register(ns, widgetsDecl("1.0.0")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	v, err := r.Variable("widgets", "1.0.0", "scale_factor")
	if err != nil {
		t.Fatalf("Variable: %v", err)
	}
	got, err := v.Get()
	if err != nil || got != 1.0 {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if err := v.Set(2.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := v.Get(); got != 2.5 {
		t.Errorf("after Set = %v", got)
	}
	if err := v.Set("x"); errors.KindOf(err) != errors.KindTypeMismatch {
		t.Errorf("Set(string) err = %v", err)
	}

	if _, err := r.Variable("widgets", "1.0.0", "add"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Variable(add) err = %v", err)
	}
	if _, err := r.Function("widgets", "1.0.0", "scale_factor"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Function(scale_factor) err = %v", err)
	}
}

func TestRegistry_RegisterTwiceIsNoop(t *testing.T) {
	ns := loadNamespace(t, "1.0.0")
	r := New()
	decl := widgetsDecl("1.0.0")
	if err := r.Register(ns, decl); err != nil {
		t.Fatalf("Register: %v", err)
	}
	first := r.Entries("widgets", "1.0.0")
	if err := r.Register(ns, decl); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	second := r.Entries("widgets", "1.0.0")
	if len(first) != len(second) {
		t.Fatalf("entry count changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("entry %d replaced", i)
		}
	}
}

func TestRegistry_Freeze(t *testing.T) {
	ns := loadNamespace(t, "1.0.0")
	r := New()
	if r.Initialized() {
		t.Fatal("new registry should not be initialized")
	}
	r.Freeze()
	if !r.Initialized() {
		t.Fatal("Freeze should initialize")
	}
	err := r.Register(ns, widgetsDecl("1.0.0"))
	if errors.KindOf(err) != errors.KindFrozen {
		t.Errorf("Register after Freeze = %v", err)
	}
}

func TestRegistry_Hooks(t *testing.T) {
	ctx := context.Background()
	ns := loadNamespace(t, "1.0.0")
	r := New()
	if err := r.Register(ns, widgetsDecl("1.0.0")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	hook, ok := r.Hook("widgets", "1.0.0", KindInit)
	if !ok {
		t.Fatal("init hook missing")
	}
	if _, err := hook.Call(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	live, _ := r.Variable("widgets", "1.0.0", "live_count")
	if got, _ := live.Get(); got != int32(1) {
		t.Errorf("live_count after init = %v, want 1", got)
	}
	if _, ok := r.Hook("widgets", "1.0.0", KindMethod); ok {
		t.Error("Hook(KindMethod) should not exist")
	}
}

func TestRegistry_Listing(t *testing.T) {
	r := New()
	for _, v := range []string{"2.0.0", "1.0.0"} {
		if err := r.Register(loadNamespace(t, v), widgetsDecl(v)); err != nil {
			t.Fatalf("Register %s: %v", v, err)
		}
	}
	if got := r.Backends(); len(got) != 1 || got[0] != "widgets" {
		t.Errorf("Backends = %v", got)
	}
	if got := r.Versions("widgets"); len(got) != 2 || got[0] != "1.0.0" {
		t.Errorf("Versions = %v", got)
	}
	types := r.Types("widgets", "2.0.0")
	if len(types) != 2 || types[0].Name != "Gadget" {
		t.Errorf("Types = %+v", types)
	}
	if d, ok := r.Declaration("widgets", "2.0.0"); !ok || d.Init != "__bridge_init" {
		t.Errorf("Declaration = %+v", d)
	}
}

func TestDeclaration_Validate(t *testing.T) {
	valid := widgetsDecl("1.0.0")
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid declaration: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Declaration)
	}{
		{"no backend", func(d *Declaration) { d.Backend = "" }},
		{"duplicate type", func(d *Declaration) { d.Types = append(d.Types, d.Types[0]) }},
		{"no constructors", func(d *Declaration) { d.Types[0].Constructors = nil }},
		{"wrong constructor result", func(d *Declaration) {
			d.Types[0].Constructors[0].Signature = "func() -> handle<Gadget>"
		}},
		{"duplicate overload", func(d *Declaration) {
			d.Types[0].Constructors[1].Signature = "func() -> handle<Widget>"
		}},
		{"reserved method", func(d *Declaration) { d.Types[0].Methods[0].Name = "clone" }},
		{"bad method signature", func(d *Declaration) { d.Types[0].Methods[0].Signature = "tag()" }},
		{"duplicate function", func(d *Declaration) { d.Functions = append(d.Functions, d.Functions[0]) }},
		{"variable shadows function", func(d *Declaration) { d.Variables[0].Name = "add" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := widgetsDecl("1.0.0")
			tt.mutate(&d)
			if err := d.Validate(); errors.KindOf(err) != errors.KindInvalidInput {
				t.Errorf("Validate = %v, want invalid input", err)
			}
		})
	}
}

type fakeNamespace struct {
	funcs map[string][2][]api.ValueType
}

func (f *fakeNamespace) Name() string { return "fake@1.0.0" }

func (f *fakeNamespace) Function(symbol string) ([]api.ValueType, []api.ValueType, bool) {
	sig, ok := f.funcs[symbol]
	return sig[0], sig[1], ok
}

func (f *fakeNamespace) Global(string) (api.ValueType, bool, bool) { return 0, false, false }

func (f *fakeNamespace) Invoke(_ context.Context, symbol string, _, _ []engine.ValueType, args []any) ([]any, error) {
	return nil, errors.New(errors.PhaseCall, errors.KindTrap).Symbol(symbol).Build()
}

func (f *fakeNamespace) ReadGlobal(string, engine.ValueType) (any, error) { return nil, nil }

func (f *fakeNamespace) WriteGlobal(string, engine.ValueType, any) error { return nil }

func TestRegistry_ErrorsAnnotated(t *testing.T) {
	i32 := api.ValueTypeI32
	ns := &fakeNamespace{funcs: map[string][2][]api.ValueType{
		"make":  {nil, {i32}},
		"clone": {{i32}, {i32}},
		"set":   {{i32, i32}, nil},
		"drop":  {{i32}, nil},
	}}
	decl := Declaration{
		Backend: "fake",
		Version: "1.0.0",
		Types: []TypeDecl{{
			Name: "Thing", Clone: "clone", Assign: "set", Drop: "drop",
			Constructors: []FuncDecl{{Symbol: "make", Signature: "func() -> handle<Thing>"}},
		}},
	}
	r := New()
	if err := r.Register(ns, decl); err != nil {
		t.Fatalf("Register: %v", err)
	}
	c, _ := r.Constructor("fake", "1.0.0", "Thing")
	_, err := c.Call(context.Background())
	var e *errors.Error
	if !errors.As(err, &e) {
		t.Fatalf("err = %v", err)
	}
	if e.Backend != "fake" || e.Version != "1.0.0" || e.TypeName != "Thing" {
		t.Errorf("error not annotated: %+v", e)
	}
}

func TestRegistry_MissingLifecycleEntry(t *testing.T) {
	i32 := api.ValueTypeI32
	ns := &fakeNamespace{funcs: map[string][2][]api.ValueType{
		"make": {nil, {i32}},
		"drop": {{i32}, nil},
	}}
	decl := Declaration{
		Backend: "fake",
		Version: "1.0.0",
		Types: []TypeDecl{{
			Name: "Thing", Drop: "drop",
			Constructors: []FuncDecl{{Symbol: "make", Signature: "func() -> handle<Thing>"}},
		}},
	}
	r := New()
	err := r.Register(ns, decl)
	var missing *errors.MissingSymbolsError
	if !errors.As(err, &missing) || len(missing.Symbols) != 2 {
		t.Fatalf("err = %v", err)
	}
	c, _ := r.Constructor("fake", "1.0.0", "Thing")
	if c.Status != StatusMissingFactory {
		t.Errorf("ctor status = %v", c.Status)
	}
}
