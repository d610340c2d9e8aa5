package abstract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
	"github.com/wippyai/backend-bridge/manifest"
	"github.com/wippyai/backend-bridge/ownership"
	"github.com/wippyai/backend-bridge/registry"
	"github.com/wippyai/backend-bridge/resource"
)

type fixture struct {
	binder  *Binder
	tracker *Tracker
	counter *resource.Counter
	reg     *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	e, err := engine.New(ctx, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(ctx) })

	tracker := NewTracker(nil)
	counter := resource.NewCounter()
	tracker.Table().Subscribe(counter)
	e.OnRelease(tracker.Release)

	m, err := manifest.Load(filepath.Join("..", "testdata", "widgets.yaml"))
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	reg := registry.New()
	for _, b := range m.Backends {
		wasm, err := os.ReadFile(b.Path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		ns, err := e.Instantiate(ctx, engine.NamespaceName(b.Declaration.Backend, b.Version), wasm)
		if err != nil {
			t.Fatalf("Instantiate: %v", err)
		}
		if err := reg.Register(ns, b.Declaration); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	reg.Freeze()
	return &fixture{binder: NewBinder(reg, tracker), tracker: tracker, counter: counter, reg: reg}
}

func (f *fixture) bind(t *testing.T, version, typeName string) *Binding {
	t.Helper()
	b, err := f.binder.Bind("widgets", version, typeName)
	if err != nil {
		t.Fatalf("Bind(%s, %s): %v", version, typeName, err)
	}
	return b
}

func TestBinder_Bind(t *testing.T) {
	f := newFixture(t)
	b := f.bind(t, "1.0.0", "Widget")

	want := []string{"area", "scale", "size", "tag"}
	got := b.Slots()
	if len(got) != len(want) {
		t.Fatalf("Slots = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slots[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if e, ok := b.Slot("area"); !ok || e.Symbol != "Widget__area" {
		t.Errorf("Slot(area) = %v", e)
	}
	if b.Namespace != "widgets@1.0.0" || b.Status != registry.StatusOK {
		t.Errorf("binding = %+v", b)
	}
	if again := f.bind(t, "1.0.0", "Widget"); again != b {
		t.Error("bindings should be cached")
	}

	if _, err := f.binder.Bind("widgets", "1.0.0", "Sprocket"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Bind(Sprocket) = %v", err)
	}
}

func TestInstance_InvokeAndRelease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.bind(t, "1.0.0", "Widget")

	w, err := b.Construct(ctx, 3.0)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if w.State() != ownership.AbstractOnly || w.Borrowed() {
		t.Errorf("new instance state = %v, borrowed %v", w.State(), w.Borrowed())
	}
	if w.Identity().ID.String() == "" || w.Identity().Rep == 0 {
		t.Errorf("identity = %+v", w.Identity())
	}

	if _, err := w.Invoke(ctx, "scale", 2.0); err != nil {
		t.Fatalf("scale: %v", err)
	}
	out, err := w.Invoke(ctx, "area")
	if err != nil {
		t.Fatalf("area: %v", err)
	}
	if out[0] != 36.0 {
		t.Errorf("area = %v, want 36", out[0])
	}
	out, _ = w.Invoke(ctx, "tag")
	if out[0] != "v1" {
		t.Errorf("tag = %v", out[0])
	}

	if _, err := w.Invoke(ctx, "explode"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("missing slot = %v", err)
	}
	if _, err := w.Invoke(ctx, "scale", "twice"); errors.KindOf(err) != errors.KindTypeMismatch {
		t.Errorf("bad argument = %v", err)
	}

	if err := w.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if w.State() != ownership.Released {
		t.Errorf("state = %v", w.State())
	}
	if _, err := w.Invoke(ctx, "area"); errors.KindOf(err) != errors.KindUnboundProxy {
		t.Errorf("call after release = %v", err)
	}
	if f.tracker.Table().Len() != 0 || !f.counter.Balanced() {
		t.Errorf("table %d, allocated %d, released %d",
			f.tracker.Table().Len(), f.counter.Allocated(), f.counter.Released())
	}
}

func TestInstance_DoubleReleasePanics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w, _ := f.bind(t, "1.0.0", "Widget").Construct(ctx)
	_ = w.Release(ctx)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("double release should panic")
		}
		if errors.KindOf(r.(error)) != errors.KindOwnershipViolation {
			t.Errorf("panic = %v", r)
		}
	}()
	_ = w.Release(ctx)
}

func TestInstance_CloneAndAssign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.bind(t, "1.0.0", "Widget")

	a, _ := b.Construct(ctx, 2.0)
	c, err := a.Clone(ctx)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if c.Identity().Rep == a.Identity().Rep || c.Identity().ID == a.Identity().ID {
		t.Fatal("clone should be a distinct object")
	}

	d, _ := b.Construct(ctx, 7.0)
	if err := c.AssignFrom(ctx, d); err != nil {
		t.Fatalf("AssignFrom: %v", err)
	}
	out, _ := c.Invoke(ctx, "size")
	if out[0] != 7.0 {
		t.Errorf("size after assign = %v", out[0])
	}
	if err := c.AssignFrom(ctx, c); err != nil {
		t.Errorf("self assign: %v", err)
	}

	g, _ := f.bind(t, "1.0.0", "Gadget").Construct(ctx)
	if err := c.AssignFrom(ctx, g); errors.KindOf(err) != errors.KindTypeMismatch {
		t.Errorf("cross-type assign = %v", err)
	}

	for _, inst := range []*Instance{a, c, d, g} {
		_ = inst.Release(ctx)
	}
	if f.counter.Allocated() != 4 || !f.counter.Balanced() {
		t.Errorf("allocated %d, released %d", f.counter.Allocated(), f.counter.Released())
	}
}

func TestBinder_CallLiftsObjects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	out, err := f.binder.Call(ctx, "widgets", "1.0.0", "spawn_widget", 5.0)
	if err != nil {
		t.Fatalf("spawn_widget: %v", err)
	}
	w, ok := out[0].(*Instance)
	if !ok || w.Borrowed() || w.Identity().Type != "Widget" {
		t.Fatalf("spawn_widget result = %#v", out[0])
	}

	out, err = f.binder.Call(ctx, "widgets", "1.0.0", "measure", "hello")
	if err != nil || out[0] != uint32(5) {
		t.Errorf("measure = %v, %v", out, err)
	}

	// Before init the backend has no pool widget: the null rep lifts to nil.
	out, err = f.binder.Call(ctx, "widgets", "1.0.0", "pool_widget")
	if err != nil {
		t.Fatalf("pool_widget: %v", err)
	}
	if out[0].(*Instance) != nil {
		t.Errorf("pool_widget before init = %v", out[0])
	}

	_ = w.Release(ctx)
}

func TestBinder_BorrowedIsShared(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hook, _ := f.reg.Hook("widgets", "1.0.0", registry.KindInit)
	if _, err := hook.Call(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	out1, _ := f.binder.Call(ctx, "widgets", "1.0.0", "pool_widget")
	out2, _ := f.binder.Call(ctx, "widgets", "1.0.0", "pool_widget")
	p1, p2 := out1[0].(*Instance), out2[0].(*Instance)
	if p1 != p2 {
		t.Error("the same backend object should map to one instance")
	}
	if !p1.Borrowed() {
		t.Error("pool widget should be borrowed")
	}

	defer func() {
		if recover() == nil {
			t.Error("host release of a borrowed object should panic")
		}
	}()
	_ = p1.Release(ctx)
}

func TestTracker_BackendRelease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.bind(t, "1.0.0", "Widget")
	w, _ := b.Construct(ctx)

	if got, ok := f.tracker.Lookup("widgets@1.0.0", w.Identity().Rep); !ok || got != w {
		t.Fatal("Lookup should find the instance")
	}

	// A proxy-owned object may not be destroyed by the backend.
	owner := &testOwner{}
	w.Pair(owner, true, false)
	err := f.tracker.Release(ctx, "widgets@1.0.0", w.Identity().Rep)
	if errors.KindOf(err) != errors.KindOwnershipViolation {
		t.Fatalf("Release of owned = %v", err)
	}
	if w.State() != ownership.ProxyOwned {
		t.Errorf("state changed to %v", w.State())
	}
	if w.Owner() != owner {
		t.Error("Owner lost")
	}
	if err := w.Unpair(ctx); err != nil {
		t.Fatalf("Unpair: %v", err)
	}

	// An unpaired object moves to Released and leaves the table.
	v, _ := b.Construct(ctx)
	if err := f.tracker.Release(ctx, "widgets@1.0.0", v.Identity().Rep); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if v.State() != ownership.Released {
		t.Errorf("state = %v", v.State())
	}
	if _, ok := f.tracker.Lookup("widgets@1.0.0", v.Identity().Rep); ok {
		t.Error("released object still tracked")
	}

	// Unknown objects are ignored.
	if err := f.tracker.Release(ctx, "widgets@1.0.0", 99999); err != nil {
		t.Errorf("Release of unknown = %v", err)
	}
	if n := len(f.tracker.Outstanding("")); n != 0 {
		t.Errorf("outstanding = %d", n)
	}
}

func TestTracker_Outstanding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, _ := f.bind(t, "2.0.0", "Widget").Construct(ctx)
	b, _ := f.bind(t, "1.0.0", "Gadget").Construct(ctx)

	out := f.tracker.Outstanding("")
	if len(out) != 2 || out[0] != b || out[1] != a {
		t.Fatalf("Outstanding = %v", out)
	}
	if out := f.tracker.Outstanding("widgets@2.0.0"); len(out) != 1 || out[0] != a {
		t.Errorf("Outstanding(2.0.0) = %v", out)
	}
	_ = a.Release(ctx)
	_ = b.Release(ctx)
}

func TestImplements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w, _ := f.bind(t, "1.0.0", "Widget").Construct(ctx)
	g, _ := f.bind(t, "1.0.0", "Gadget").Construct(ctx)
	defer w.Release(ctx)
	defer g.Release(ctx)

	tests := []struct {
		obj  any
		cap  string
		want bool
	}{
		{w, "Sized", true},
		{w, "Tagged", true},
		{g, "Tagged", true},
		{g, "Sized", false},
		{w.Binding(), "Sized", true},
		{"not an object", "Sized", false},
	}
	for _, tt := range tests {
		if got := Implements(tt.obj, tt.cap); got != tt.want {
			t.Errorf("Implements(%v, %s) = %v", tt.obj, tt.cap, got)
		}
	}
	if !w.Identity().Implements("Sized") || g.Identity().Implements("Sized") {
		t.Error("Identity.Implements disagrees")
	}
	var nilID *Identity
	if nilID.Implements("Sized") {
		t.Error("nil identity implements nothing")
	}
}

type testOwner struct {
	released bool
}

func (o *testOwner) ReleasedByBackend() { o.released = true }
