package abstract

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
	"github.com/wippyai/backend-bridge/registry"
	"github.com/wippyai/backend-bridge/resource"
)

// Binder builds and caches the bindings of a frozen registry.
type Binder struct {
	reg      *registry.Registry
	tracker  *Tracker
	bindings sync.Map // bindingKey -> *Binding
}

type bindingKey struct {
	backend string
	version string
	typ     string
}

// NewBinder creates a binder over reg. Instances it creates are tracked
// by tracker.
func NewBinder(reg *registry.Registry, tracker *Tracker) *Binder {
	return &Binder{reg: reg, tracker: tracker}
}

// Tracker returns the tracker instances are recorded in.
func (b *Binder) Tracker() *Tracker {
	return b.tracker
}

// Bind returns the slot table of typeName at an exact backend version.
// A type whose constructors are unusable still binds; constructing it
// reports why.
func (b *Binder) Bind(backend, version, typeName string) (*Binding, error) {
	key := bindingKey{backend, version, typeName}
	if v, ok := b.bindings.Load(key); ok {
		return v.(*Binding), nil
	}

	info, ok := b.reg.Type(backend, version, typeName)
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Backend(backend, version).
			Type(typeName).
			Detail("type not registered").
			Build()
	}

	bd := &Binding{
		binder:       b,
		Backend:      backend,
		Version:      version,
		Type:         typeName,
		Namespace:    engine.NamespaceName(backend, version),
		capabilities: slices.Clone(info.Capabilities),
		Status:       info.Status,
		slots:        make(map[string]*registry.Entry, len(info.Methods)),
	}
	for _, m := range info.Methods {
		e, err := b.reg.Member(backend, version, typeName, m)
		if err != nil {
			return nil, err
		}
		bd.slots[m] = e
	}
	for member, dst := range map[string]**registry.Entry{
		"clone":  &bd.clone,
		"assign": &bd.assign,
		"drop":   &bd.drop,
	} {
		e, err := b.reg.Member(backend, version, typeName, member)
		if err != nil {
			return nil, err
		}
		*dst = e
	}

	v, _ := b.bindings.LoadOrStore(key, bd)
	return v.(*Binding), nil
}

// Call invokes a free function of a backend version. Object arguments are
// *Instance values; object results are returned as *Instance.
func (b *Binder) Call(ctx context.Context, backend, version, name string, args ...any) ([]any, error) {
	e, err := b.reg.Function(backend, version, name)
	if err != nil {
		return nil, err
	}
	lowered, err := b.lower(engine.NamespaceName(backend, version), e.Sig.ParamTypes(), args)
	if err != nil {
		return nil, err
	}
	out, err := e.Call(ctx, lowered...)
	if err != nil {
		return nil, err
	}
	return b.lift(backend, version, e.Results, out)
}

func (b *Binder) lower(namespace string, params []engine.ValueType, args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		if i >= len(params) || !params[i].IsObject() {
			out[i] = a
			continue
		}
		p := params[i]
		inst, ok := a.(*Instance)
		if !ok || inst == nil {
			return nil, errors.TypeMismatch(errors.PhaseEncode, []string{"args", strconv.Itoa(i)}, typeName(a), p.String())
		}
		if inst.id.Type != p.Resource || inst.binding.Namespace != namespace {
			return nil, errors.TypeMismatch(errors.PhaseEncode, []string{"args", strconv.Itoa(i)},
				inst.id.String(), p.Resource+" of "+namespace)
		}
		if err := inst.live(); err != nil {
			return nil, err
		}
		out[i] = inst.id.Rep
	}
	return out, nil
}

func (b *Binder) lift(backend, version string, results []engine.ValueType, out []any) ([]any, error) {
	for i, r := range results {
		if !r.IsObject() {
			continue
		}
		rep := out[i].(uint32)
		if rep == 0 {
			out[i] = (*Instance)(nil)
			continue
		}
		bd, err := b.Bind(backend, version, r.Resource)
		if err != nil {
			return nil, err
		}
		var inst *Instance
		if r.Kind == engine.KindBorrow {
			inst, err = bd.Wrap(rep)
		} else {
			inst, err = bd.track(rep, resource.OriginFactory)
		}
		if err != nil {
			return nil, err
		}
		out[i] = inst
	}
	return out, nil
}

// Binding is the resolved slot table of one backend type at one version.
type Binding struct {
	binder       *Binder
	clone        *registry.Entry
	assign       *registry.Entry
	drop         *registry.Entry
	slots        map[string]*registry.Entry
	Backend      string
	Version      string
	Type         string
	Namespace    string
	capabilities []string
	Status       registry.Status
}

// Slots returns the dispatch slot names, sorted.
func (b *Binding) Slots() []string {
	names := make([]string, 0, len(b.slots))
	for name := range b.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slot returns the entry behind a dispatch slot.
func (b *Binding) Slot(name string) (*registry.Entry, bool) {
	e, ok := b.slots[name]
	return e, ok
}

// Capabilities returns the capabilities the type declares.
func (b *Binding) Capabilities() []string {
	return b.capabilities
}

// Construct calls the first constructor overload that accepts args. The
// new object is owned by the host and not yet paired with a proxy.
func (b *Binding) Construct(ctx context.Context, args ...any) (*Instance, error) {
	c, err := b.binder.reg.Constructor(b.Backend, b.Version, b.Type, args...)
	if err != nil {
		return nil, err
	}
	out, err := c.Call(ctx, args...)
	if err != nil {
		return nil, err
	}
	return b.track(out[0].(uint32), resource.OriginFactory)
}

// Wrap returns the instance of a backend-owned object. An object that is
// already tracked is returned as is.
func (b *Binding) Wrap(rep uint32) (*Instance, error) {
	key := resource.Key{Namespace: b.Namespace, Rep: rep}
	if v, ok := b.binder.tracker.table.Get(key); ok {
		inst := v.(*Instance)
		if inst.id.Type != b.Type {
			return nil, errors.TypeMismatch(errors.PhaseDecode, nil, inst.id.String(), "borrow<"+b.Type+">")
		}
		return inst, nil
	}
	return b.track(rep, resource.OriginBorrowed)
}

func (b *Binding) track(rep uint32, origin resource.Origin) (*Instance, error) {
	inst := newInstance(b, rep, origin)
	if err := b.binder.tracker.table.Insert(inst.key(), b.Type, origin, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
