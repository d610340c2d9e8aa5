package proxy

import (
	"context"
	"sync/atomic"

	"github.com/wippyai/backend-bridge/abstract"
	"github.com/wippyai/backend-bridge/errors"
	"github.com/wippyai/backend-bridge/ownership"
)

// Factory creates the object of a lazily constructed proxy.
type Factory func(ctx context.Context) (*abstract.Instance, error)

// Wrapper turns an instance into the typed Abstract Interface T.
type Wrapper[T any] func(*abstract.Instance) T

// Base is embedded by every generated proxy. It is not safe for
// concurrent use.
type Base[T any] struct {
	abs             T
	inst            *abstract.Instance
	factory         Factory
	wrap            Wrapper[T]
	typeName        string
	capabilities    []string
	closed          bool
	releasedBackend atomic.Bool
}

// Init prepares a default proxy. No object exists until first use.
func (b *Base[T]) Init(typeName string, capabilities []string, wrap Wrapper[T], factory Factory) {
	b.typeName = typeName
	b.capabilities = capabilities
	b.wrap = wrap
	b.factory = factory
}

// Own pairs the proxy with a new object it will release on Close.
func (b *Base[T]) Own(inst *abstract.Instance, wrap Wrapper[T]) {
	b.attach(inst, wrap, true, false)
}

// Adopt pairs the proxy with an object it does not own. Close detaches
// without releasing. With deleteWithBackend the proxy is closed when the
// backend destroys the object.
func (b *Base[T]) Adopt(inst *abstract.Instance, wrap Wrapper[T], deleteWithBackend bool) {
	b.attach(inst, wrap, false, deleteWithBackend)
}

// TryAdopt is Adopt for an object another proxy may already hold. A paired
// or released object is reported as an ownership violation error and b is
// left unchanged.
func (b *Base[T]) TryAdopt(inst *abstract.Instance, wrap Wrapper[T], deleteWithBackend bool) error {
	if err := b.checkUnpaired(inst); err != nil {
		return err
	}
	b.releasedBackend.Store(false)
	if err := inst.TryPair(b, false, deleteWithBackend); err != nil {
		return err
	}
	b.bind(inst, wrap)
	return nil
}

func (b *Base[T]) attach(inst *abstract.Instance, wrap Wrapper[T], owned, deleteWithBackend bool) {
	if err := b.checkUnpaired(inst); err != nil {
		panic(err)
	}
	b.releasedBackend.Store(false)
	inst.Pair(b, owned, deleteWithBackend)
	b.bind(inst, wrap)
}

func (b *Base[T]) checkUnpaired(inst *abstract.Instance) error {
	if b.inst != nil {
		return errors.OwnershipViolation(inst.Identity().Type, "proxy is already paired with "+b.inst.Identity().String())
	}
	return nil
}

func (b *Base[T]) bind(inst *abstract.Instance, wrap Wrapper[T]) {
	id := inst.Identity()
	b.typeName = id.Type
	b.capabilities = id.Capabilities
	b.wrap = wrap
	b.closed = false
	b.inst = inst
	b.abs = wrap(inst)
}

// Abstract returns the Abstract Interface, constructing the object on
// first use of a default proxy.
func (b *Base[T]) Abstract(ctx context.Context) (T, error) {
	var zero T
	b.sync()
	if b.inst != nil {
		return b.abs, nil
	}
	if b.closed || b.factory == nil {
		return zero, b.unbound()
	}
	inst, err := b.factory(ctx)
	if err != nil {
		return zero, err
	}
	b.attach(inst, b.wrap, true, false)
	return b.abs, nil
}

// Instance returns the paired instance, constructing it if needed.
func (b *Base[T]) Instance(ctx context.Context) (*abstract.Instance, error) {
	if _, err := b.Abstract(ctx); err != nil {
		return nil, err
	}
	return b.inst, nil
}

// Identity returns the identity record of the paired object, or nil
// before construction.
func (b *Base[T]) Identity() *abstract.Identity {
	b.sync()
	if b.inst == nil {
		return nil
	}
	return b.inst.Identity()
}

// Capabilities returns the capabilities of the proxied type. They are
// known before the object is constructed.
func (b *Base[T]) Capabilities() []string {
	return b.capabilities
}

// TypeName returns the backend type name.
func (b *Base[T]) TypeName() string {
	return b.typeName
}

// State returns the ownership state of the pair. A proxy without an
// object reports Unconstructed, a closed one Released.
func (b *Base[T]) State() ownership.State {
	b.sync()
	switch {
	case b.inst != nil:
		return b.inst.State()
	case b.closed:
		return ownership.Released
	}
	return ownership.Unconstructed
}

// Bound reports whether the proxy holds an object.
func (b *Base[T]) Bound() bool {
	b.sync()
	return b.inst != nil
}

// CopyTo gives dst a backend clone of this proxy's object. dst must be
// a fresh proxy and ends up owning the clone.
func (b *Base[T]) CopyTo(ctx context.Context, dst *Base[T]) error {
	inst, err := b.Instance(ctx)
	if err != nil {
		return err
	}
	clone, err := inst.Clone(ctx)
	if err != nil {
		return err
	}
	dst.factory = b.factory
	dst.Own(clone, b.wrap)
	return nil
}

// Assign copies src's object state into this proxy's object through the
// backend. Assigning a proxy to itself does nothing.
func (b *Base[T]) Assign(ctx context.Context, src *Base[T]) error {
	if src == b {
		return nil
	}
	from, err := src.Instance(ctx)
	if err != nil {
		return err
	}
	to, err := b.Instance(ctx)
	if err != nil {
		return err
	}
	return to.AssignFrom(ctx, from)
}

// Close releases the object if the proxy owns it and detaches it
// otherwise. Close is idempotent.
func (b *Base[T]) Close(ctx context.Context) error {
	b.sync()
	inst := b.inst
	b.inst = nil
	b.closed = true
	var zero T
	b.abs = zero
	if inst == nil {
		return nil
	}
	return inst.Unpair(ctx)
}

// ReleasedByBackend implements abstract.Owner. The proxy is closed on its
// next use.
func (b *Base[T]) ReleasedByBackend() {
	b.releasedBackend.Store(true)
}

func (b *Base[T]) sync() {
	if b.inst != nil && b.releasedBackend.Load() {
		b.inst = nil
		b.closed = true
		var zero T
		b.abs = zero
	}
}

func (b *Base[T]) unbound() error {
	name := b.typeName
	if name == "" {
		name = "proxy"
	}
	return errors.UnboundProxy(name)
}
