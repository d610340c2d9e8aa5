package abstract

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/backend-bridge/errors"
	"github.com/wippyai/backend-bridge/ownership"
	"github.com/wippyai/backend-bridge/resource"
)

// Owner is the proxy paired with an instance. ReleasedByBackend is called
// when the backend destroys the object of a proxy that agreed to be
// released with it.
type Owner interface {
	ReleasedByBackend()
}

type ownerRef struct {
	owner             Owner
	deleteWithBackend bool
}

// Instance is the Abstract Interface of one backend object.
type Instance struct {
	id      *Identity
	binding *Binding
	guard   *ownership.Guard
	owner   atomic.Pointer[ownerRef]
	origin  resource.Origin
}

func newInstance(b *Binding, rep uint32, origin resource.Origin) *Instance {
	return &Instance{
		id: &Identity{
			ID:           uuid.New(),
			Backend:      b.Backend,
			Version:      b.Version,
			Type:         b.Type,
			Rep:          rep,
			Capabilities: b.capabilities,
		},
		binding: b,
		guard:   ownership.NewGuard(b.Type, ownership.AbstractOnly),
		origin:  origin,
	}
}

// Identity returns the identity record of the object.
func (i *Instance) Identity() *Identity {
	return i.id
}

// Binding returns the slot table the instance dispatches through.
func (i *Instance) Binding() *Binding {
	return i.binding
}

// Capabilities returns the capabilities of the object's type.
func (i *Instance) Capabilities() []string {
	return i.id.Capabilities
}

// State returns the ownership state of the object.
func (i *Instance) State() ownership.State {
	return i.guard.State()
}

// Borrowed reports whether the backend owns the object.
func (i *Instance) Borrowed() bool {
	return i.origin == resource.OriginBorrowed
}

// Owner returns the paired proxy, or nil.
func (i *Instance) Owner() Owner {
	if ref := i.owner.Load(); ref != nil {
		return ref.owner
	}
	return nil
}

func (i *Instance) key() resource.Key {
	return resource.Key{Namespace: i.binding.Namespace, Rep: i.id.Rep}
}

func (i *Instance) live() error {
	if i.guard.State() == ownership.Released {
		return errors.New(errors.PhaseCall, errors.KindUnboundProxy).
			Backend(i.id.Backend, i.id.Version).
			Type(i.id.Type).
			Detail("object %s has been released", i.id).
			Build()
	}
	return nil
}

// Invoke dispatches a call through the named slot.
func (i *Instance) Invoke(ctx context.Context, slot string, args ...any) ([]any, error) {
	e, ok := i.binding.slots[slot]
	if !ok {
		return nil, errors.New(errors.PhaseCall, errors.KindNotFound).
			Backend(i.id.Backend, i.id.Version).
			Type(i.id.Type).
			Symbol(slot).
			Detail("no such slot").
			Build()
	}
	if err := i.live(); err != nil {
		return nil, err
	}

	b := i.binding.binder
	lowered, err := b.lower(i.binding.Namespace, e.Sig.ParamTypes(), args)
	if err != nil {
		return nil, err
	}
	out, err := e.Call(ctx, append([]any{i.id.Rep}, lowered...)...)
	if err != nil {
		return nil, err
	}
	return b.lift(i.id.Backend, i.id.Version, e.Results, out)
}

// Clone asks the backend for a copy of the object. The copy is a new,
// host-owned object.
func (i *Instance) Clone(ctx context.Context) (*Instance, error) {
	if err := i.live(); err != nil {
		return nil, err
	}
	out, err := i.binding.clone.Call(ctx, i.id.Rep)
	if err != nil {
		return nil, err
	}
	return i.binding.track(out[0].(uint32), resource.OriginFactory)
}

// AssignFrom copies the state of src into i through the backend's assign
// entry. Both objects must be of the same type and backend version.
func (i *Instance) AssignFrom(ctx context.Context, src *Instance) error {
	if src == i {
		return nil
	}
	if src == nil || src.binding != i.binding {
		want := i.id.String()
		got := "nil"
		if src != nil {
			got = src.id.String()
		}
		return errors.TypeMismatch(errors.PhaseCall, []string{"assign"}, got, want)
	}
	if err := i.live(); err != nil {
		return err
	}
	if err := src.live(); err != nil {
		return err
	}
	_, err := i.binding.assign.Call(ctx, i.id.Rep, src.id.Rep)
	return err
}

// Release destroys an unpaired host-owned object. Releasing a paired,
// borrowed or already released object is an ownership violation.
func (i *Instance) Release(ctx context.Context) error {
	if i.origin == resource.OriginBorrowed {
		panic(errors.OwnershipViolation(i.id.Type, "host release of backend-owned "+i.id.String()))
	}
	i.guard.ReleaseByHost()
	return i.destroy(ctx)
}

// Pair attaches a proxy. owned gives the proxy the right to release the
// object; deleteWithBackend asks to be told when the backend releases it.
// An instance pairs with one proxy at a time.
func (i *Instance) Pair(owner Owner, owned, deleteWithBackend bool) {
	if err := i.TryPair(owner, owned, deleteWithBackend); err != nil {
		panic(err)
	}
}

// TryPair is Pair returning the ownership violation as an error.
func (i *Instance) TryPair(owner Owner, owned, deleteWithBackend bool) error {
	if owned && i.origin == resource.OriginBorrowed {
		return errors.OwnershipViolation(i.id.Type, "proxy cannot own backend-owned "+i.id.String())
	}
	if err := i.guard.TryBind(owned); err != nil {
		return err
	}
	i.owner.Store(&ownerRef{owner: owner, deleteWithBackend: deleteWithBackend})
	return nil
}

// Unpair detaches the proxy. If the proxy owned the object, it is
// released through the backend's drop entry.
func (i *Instance) Unpair(ctx context.Context) error {
	drop := i.guard.CloseByProxy()
	i.owner.Store(nil)
	if !drop {
		return nil
	}
	return i.destroy(ctx)
}

// destroy runs the drop entry of an object already marked released and
// forgets it. The drop entry may call back into the tracker; the released
// state makes that a no-op.
func (i *Instance) destroy(ctx context.Context) error {
	_, err := i.binding.drop.Call(ctx, i.id.Rep)
	i.binding.binder.tracker.table.Release(i.key())
	if err != nil {
		Logger().Warn("drop failed",
			zap.String("object", i.id.String()),
			zap.Error(err))
	}
	return err
}

// releasedByBackend is called by the tracker after the guard moved to
// Released on behalf of the backend.
func (i *Instance) releasedByBackend(prev ownership.State) {
	ref := i.owner.Swap(nil)
	if prev != ownership.AbstractOwned || ref == nil || !ref.deleteWithBackend {
		return
	}
	ref.owner.ReleasedByBackend()
}
