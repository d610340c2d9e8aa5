package ownership

import (
	"fmt"
	"sync/atomic"

	"github.com/wippyai/backend-bridge/errors"
)

// State is the ownership variant of a handle/proxy pair.
type State uint32

const (
	// Unconstructed: a default proxy with no handle yet.
	Unconstructed State = iota
	// AbstractOnly: the handle exists and no proxy refers to it.
	AbstractOnly
	// ProxyOwned: a proxy refers to the handle and will release it.
	ProxyOwned
	// AbstractOwned: a proxy refers to the handle but the backend keeps ownership.
	AbstractOwned
	// Released: the backend object is gone.
	Released
)

func (s State) String() string {
	switch s {
	case Unconstructed:
		return "unconstructed"
	case AbstractOnly:
		return "abstract-only"
	case ProxyOwned:
		return "paired(owner=proxy)"
	case AbstractOwned:
		return "paired(owner=abstract)"
	case Released:
		return "released"
	}
	return fmt.Sprintf("state(%d)", uint32(s))
}

// Paired reports whether a proxy is bound to the handle.
func (s State) Paired() bool {
	return s == ProxyOwned || s == AbstractOwned
}

var transitions = map[State][]State{
	Unconstructed: {AbstractOnly, Released},
	AbstractOnly:  {ProxyOwned, AbstractOwned, Released},
	ProxyOwned:    {Released},
	AbstractOwned: {AbstractOnly, Released},
}

// Allowed reports whether from → to is a legal transition.
func Allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Guard holds the state of one pair.
type Guard struct {
	typeName string
	state    atomic.Uint32
}

// NewGuard returns a guard in the given state. typeName appears in violations.
func NewGuard(typeName string, initial State) *Guard {
	g := &Guard{typeName: typeName}
	g.state.Store(uint32(initial))
	return g
}

// State returns the current state.
func (g *Guard) State() State {
	return State(g.state.Load())
}

// Transition moves from → to if the guard is in from and the move is legal.
// It reports whether this call performed the move.
func (g *Guard) Transition(from, to State) bool {
	if !Allowed(from, to) {
		return false
	}
	return g.state.CompareAndSwap(uint32(from), uint32(to))
}

// Must performs from → to or panics with an ownership violation.
func (g *Guard) Must(from, to State) {
	if !g.Transition(from, to) {
		g.violate(fmt.Sprintf("cannot move %s → %s from %s", from, to, g.State()))
	}
}

// Bind pairs a proxy with an AbstractOnly handle. owned selects who releases it.
func (g *Guard) Bind(owned bool) {
	if err := g.TryBind(owned); err != nil {
		panic(err)
	}
}

// TryBind is Bind for handles the caller did not create, such as objects
// the backend hands out. A handle that is already paired or released is
// reported instead of panicking.
func (g *Guard) TryBind(owned bool) error {
	to := AbstractOwned
	if owned {
		to = ProxyOwned
	}
	if !g.Transition(AbstractOnly, to) {
		return errors.OwnershipViolation(g.typeName,
			fmt.Sprintf("cannot move %s → %s from %s", AbstractOnly, to, g.State()))
	}
	return nil
}

// Unbind detaches a proxy from a handle the backend owns.
func (g *Guard) Unbind() {
	g.Must(AbstractOwned, AbstractOnly)
}

// CloseByProxy handles a proxy close. It returns true when the caller must
// invoke the backend drop: the proxy owned the handle and this call won the
// move to Released. A handle the backend owns is detached, and closing an
// already released handle is a no-op.
func (g *Guard) CloseByProxy() (drop bool) {
	for {
		switch s := g.State(); s {
		case ProxyOwned:
			if g.state.CompareAndSwap(uint32(ProxyOwned), uint32(Released)) {
				return true
			}
		case AbstractOwned:
			if g.state.CompareAndSwap(uint32(AbstractOwned), uint32(AbstractOnly)) {
				return false
			}
		case Released:
			return false
		default:
			g.violate("proxy close on a " + s.String() + " handle")
		}
	}
}

// ReleaseByHost handles an explicit release of an unpaired handle. It
// returns true when the caller must invoke the backend drop.
func (g *Guard) ReleaseByHost() (drop bool) {
	for {
		switch s := g.State(); s {
		case AbstractOnly:
			if g.state.CompareAndSwap(uint32(AbstractOnly), uint32(Released)) {
				return true
			}
		default:
			g.violate("release of a " + s.String() + " handle")
		}
	}
}

// ReleaseByBackend records that the backend destroyed the object. It
// returns the state the pair was in. Destroying a handle the proxy owns is
// reported as an ownership violation error; the caller decides when to
// raise it. A repeat notification for a released handle is ignored.
func (g *Guard) ReleaseByBackend() (State, error) {
	for {
		s := g.State()
		switch s {
		case AbstractOnly, AbstractOwned:
			if g.state.CompareAndSwap(uint32(s), uint32(Released)) {
				return s, nil
			}
		case Released:
			return s, nil
		default:
			return s, errors.OwnershipViolation(g.typeName, "backend released a "+s.String()+" handle")
		}
	}
}

func (g *Guard) violate(detail string) {
	panic(errors.OwnershipViolation(g.typeName, detail))
}
