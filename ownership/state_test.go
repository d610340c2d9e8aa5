package ownership

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wippyai/backend-bridge/errors"
)

func expectViolation(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		e, ok := r.(*errors.Error)
		if !ok || e.Kind != errors.KindOwnershipViolation {
			t.Errorf("recover() = %v, want ownership violation", r)
		}
	}()
	fn()
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Unconstructed, AbstractOnly, true},
		{AbstractOnly, ProxyOwned, true},
		{AbstractOnly, AbstractOwned, true},
		{AbstractOnly, Released, true},
		{ProxyOwned, Released, true},
		{AbstractOwned, Released, true},
		{AbstractOwned, AbstractOnly, true},
		{ProxyOwned, AbstractOwned, false},
		{ProxyOwned, AbstractOnly, false},
		{Released, AbstractOnly, false},
		{Released, Released, false},
		{Unconstructed, ProxyOwned, false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.from, tt.to); got != tt.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestGuard_Bind(t *testing.T) {
	g := NewGuard("Widget", AbstractOnly)
	g.Bind(true)
	if g.State() != ProxyOwned {
		t.Fatalf("State = %s, want %s", g.State(), ProxyOwned)
	}
	expectViolation(t, func() { g.Bind(true) })

	a := NewGuard("Widget", AbstractOnly)
	a.Bind(false)
	if a.State() != AbstractOwned || !a.State().Paired() {
		t.Fatalf("State = %s, want %s", a.State(), AbstractOwned)
	}
	a.Unbind()
	if a.State() != AbstractOnly {
		t.Errorf("after Unbind State = %s", a.State())
	}
}

func TestGuard_TryBind(t *testing.T) {
	g := NewGuard("Widget", AbstractOnly)
	if err := g.TryBind(false); err != nil {
		t.Fatalf("TryBind: %v", err)
	}
	err := g.TryBind(false)
	if errors.KindOf(err) != errors.KindOwnershipViolation {
		t.Fatalf("second TryBind = %v", err)
	}
	if g.State() != AbstractOwned {
		t.Errorf("State = %s after refused bind", g.State())
	}

	g.Unbind()
	if err := g.TryBind(true); err != nil || g.State() != ProxyOwned {
		t.Errorf("TryBind after Unbind = %v, state %s", err, g.State())
	}
}

func TestGuard_CloseByProxy(t *testing.T) {
	owned := NewGuard("Widget", AbstractOnly)
	owned.Bind(true)
	if !owned.CloseByProxy() {
		t.Error("closing a proxy-owned handle should request a drop")
	}
	if owned.State() != Released {
		t.Errorf("State = %s, want released", owned.State())
	}
	if owned.CloseByProxy() {
		t.Error("second close should not request another drop")
	}

	adopted := NewGuard("Widget", AbstractOnly)
	adopted.Bind(false)
	if adopted.CloseByProxy() {
		t.Error("closing an adopted handle must not drop it")
	}
	if adopted.State() != AbstractOnly {
		t.Errorf("State = %s, want abstract-only", adopted.State())
	}

	unpaired := NewGuard("Widget", AbstractOnly)
	expectViolation(t, func() { unpaired.CloseByProxy() })
}

func TestGuard_ReleaseByHost(t *testing.T) {
	g := NewGuard("Gadget", AbstractOnly)
	if !g.ReleaseByHost() {
		t.Error("release of an unpaired handle should request a drop")
	}
	expectViolation(t, func() { g.ReleaseByHost() })

	paired := NewGuard("Gadget", AbstractOnly)
	paired.Bind(true)
	expectViolation(t, func() { paired.ReleaseByHost() })
}

func TestGuard_ReleaseByBackend(t *testing.T) {
	adopted := NewGuard("Widget", AbstractOnly)
	adopted.Bind(false)
	prev, err := adopted.ReleaseByBackend()
	if err != nil || prev != AbstractOwned {
		t.Fatalf("ReleaseByBackend = %s, %v", prev, err)
	}
	if adopted.State() != Released {
		t.Errorf("State = %s", adopted.State())
	}
	prev, err = adopted.ReleaseByBackend()
	if err != nil || prev != Released {
		t.Errorf("repeat release = %s, %v", prev, err)
	}

	owned := NewGuard("Widget", AbstractOnly)
	owned.Bind(true)
	_, err = owned.ReleaseByBackend()
	if !errors.Is(err, &errors.Error{Kind: errors.KindOwnershipViolation}) {
		t.Errorf("backend release of proxy-owned handle: %v", err)
	}
	if owned.State() != ProxyOwned {
		t.Errorf("violation must not change state, got %s", owned.State())
	}
}

func TestGuard_ConcurrentCloseReleasesOnce(t *testing.T) {
	for range 100 {
		g := NewGuard("Widget", AbstractOnly)
		g.Bind(true)

		var drops atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if g.CloseByProxy() {
					drops.Add(1)
				}
			}()
		}
		wg.Wait()
		if drops.Load() != 1 {
			t.Fatalf("drops = %d, want 1", drops.Load())
		}
	}
}

func TestGuard_DetachRacesBackendRelease(t *testing.T) {
	for range 100 {
		g := NewGuard("Widget", AbstractOnly)
		g.Bind(false)

		var wg sync.WaitGroup
		var dropped atomic.Bool
		var backendErr atomic.Value
		wg.Add(2)
		go func() {
			defer wg.Done()
			if g.CloseByProxy() {
				dropped.Store(true)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := g.ReleaseByBackend(); err != nil {
				backendErr.Store(err)
			}
		}()
		wg.Wait()

		if dropped.Load() {
			t.Fatal("detaching an adopted handle must never drop it")
		}
		if err := backendErr.Load(); err != nil {
			t.Fatalf("backend release: %v", err)
		}
		if g.State() != Released {
			t.Fatalf("State = %s, want released", g.State())
		}
	}
}

func TestState_String(t *testing.T) {
	if ProxyOwned.String() != "paired(owner=proxy)" {
		t.Errorf("ProxyOwned.String() = %q", ProxyOwned.String())
	}
	if State(99).String() != "state(99)" {
		t.Errorf("unknown state = %q", State(99).String())
	}
}
