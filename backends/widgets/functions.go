package widgets

import (
	"context"

	"github.com/wippyai/backend-bridge/abstract"
	"github.com/wippyai/backend-bridge/bridge"
	"github.com/wippyai/backend-bridge/errors"
)

// Add returns a+b as computed by the backend.
func Add(ctx context.Context, br *bridge.Bridge, version string, a, b int32) (int32, error) {
	out, err := br.Call(ctx, Backend, version, "add", a, b)
	if err != nil {
		return 0, err
	}
	return out[0].(int32), nil
}

// Multiply returns a*b. Only 2.x versions export it.
func Multiply(ctx context.Context, br *bridge.Bridge, version string, a, b int32) (int32, error) {
	out, err := br.Call(ctx, Backend, version, "multiply", a, b)
	if err != nil {
		return 0, err
	}
	return out[0].(int32), nil
}

// Measure returns the byte length of s as seen by the backend.
func Measure(ctx context.Context, br *bridge.Bridge, version, s string) (uint32, error) {
	out, err := br.Call(ctx, Backend, version, "measure", s)
	if err != nil {
		return 0, err
	}
	return out[0].(uint32), nil
}

// VersionTag returns the tag compiled into the backend version.
func VersionTag(ctx context.Context, br *bridge.Bridge, version string) (string, error) {
	out, err := br.Call(ctx, Backend, version, "version_tag")
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

// SpawnWidget asks the backend for a new Widget. The returned proxy owns it.
func SpawnWidget(ctx context.Context, br *bridge.Bridge, version string, size float64) (*Widget, error) {
	out, err := br.Call(ctx, Backend, version, "spawn_widget", size)
	if err != nil {
		return nil, err
	}
	return spawned(out[0].(*abstract.Instance))
}

func spawned(inst *abstract.Instance) (*Widget, error) {
	if inst == nil {
		return nil, errors.New(errors.PhaseConstruct, errors.KindAllocation).
			Backend(Backend, "").
			Symbol("spawn_widget").
			Detail("backend returned no object").
			Build()
	}
	return ownWidget(inst), nil
}

// PoolWidget returns the backend's shared pool Widget, or nil before the
// backend created one. The backend owns it: closing the proxy only
// detaches, and the proxy unbinds when the backend releases the pool.
// The pool Widget pairs with one proxy at a time: while another proxy
// holds it, PoolWidget returns an ownership violation error.
func PoolWidget(ctx context.Context, br *bridge.Bridge, version string) (*Widget, error) {
	out, err := br.Call(ctx, Backend, version, "pool_widget")
	if err != nil {
		return nil, err
	}
	inst := out[0].(*abstract.Instance)
	if inst == nil {
		return nil, nil
	}
	w := &Widget{}
	if err := w.TryAdopt(inst, wrapWidget, true); err != nil {
		return nil, err
	}
	return w, nil
}

// PoolRelease makes the backend destroy its pool Widget.
func PoolRelease(ctx context.Context, br *bridge.Bridge, version string) error {
	_, err := br.Call(ctx, Backend, version, "pool_release")
	return err
}

// ScaleFactor returns the backend's area multiplier.
func ScaleFactor(ctx context.Context, br *bridge.Bridge, version string) (float64, error) {
	v, err := get(ctx, br, version, "scale_factor")
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// SetScaleFactor sets the backend's area multiplier.
func SetScaleFactor(ctx context.Context, br *bridge.Bridge, version string, f float64) error {
	e, err := br.Variable(ctx, Backend, version, "scale_factor")
	if err != nil {
		return err
	}
	return e.Set(f)
}

// LiveCount returns the number of objects the backend has not destroyed.
func LiveCount(ctx context.Context, br *bridge.Bridge, version string) (int32, error) {
	v, err := get(ctx, br, version, "live_count")
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

// InitCount returns how many times the backend's init entry ran.
func InitCount(ctx context.Context, br *bridge.Bridge, version string) (int32, error) {
	v, err := get(ctx, br, version, "init_count")
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

func get(ctx context.Context, br *bridge.Bridge, version, name string) (any, error) {
	e, err := br.Variable(ctx, Backend, version, name)
	if err != nil {
		return nil, err
	}
	return e.Get()
}
