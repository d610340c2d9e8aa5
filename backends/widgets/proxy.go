package widgets

import (
	"context"

	"github.com/wippyai/backend-bridge/abstract"
	"github.com/wippyai/backend-bridge/bridge"
	"github.com/wippyai/backend-bridge/proxy"
)

// Widget is the proxy of a backend Widget.
type Widget struct {
	proxy.Base[AbstractWidget]
}

// NewWidget returns a default Widget. The backend object is built with
// the size-1 constructor on first use. An empty version means the
// backend's active version at the time of this call.
func NewWidget(ctx context.Context, br *bridge.Bridge, version string) (*Widget, error) {
	return newWidget(ctx, br, version)
}

// NewWidgetSized is NewWidget with an initial size.
func NewWidgetSized(ctx context.Context, br *bridge.Bridge, version string, size float64) (*Widget, error) {
	return newWidget(ctx, br, version, size)
}

func newWidget(ctx context.Context, br *bridge.Bridge, version string, args ...any) (*Widget, error) {
	factory, bd, err := br.Factory(ctx, Backend, version, TypeWidget, args...)
	if err != nil {
		return nil, err
	}
	w := &Widget{}
	w.Init(TypeWidget, bd.Capabilities(), wrapWidget, factory)
	return w, nil
}

// AdoptWidget wraps a Widget the proxy must not release. With
// deleteWithBackend the proxy unbinds when the backend destroys it.
func AdoptWidget(inst *abstract.Instance, deleteWithBackend bool) *Widget {
	w := &Widget{}
	w.Adopt(inst, wrapWidget, deleteWithBackend)
	return w
}

func ownWidget(inst *abstract.Instance) *Widget {
	w := &Widget{}
	w.Own(inst, wrapWidget)
	return w
}

// Copy returns a new Widget owning a backend clone of w's object.
func (w *Widget) Copy(ctx context.Context) (*Widget, error) {
	dst := &Widget{}
	if err := w.CopyTo(ctx, &dst.Base); err != nil {
		return nil, err
	}
	return dst, nil
}

// Assign copies src's state into w's object.
func (w *Widget) Assign(ctx context.Context, src *Widget) error {
	return w.Base.Assign(ctx, &src.Base)
}

func (w *Widget) Tag(ctx context.Context) (string, error) {
	a, err := w.Abstract(ctx)
	if err != nil {
		return "", err
	}
	return a.Tag(ctx)
}

func (w *Widget) Size(ctx context.Context) (float64, error) {
	a, err := w.Abstract(ctx)
	if err != nil {
		return 0, err
	}
	return a.Size(ctx)
}

func (w *Widget) Area(ctx context.Context) (float64, error) {
	a, err := w.Abstract(ctx)
	if err != nil {
		return 0, err
	}
	return a.Area(ctx)
}

func (w *Widget) Scale(ctx context.Context, by float64) error {
	a, err := w.Abstract(ctx)
	if err != nil {
		return err
	}
	return a.Scale(ctx, by)
}

// Gadget is the proxy of a backend Gadget.
type Gadget struct {
	proxy.Base[AbstractGadget]
}

// NewGadget returns a default Gadget, built on first use.
func NewGadget(ctx context.Context, br *bridge.Bridge, version string) (*Gadget, error) {
	factory, bd, err := br.Factory(ctx, Backend, version, TypeGadget)
	if err != nil {
		return nil, err
	}
	g := &Gadget{}
	g.Init(TypeGadget, bd.Capabilities(), wrapGadget, factory)
	return g, nil
}

// AdoptGadget wraps a Gadget the proxy must not release.
func AdoptGadget(inst *abstract.Instance, deleteWithBackend bool) *Gadget {
	g := &Gadget{}
	g.Adopt(inst, wrapGadget, deleteWithBackend)
	return g
}

// Copy returns a new Gadget owning a backend clone of g's object.
func (g *Gadget) Copy(ctx context.Context) (*Gadget, error) {
	dst := &Gadget{}
	if err := g.CopyTo(ctx, &dst.Base); err != nil {
		return nil, err
	}
	return dst, nil
}

// Assign copies src's state into g's object.
func (g *Gadget) Assign(ctx context.Context, src *Gadget) error {
	return g.Base.Assign(ctx, &src.Base)
}

func (g *Gadget) Tag(ctx context.Context) (string, error) {
	a, err := g.Abstract(ctx)
	if err != nil {
		return "", err
	}
	return a.Tag(ctx)
}
