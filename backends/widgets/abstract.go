package widgets

import (
	"context"

	"github.com/wippyai/backend-bridge/abstract"
)

// AbstractTagged is implemented by every type with the Tagged capability.
type AbstractTagged interface {
	Identity() *abstract.Identity
	Tag(ctx context.Context) (string, error)
}

// AbstractSized is implemented by every type with the Sized capability.
type AbstractSized interface {
	Identity() *abstract.Identity
	Size(ctx context.Context) (float64, error)
}

// AbstractWidget is the Abstract Interface of Widget.
type AbstractWidget interface {
	AbstractTagged
	AbstractSized
	Area(ctx context.Context) (float64, error)
	Scale(ctx context.Context, by float64) error
}

// AbstractGadget is the Abstract Interface of Gadget.
type AbstractGadget interface {
	AbstractTagged
}

type abstractWidget struct {
	*abstract.Instance
}

func wrapWidget(i *abstract.Instance) AbstractWidget {
	return abstractWidget{i}
}

func (w abstractWidget) Tag(ctx context.Context) (string, error) {
	return invokeString(ctx, w.Instance, "tag")
}

func (w abstractWidget) Size(ctx context.Context) (float64, error) {
	return invokeFloat(ctx, w.Instance, "size")
}

func (w abstractWidget) Area(ctx context.Context) (float64, error) {
	return invokeFloat(ctx, w.Instance, "area")
}

func (w abstractWidget) Scale(ctx context.Context, by float64) error {
	_, err := w.Invoke(ctx, "scale", by)
	return err
}

type abstractGadget struct {
	*abstract.Instance
}

func wrapGadget(i *abstract.Instance) AbstractGadget {
	return abstractGadget{i}
}

func (g abstractGadget) Tag(ctx context.Context) (string, error) {
	return invokeString(ctx, g.Instance, "tag")
}

func invokeString(ctx context.Context, i *abstract.Instance, slot string) (string, error) {
	out, err := i.Invoke(ctx, slot)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

func invokeFloat(ctx context.Context, i *abstract.Instance, slot string) (float64, error) {
	out, err := i.Invoke(ctx, slot)
	if err != nil {
		return 0, err
	}
	return out[0].(float64), nil
}
