// Package widgets is the host binding of the widgets backend.
//
// It declares the backend's entry points (Declaration), one Abstract
// Interface per backend type and capability, the Widget and Gadget
// proxies, and typed wrappers of the backend's free functions and
// variables.
//
//	w, err := widgets.NewWidgetSized(ctx, br, "", 3)
//	if err != nil {
//		return err
//	}
//	defer w.Close(ctx)
//	area, err := w.Area(ctx)
package widgets
