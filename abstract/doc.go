// Package abstract holds the host-side half of every object that lives in
// a backend.
//
// An Instance is the Abstract Interface of one backend object: an identity
// record (backend, version, type, rep, capabilities) shared by every path
// that reaches the object, its ownership guard, and the Binding it
// dispatches through. A Binding is the explicit slot table of one backend
// type at one version, resolved from the registry by name. Nothing is
// derived from the backend's memory layout, and a slot that is not in the
// table is an error rather than a default.
//
//	b, _ := binder.Bind("widgets", "1.0.0", "Widget")
//	w, _ := b.Construct(ctx, 3.0)
//	out, _ := w.Invoke(ctx, "area")
//	_ = w.Release(ctx)
//
// Object arguments are passed as *Instance and travel as reps; object
// results come back as *Instance. A handle<T> result is a new object the
// host owns. A borrow<T> result is owned by the backend and can only be
// adopted.
//
// Tracker maps release notifications from backends back to instances. It
// is installed as the engine's release handler.
package abstract
