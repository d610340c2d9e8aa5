// Package proxy implements the host-visible half of a backend object.
//
// Generated proxies embed Base[T], where T is the typed Abstract Interface
// of the backend type. Every proxy method resolves the interface with
// Abstract and forwards to it:
//
//	func (w *Widget) Area(ctx context.Context) (float64, error) {
//		a, err := w.Abstract(ctx)
//		if err != nil {
//			return 0, err
//		}
//		return a.Area(ctx)
//	}
//
// A proxy starts in one of three ways. Init gives it a factory and leaves
// it unconstructed until first use, when it builds and owns its object.
// Own pairs it with a new object it owns. Adopt pairs it with an object
// someone else owns; closing such a proxy detaches without releasing.
//
// Copy asks the backend for a clone. Assign goes through the backend's
// assign entry. Neither copies host-side state between proxies.
//
// A zero Base has no factory: using it before Own or Adopt returns a
// KindUnboundProxy error, as does any use after Close.
package proxy
