// Package engine runs backend modules on wazero.
//
// Every (backend, version) pair is compiled and instantiated as its own
// wazero module, a Namespace, named "<backend>@<version>". A namespace has
// a private linear memory, private globals and a private export table, so
// two versions of one backend never observe each other's state. All
// namespaces share one wazero.Runtime and its compilation cache.
//
// # Value Lowering
//
// Entry points are typed with WIT type strings:
//
//	WIT Type              Go Value            Core Representation
//	──────────────────────────────────────────────────────────────
//	bool                  bool                i32
//	s32, u32              int32, uint32       i32
//	s64, u64              int64, uint64       i64
//	f32, f64              float32, float64    f32, f64
//	string                string              (ptr, len) as i32×2
//	handle<T>, borrow<T>  uint32 rep          i32
//
// Strings passed in are copied into guest memory obtained from the
// backend's cabi_realloc export. Strings returned are copied out of guest
// memory before the call returns.
//
// # Host Module
//
// The engine instantiates one host module, "bridge", exporting
// release(rep i32). A backend calls it when it destroys an object the host
// may hold a handle to. The handler installed with Engine.OnRelease
// decides what the release means; a handler error is reported by the call
// that triggered it.
//
// # Thread Safety
//
// Engine is safe for concurrent use. A Namespace serialises calls with a
// mutex: wazero module instances are not re-entrant.
package engine
