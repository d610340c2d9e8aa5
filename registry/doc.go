// Package registry resolves the declared entry points of each loaded
// backend version and stores them for lookup.
//
// A Declaration names every constructor, method, lifecycle entry (clone,
// assign, drop), free function, variable and init/fini hook a backend
// version should export, with WIT-typed signatures:
//
//	registry.TypeDecl{
//		Name: "Widget",
//		Constructors: []registry.FuncDecl{
//			{Symbol: "Widget__new_0", Signature: "func() -> handle<Widget>"},
//			{Symbol: "Widget__new_1", Signature: "func(size: f64) -> handle<Widget>"},
//		},
//		Methods: []registry.FuncDecl{
//			{Name: "area", Symbol: "Widget__area", Signature: "func() -> f64"},
//		},
//		Clone: "Widget__clone", Assign: "Widget__assign", Drop: "Widget__drop",
//	}
//
// Register resolves each symbol once against the backend's namespace and
// checks its core signature. An entry that cannot be resolved is still
// registered, with StatusMissingFactory and a stand-in that returns the
// resolution error when called. A type without usable clone, assign and
// drop entries cannot be constructed: its constructors take
// StatusMissingFactory too. A version that failed to load is registered
// with RegisterUnavailable; all its entries carry StatusMissingBackend.
//
// Constructors of a type form an ordered overload set keyed by parameter
// signature. Constructor picks the first overload that accepts the given
// arguments.
//
// The registry is written during startup and then frozen. After Freeze,
// lookups are lock-free.
package registry
