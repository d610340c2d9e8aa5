package registry

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
)

// Namespace is the view of a loaded backend the registry resolves against.
// *engine.Namespace implements it.
type Namespace interface {
	Name() string
	Function(symbol string) (params, results []api.ValueType, ok bool)
	Global(symbol string) (typ api.ValueType, mutable, ok bool)
	Invoke(ctx context.Context, symbol string, params, results []engine.ValueType, args []any) ([]any, error)
	ReadGlobal(symbol string, t engine.ValueType) (any, error)
	WriteGlobal(symbol string, t engine.ValueType, v any) error
}

// TypeInfo summarises a registered backend type.
type TypeInfo struct {
	Name         string
	Capabilities []string
	Methods      []string
	Status       Status // constructor status
}

type versionKey struct {
	backend string
	version string
}

type record struct {
	types   map[string]*TypeInfo
	ctors   map[string][]*Entry
	members map[string]*Entry
	hooks   map[Kind]*Entry
	decl    Declaration
	entries []*Entry
	status  Status
}

// Registry holds the resolved entry points of every loaded backend version.
//
// The registry is writable until Freeze. After Freeze lookups take no locks.
type Registry struct {
	entries  map[Key]*Entry
	versions map[versionKey]*record
	mu       sync.RWMutex
	frozen   atomic.Bool
}

// New creates an empty, writable registry.
func New() *Registry {
	return &Registry{
		entries:  make(map[Key]*Entry),
		versions: make(map[versionKey]*record),
	}
}

// Register resolves every entry point of decl against ns once and records
// the results. Unresolved entries stay registered with a stand-in that
// reports the failure; all of them are returned in one
// *errors.MissingSymbolsError. Registering a version twice is a no-op.
func (r *Registry) Register(ns Namespace, decl Declaration) error {
	return r.register(decl, ns, nil)
}

// RegisterUnavailable records decl for a backend version that failed to
// load. Every entry carries StatusMissingBackend and reports cause.
func (r *Registry) RegisterUnavailable(decl Declaration, cause error) error {
	if cause == nil {
		cause = errors.InvalidInput(errors.PhaseLoad, "backend unavailable")
	}
	return r.register(decl, nil, cause)
}

func (r *Registry) register(decl Declaration, ns Namespace, cause error) error {
	if err := decl.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return errors.New(errors.PhaseResolve, errors.KindFrozen).
			Backend(decl.Backend, decl.Version).
			Detail("registry is frozen").
			Build()
	}
	vk := versionKey{decl.Backend, decl.Version}
	if _, ok := r.versions[vk]; ok {
		return nil
	}

	b := &builder{decl: decl, ns: ns, cause: cause}
	rec := b.build()
	r.versions[vk] = rec
	for _, e := range rec.entries {
		r.entries[e.Key] = e
	}

	log := Logger().With(zap.String("backend", decl.Backend), zap.String("version", decl.Version))
	if cause != nil {
		log.Warn("backend registered as unavailable", zap.Error(cause))
		return nil
	}
	if len(b.missing) > 0 {
		for _, key := range b.missing {
			log.Warn("entry point not resolved", zap.String("symbol", key))
		}
		return errors.NewMissingSymbolsError(decl.Backend, decl.Version, b.missing)
	}
	log.Debug("backend registered", zap.Int("entries", len(rec.entries)))
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Initialized reports whether the registry has been frozen.
func (r *Registry) Initialized() bool {
	return r.frozen.Load()
}

func (r *Registry) rlock() func() {
	if r.frozen.Load() {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

func (r *Registry) record(backend, version string) (*record, error) {
	rec, ok := r.versions[versionKey{backend, version}]
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Backend(backend, version).
			Detail("backend version not registered").
			Build()
	}
	return rec, nil
}

// Lookup returns the entry stored under key.
func (r *Registry) Lookup(key Key) (*Entry, bool) {
	defer r.rlock()()
	e, ok := r.entries[key]
	return e, ok
}

// Constructors returns the ordered overload set of a type.
func (r *Registry) Constructors(backend, version, typeName string) []*Entry {
	defer r.rlock()()
	rec, err := r.record(backend, version)
	if err != nil {
		return nil
	}
	return slices.Clone(rec.ctors[typeName])
}

// Constructor picks the first constructor of typeName whose parameter list
// accepts args.
func (r *Registry) Constructor(backend, version, typeName string, args ...any) (*Entry, error) {
	defer r.rlock()()
	rec, err := r.record(backend, version)
	if err != nil {
		return nil, err
	}
	ctors, ok := rec.ctors[typeName]
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Backend(backend, version).
			Type(typeName).
			Detail("type not declared").
			Build()
	}
	for _, c := range ctors {
		if c.Sig.Accepts(args) {
			return c, nil
		}
	}
	return nil, errors.New(errors.PhaseResolve, errors.KindTypeMismatch).
		Backend(backend, version).
		Type(typeName).
		Detail("no constructor accepts %s", describeArgs(args)).
		Build()
}

// Member returns a method or lifecycle entry (clone, assign, drop) of a type.
func (r *Registry) Member(backend, version, typeName, member string) (*Entry, error) {
	return r.named(backend, version, typeName+"."+member)
}

// Function returns a free function entry.
func (r *Registry) Function(backend, version, name string) (*Entry, error) {
	e, err := r.named(backend, version, name)
	if err != nil {
		return nil, err
	}
	if e.Kind != KindFunction {
		return nil, errors.NotFound(errors.PhaseResolve, "function", name)
	}
	return e, nil
}

// Variable returns a backend variable entry.
func (r *Registry) Variable(backend, version, name string) (*Entry, error) {
	e, err := r.named(backend, version, name)
	if err != nil {
		return nil, err
	}
	if e.Kind != KindVariable {
		return nil, errors.NotFound(errors.PhaseResolve, "variable", name)
	}
	return e, nil
}

func (r *Registry) named(backend, version, name string) (*Entry, error) {
	defer r.rlock()()
	rec, err := r.record(backend, version)
	if err != nil {
		return nil, err
	}
	e, ok := rec.members[name]
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Backend(backend, version).
			Symbol(name).
			Detail("entry not declared").
			Build()
	}
	return e, nil
}

// Hook returns the init or fini entry of a backend version, if declared.
func (r *Registry) Hook(backend, version string, kind Kind) (*Entry, bool) {
	defer r.rlock()()
	rec, err := r.record(backend, version)
	if err != nil {
		return nil, false
	}
	e, ok := rec.hooks[kind]
	return e, ok
}

// Type returns the summary of a backend type.
func (r *Registry) Type(backend, version, typeName string) (TypeInfo, bool) {
	defer r.rlock()()
	rec, err := r.record(backend, version)
	if err != nil {
		return TypeInfo{}, false
	}
	ti, ok := rec.types[typeName]
	if !ok {
		return TypeInfo{}, false
	}
	return *ti, true
}

// Types returns the types of a backend version sorted by name.
func (r *Registry) Types(backend, version string) []TypeInfo {
	defer r.rlock()()
	rec, err := r.record(backend, version)
	if err != nil {
		return nil
	}
	out := make([]TypeInfo, 0, len(rec.types))
	for _, ti := range rec.types {
		out = append(out, *ti)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Entries returns every entry of a backend version in declaration order.
func (r *Registry) Entries(backend, version string) []*Entry {
	defer r.rlock()()
	rec, err := r.record(backend, version)
	if err != nil {
		return nil
	}
	return slices.Clone(rec.entries)
}

// Status returns the backend-level status of a version.
func (r *Registry) Status(backend, version string) (Status, bool) {
	defer r.rlock()()
	rec, err := r.record(backend, version)
	if err != nil {
		return StatusMissingBackend, false
	}
	return rec.status, true
}

// Declaration returns the declaration a version was registered with.
func (r *Registry) Declaration(backend, version string) (Declaration, bool) {
	defer r.rlock()()
	rec, err := r.record(backend, version)
	if err != nil {
		return Declaration{}, false
	}
	return rec.decl, true
}

// Backends returns the registered backend names, sorted.
func (r *Registry) Backends() []string {
	defer r.rlock()()
	seen := make(map[string]bool)
	var out []string
	for vk := range r.versions {
		if !seen[vk.backend] {
			seen[vk.backend] = true
			out = append(out, vk.backend)
		}
	}
	sort.Strings(out)
	return out
}

// Versions returns the registered versions of a backend, sorted.
func (r *Registry) Versions(backend string) []string {
	defer r.rlock()()
	var out []string
	for vk := range r.versions {
		if vk.backend == backend {
			out = append(out, vk.version)
		}
	}
	sort.Strings(out)
	return out
}

func describeArgs(args []any) string {
	b := []byte{'('}
	for i, a := range args {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, typeName(a)...)
	}
	return string(append(b, ')'))
}
