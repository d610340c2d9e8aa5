package bridge

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/backend-bridge/abstract"
	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
	"github.com/wippyai/backend-bridge/loader"
	"github.com/wippyai/backend-bridge/manifest"
	"github.com/wippyai/backend-bridge/proxy"
	"github.com/wippyai/backend-bridge/registry"
	"github.com/wippyai/backend-bridge/resource"
	"github.com/wippyai/backend-bridge/selector"
)

// Hook runs when a backend version is initialized or torn down.
type Hook func(ctx context.Context, backend, version string) error

type initState struct {
	err     error
	backend string
	version string
	once    sync.Once
	done    bool
}

// Bridge connects the host to its loaded backends.
type Bridge struct {
	engine      *engine.Engine
	loader      *loader.Loader
	reg         *registry.Registry
	sel         *selector.Selector
	tracker     *abstract.Tracker
	binder      *abstract.Binder
	counter     *resource.Counter
	log         *zap.Logger
	inits       map[string]*initState
	initHooks   map[string][]Hook
	finiHooks   map[string][]Hook
	resolveErrs map[string]error
	initOrder   []*initState
	id          uuid.UUID
	mu          sync.Mutex
	closed      atomic.Bool
}

// Open loads and registers every configured backend version.
//
// A backend that fails to load is recorded and registered as unavailable;
// Open still succeeds. Missing entry points are logged and reported by
// Diagnostics. Open fails only when the engine cannot start or a
// declaration is malformed.
func Open(ctx context.Context, cfg Config) (*Bridge, error) {
	if cfg.Logger != nil {
		engine.SetLogger(cfg.Logger.Named("engine"))
		loader.SetLogger(cfg.Logger.Named("loader"))
		registry.SetLogger(cfg.Logger.Named("registry"))
		abstract.SetLogger(cfg.Logger.Named("abstract"))
		manifest.SetLogger(cfg.Logger.Named("manifest"))
	}

	eng, err := engine.New(ctx, &engine.Config{
		CacheDir:         cfg.CacheDir,
		MemoryLimitPages: cfg.MemoryLimitPages,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session", id.String()))

	tracker := abstract.NewTracker(nil)
	counter := resource.NewCounter()
	tracker.Table().Subscribe(counter)
	eng.OnRelease(tracker.Release)

	b := &Bridge{
		id:          id,
		engine:      eng,
		loader:      loader.New(eng),
		reg:         registry.New(),
		sel:         selector.New(cfg.DefaultVersions),
		tracker:     tracker,
		counter:     counter,
		log:         log,
		inits:       make(map[string]*initState),
		initHooks:   make(map[string][]Hook),
		finiHooks:   make(map[string][]Hook),
		resolveErrs: make(map[string]error),
	}

	for _, be := range cfg.Backends {
		be.Version = selector.FromSafeVersion(be.Version)
		if err := b.add(ctx, be); err != nil {
			_ = eng.Close(ctx)
			return nil, err
		}
	}

	b.reg.Freeze()
	b.binder = abstract.NewBinder(b.reg, tracker)
	log.Info("bridge open",
		zap.Int("backends", len(b.reg.Backends())),
		zap.Int("namespaces", len(eng.Namespaces())))
	return b, nil
}

func (b *Bridge) add(ctx context.Context, be Backend) error {
	decl, err := be.declaration()
	if err != nil {
		return err
	}
	if err := decl.Validate(); err != nil {
		return err
	}

	mod, loadErr := b.loader.Load(ctx, loader.Spec{Name: be.Name, Version: be.Version, Path: be.Path})
	if mod == nil {
		return loadErr
	}
	if loadErr != nil {
		return b.reg.RegisterUnavailable(decl, loadErr)
	}

	err = b.reg.Register(mod.Namespace, decl)
	var missing *errors.MissingSymbolsError
	if errors.As(err, &missing) {
		b.resolveErrs[mod.Spec.String()] = err
		b.log.Warn("backend has unresolved entry points",
			zap.String("backend", be.Name),
			zap.String("version", be.Version),
			zap.Int("missing", len(missing.Symbols)))
		err = nil
	}
	if err != nil {
		return err
	}
	return b.sel.Add(be.Name, be.Version)
}

// ID returns the session id of the bridge. It tags every log line.
func (b *Bridge) ID() uuid.UUID {
	return b.id
}

// Registry returns the frozen registry.
func (b *Bridge) Registry() *registry.Registry {
	return b.reg
}

// Loader returns the loader.
func (b *Bridge) Loader() *loader.Loader {
	return b.loader
}

// Engine returns the engine.
func (b *Bridge) Engine() *engine.Engine {
	return b.engine
}

// Binder returns the binder instances are created through.
func (b *Bridge) Binder() *abstract.Binder {
	return b.binder
}

// Tracker returns the tracker of live backend objects.
func (b *Bridge) Tracker() *abstract.Tracker {
	return b.tracker
}

// Counter returns the allocation counter of all backend objects.
func (b *Bridge) Counter() *resource.Counter {
	return b.counter
}

// Info returns the loader's view of working and failed versions.
func (b *Bridge) Info() loader.Info {
	return b.loader.Info()
}

// Diagnostics returns every load, resolution and init failure keyed by
// "backend@version".
func (b *Bridge) Diagnostics() map[string]string {
	out := b.loader.Info().Diagnostics
	b.mu.Lock()
	for k, err := range b.resolveErrs {
		if _, ok := out[k]; !ok {
			out[k] = err.Error()
		}
	}
	b.mu.Unlock()
	return out
}

// Select makes version the active version of backend and returns the
// full version chosen. Existing proxies keep their version.
func (b *Bridge) Select(backend, version string) (string, error) {
	v, err := b.sel.Select(backend, version)
	if err != nil {
		return "", err
	}
	b.log.Info("version selected", zap.String("backend", backend), zap.String("version", v))
	return v, nil
}

// Active returns the version unqualified calls to backend resolve to.
func (b *Bridge) Active(backend string) (string, error) {
	return b.sel.Active(backend)
}

// Versions returns the working versions of backend, oldest first.
func (b *Bridge) Versions(backend string) []string {
	return b.sel.Versions(backend)
}

// Resolve turns a requested version into a registered one. An empty
// request means the active version. A version that failed to load
// resolves to itself so that calls against it report why it is
// unavailable.
func (b *Bridge) Resolve(backend, version string) (string, error) {
	if b.closed.Load() {
		return "", errors.NotInitialized(errors.PhaseSelect, "bridge")
	}
	v, err := b.sel.Resolve(backend, selector.FromSafeVersion(version))
	if err == nil {
		return v, nil
	}
	if errors.KindOf(err) != errors.KindNotFound {
		return "", err
	}
	if version != "" {
		if m, ok := b.loader.Module(backend, version); ok {
			return m.Spec.Version, nil
		}
		return "", err
	}
	if failed := b.loader.Info().Failed(backend); len(failed) > 0 {
		return failed[len(failed)-1], nil
	}
	return "", err
}

// OnInit adds a hook run when a version of backend is initialized.
// Hooks added after a version was initialized do not run for it.
func (b *Bridge) OnInit(backend string, h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initHooks[backend] = append(b.initHooks[backend], h)
}

// OnFini adds a hook run at Close for every initialized version of
// backend, before the backend's own fini entry.
func (b *Bridge) OnFini(backend string, h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finiHooks[backend] = append(b.finiHooks[backend], h)
}

// Init initializes every working backend version now rather than on
// first use. It returns the first failure; every failure is logged and
// disables its version.
func (b *Bridge) Init(ctx context.Context) error {
	var first error
	for _, backend := range b.sel.Backends() {
		for _, v := range b.sel.Versions(backend) {
			if err := b.ensureInit(ctx, backend, v); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Initialized reports whether a backend version ran its init hooks
// successfully.
func (b *Bridge) Initialized(backend, version string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.inits[engine.NamespaceName(backend, version)]
	return ok && st.done
}

func (b *Bridge) ensureInit(ctx context.Context, backend, version string) error {
	name := engine.NamespaceName(backend, version)
	b.mu.Lock()
	st, ok := b.inits[name]
	if !ok {
		st = &initState{backend: backend, version: version}
		b.inits[name] = st
	}
	b.mu.Unlock()

	st.once.Do(func() {
		st.err = b.runInit(ctx, backend, version)
		b.mu.Lock()
		if st.err == nil {
			st.done = true
			b.initOrder = append(b.initOrder, st)
		}
		b.mu.Unlock()
	})
	return st.err
}

func (b *Bridge) runInit(ctx context.Context, backend, version string) error {
	m, ok := b.loader.Module(backend, version)
	if !ok {
		return errors.NotFound(errors.PhaseInit, "backend", engine.NamespaceName(backend, version))
	}
	if !m.Works() {
		return errors.New(errors.PhaseInit, errors.KindUnavailable).
			Backend(backend, version).
			Detail("backend is %s", m.State).
			Cause(m.Err).
			Build()
	}

	log := b.log.With(zap.String("backend", backend), zap.String("version", version))
	fail := func(err error) error {
		b.loader.Disable(backend, version, err)
		b.sel.Remove(backend, version)
		log.Error("init failed, backend disabled", zap.Error(err))
		return errors.New(errors.PhaseInit, errors.KindUnavailable).
			Backend(backend, version).
			Detail("init failed").
			Cause(err).
			Build()
	}

	if e, ok := b.reg.Hook(backend, version, registry.KindInit); ok {
		if _, err := e.Call(ctx); err != nil {
			return fail(err)
		}
	}

	b.mu.Lock()
	hooks := slices.Clone(b.initHooks[backend])
	b.mu.Unlock()
	for _, h := range hooks {
		if err := h(ctx, backend, version); err != nil {
			return fail(err)
		}
	}
	log.Info("backend initialized", zap.Int("hooks", len(hooks)))
	return nil
}

// Binding resolves the slot table of a backend type, initializing the
// backend version first.
func (b *Bridge) Binding(ctx context.Context, backend, version, typeName string) (*abstract.Binding, error) {
	v, err := b.Resolve(backend, version)
	if err != nil {
		return nil, err
	}
	if err := b.ensureInit(ctx, backend, v); err != nil {
		return nil, err
	}
	return b.binder.Bind(backend, v, typeName)
}

// Factory returns the pending construction of a default proxy. The
// version is fixed now; the object is built when the factory runs.
func (b *Bridge) Factory(ctx context.Context, backend, version, typeName string, args ...any) (proxy.Factory, *abstract.Binding, error) {
	bd, err := b.Binding(ctx, backend, version, typeName)
	if err != nil {
		return nil, nil, err
	}
	return func(ctx context.Context) (*abstract.Instance, error) {
		if b.closed.Load() {
			return nil, errors.NotInitialized(errors.PhaseConstruct, "bridge")
		}
		return bd.Construct(ctx, args...)
	}, bd, nil
}

// Construct builds a backend object now. The caller owns it until it is
// paired with a proxy or released.
func (b *Bridge) Construct(ctx context.Context, backend, version, typeName string, args ...any) (*abstract.Instance, error) {
	bd, err := b.Binding(ctx, backend, version, typeName)
	if err != nil {
		return nil, err
	}
	return bd.Construct(ctx, args...)
}

// Call invokes a free backend function.
func (b *Bridge) Call(ctx context.Context, backend, version, name string, args ...any) ([]any, error) {
	v, err := b.Resolve(backend, version)
	if err != nil {
		return nil, err
	}
	if err := b.ensureInit(ctx, backend, v); err != nil {
		return nil, err
	}
	return b.binder.Call(ctx, backend, v, name, args...)
}

// Variable returns a backend variable entry.
func (b *Bridge) Variable(ctx context.Context, backend, version, name string) (*registry.Entry, error) {
	v, err := b.Resolve(backend, version)
	if err != nil {
		return nil, err
	}
	if err := b.ensureInit(ctx, backend, v); err != nil {
		return nil, err
	}
	return b.reg.Variable(backend, v, name)
}

// Outstanding returns the host-owned backend objects still open.
func (b *Bridge) Outstanding() []*abstract.Instance {
	var out []*abstract.Instance
	for _, inst := range b.tracker.Outstanding("") {
		if !inst.Borrowed() {
			out = append(out, inst)
		}
	}
	return out
}

// Close runs fini hooks in reverse init order, reports open objects and
// closes the engine. Proxies should be closed first: open objects are
// logged and returned as a KindOutstandingHandles error. Close is
// idempotent.
func (b *Bridge) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	order := slices.Clone(b.initOrder)
	b.mu.Unlock()

	var finiErr error
	for i := len(order) - 1; i >= 0; i-- {
		st := order[i]
		if err := b.runFini(ctx, st.backend, st.version); err != nil && finiErr == nil {
			finiErr = err
		}
	}

	open := b.Outstanding()
	for _, inst := range open {
		b.log.Warn("object still open at close",
			zap.String("object", inst.Identity().String()),
			zap.Stringer("state", inst.State()))
	}

	_ = b.tracker.Table().Close()
	if err := b.engine.Close(ctx); err != nil && finiErr == nil {
		finiErr = err
	}
	b.log.Info("bridge closed",
		zap.Int64("allocated", b.counter.Allocated()),
		zap.Int64("released", b.counter.Released()),
		zap.Int("open", len(open)))

	if len(open) > 0 {
		return errors.New(errors.PhaseRelease, errors.KindOutstandingHandles).
			Value(len(open)).
			Detail("%d objects still open", len(open)).
			Cause(finiErr).
			Build()
	}
	return finiErr
}

func (b *Bridge) runFini(ctx context.Context, backend, version string) error {
	b.mu.Lock()
	hooks := slices.Clone(b.finiHooks[backend])
	b.mu.Unlock()

	var first error
	for _, h := range hooks {
		if err := h(ctx, backend, version); err != nil {
			b.log.Warn("fini hook failed",
				zap.String("backend", backend),
				zap.String("version", version),
				zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	if e, ok := b.reg.Hook(backend, version, registry.KindFini); ok {
		if _, err := e.Call(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
