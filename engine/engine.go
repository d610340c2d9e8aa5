package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/backend-bridge/errors"
)

const (
	// HostModule is the import module backends use to call back into the host.
	HostModule = "bridge"
	// ReleaseImport is the host function a backend calls when it destroys
	// an object the host may hold a handle to.
	ReleaseImport = "release"

	// CabiRealloc allocates guest memory for strings passed into a backend.
	CabiRealloc = "cabi_realloc"
)

// ReleaseFunc receives backend-side destruction notifications.
// namespace is the name of the calling module. A returned error is
// surfaced by the call that triggered the release; an ownership
// violation is re-raised there as a panic.
type ReleaseFunc func(ctx context.Context, namespace string, rep uint32) error

// NamespaceName returns the module name of a backend version.
func NamespaceName(backend, version string) string {
	return backend + "@" + version
}

func splitNamespaceName(name string) (backend, version string) {
	backend, version, _ = strings.Cut(name, "@")
	return backend, version
}

// Config holds configuration for engine creation
type Config struct {
	// CacheDir enables a compilation cache persisted in this directory.
	// Empty means an in-memory cache scoped to the engine.
	CacheDir string

	// MemoryLimitPages sets the maximum memory per namespace in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// Engine owns the wazero runtime shared by all backend namespaces.
type Engine struct {
	runtime    wazero.Runtime
	cache      wazero.CompilationCache
	namespaces map[string]*Namespace
	live       sync.Map // name -> *Namespace, readable from host callbacks
	onRelease  atomic.Pointer[ReleaseFunc]
	mu         sync.RWMutex
	closed     atomic.Bool
}

// New creates an engine and instantiates the host module.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	var cache wazero.CompilationCache
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CacheDir != "" {
			c, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "compilation cache "+cfg.CacheDir)
			}
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	runtimeCfg = runtimeCfg.WithCompilationCache(cache)

	e := &Engine{
		runtime:    wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cache:      cache,
		namespaces: make(map[string]*Namespace),
	}

	_, err := e.runtime.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.release), []api.ValueType{api.ValueTypeI32}, nil).
		WithParameterNames("rep").
		Export(ReleaseImport).
		Instantiate(ctx)
	if err != nil {
		_ = e.runtime.Close(ctx)
		_ = cache.Close(ctx)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindLoadFailure, err, "instantiate host module")
	}

	return e, nil
}

// OnRelease installs the handler for backend-side destruction.
// Only one handler is active; a later call replaces the earlier one.
func (e *Engine) OnRelease(fn ReleaseFunc) {
	if fn == nil {
		e.onRelease.Store(nil)
		return
	}
	e.onRelease.Store(&fn)
}

func (e *Engine) release(ctx context.Context, mod api.Module, stack []uint64) {
	rep := api.DecodeU32(stack[0])
	name := mod.Name()
	Logger().Debug("backend release", zap.String("namespace", name), zap.Uint32("rep", rep))
	fn := e.onRelease.Load()
	if fn == nil {
		return
	}
	if err := (*fn)(ctx, name, rep); err != nil {
		if v, ok := e.live.Load(name); ok {
			v.(*Namespace).fault(err)
		}
	}
}

// Instantiate compiles wasm and instantiates it as a new isolated namespace.
// A backend may only import from the host module.
func (e *Engine) Instantiate(ctx context.Context, name string, wasm []byte) (*Namespace, error) {
	if e.closed.Load() {
		return nil, errors.NotInitialized(errors.PhaseLoad, "engine")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.namespaces[name]; exists {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Detail("namespace %q already instantiated", name).
			Build()
	}

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindLoadFailure, err, "compile")
	}

	for _, def := range compiled.ImportedFunctions() {
		modName, fnName, _ := def.Import()
		if modName != HostModule || fnName != ReleaseImport {
			_ = compiled.Close(ctx)
			return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
				Symbol(modName + "." + fnName).
				Detail("unsupported import").
				Build()
		}
	}

	ns := &Namespace{
		name:     name,
		compiled: compiled,
	}
	e.live.Store(name, ns)

	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		e.live.Delete(name)
		_ = compiled.Close(ctx)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindLoadFailure, err, "instantiate")
	}
	ns.module = mod
	e.namespaces[name] = ns

	Logger().Debug("namespace instantiated",
		zap.String("namespace", name),
		zap.Int("exports", len(mod.ExportedFunctionDefinitions())))

	return ns, nil
}

// Namespace returns an instantiated namespace by name.
func (e *Engine) Namespace(name string) (*Namespace, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ns, ok := e.namespaces[name]
	return ns, ok
}

// Namespaces returns the names of all instantiated namespaces, sorted.
func (e *Engine) Namespaces() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.namespaces))
	for name := range e.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Discard closes one namespace and forgets it.
func (e *Engine) Discard(ctx context.Context, name string) error {
	e.mu.Lock()
	ns, ok := e.namespaces[name]
	delete(e.namespaces, name)
	e.mu.Unlock()
	e.live.Delete(name)
	if !ok {
		return nil
	}
	return ns.Close(ctx)
}

// Close tears down every namespace and the runtime.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.mu.Lock()
	for name := range e.namespaces {
		e.live.Delete(name)
	}
	e.namespaces = make(map[string]*Namespace)
	e.mu.Unlock()

	err := e.runtime.Close(ctx)
	if cerr := e.cache.Close(ctx); err == nil {
		err = cerr
	}
	return err
}
