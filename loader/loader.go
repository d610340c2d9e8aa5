package loader

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
	"github.com/wippyai/backend-bridge/selector"
)

// Spec names one backend version and the file it is loaded from.
type Spec struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Path    string `yaml:"path" mapstructure:"path"`
}

func (s Spec) String() string {
	return engine.NamespaceName(s.Name, s.Version)
}

// State is the load state of a backend version.
type State uint8

const (
	StateLoaded State = iota
	StateFailed
	StateDisabled // loaded, then disabled, e.g. by a failing init hook
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	case StateDisabled:
		return "disabled"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Module is the record of one backend version.
type Module struct {
	Err       error
	Namespace *engine.Namespace
	LoadedAt  time.Time
	Spec      Spec
	State     State
}

// Works reports whether the module is loaded and enabled.
func (m *Module) Works() bool {
	return m.State == StateLoaded
}

type moduleKey struct {
	name    string
	version string
}

// Loader loads backend modules into one engine.
type Loader struct {
	engine   *engine.Engine
	readFile func(string) ([]byte, error)
	modules  map[moduleKey]*Module
	order    []moduleKey
	mu       sync.Mutex
}

// New creates a loader over e.
func New(e *engine.Engine) *Loader {
	return &Loader{
		engine:   e,
		readFile: os.ReadFile,
		modules:  make(map[moduleKey]*Module),
	}
}

// Load loads spec once. The returned Module is never nil; err is the
// recorded load failure, if any.
func (l *Loader) Load(ctx context.Context, spec Spec) (*Module, error) {
	spec.Version = selector.FromSafeVersion(spec.Version)
	if spec.Name == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "backend name is empty")
	}
	if v, ok := selector.ParseVersion(spec.Version); !ok || !v.Full() {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Backend(spec.Name, spec.Version).
			Detail("version must be major.minor.patch").
			Build()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := moduleKey{spec.Name, spec.Version}
	if m, ok := l.modules[key]; ok {
		if m.Spec.Path != spec.Path {
			Logger().Warn("backend already loaded from another path",
				zap.String("backend", spec.Name),
				zap.String("version", spec.Version),
				zap.String("path", m.Spec.Path),
				zap.String("requested", spec.Path))
		}
		return m, m.Err
	}

	m := &Module{Spec: spec}
	l.modules[key] = m
	l.order = append(l.order, key)

	log := Logger().With(
		zap.String("backend", spec.Name),
		zap.String("version", spec.Version),
		zap.String("path", spec.Path))

	ns, err := l.load(ctx, spec)
	if err != nil {
		m.State = StateFailed
		m.Err = err
		log.Warn("backend failed to load", zap.Error(err))
		return m, err
	}
	m.Namespace = ns
	m.State = StateLoaded
	m.LoadedAt = time.Now()
	log.Info("backend loaded", zap.Int("exports", len(ns.Exports())))
	return m, nil
}

func (l *Loader) load(ctx context.Context, spec Spec) (*engine.Namespace, error) {
	if spec.Path == "" {
		return nil, errors.LoadFailure(spec.Name, spec.Version, "", fmt.Errorf("no path configured"))
	}
	wasm, err := l.readFile(spec.Path)
	if err != nil {
		return nil, errors.LoadFailure(spec.Name, spec.Version, spec.Path, err)
	}
	ns, err := l.engine.Instantiate(ctx, spec.String(), wasm)
	if err != nil {
		return nil, errors.LoadFailure(spec.Name, spec.Version, spec.Path, err)
	}
	return ns, nil
}

// Disable marks a loaded module as unusable. Its namespace stays
// resident.
func (l *Loader) Disable(name, version string, cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[moduleKey{name, version}]
	if !ok || m.State != StateLoaded {
		return
	}
	m.State = StateDisabled
	m.Err = cause
	Logger().Warn("backend disabled",
		zap.String("backend", name),
		zap.String("version", version),
		zap.Error(cause))
}

// Module returns the record of a backend version. The version may be in
// its safe form.
func (l *Loader) Module(name, version string) (*Module, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[moduleKey{name, selector.FromSafeVersion(version)}]
	return m, ok
}

// Modules returns every record in load order.
func (l *Loader) Modules() []*Module {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Module, len(l.order))
	for i, k := range l.order {
		out[i] = l.modules[k]
	}
	return out
}

// Info returns a snapshot of the loader state.
func (l *Loader) Info() Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	info := Info{
		Works:       make(map[string]map[string]bool),
		Paths:       make(map[string]map[string]string),
		Diagnostics: make(map[string]string),
	}
	for _, k := range l.order {
		m := l.modules[k]
		if info.Works[k.name] == nil {
			info.Works[k.name] = make(map[string]bool)
			info.Paths[k.name] = make(map[string]string)
		}
		info.Works[k.name][k.version] = m.Works()
		info.Paths[k.name][k.version] = m.Spec.Path
		if m.Err != nil {
			info.Diagnostics[m.Spec.String()] = m.Err.Error()
		}
	}
	return info
}

// Info is a snapshot of which backend versions work.
type Info struct {
	Works       map[string]map[string]bool   // backend -> version -> works
	Paths       map[string]map[string]string // backend -> version -> path
	Diagnostics map[string]string            // "backend@version" -> failure
}

// Backends returns every backend name seen, sorted.
func (i Info) Backends() []string {
	out := make([]string, 0, len(i.Works))
	for name := range i.Works {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Working returns the working versions of a backend, oldest first.
func (i Info) Working(name string) []string {
	return i.versions(name, true)
}

// Failed returns the versions of a backend that did not load or were
// disabled, oldest first.
func (i Info) Failed(name string) []string {
	return i.versions(name, false)
}

func (i Info) versions(name string, works bool) []string {
	var vs []selector.Version
	for v, ok := range i.Works[name] {
		if ok == works {
			if pv, parsed := selector.ParseVersion(v); parsed {
				vs = append(vs, pv)
			}
		}
	}
	sort.Slice(vs, func(a, b int) bool { return vs[a].Less(vs[b]) })
	out := make([]string, len(vs))
	for n, v := range vs {
		out[n] = v.String()
	}
	return out
}

// Diagnostic returns the failure message of a backend version.
func (i Info) Diagnostic(name, version string) string {
	return i.Diagnostics[engine.NamespaceName(name, selector.FromSafeVersion(version))]
}

// SafeVersions returns the working versions of a backend in safe form.
func (i Info) SafeVersions(name string) []string {
	out := i.Working(name)
	for n, v := range out {
		out[n] = selector.SafeVersion(v)
	}
	return out
}
