package selector

import (
	"sort"
	"sync"

	"github.com/wippyai/backend-bridge/errors"
)

// Selector maps each backend to its active version.
//
// Unqualified requests resolve to the active version: the one chosen with
// Select, else the configured default, else the highest working version.
// Explicit full versions bypass the selection. Partial versions ("1",
// "1.2") resolve to the highest working version under them.
type Selector struct {
	versions map[string][]Version
	active   map[string]Version
	defaults map[string]string
	mu       sync.RWMutex
}

// New creates a selector. defaults maps backend names to their configured
// default version, which may be partial.
func New(defaults map[string]string) *Selector {
	d := make(map[string]string, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &Selector{
		versions: make(map[string][]Version),
		active:   make(map[string]Version),
		defaults: d,
	}
}

// Add registers a working version of a backend.
func (s *Selector) Add(backend, version string) error {
	v, ok := ParseVersion(version)
	if !ok || !v.Full() {
		return invalidVersion(backend, version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[backend]
	for _, existing := range list {
		if existing == v {
			return nil
		}
	}
	list = append(list, v)
	sort.Slice(list, func(i, j int) bool { return list[i].Less(list[j]) })
	s.versions[backend] = list
	return nil
}

// Remove withdraws a version, e.g. after its init hook failed. An explicit
// selection of that version is cleared.
func (s *Selector) Remove(backend, version string) {
	v, ok := ParseVersion(version)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[backend]
	for i, existing := range list {
		if existing == v {
			s.versions[backend] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if a, ok := s.active[backend]; ok && a == v {
		delete(s.active, backend)
	}
}

// Select makes version the active one for backend and returns the full
// version it resolved to. Bound proxies keep the version they were built with.
func (s *Selector) Select(backend, version string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.resolveLocked(backend, version)
	if err != nil {
		return "", err
	}
	s.active[backend] = v
	return v.String(), nil
}

// Active returns the active version of backend.
func (s *Selector) Active(backend string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := s.activeLocked(backend)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Resolve maps a requested version to a working full version. An empty
// request means the active version.
func (s *Selector) Resolve(backend, requested string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		v   Version
		err error
	)
	if requested == "" {
		v, err = s.activeLocked(backend)
	} else {
		v, err = s.resolveLocked(backend, requested)
	}
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Versions returns the working versions of backend, lowest first.
func (s *Selector) Versions(backend string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.versions[backend]
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = v.String()
	}
	return out
}

// Backends returns the names of backends with at least one working version.
func (s *Selector) Backends() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.versions))
	for name, list := range s.versions {
		if len(list) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Selector) activeLocked(backend string) (Version, error) {
	if v, ok := s.active[backend]; ok {
		return v, nil
	}
	if d, ok := s.defaults[backend]; ok {
		if v, err := s.resolveLocked(backend, d); err == nil {
			return v, nil
		}
	}
	list := s.versions[backend]
	if len(list) == 0 {
		return Version{}, errors.NotFound(errors.PhaseSelect, "backend", backend)
	}
	return list[len(list)-1], nil
}

func (s *Selector) resolveLocked(backend, requested string) (Version, error) {
	want, ok := ParseVersion(requested)
	if !ok {
		return Version{}, invalidVersion(backend, requested)
	}
	list := s.versions[backend]
	if len(list) == 0 {
		return Version{}, errors.NotFound(errors.PhaseSelect, "backend", backend)
	}
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Matches(want) {
			return list[i], nil
		}
	}
	return Version{}, errors.New(errors.PhaseSelect, errors.KindNotFound).
		Backend(backend, requested).
		Detail("no working version matches").
		Build()
}

func invalidVersion(backend, version string) error {
	return errors.New(errors.PhaseSelect, errors.KindInvalidInput).
		Backend(backend, version).
		Detail("malformed version").
		Build()
}
