package manifest

import (
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/backend-bridge/errors"
	"github.com/wippyai/backend-bridge/selector"
)

// DefaultLocationsFile is the name of the default locations file.
const DefaultLocationsFile = "backend_locations.yaml"

// Locations maps backend names and versions to module files.
type Locations struct {
	paths map[string]map[string]string
}

// NewLocations returns an empty location map.
func NewLocations() *Locations {
	return &Locations{paths: make(map[string]map[string]string)}
}

// ParseLocations decodes a locations document. Relative paths are
// resolved against baseDir.
func ParseLocations(data []byte, baseDir string) (*Locations, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode backend locations")
	}
	l := NewLocations()
	for backend, versions := range raw {
		for version, path := range versions {
			if _, ok := selector.ParseVersion(version); !ok {
				return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
					Backend(backend, version).
					Detail("malformed version").
					Build()
			}
			l.Set(backend, version, resolve(baseDir, path))
		}
	}
	return l, nil
}

// ReadLocations reads one locations file.
func ReadLocations(path string) (*Locations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read backend locations "+path)
	}
	return ParseLocations(data, filepath.Dir(path))
}

// LoadLocations reads the default locations file and overlays the user
// file when it exists. Either path may be empty.
func LoadLocations(defaultPath, userPath string) (*Locations, error) {
	l := NewLocations()
	if defaultPath != "" {
		d, err := ReadLocations(defaultPath)
		if err != nil {
			return nil, err
		}
		l.Merge(d)
	}
	if userPath != "" {
		if _, err := os.Stat(userPath); err == nil {
			u, err := ReadLocations(userPath)
			if err != nil {
				return nil, err
			}
			Logger().Info("using custom backend locations", zap.String("path", userPath))
			l.Merge(u)
		}
	}
	return l, nil
}

// Set records the path of a backend version, replacing any earlier one.
// Safe version strings ("1_0_0") are accepted.
func (l *Locations) Set(backend, version, path string) {
	version = selector.FromSafeVersion(version)
	m := l.paths[backend]
	if m == nil {
		m = make(map[string]string)
		l.paths[backend] = m
	}
	m[version] = path
}

// Merge copies every entry of o into l. Entries of o win.
func (l *Locations) Merge(o *Locations) {
	for backend, versions := range o.paths {
		for version, path := range versions {
			l.Set(backend, version, path)
		}
	}
}

// Path returns the module file of a backend version. The version may be
// given in its safe form.
func (l *Locations) Path(backend, version string) (string, bool) {
	p, ok := l.paths[backend][selector.FromSafeVersion(version)]
	return p, ok
}

// Backends returns the backend names, sorted.
func (l *Locations) Backends() []string {
	out := make([]string, 0, len(l.paths))
	for b := range l.paths {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Versions returns the versions of a backend, sorted.
func (l *Locations) Versions(backend string) []string {
	out := make([]string, 0, len(l.paths[backend]))
	for v := range l.paths[backend] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of backend versions.
func (l *Locations) Len() int {
	n := 0
	for _, versions := range l.paths {
		n += len(versions)
	}
	return n
}
