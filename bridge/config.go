package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/backend-bridge/errors"
	"github.com/wippyai/backend-bridge/manifest"
	"github.com/wippyai/backend-bridge/registry"
)

// Declaration lists the entry points of one backend version.
type Declaration = registry.Declaration

// Backend is one backend version to load.
type Backend struct {
	Name        string
	Version     string
	Path        string
	Declaration Declaration
}

// Config configures Open.
type Config struct {
	// Logger receives the logs of every bridge package. Nil keeps them
	// silent.
	Logger *zap.Logger

	// DefaultVersions maps backend names to the version used when a call
	// names none. Partial versions ("1", "1.2") select the highest
	// matching working version. Backends without an entry default to
	// their highest working version.
	DefaultVersions map[string]string

	// CacheDir persists compiled modules between runs.
	CacheDir string

	Backends []Backend

	// MemoryLimitPages caps each namespace's memory, in 64KB pages.
	MemoryLimitPages uint32
}

// BackendsFromManifest pairs every declaration of f with its module file.
// A path in the manifest wins over the locations file. Versions with no
// known path are still returned; loading them fails and marks them
// unavailable.
func BackendsFromManifest(f *manifest.File, loc *manifest.Locations) []Backend {
	out := make([]Backend, 0, len(f.Backends))
	for _, b := range f.Backends {
		path := b.Path
		if path == "" && loc != nil {
			path, _ = loc.Path(b.Declaration.Backend, b.Version)
		}
		out = append(out, Backend{
			Name:        b.Declaration.Backend,
			Version:     b.Version,
			Path:        path,
			Declaration: b.Declaration,
		})
	}
	return out
}

func (b *Backend) declaration() (Declaration, error) {
	d := b.Declaration
	if d.Backend == "" {
		d.Backend = b.Name
	}
	if d.Version == "" {
		d.Version = b.Version
	}
	if d.Backend != b.Name || d.Version != b.Version {
		return d, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Backend(b.Name, b.Version).
			Detail("declaration is for %s@%s", d.Backend, d.Version).
			Build()
	}
	return d, nil
}
