package manifest

import (
	"bytes"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/backend-bridge/errors"
	"github.com/wippyai/backend-bridge/registry"
)

// File is a parsed manifest. Each Backend holds one version.
type File struct {
	Backends []Backend `yaml:"backends"`
}

// Backend is one declared backend version. Path is optional; when set it
// takes precedence over the locations file.
type Backend struct {
	registry.Declaration `yaml:",inline"`
	Path                 string   `yaml:"path,omitempty"`
	Versions             []string `yaml:"versions,omitempty"`
}

// Parse decodes and validates a manifest. Entries with a versions list
// are expanded into one Backend per version.
func Parse(data []byte) (*File, error) {
	var raw File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode manifest")
	}

	out := &File{}
	seen := make(map[string]bool)
	for _, b := range raw.Backends {
		versions := b.Versions
		if len(versions) == 0 {
			versions = []string{b.Version}
		} else if b.Version != "" {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Backend(b.Declaration.Backend, b.Version).
				Detail("version and versions are exclusive").
				Build()
		}
		for _, v := range versions {
			nb := Backend{Declaration: b.Declaration, Path: b.Path}
			nb.Declaration.Version = v
			if err := nb.Validate(); err != nil {
				return nil, err
			}
			key := nb.Declaration.Backend + "@" + v
			if seen[key] {
				return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
					Backend(nb.Declaration.Backend, v).
					Detail("declared twice").
					Build()
			}
			seen[key] = true
			out.Backends = append(out.Backends, nb)
		}
	}
	return out, nil
}

// Load reads a manifest file. Relative backend paths are resolved against
// the file's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read manifest "+path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i := range f.Backends {
		f.Backends[i].Path = resolve(dir, f.Backends[i].Path)
	}
	return f, nil
}

// Declaration returns the declaration of one backend version.
func (f *File) Declaration(backend, version string) (registry.Declaration, bool) {
	for _, b := range f.Backends {
		if b.Declaration.Backend == backend && b.Version == version {
			return b.Declaration, true
		}
	}
	return registry.Declaration{}, false
}

// Declarations returns every declared backend version in file order.
func (f *File) Declarations() []registry.Declaration {
	out := make([]registry.Declaration, len(f.Backends))
	for i, b := range f.Backends {
		out[i] = b.Declaration
	}
	return out
}

// Encode writes declarations as a manifest.
func Encode(decls ...registry.Declaration) ([]byte, error) {
	f := File{Backends: make([]Backend, len(decls))}
	for i, d := range decls {
		f.Backends[i] = Backend{Declaration: d}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "encode manifest")
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
