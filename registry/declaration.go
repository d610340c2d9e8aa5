package registry

import (
	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
)

// Declaration lists the entry points a backend version is expected to
// export. It is produced by the binding generator, or read from a YAML
// manifest.
type Declaration struct {
	Backend   string     `yaml:"backend"`
	Version   string     `yaml:"version"`
	Init      string     `yaml:"init,omitempty"`
	Fini      string     `yaml:"fini,omitempty"`
	Types     []TypeDecl `yaml:"types,omitempty"`
	Functions []FuncDecl `yaml:"functions,omitempty"`
	Variables []VarDecl  `yaml:"variables,omitempty"`
}

// TypeDecl declares one backend type.
type TypeDecl struct {
	Name         string     `yaml:"name"`
	Clone        string     `yaml:"clone"`
	Assign       string     `yaml:"assign"`
	Drop         string     `yaml:"drop"`
	Capabilities []string   `yaml:"capabilities,omitempty"`
	Constructors []FuncDecl `yaml:"constructors"`
	Methods      []FuncDecl `yaml:"methods,omitempty"`
}

// FuncDecl declares one callable entry point. For methods the receiver is
// implicit: the backend symbol takes the object rep as its first argument.
type FuncDecl struct {
	Name      string `yaml:"name,omitempty"`
	Symbol    string `yaml:"symbol"`
	Signature string `yaml:"signature"`
}

// VarDecl declares an exported backend global.
type VarDecl struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
	Type   string `yaml:"type"`
}

var reservedMembers = map[string]bool{
	memberNew:    true,
	memberClone:  true,
	memberAssign: true,
	memberDrop:   true,
}

// Validate checks the declaration for structural errors: missing names,
// duplicate members and unparseable signatures.
func (d *Declaration) Validate() error {
	if d.Backend == "" || d.Version == "" {
		return errors.InvalidInput(errors.PhaseConfig, "declaration needs backend and version")
	}
	fail := func(format string, args ...any) error {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Backend(d.Backend, d.Version).
			Detail(format, args...).
			Build()
	}

	types := make(map[string]bool, len(d.Types))
	for _, t := range d.Types {
		if t.Name == "" {
			return fail("type without a name")
		}
		if types[t.Name] {
			return fail("type %s declared twice", t.Name)
		}
		types[t.Name] = true

		if len(t.Constructors) == 0 {
			return fail("type %s has no constructors", t.Name)
		}
		overloads := make(map[string]bool)
		for _, c := range t.Constructors {
			sig, err := ParseSignature(c.Signature)
			if err != nil {
				return fail("constructor of %s: %v", t.Name, err)
			}
			if len(sig.Results) != 1 || sig.Results[0].Kind != engine.KindHandle || sig.Results[0].Resource != t.Name {
				return fail("constructor of %s must return handle<%s>", t.Name, t.Name)
			}
			if overloads[sig.Key()] {
				return fail("constructor %s%s declared twice", t.Name, sig.Key())
			}
			overloads[sig.Key()] = true
		}
		methods := make(map[string]bool)
		for _, m := range t.Methods {
			if m.Name == "" || reservedMembers[m.Name] {
				return fail("type %s: invalid method name %q", t.Name, m.Name)
			}
			if methods[m.Name] {
				return fail("method %s.%s declared twice", t.Name, m.Name)
			}
			methods[m.Name] = true
			if _, err := ParseSignature(m.Signature); err != nil {
				return fail("method %s.%s: %v", t.Name, m.Name, err)
			}
		}
	}

	names := make(map[string]bool)
	for _, f := range d.Functions {
		if f.Name == "" {
			return fail("function without a name")
		}
		if names[f.Name] {
			return fail("function %s declared twice", f.Name)
		}
		names[f.Name] = true
		if _, err := ParseSignature(f.Signature); err != nil {
			return fail("function %s: %v", f.Name, err)
		}
	}
	for _, v := range d.Variables {
		if v.Name == "" || v.Symbol == "" {
			return fail("variable needs a name and a symbol")
		}
		if names[v.Name] {
			return fail("%s declared twice", v.Name)
		}
		names[v.Name] = true
	}
	return nil
}
