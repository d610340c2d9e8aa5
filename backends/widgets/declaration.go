package widgets

import (
	"strings"

	"github.com/wippyai/backend-bridge/bridge"
	"github.com/wippyai/backend-bridge/manifest"
	"github.com/wippyai/backend-bridge/registry"
)

// Backend is the registered name of the widgets backend.
const Backend = "widgets"

// Type names.
const (
	TypeWidget = "Widget"
	TypeGadget = "Gadget"
)

// Capabilities.
const (
	CapTagged = "Tagged"
	CapSized  = "Sized"
)

// Declaration returns the entry points exported by a widgets version.
// Versions 2.x also export multiply.
func Declaration(version string) bridge.Declaration {
	d := bridge.Declaration{
		Backend: Backend,
		Version: version,
		Init:    "__bridge_init",
		Fini:    "__bridge_fini",
		Types: []registry.TypeDecl{
			lifecycle(registry.TypeDecl{
				Name:         TypeWidget,
				Capabilities: []string{CapTagged, CapSized},
				Constructors: []registry.FuncDecl{
					{Symbol: "Widget__new_0", Signature: "func() -> handle<Widget>"},
					{Symbol: "Widget__new_1", Signature: "func(size: f64) -> handle<Widget>"},
				},
				Methods: []registry.FuncDecl{
					{Name: "tag", Symbol: "Widget__tag", Signature: "func() -> string"},
					{Name: "size", Symbol: "Widget__size", Signature: "func() -> f64"},
					{Name: "area", Symbol: "Widget__area", Signature: "func() -> f64"},
					{Name: "scale", Symbol: "Widget__scale", Signature: "func(by: f64)"},
				},
			}),
			lifecycle(registry.TypeDecl{
				Name:         TypeGadget,
				Capabilities: []string{CapTagged},
				Constructors: []registry.FuncDecl{
					{Symbol: "Gadget__new_0", Signature: "func() -> handle<Gadget>"},
				},
				Methods: []registry.FuncDecl{
					{Name: "tag", Symbol: "Gadget__tag", Signature: "func() -> string"},
				},
			}),
		},
		Functions: []registry.FuncDecl{
			{Name: "add", Symbol: "add", Signature: "func(a: s32, b: s32) -> s32"},
			{Name: "measure", Symbol: "measure", Signature: "func(s: string) -> u32"},
			{Name: "spawn_widget", Symbol: "spawn_widget", Signature: "func(size: f64) -> handle<Widget>"},
			{Name: "pool_widget", Symbol: "pool_widget", Signature: "func() -> borrow<Widget>"},
			{Name: "pool_release", Symbol: "pool_release", Signature: "func()"},
			{Name: "version_tag", Symbol: "version_tag", Signature: "func() -> string"},
		},
		Variables: []registry.VarDecl{
			{Name: "scale_factor", Symbol: "scale_factor", Type: "f64"},
			{Name: "live_count", Symbol: "live_count", Type: "s32"},
			{Name: "init_count", Symbol: "init_count", Type: "s32"},
		},
	}
	if !strings.HasPrefix(version, "1.") {
		d.Functions = append(d.Functions, registry.FuncDecl{
			Name: "multiply", Symbol: "multiply", Signature: "func(a: s32, b: s32) -> s32",
		})
	}
	return d
}

// Backends returns a bridge backend for every widgets version listed in
// loc.
func Backends(loc *manifest.Locations) []bridge.Backend {
	var out []bridge.Backend
	for _, v := range loc.Versions(Backend) {
		path, _ := loc.Path(Backend, v)
		out = append(out, bridge.Backend{
			Name:        Backend,
			Version:     v,
			Path:        path,
			Declaration: Declaration(v),
		})
	}
	return out
}

func lifecycle(t registry.TypeDecl) registry.TypeDecl {
	t.Clone = t.Name + "__clone"
	t.Assign = t.Name + "__assign"
	t.Drop = t.Name + "__drop"
	return t
}
