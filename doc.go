// Package backendbridge connects a host program to independently built,
// versioned backend modules.
//
// Each backend version is a WebAssembly module loaded into its own
// namespace, so two versions of one backend can export the same symbols
// and run side by side. The host reaches backend objects through proxies
// that forward every call over an explicit slot table.
//
// # Architecture Overview
//
//	backendbridge/
//	├── bridge/            Open, version selection, init hooks, Close
//	├── engine/            wazero runtime, namespaces, value lowering
//	├── loader/            loads backend versions, records failures
//	├── registry/          declarations resolved to callable entries
//	├── abstract/          Abstract Interfaces: slot tables and identities
//	├── proxy/             generic proxy base embedded by bindings
//	├── ownership/         single-owner state machine of a proxy pair
//	├── resource/          handle table and allocation counter
//	├── selector/          semantic versions and the active version
//	├── manifest/          YAML declarations and backend locations
//	├── errors/            structured errors
//	├── backends/widgets/  binding of the widgets test backend
//	└── cmd/bridgectl/     command-line inspector
//
// # Quick Start
//
//	br, err := bridge.Open(ctx, bridge.Config{
//		Backends: widgets.Backends(locations),
//	})
//	if err != nil {
//		return err
//	}
//	defer br.Close(ctx)
//
//	w, err := widgets.NewWidget(ctx, br, "1")
//	if err != nil {
//		return err
//	}
//	defer w.Close(ctx)
//	tag, err := w.Tag(ctx)
//
// # Failure Model
//
// A backend that fails to load or initialize does not stop the host.
// Its version is recorded with a diagnostic, and every factory call
// against it returns an error of kind KindUnavailable. Ownership
// violations are programming errors and panic.
package backendbridge
