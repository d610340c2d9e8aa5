// Package bridge is the host's entry point to its backends.
//
// Open loads every configured backend version into its own namespace,
// resolves its declared entry points, freezes the registry and returns a
// Bridge. Backends that fail to load are recorded and skipped; calls that
// need them fail with a KindUnavailable error instead of stopping the
// host.
//
//	br, err := bridge.Open(ctx, bridge.Config{
//		Backends: []bridge.Backend{
//			{Name: "widgets", Version: "1.0.0", Path: "widgets_1_0_0.wasm", Declaration: widgets.Declaration("1.0.0")},
//			{Name: "widgets", Version: "2.0.0", Path: "widgets_2_0_0.wasm", Declaration: widgets.Declaration("2.0.0")},
//		},
//		DefaultVersions: map[string]string{"widgets": "1"},
//	})
//	if err != nil {
//		return err
//	}
//	defer br.Close(ctx)
//
// Calls without a version go to the backend's active version (see
// Select). A backend version is initialized on first use: its init entry
// runs, then any hooks added with OnInit. Close runs fini hooks, reports
// objects that are still open and tears the engine down.
package bridge
