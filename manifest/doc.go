// Package manifest reads backend declarations and backend locations from
// YAML.
//
// A manifest lists the entry points each backend version exports. One
// entry may cover several versions:
//
//	backends:
//	  - backend: widgets
//	    versions: ["1.0.0", "2.0.0"]
//	    init: __bridge_init
//	    types:
//	      - name: Widget
//	        clone: Widget__clone
//	        assign: Widget__assign
//	        drop: Widget__drop
//	        constructors:
//	          - symbol: Widget__new_0
//	            signature: "func() -> handle<Widget>"
//
// A locations file maps backend names and versions to module files:
//
//	widgets:
//	  1.0.0: ./widgets_1_0_0.wasm
//	  2.0.0: ./widgets_2_0_0.wasm
//
// LoadLocations reads the default locations file and an optional user
// file whose entries take precedence. Relative paths are resolved against
// the directory of the file they appear in.
package manifest
