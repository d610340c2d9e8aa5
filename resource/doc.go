// Package resource tracks the backend handles the host currently holds.
//
// Every handle the bridge hands to host code is recorded in a Table under
// its Key, the pair of namespace and backend rep. The table is how a
// backend-side release finds the host object it refers to, and how
// outstanding handles are reported at shutdown.
//
//	table := resource.NewTable()
//	counter := resource.NewCounter()
//	table.Subscribe(counter)
//
//	_ = table.Insert(key, "Widget", resource.OriginFactory, inst)
//	table.Release(key)
//
//	counter.Balanced() // true
//
// # Origins
//
// A factory-origin handle was created at the host's request and must be
// released by the host. A borrowed handle was handed out by the backend,
// which keeps ownership; the host only detaches from it.
//
// # Observers
//
// Observers receive EventCreated and EventReleased synchronously. Counter
// is an Observer that checks allocations balance releases.
package resource
