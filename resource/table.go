package resource

import (
	"sort"
	"sync"

	"github.com/wippyai/backend-bridge/errors"
)

type entry struct {
	value    any
	typeName string
	origin   Origin
}

// Table tracks the backend handles the host currently holds.
type Table struct {
	entries   map[Key]entry
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries: make(map[Key]entry),
	}
}

// Insert records a live handle. A key already present means two host
// objects claim the same backend object.
func (t *Table) Insert(key Key, typeName string, origin Origin, value any) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.NotInitialized(errors.PhaseConstruct, "handle table")
	}
	if existing, ok := t.entries[key]; ok {
		t.mu.Unlock()
		return errors.OwnershipViolation(typeName,
			"handle "+key.String()+" already tracked as "+existing.typeName)
	}
	t.entries[key] = entry{value: value, typeName: typeName, origin: origin}
	t.mu.Unlock()

	t.notify(Event{
		Type:     EventCreated,
		Key:      key,
		TypeName: typeName,
		Origin:   origin,
		Value:    value,
	})
	return nil
}

// Get retrieves the value tracked under key.
func (t *Table) Get(key Key) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key]
	return e.value, ok
}

// Release removes a handle whose backend object was destroyed.
func (t *Table) Release(key Key) (any, bool) {
	return t.remove(key, EventReleased)
}

func (t *Table) remove(key Key, typ EventType) (any, bool) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	t.mu.Unlock()
	if !ok {
		return nil, false
	}

	t.notify(Event{
		Type:     typ,
		Key:      key,
		TypeName: e.typeName,
		Origin:   e.origin,
		Value:    e.value,
	})
	return e.value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Outstanding returns the keys of live handles in namespace, or of all
// namespaces when namespace is empty, sorted by namespace then rep.
func (t *Table) Outstanding(namespace string) []Key {
	t.mu.RLock()
	keys := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		if namespace == "" || k.Namespace == namespace {
			keys = append(keys, k)
		}
	}
	t.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Namespace != keys[j].Namespace {
			return keys[i].Namespace < keys[j].Namespace
		}
		return keys[i].Rep < keys[j].Rep
	})
	return keys
}

// Each calls fn for every live handle until fn returns false.
// The table is not locked while fn runs.
func (t *Table) Each(fn func(Key, string, any) bool) {
	t.mu.RLock()
	snapshot := make(map[Key]entry, len(t.entries))
	for k, e := range t.entries {
		snapshot[k] = e
	}
	t.mu.RUnlock()

	for k, e := range snapshot {
		if !fn(k, e.typeName, e.value) {
			return
		}
	}
}

// Close stops accepting new handles. Live handles stay readable so they
// can still be reported.
func (t *Table) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
