package resource

import "fmt"

// Key identifies a live backend object: the namespace it lives in and the
// rep the backend handed out. Reps are only unique within a namespace.
type Key struct {
	Namespace string
	Rep       uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.Namespace, k.Rep)
}

// Origin records how the host came to hold a handle.
type Origin uint8

const (
	// OriginFactory: created by a host-initiated factory, clone or
	// object-returning call. The host is responsible for releasing it.
	OriginFactory Origin = iota
	// OriginBorrowed: handed out by the backend, which keeps ownership.
	OriginBorrowed
)

func (o Origin) String() string {
	if o == OriginBorrowed {
		return "borrowed"
	}
	return "factory"
}

// Event types for handle lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventReleased:
		return "released"
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// Event represents a handle lifecycle event.
type Event struct {
	Value    any
	TypeName string
	Key      Key
	Type     EventType
	Origin   Origin
}

// Observer receives notifications about handle lifecycle events.
// Observers are called synchronously and must not call back into the table.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
// Function observers cannot be passed to Table.Unsubscribe.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }
