package resource

import (
	"sync"
	"sync/atomic"
)

// Counter is an Observer that counts handle allocations and releases.
// Allocations are factory-origin creations; only those must be balanced
// by releases.
type Counter struct {
	byType    map[string]*typeCount
	allocated atomic.Int64
	released  atomic.Int64
	borrowed  atomic.Int64
	mu        sync.Mutex
}

type typeCount struct {
	allocated int64
	released  int64
}

// NewCounter creates a zeroed counter.
func NewCounter() *Counter {
	return &Counter{byType: make(map[string]*typeCount)}
}

// OnResourceEvent implements Observer.
func (c *Counter) OnResourceEvent(e Event) {
	switch e.Type {
	case EventCreated:
		if e.Origin == OriginBorrowed {
			c.borrowed.Add(1)
			return
		}
		c.allocated.Add(1)
		c.count(e.TypeName, 1, 0)
	case EventReleased:
		if e.Origin == OriginBorrowed {
			return
		}
		c.released.Add(1)
		c.count(e.TypeName, 0, 1)
	}
}

func (c *Counter) count(typeName string, alloc, rel int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc := c.byType[typeName]
	if tc == nil {
		tc = &typeCount{}
		c.byType[typeName] = tc
	}
	tc.allocated += alloc
	tc.released += rel
}

// Allocated returns the number of factory-origin handles created.
func (c *Counter) Allocated() int64 { return c.allocated.Load() }

// Released returns the number of factory-origin handles released.
func (c *Counter) Released() int64 { return c.released.Load() }

// Borrowed returns the number of backend-owned handles the host was given.
func (c *Counter) Borrowed() int64 { return c.borrowed.Load() }

// Balanced reports whether every allocation has been released.
func (c *Counter) Balanced() bool {
	return c.Allocated() == c.Released()
}

// ByType returns allocated and released counts for one backend type.
func (c *Counter) ByType(typeName string) (allocated, released int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tc := c.byType[typeName]; tc != nil {
		return tc.allocated, tc.released
	}
	return 0, 0
}
