package abstract

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/backend-bridge/ownership"
	"github.com/wippyai/backend-bridge/resource"
)

// Tracker records every live instance by namespace and rep.
type Tracker struct {
	table *resource.Table
}

// NewTracker creates a tracker over table. A nil table gets a fresh one.
func NewTracker(table *resource.Table) *Tracker {
	if table == nil {
		table = resource.NewTable()
	}
	return &Tracker{table: table}
}

// Table returns the underlying handle table.
func (t *Tracker) Table() *resource.Table {
	return t.table
}

// Lookup returns the live instance of a backend object.
func (t *Tracker) Lookup(namespace string, rep uint32) (*Instance, bool) {
	v, ok := t.table.Get(resource.Key{Namespace: namespace, Rep: rep})
	if !ok {
		return nil, false
	}
	return v.(*Instance), true
}

// Release handles a backend-side destruction notification. It has the
// signature of engine.ReleaseFunc.
//
// The object moves to Released. If its proxy was adopted with
// deleteWithBackend the proxy is released too. Destroying an object a
// proxy owns is an ownership violation and is returned as such.
func (t *Tracker) Release(_ context.Context, namespace string, rep uint32) error {
	inst, ok := t.Lookup(namespace, rep)
	if !ok {
		Logger().Debug("release of untracked object",
			zap.String("namespace", namespace),
			zap.Uint32("rep", rep))
		return nil
	}

	prev, err := inst.guard.ReleaseByBackend()
	if err != nil {
		Logger().Error("backend released a proxy-owned object",
			zap.String("object", inst.id.String()),
			zap.Error(err))
		return err
	}
	if prev == ownership.Released {
		// Already released by the host; its drop call triggered this.
		return nil
	}

	t.table.Release(inst.key())
	inst.releasedByBackend(prev)
	Logger().Debug("object released by backend",
		zap.String("object", inst.id.String()),
		zap.Stringer("was", prev))
	return nil
}

// Outstanding returns the live instances of a namespace, or of all
// namespaces when namespace is empty, ordered by namespace and rep.
func (t *Tracker) Outstanding(namespace string) []*Instance {
	keys := t.table.Outstanding(namespace)
	out := make([]*Instance, 0, len(keys))
	for _, k := range keys {
		if v, ok := t.table.Get(k); ok {
			out = append(out, v.(*Instance))
		}
	}
	return out
}
