package abstract

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Identity is the identity record of one backend object. It is created
// once per object and shared by every interface that reaches it.
type Identity struct {
	Backend      string
	Version      string
	Type         string
	Capabilities []string
	ID           uuid.UUID
	Rep          uint32
}

// Implements reports whether the object's type declares capability.
func (id *Identity) Implements(capability string) bool {
	return id != nil && slices.Contains(id.Capabilities, capability)
}

func (id *Identity) String() string {
	return fmt.Sprintf("%s@%s/%s#%d", id.Backend, id.Version, id.Type, id.Rep)
}

// Capable is implemented by anything that can answer capability queries:
// instances, bindings and proxies.
type Capable interface {
	Capabilities() []string
}

// Implements reports whether obj declares capability. It is the
// capability query used in place of type-hierarchy checks.
func Implements(obj any, capability string) bool {
	c, ok := obj.(Capable)
	if !ok {
		return false
	}
	return slices.Contains(c.Capabilities(), capability)
}
