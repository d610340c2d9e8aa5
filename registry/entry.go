package registry

import (
	"context"
	"fmt"

	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
)

// Kind is the role of a registered entry point.
type Kind uint8

const (
	KindConstructor Kind = iota
	KindMethod
	KindClone
	KindAssign
	KindDrop
	KindFunction
	KindVariable
	KindInit
	KindFini
)

func (k Kind) String() string {
	switch k {
	case KindConstructor:
		return "constructor"
	case KindMethod:
		return "method"
	case KindClone:
		return "clone"
	case KindAssign:
		return "assign"
	case KindDrop:
		return "drop"
	case KindFunction:
		return "function"
	case KindVariable:
		return "variable"
	case KindInit:
		return "init"
	case KindFini:
		return "fini"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Status tells whether an entry can be called.
type Status int

const (
	StatusOK             Status = 0
	StatusMissingBackend Status = -1
	StatusMissingFactory Status = -2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMissingBackend:
		return "missing backend"
	case StatusMissingFactory:
		return "missing factory"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Key identifies an entry. Name is "Type.member" for type members and the
// plain name for free functions and variables. Signature is the overload
// key of the parameter list.
type Key struct {
	Backend   string
	Version   string
	Name      string
	Signature string
}

func (k Key) String() string {
	return k.Backend + "@" + k.Version + "/" + k.Name + k.Signature
}

const (
	memberNew    = "new"
	memberClone  = "clone"
	memberAssign = "assign"
	memberDrop   = "drop"

	hookInit = "@init"
	hookFini = "@fini"
)

// Callable invokes a resolved entry point.
type Callable func(ctx context.Context, args []any) ([]any, error)

// Entry is one resolved entry point. Entries are immutable once registered.
type Entry struct {
	Err     error
	invoke  Callable
	get     func() (any, error)
	set     func(any) error
	Type    string
	Member  string
	Symbol  string
	Key     Key
	Sig     Signature
	Params  []engine.ValueType
	Results []engine.ValueType
	Status  Status
	Kind    Kind
}

// Resolved reports whether the entry can be called.
func (e *Entry) Resolved() bool {
	return e.Status == StatusOK
}

// Call invokes the entry with lowered arguments: object handles are passed
// as uint32 reps. A stand-in entry returns its resolution error.
func (e *Entry) Call(ctx context.Context, args ...any) ([]any, error) {
	if e.invoke == nil {
		return nil, e.failure()
	}
	return e.invoke(ctx, args)
}

// Get reads a variable entry.
func (e *Entry) Get() (any, error) {
	if e.get == nil {
		return nil, e.failure()
	}
	return e.get()
}

// Set writes a variable entry.
func (e *Entry) Set(v any) error {
	if e.set == nil {
		return e.failure()
	}
	return e.set(v)
}

func (e *Entry) failure() error {
	if e.Err != nil {
		return e.Err
	}
	return errors.New(errors.PhaseCall, errors.KindUnsupported).
		Backend(e.Key.Backend, e.Key.Version).
		Symbol(e.Symbol).
		Detail("%s entry cannot be used this way", e.Kind).
		Build()
}

func (e *Entry) String() string {
	return e.Key.String() + " [" + e.Kind.String() + ", " + e.Status.String() + "]"
}
