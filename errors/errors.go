package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in the bridge lifecycle the error occurred
type Phase string

const (
	PhaseLoad      Phase = "load"      // reading and instantiating a backend module
	PhaseResolve   Phase = "resolve"   // symbol/factory resolution
	PhaseInit      Phase = "init"      // backend initialization hooks
	PhaseConstruct Phase = "construct" // factory calls
	PhaseCall      Phase = "call"      // forwarding calls into a backend
	PhaseRelease   Phase = "release"   // handle destruction
	PhaseSelect    Phase = "select"    // version selection
	PhaseConfig    Phase = "config"    // configuration and manifests
	PhaseEncode    Phase = "encode"    // Go to WASM values
	PhaseDecode    Phase = "decode"    // WASM to Go values
)

// Kind categorizes the error
type Kind string

const (
	KindLoadFailure        Kind = "load_failure"
	KindSymbolResolution   Kind = "symbol_resolution"
	KindOwnershipViolation Kind = "ownership_violation"
	KindUnboundProxy       Kind = "unbound_proxy"
	KindUnavailable        Kind = "unavailable"
	KindNotFound           Kind = "not_found"
	KindNotInitialized     Kind = "not_initialized"
	KindInvalidInput       Kind = "invalid_input"
	KindTypeMismatch       Kind = "type_mismatch"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindAllocation         Kind = "allocation"
	KindUnsupported        Kind = "unsupported"
	KindFrozen             Kind = "frozen"
	KindTrap               Kind = "trap"
	KindOutstandingHandles Kind = "outstanding_handles"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Backend  string
	Version  string
	Symbol   string
	TypeName string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Backend != "" {
		b.WriteString(" ")
		b.WriteString(e.Backend)
		if e.Version != "" {
			b.WriteByte('@')
			b.WriteString(e.Version)
		}
	}

	if e.TypeName != "" || e.Symbol != "" {
		b.WriteString(":")
		if e.TypeName != "" {
			b.WriteString(" type ")
			b.WriteString(e.TypeName)
		}
		if e.Symbol != "" {
			b.WriteString(" symbol ")
			b.WriteString(e.Symbol)
		}
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Is forwards to the standard library so callers need only this package.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library so callers need only this package.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Backend sets the backend name and version
func (b *Builder) Backend(name, version string) *Builder {
	b.err.Backend = name
	b.err.Version = version
	return b
}

// Symbol sets the entry point symbol
func (b *Builder) Symbol(s string) *Builder {
	b.err.Symbol = s
	return b
}

// Type sets the backend type name
func (b *Builder) Type(name string) *Builder {
	b.err.TypeName = name
	return b
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the bridge error taxonomy

// LoadFailure reports a backend module that could not be loaded.
// The path and the underlying diagnostic are always part of the message.
func LoadFailure(backend, version, path string, cause error) *Error {
	return &Error{
		Phase:   PhaseLoad,
		Kind:    KindLoadFailure,
		Backend: backend,
		Version: version,
		Detail:  fmt.Sprintf("load %s", path),
		Value:   path,
		Cause:   cause,
	}
}

// SymbolResolution reports a declared entry point missing from a backend.
func SymbolResolution(backend, version, typeName, symbol string) *Error {
	return &Error{
		Phase:    PhaseResolve,
		Kind:     KindSymbolResolution,
		Backend:  backend,
		Version:  version,
		TypeName: typeName,
		Symbol:   symbol,
		Detail:   "entry point not exported",
	}
}

// OwnershipViolation reports a broken single-owner invariant.
// These are raised as panics: they indicate a defect, not an input problem.
func OwnershipViolation(typeName, detail string) *Error {
	return &Error{
		Phase:    PhaseRelease,
		Kind:     KindOwnershipViolation,
		TypeName: typeName,
		Detail:   detail,
	}
}

// UnboundProxy reports a forwarding call on a proxy without a handle.
func UnboundProxy(typeName string) *Error {
	return &Error{
		Phase:    PhaseCall,
		Kind:     KindUnboundProxy,
		TypeName: typeName,
		Detail:   "proxy has no backend handle",
	}
}

// Unavailable reports a call against a backend or factory that failed to load.
func Unavailable(backend, version, typeName, reason string) *Error {
	return &Error{
		Phase:    PhaseConstruct,
		Kind:     KindUnavailable,
		Backend:  backend,
		Version:  version,
		TypeName: typeName,
		Detail:   reason,
	}
}

// NotInitialized creates a not-initialized error for a missing component
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// TypeMismatch creates a type mismatch error for an argument or result
func TypeMismatch(phase Phase, path []string, goType, witType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("Go type %s does not match %s", goType, witType),
	}
}

// OutOfBounds creates a guest memory access error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("memory range [%d, %d) out of bounds", offset, uint64(offset)+uint64(length)),
		Value:  offset,
	}
}

// Trap wraps an error returned by guest code
func Trap(backend, version, symbol string, cause error) *Error {
	return &Error{
		Phase:   PhaseCall,
		Kind:    KindTrap,
		Backend: backend,
		Version: version,
		Symbol:  symbol,
		Cause:   cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingSymbol represents a single unresolved entry point
type MissingSymbol struct {
	Type   string // empty for free functions and variables
	Symbol string
}

// MissingSymbolsError is returned when a backend version lacks declared entry points
type MissingSymbolsError struct {
	Backend string
	Version string
	Symbols []MissingSymbol
}

// NewMissingSymbolsError creates an error from a list of "type#symbol" keys
func NewMissingSymbolsError(backend, version string, keys []string) *MissingSymbolsError {
	result := &MissingSymbolsError{
		Backend: backend,
		Version: version,
		Symbols: make([]MissingSymbol, 0, len(keys)),
	}
	for _, key := range keys {
		typ, sym := parseSymbolKey(key)
		result.Symbols = append(result.Symbols, MissingSymbol{Type: typ, Symbol: sym})
	}
	return result
}

func parseSymbolKey(key string) (typeName, symbol string) {
	typ, sym, found := strings.Cut(key, "#")
	if found {
		return typ, sym
	}
	return "", key
}

func (e *MissingSymbolsError) Error() string {
	if len(e.Symbols) == 0 {
		return "[resolve] symbol_resolution: no symbols specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s is missing %d entry point(s):\n", e.Backend, e.Version, len(e.Symbols))

	// Group by type for cleaner output
	byType := make(map[string][]string)
	for _, s := range e.Symbols {
		byType[s.Type] = append(byType[s.Type], s.Symbol)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		b.WriteString("\n  ")
		if t == "" {
			b.WriteString("(functions)")
		} else {
			b.WriteString(t)
		}
		b.WriteString(":\n")
		for _, sym := range byType[t] {
			b.WriteString("    - ")
			b.WriteString(sym)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type.
// A MissingSymbolsError also matches a KindSymbolResolution *Error.
func (e *MissingSymbolsError) Is(target error) bool {
	switch t := target.(type) {
	case *MissingSymbolsError:
		return true
	case *Error:
		return t.Kind == KindSymbolResolution
	}
	return false
}
