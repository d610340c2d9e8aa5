// Package errors provides structured error types for the backend bridge.
//
// Errors are categorized by Phase (where in the bridge lifecycle the error
// occurred) and Kind (error category). The Error type carries the backend
// name and version, the type and entry point involved, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindTypeMismatch).
//		Backend("widgets", "1.0.0").
//		Type("Widget").
//		Symbol("Widget__scale").
//		Detail("argument 1: want f64").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.LoadFailure("widgets", "1.0.0", path, cause)
//	err := errors.UnboundProxy("Widget")
//
// Ownership violations are raised as panics carrying an *Error with
// KindOwnershipViolation. All other failures are returned.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
