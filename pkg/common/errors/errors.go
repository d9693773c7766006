package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the gopace library

var (
	// ErrClosed indicates that an operation was attempted on a closed queue
	ErrClosed = errors.New("queue is closed")

	// ErrNotRunning indicates that the executor was used before start or after stop
	ErrNotRunning = errors.New("executor is not running")

	// ErrExcessRelease indicates a limiter release without a matching acquire
	ErrExcessRelease = errors.New("released more slots than acquired")

	// ErrEventTerminal indicates a mutation attempt on an event in a terminal state
	ErrEventTerminal = errors.New("event is in a terminal state")

	// ErrInvalidTransition indicates a backward event status transition
	ErrInvalidTransition = errors.New("invalid status transition")
)

// IsUsage returns true if the error indicates a caller programming error
// rather than a runtime condition
func IsUsage(err error) bool {
	return errors.Is(err, ErrNotRunning) ||
		errors.Is(err, ErrExcessRelease) ||
		errors.Is(err, ErrEventTerminal) ||
		errors.Is(err, ErrInvalidTransition)
}

// ValidationError describes an invalid configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// WithHint attaches a usage hint to the error and returns it.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

// NewValidationError creates a ValidationError for the given module and field.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}
