// Package apperr defines the named error kinds the messaging engine
// reports to its callers. Handlers map them onto HTTP status codes;
// the hub reports them back on the submitting connection.
package apperr

import "fmt"

// ValidationError reports a missing or malformed request field.
// Callers should not retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidTransitionError reports an illegal delivery-status change.
// A message status only ever advances sent -> delivered -> read, one
// step at a time.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

// StoreError wraps a persistence-layer failure. The engine never
// retries on its own; retrying a non-idempotent create could
// duplicate a message, so retry policy is left to the caller.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
