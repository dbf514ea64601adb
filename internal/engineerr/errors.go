// Package engineerr defines the storage core's error taxonomy. Callers
// distinguish error kinds with errors.Is/errors.As against the sentinel
// and typed errors below; user-facing surfaces translate
// SchemaError/ValidationError into DataAccessError at the storage
// boundary.
package engineerr

import (
	"errors"
	"fmt"
)

// Sentinel errors usable directly with errors.Is.
var (
	// ErrObjectNotFound: lookup exhausted the ring stack without finding id.
	ErrObjectNotFound = errors.New("engine: object not found")

	// ErrDataAccess: a write landed on a read-only ring with no writable
	// ring above, or an id falls outside the valid insert set.
	ErrDataAccess = errors.New("engine: data access error")

	// ErrDataConsistency: invariant violation discovered at write time.
	ErrDataConsistency = errors.New("engine: data consistency error")

	// ErrTimeout: a forwarded operation exceeded its deadline.
	ErrTimeout = errors.New("engine: operation timed out")

	// ErrNotImplemented: a Store does not support an optional operation.
	ErrNotImplemented = errors.New("engine: not implemented")
)

// ObjectNotFound reports the id that could not be located.
type ObjectNotFound struct {
	ID int64
}

func (e *ObjectNotFound) Error() string {
	return fmt.Sprintf("engine: object %d not found", e.ID)
}
func (e *ObjectNotFound) Unwrap() error { return ErrObjectNotFound }

// NewObjectNotFound builds an ObjectNotFound for id.
func NewObjectNotFound(id int64) error { return &ObjectNotFound{ID: id} }

// DataAccessError carries the reason a write could not be accepted.
type DataAccessError struct {
	Reason string
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("engine: data access error: %s", e.Reason)
}
func (e *DataAccessError) Unwrap() error { return ErrDataAccess }

func NewDataAccessError(reason string) error {
	return &DataAccessError{Reason: reason}
}

// DataConsistencyError carries the invariant that was violated.
type DataConsistencyError struct {
	Reason string
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf("engine: data consistency error: %s", e.Reason)
}
func (e *DataConsistencyError) Unwrap() error { return ErrDataConsistency }

func NewDataConsistencyError(reason string) error {
	return &DataConsistencyError{Reason: reason}
}

// ValidationError is surfaced by the object system during validate(); the
// storage boundary translates it to DataAccessError before it reaches a
// caller outside the core.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("engine: validation error: %s", e.Reason)
}

// AsDataAccess translates a ValidationError into the DataAccessError a
// caller outside the core observes; any other error is returned as is.
func AsDataAccess(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return NewDataAccessError(ve.Reason)
	}
	return err
}

func NewTimeoutError(op string) error {
	return fmt.Errorf("%s: %w", op, ErrTimeout)
}

func NewNotImplemented(op string) error {
	return fmt.Errorf("%s: %w", op, ErrNotImplemented)
}
