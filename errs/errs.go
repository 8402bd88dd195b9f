// Package errs defines the error taxonomy shared by the reconciliation
// engine and the REST layer. Handlers map these to HTTP status codes;
// everything else is treated as an internal error.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError marks caller input that can be corrected and retried
// locally (bad quantity, missing destination, illegal transition).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation builds a ValidationError with a formatted message.
func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a referenced item, partition, or incident that no
// longer exists (stale client state or already-processed action).
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// NotFound builds a NotFoundError with a formatted message.
func NotFound(format string, args ...interface{}) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError marks a concurrent modification detected by the version
// guard. Callers should re-read and retry once before surfacing it.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// Conflict builds a ConflictError with a formatted message.
func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// StoreError wraps a failed persistence call. The underlying driver
// message is kept verbatim so it reaches the user for diagnostics.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a StoreError for the given operation.
func Store(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

func IsConflict(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}

func IsStore(err error) bool {
	var t *StoreError
	return errors.As(err, &t)
}
