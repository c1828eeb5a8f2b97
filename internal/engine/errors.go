package engine

import (
	"errors"
	"fmt"
)

// validationError reports malformed or out-of-range request parameters.
type validationError struct {
	field string
	msg   string
}

func (e validationError) Error() string { return "invalid " + e.field + ": " + e.msg }

// ErrValidation constructs a validation error for field.
func ErrValidation(field, msg string) error { return validationError{field: field, msg: msg} }

// IsValidation reports whether err was caused by invalid request parameters (400).
func IsValidation(err error) bool {
	var e validationError
	return errors.As(err, &e)
}

// capacityExceededError signals a full queue; callers should back off (429).
type capacityExceededError struct{ depth int }

func (e capacityExceededError) Error() string {
	return fmt.Sprintf("server busy: queue full (%d pending)", e.depth)
}

// IsCapacityExceeded reports whether err is queue backpressure.
func IsCapacityExceeded(err error) bool {
	var e capacityExceededError
	return errors.As(err, &e)
}

// backendStartError wraps a failure to open a backend session.
type backendStartError struct{ err error }

func (e backendStartError) Error() string { return "backend start failed: " + e.err.Error() }
func (e backendStartError) Unwrap() error { return e.err }

// IsBackendStartFailure reports whether err came from session creation.
func IsBackendStartFailure(err error) bool {
	var e backendStartError
	return errors.As(err, &e)
}

// duplicateStreamError is returned when a second consumer registers for an
// id that already has an active one.
type duplicateStreamError struct{ id string }

func (e duplicateStreamError) Error() string { return "duplicate stream for request " + e.id }

// IsDuplicateStream reports whether err is a re-registration attempt.
func IsDuplicateStream(err error) bool {
	var e duplicateStreamError
	return errors.As(err, &e)
}

// ErrStreamDetached is returned by a Consumer once its client has gone away.
var ErrStreamDetached = errors.New("stream detached")

// IsStreamDetached reports whether err indicates a departed consumer.
func IsStreamDetached(err error) bool { return errors.Is(err, ErrStreamDetached) }

type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "request not found: " + e.id }

// ErrNotFound returns an error for an unknown request id.
func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether err indicates an unknown request id (404).
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// ErrShuttingDown is returned for submissions after Close.
var ErrShuttingDown = errors.New("scheduler shutting down")

// IsShuttingDown reports whether err is ErrShuttingDown (503).
func IsShuttingDown(err error) bool { return errors.Is(err, ErrShuttingDown) }

// nonMonotonicError reports a backend snapshot that does not extend the
// previously delivered text.
type nonMonotonicError struct {
	cursor int
	got    int
}

func (e nonMonotonicError) Error() string {
	return fmt.Sprintf("backend snapshot does not extend delivered text (cursor=%d, snapshot=%d bytes)", e.cursor, e.got)
}
