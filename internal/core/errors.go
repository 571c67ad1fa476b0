package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidState = "invalid_state"
	ErrCodePersistence  = "persistence_error"
	ErrCodeUnresolvable = "unresolvable"
	ErrCodeBadRequest   = "bad_request"
)

var (
	// ErrNotFound reports an unknown session, room or message. Handlers treat
	// it as an empty effect, not a fatal condition.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState reports an operation that is illegal in the session's
	// current state, such as binding an identity twice.
	ErrInvalidState = errors.New("invalid state")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// PersistenceError wraps a collaborator failure. The event that hit it is
// never fanned out; other sessions are unaffected.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}
