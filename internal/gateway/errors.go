package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Error is a failed gateway call.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the gateway operation, e.g. "insert rewards".
	Op string

	// Err is the underlying driver or transport error, if any.
	Err error
}

// ErrorCode categorizes gateway errors.
type ErrorCode string

const (
	// ErrCodeUnavailable indicates a transient transport failure. The call
	// may succeed if retried later.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"

	// ErrCodeConflict indicates the row already exists.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeUnauthenticated indicates a missing or invalid session.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// ErrCodeNotFound indicates the requested row does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalid indicates the backend rejected the payload.
	ErrCodeInvalid ErrorCode = "INVALID"

	// ErrCodeInternal is any other backend failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates an Error.
func NewError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the code of a wrapped *Error. Errors that are not gateway
// errors report ErrCodeInternal; nil reports "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ErrCodeInternal
}

// IsTransient returns true if err is a retryable transport failure.
// Context deadline errors count as transient.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return CodeOf(err) == ErrCodeUnavailable
}

// IsConflict returns true if err reports an existing row.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

// IsUnauthenticated returns true if err reports a missing session.
func IsUnauthenticated(err error) bool {
	return CodeOf(err) == ErrCodeUnauthenticated
}

// IsNotFound returns true if err reports a missing row.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}
