package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-checkable error classification.
type Code string

const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInternal        Code = "INTERNAL"
	CodeForbidden       Code = "FORBIDDEN"
	// CodeUnavailable marks a transient condition (e.g. the store reporting
	// SQLITE_BUSY after its busy-timeout elapsed) that is safe to retry.
	CodeUnavailable Code = "UNAVAILABLE"
)

// AppError is the structured error type carried across every package
// boundary in this module. It chains an underlying cause without losing the
// stable Code, so callers can branch on Code while still logging/propagating
// the original error via Unwrap.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New constructs an AppError with the given code, message, and optional cause.
func New(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Wrap attaches additional context to err while preserving its Code if err is
// (or wraps) an *AppError; otherwise it is classified CodeInternal.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return &AppError{Code: ae.Code, Message: message, Cause: err}
	}
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string, cause error) *AppError {
	return New(CodeNotFound, message, cause)
}

// Conflict constructs a CodeConflict AppError.
func Conflict(message string, cause error) *AppError {
	return New(CodeConflict, message, cause)
}

// InvalidArgument constructs a CodeInvalidArgument AppError.
func InvalidArgument(message string, cause error) *AppError {
	return New(CodeInvalidArgument, message, cause)
}

// Internal constructs a CodeInternal AppError.
func Internal(message string, cause error) *AppError {
	return New(CodeInternal, message, cause)
}

// Forbidden constructs a CodeForbidden AppError.
func Forbidden(message string, cause error) *AppError {
	return New(CodeForbidden, message, cause)
}

// Unavailable constructs a CodeUnavailable AppError for transient conditions.
func Unavailable(message string, cause error) *AppError {
	return New(CodeUnavailable, message, cause)
}

// Is reports whether err's chain contains an AppError with the given code.
func Is(err error, code Code) bool {
	var ae *AppError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == code
}

// As is a thin re-export of the stdlib errors.As for callers that only
// import this package.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
