// Package errors provides structured error types for gqnviz.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the snapshot engine and the server
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes are grouped by what went wrong:
//   - INVALID_*: malformed configuration, arguments, formats or paths
//   - NOT_FOUND, CONFLICT, OUT_OF_RANGE: lookups and indexing
//   - NOT_IMPLEMENTED: recognized but unsupported combinations
//   - INTERNAL: unexpected internal errors
//
// All of these signal programming or configuration mistakes rather than transient
// conditions; none of them are retried.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeOutOfRange, "frame %d exceeds capacity %d", frame, capacity)
//	if errors.Is(err, errors.ErrCodeOutOfRange) {
//	    // Handle indexing error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidFormat, origErr, "decode %s", path)
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"
	ErrCodeInvalidArgument Code = "INVALID_ARGUMENT"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Lookup and indexing errors
	ErrCodeNotFound   Code = "NOT_FOUND"
	ErrCodeConflict   Code = "CONFLICT"
	ErrCodeOutOfRange Code = "OUT_OF_RANGE"

	// Internal errors
	ErrCodeNotImplemented Code = "NOT_IMPLEMENTED"
	ErrCodeInternal       Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsCanceled reports whether err stems from a cancelled or expired context.
// Such errors carry no code: the caller stopped waiting.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
