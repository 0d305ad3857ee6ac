// Package errors provides structured error types for the pathdag application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid entity id: %d", id)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInternal, origErr, "failed to open store")
//
// Engine sentinel errors from pkg/pathdag map onto codes via [FromEngine].
package errors

import (
	"errors"
	"fmt"

	"github.com/pathdag/pathdag/pkg/pathdag"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidEntity Code = "INVALID_ENTITY"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"

	// Graph shape errors
	ErrCodeCycle        Code = "CYCLE"
	ErrCodeEdgeNotFound Code = "EDGE_NOT_FOUND"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Storage errors
	ErrCodeStorageConflict Code = "STORAGE_CONFLICT"
	ErrCodeInvariant       Code = "INVARIANT_VIOLATION"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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

// FromEngine converts an engine error into a coded Error. Errors that are
// already coded pass through; nil stays nil; anything unrecognized becomes
// INTERNAL_ERROR.
func FromEngine(err error) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}

	switch {
	case errors.Is(err, pathdag.ErrCycle):
		return Wrap(ErrCodeCycle, err, "edge would create a cycle")
	case errors.Is(err, pathdag.ErrEdgeNotFound):
		return Wrap(ErrCodeEdgeNotFound, err, "edge does not exist")
	case errors.Is(err, pathdag.ErrInvalidEntity):
		return Wrap(ErrCodeInvalidEntity, err, "entity ids must be positive")
	case errors.Is(err, pathdag.ErrStorageConflict):
		return Wrap(ErrCodeStorageConflict, err, "storage transaction conflict, retry the operation")
	case errors.Is(err, pathdag.ErrInvariant):
		return Wrap(ErrCodeInvariant, err, "stored path data violates an invariant")
	default:
		return Wrap(ErrCodeInternal, err, "internal error")
	}
}
