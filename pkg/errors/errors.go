// Package errors provides structured error types for metaop.
//
// Every failure the assembler, the redirect table or the composite façade
// reports carries a machine-readable [Code]. Callers branch on the code
// with [Is] instead of matching message text:
//
//	c, err := composite.Attach(ctx, bp, redirects)
//	if errors.Is(err, errors.ErrCodeUnknownOperationKind) {
//	    // the blueprint names an operation the catalog does not know
//	}
//
// # Error Codes
//
// Assembly-time codes are fatal to the attach call that produced them:
//   - UNKNOWN_OPERATION_KIND, BROKEN_MAIN_CHAIN, UNKNOWN_PORT,
//     DUPLICATE_AUX_BINDING, CYCLE_DETECTED, UNWIRED_NODE, INVALID_BLUEPRINT
//
// Binding and forwarding codes are fatal only to the failing call:
//   - UNKNOWN_PROPERTY, DUPLICATE_BINDING, UNBOUND_PARAMETER,
//     INVALID_VALUE, VALUE_OUT_OF_RANGE
//
// Wrapped causes stay reachable through the standard library's errors.Is
// and errors.As, so sentinel errors from lower layers (for example
// dag.ErrGraphHasCycle) can still be matched directly.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Assembly errors
	ErrCodeUnknownOperationKind Code = "UNKNOWN_OPERATION_KIND"
	ErrCodeBrokenMainChain      Code = "BROKEN_MAIN_CHAIN"
	ErrCodeUnknownPort          Code = "UNKNOWN_PORT"
	ErrCodeDuplicateAuxBinding  Code = "DUPLICATE_AUX_BINDING"
	ErrCodeCycleDetected        Code = "CYCLE_DETECTED"
	ErrCodeUnwiredNode          Code = "UNWIRED_NODE"
	ErrCodeInvalidBlueprint     Code = "INVALID_BLUEPRINT"

	// Binding and forwarding errors
	ErrCodeUnknownProperty  Code = "UNKNOWN_PROPERTY"
	ErrCodeDuplicateBinding Code = "DUPLICATE_BINDING"
	ErrCodeUnboundParameter Code = "UNBOUND_PARAMETER"
	ErrCodeInvalidValue     Code = "INVALID_VALUE"
	ErrCodeValueOutOfRange  Code = "VALUE_OUT_OF_RANGE"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Lifecycle errors
	ErrCodeInvalidState Code = "INVALID_STATE"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

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
// It unwraps the error chain looking for an *Error with a matching code,
// so an outer code wrapping an inner one matches both.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
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
