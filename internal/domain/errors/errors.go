// Package errors provides domain-specific errors for the yardsync application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common domain error conditions.
var (
	ErrTruckNotFound       = errors.New("truck not found")
	ErrLoadingNotFound     = errors.New("loading not found")
	ErrOperationNotFound   = errors.New("operation not found")
	ErrConflictNotFound    = errors.New("conflict not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrRecordIDRequired    = errors.New("record ID required")
	ErrSupplierRequired    = errors.New("supplier name required")
	ErrCustomerRequired    = errors.New("customer name required")
	ErrProductRequired     = errors.New("product required")
	ErrRemoteNotConfigured = errors.New("remote store not configured")
	ErrHashMismatch        = errors.New("content hash mismatch")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	CodeNetwork       ErrorCode = "NETWORK"
	CodeStorage       ErrorCode = "STORAGE"
	CodeConfiguration ErrorCode = "CONFIG"
)

// YardsyncError wraps errors with additional context for debugging and handling.
type YardsyncError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *YardsyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for use with errors.Is and errors.As.
func (e *YardsyncError) Unwrap() error {
	return e.Cause
}

// NewError creates a new YardsyncError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *YardsyncError {
	return &YardsyncError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error's context and returns the error.
// This allows for method chaining when adding multiple context values.
func WithContext(err *YardsyncError, key string, value interface{}) *YardsyncError {
	if err.Context == nil {
		err.Context = make(map[string]interface{})
	}
	err.Context[key] = value
	return err
}

// CodeOf returns the error code carried by err, or an empty code when err
// does not wrap a YardsyncError.
func CodeOf(err error) ErrorCode {
	var ye *YardsyncError
	if errors.As(err, &ye) {
		return ye.Code
	}
	return ""
}

// IsConflict reports whether err is a content hash conflict decided at the
// remote store boundary.
func IsConflict(err error) bool {
	return CodeOf(err) == CodeConflict
}

// IsUnauthorized reports whether err is an authentication or permission failure.
func IsUnauthorized(err error) bool {
	return CodeOf(err) == CodeUnauthorized
}

// IsNetwork reports whether err is a transient transport failure.
func IsNetwork(err error) bool {
	return CodeOf(err) == CodeNetwork
}

// IsNotFound reports whether err indicates a missing record or document.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// Is reports whether err matches target using errors.Is semantics.
// This is a convenience wrapper around the standard library's errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target and sets target to that error value.
// This is a convenience wrapper around the standard library's errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new YardsyncError with the given domain and message.
// This is a convenience function for creating domain errors.
func New(domain, message string) *YardsyncError {
	return &YardsyncError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("[%s] %s", domain, message),
		Context: make(map[string]interface{}),
	}
}
