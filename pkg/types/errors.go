package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeForbidden   ErrorType = "forbidden"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeInternal    ErrorType = "internal"
)

// CoordError represents a structured error in the coordination core
type CoordError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *CoordError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *CoordError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *CoordError {
	return &CoordError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(code, message string) *CoordError {
	return &CoordError{
		Type:    ErrorTypeForbidden,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *CoordError {
	return &CoordError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *CoordError {
	return &CoordError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// NewUnavailableError creates a new dependency-unavailable error
func NewUnavailableError(code, message string, cause error) *CoordError {
	return &CoordError{
		Type:    ErrorTypeUnavailable,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *CoordError {
	return &CoordError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the error type of err, or ErrorTypeInternal for plain errors
func TypeOf(err error) ErrorType {
	var ce *CoordError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrorTypeInternal
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }

// IsForbidden reports whether err is a forbidden error
func IsForbidden(err error) bool { return TypeOf(err) == ErrorTypeForbidden }

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool { return TypeOf(err) == ErrorTypeConflict }

// Common error codes
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeUnavailable    = "DEPENDENCY_UNAVAILABLE"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeInvalidRole    = "INVALID_ROLE"
	ErrCodeChatLocked     = "CHAT_LOCKED"
	ErrCodeNotParticipant = "NOT_PARTICIPANT"
)
