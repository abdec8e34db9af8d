package types

import "fmt"

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Registry and dispatch error codes
const (
	ErrAgentNotFound     ErrorCode = "AGENT_NOT_FOUND"
	ErrUnitFailure       ErrorCode = "UNIT_FAILURE"
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Session and operation error codes
const (
	ErrSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrOperationNotFound ErrorCode = "OPERATION_NOT_FOUND"
)

// Provider error codes
const (
	ErrProviderError   ErrorCode = "PROVIDER_ERROR"
	ErrProviderTimeout ErrorCode = "PROVIDER_TIMEOUT"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether the error carries one of the not-found codes.
func IsNotFound(err error) bool {
	switch GetErrorCode(err) {
	case ErrAgentNotFound, ErrSessionNotFound, ErrOperationNotFound:
		return true
	default:
		return false
	}
}
