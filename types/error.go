package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across pageflow.
type ErrorCode string

// Request error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUnknownTool    ErrorCode = "UNKNOWN_TOOL"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrCanceled       ErrorCode = "CANCELED"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// Browser engine error codes
const (
	ErrNavigationFailed ErrorCode = "NAVIGATION_FAILED"
	ErrActionFailed     ErrorCode = "ACTION_FAILED"
	ErrArtifactIO       ErrorCode = "ARTIFACT_IO"
	ErrExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	ErrUnsupported      ErrorCode = "UNSUPPORTED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
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
	return &Error{Code: code, Message: message, HTTPStatus: defaultStatus(code)}
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

// WithProvider sets the browser provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

func defaultStatus(code ErrorCode) int {
	switch code {
	case ErrInvalidRequest, ErrUnknownTool:
		return http.StatusBadRequest
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrNavigationFailed:
		return http.StatusBadGateway
	case ErrUnsupported:
		return http.StatusNotImplemented
	case ErrCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
