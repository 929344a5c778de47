// Package domain provides canonical error types shared by the chat client core.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates an authentication failure.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeRateLimit indicates rate limiting was triggered.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeServer indicates a backend-side failure.
	ErrorTypeServer ErrorType = "server"

	// ErrorTypeTransport indicates the request failed below HTTP
	// (connection refused, DNS failure, timeout, aborted read).
	ErrorTypeTransport ErrorType = "transport"

	// ErrorTypeDecode indicates the response body could not be decoded.
	ErrorTypeDecode ErrorType = "decode"
)

// User-facing messages rendered into a failed chat turn. Status 400 is the
// only status with a dedicated message; everything else gets the generic one.
const (
	MessageInvalidRequest = "The backend rejected the request as invalid. Please rephrase your question and try again."
	MessageAPIError       = "The chat backend returned an error. Please try again later."
)

// APIError is a canonical error raised by the transport or decode layers and
// recorded on the failed chat turn.
type APIError struct {
	// Type is the category of error.
	Type ErrorType `json:"type"`

	// Message is the error detail as reported by the backend or transport.
	Message string `json:"message"`

	// StatusCode is the HTTP status, when an HTTP response was received.
	// Zero when the failure happened below HTTP or after the status line was
	// already consumed (mid-stream failure).
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// UserMessage returns the message shown in the chat thread for this error.
func (e *APIError) UserMessage() string {
	if e.StatusCode == http.StatusBadRequest {
		return MessageInvalidRequest
	}
	return MessageAPIError
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithStatusCode sets the HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// Convenience constructors for common errors

// ErrTransport creates a transport error.
func ErrTransport(message string) *APIError {
	return NewAPIError(ErrorTypeTransport, message)
}

// ErrDecode creates a decode error.
func ErrDecode(message string) *APIError {
	return NewAPIError(ErrorTypeDecode, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message).
		WithStatusCode(http.StatusBadRequest)
}

// ToCanonical converts any error to an *APIError. If the error already is
// one it is returned directly; otherwise it is wrapped as a transport error.
func ToCanonical(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrTransport(err.Error())
}

// typeForStatus maps an HTTP status to an error category.
func typeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuthentication
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status >= 400 && status < 500:
		return ErrorTypeInvalidRequest
	default:
		return ErrorTypeServer
	}
}

// FromStatus creates an APIError for an HTTP error response.
func FromStatus(status int, message string) *APIError {
	return NewAPIError(typeForStatus(status), message).WithStatusCode(status)
}
