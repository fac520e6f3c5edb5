package collab

import (
	"fmt"
	"time"
)

// APIError is a non-2xx response from the collaboration API.
//
// It implements retry.StatusCoder, retry.ErrorCoder and retry.RetryDelayer so
// the retry executor can classify it without importing this package.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int

	// Code is the structured error code from the response body
	// (e.g. "TooManyRequests", "itemNotFound")
	Code string

	// Message is the human-readable error message
	Message string

	// RetryAfter is the parsed Retry-After header (0 if absent)
	RetryAfter time.Duration

	// RequestID is the provider's request identifier, for support tickets
	RequestID string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("collab API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("collab API error (status %d): %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the HTTP status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// ErrorCode returns the structured error code.
func (e *APIError) ErrorCode() string {
	return e.Code
}

// RetryDelay returns the server's Retry-After hint.
func (e *APIError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// ParseError is a 2xx response whose body could not be decoded.
type ParseError struct {
	// RawResponse is the body that failed to parse
	RawResponse string

	// Cause is the underlying decode error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("collab API response parse error: %v", e.Cause)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
