// Package apierror provides canonical error types for the service.
package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Type represents the category of an API error.
type Type string

const (
	// TypeInvalidRequest indicates a malformed or invalid request.
	TypeInvalidRequest Type = "invalid_request"

	// TypeValidation indicates a request body that failed validation.
	TypeValidation Type = "validation"

	// TypeNotFound indicates a resource was not found.
	TypeNotFound Type = "not_found"

	// TypeRateLimit indicates rate limiting was triggered.
	TypeRateLimit Type = "rate_limit"

	// TypeDependency indicates a required dependency is unavailable.
	TypeDependency Type = "dependency"

	// TypeServer indicates an internal server error.
	TypeServer Type = "server"
)

// Error represents a canonical API error that can be translated to the
// client-facing JSON envelope. Internal error detail never crosses into the
// envelope; Message is the only text a client sees.
type Error struct {
	// Type is the category of error
	Type Type `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// StatusCode is the suggested HTTP status code
	StatusCode int `json:"-"`

	// RetryAfter hints when a rate-limited client may retry
	RetryAfter time.Duration `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case TypeInvalidRequest:
		return http.StatusBadRequest
	case TypeValidation:
		return http.StatusUnprocessableEntity
	case TypeNotFound:
		return http.StatusNotFound
	case TypeRateLimit:
		return http.StatusTooManyRequests
	case TypeDependency:
		return http.StatusServiceUnavailable
	case TypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new API error.
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// WithStatusCode sets a specific HTTP status code.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithRetryAfter sets the retry hint for rate-limited responses.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// Convenience constructors for common errors

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *Error {
	return New(TypeInvalidRequest, message)
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *Error {
	return New(TypeValidation, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *Error {
	return New(TypeNotFound, message)
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *Error {
	return New(TypeRateLimit, message)
}

// ErrDependency creates a dependency unavailable error.
func ErrDependency(message string) *Error {
	return New(TypeDependency, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *Error {
	return New(TypeServer, message)
}

// envelope is the client-facing JSON body.
type envelope struct {
	Detail     string `json:"detail"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// Write writes the error as a JSON response. A RetryAfter hint is rounded up
// to whole seconds and mirrored in the Retry-After header.
func Write(w http.ResponseWriter, e *Error) {
	body := envelope{Detail: e.Message}
	if e.RetryAfter > 0 {
		secs := int((e.RetryAfter + time.Second - 1) / time.Second)
		body.RetryAfter = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(body)
}
