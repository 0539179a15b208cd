// Package errors provides the error handling system for the koreksi grammar service.
// It includes structured error types, JSON response formatting, request ID tracking,
// and integrated logging with Uber's zap logger.
//
// The package is used throughout the codebase so that every failure reaching a
// client has the same shape:
//
//   - Structured JSON error responses with type information
//   - Request ID tracking for error correlation
//   - Integrated logging with zap
//   - Middleware integration for panic recovery
//
// Basic usage:
//
//	// Simple error response
//	errors.Error(w, "Something went wrong", http.StatusBadRequest)
//
//	// Type-specific error
//	errors.ErrorWithType(w, "Invalid input", errors.ValidationError, http.StatusBadRequest)
//
// The grammar pipeline reports its four failure kinds through the constructors
// in types.go:
//
//	err := errors.NewExternalServiceError(requestID, providerErr)
//	err := errors.NewMalformedModelResponseError(requestID, parseErr)
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// A nil logger is ignored so logging cannot be disabled by accident.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the categories of errors the service reports.
type ErrorType string

const (
	// ValidationError represents caller input that fails shape or range constraints
	ValidationError ErrorType = "validation_error"

	// ExternalServiceError represents a failed call to the model provider
	ExternalServiceError ErrorType = "external_service_error"

	// MalformedModelResponse represents a model reply with no parseable JSON object
	MalformedModelResponse ErrorType = "malformed_model_response"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"

	// AuthError represents authentication failures
	AuthError ErrorType = "authentication_error"

	// RateLimitError represents rate limiting errors
	RateLimitError ErrorType = "rate_limit_error"

	// BadRequestError represents invalid request format or parameters
	BadRequestError ErrorType = "bad_request"

	// NotFoundError represents resource not found errors
	NotFoundError ErrorType = "not_found"

	// QueueFullError is returned when too many checks are already in flight
	QueueFullError ErrorType = "queue_full"
)

// KoreksiError is the service error type. It is serialized to JSON for API
// responses while keeping the underlying cause for logging only.
type KoreksiError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *KoreksiError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *KoreksiError) Unwrap() error {
	return e.err
}

// Is matches on Type only, so errors.Is(err, &KoreksiError{Type: ValidationError})
// works regardless of message or request ID.
func (e *KoreksiError) Is(target error) bool {
	t, ok := target.(*KoreksiError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithRequestID returns a copy of the error bound to requestID.
func (e *KoreksiError) WithRequestID(requestID string) *KoreksiError {
	c := *e
	c.RequestID = requestID
	return &c
}

// WriteError writes a KoreksiError to an http.ResponseWriter as JSON
// with the error's status code.
func WriteError(w http.ResponseWriter, err *KoreksiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}

// Error is a drop-in replacement for http.Error that writes a KoreksiError
// with the InternalError type. It picks up the request ID from the response
// headers when the RequestID middleware already set one.
func Error(w http.ResponseWriter, message string, code int) {
	ErrorWithType(w, message, InternalError, code)
}

// ErrorWithType is like Error but allows specifying the error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	requestID := w.Header().Get("X-Request-ID")
	err := &KoreksiError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}
	WriteError(w, err)
}
