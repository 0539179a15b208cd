package errors

import (
	"net/http"
)

// NewError creates a new KoreksiError with the given parameters.
// For most cases one of the specialized constructors below is a better fit.
//
// Example:
//
//	err := NewError(InternalError, "database connection failed", 500, "req_123", nil, dbErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *KoreksiError {
	return &KoreksiError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewAuthError creates an authentication error, used for missing or unknown
// API keys.
func NewAuthError(requestID, message string, err error) *KoreksiError {
	return &KoreksiError{
		Type:      AuthError,
		Message:   message,
		Code:      http.StatusUnauthorized,
		RequestID: requestID,
		err:       err,
		Details: map[string]interface{}{
			"suggestion": "Please check your authentication credentials",
		},
	}
}

// NewValidationError creates a validation error. validationDetails carries the
// field-level detail returned to the caller.
//
// Example:
//
//	err := NewValidationError("req_123", "Invalid request data", map[string]interface{}{
//	    "fields": []FieldError{{Field: "text", Message: "is required"}},
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *KoreksiError {
	return &KoreksiError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewRateLimitError creates a rate limit error with the retry hint in seconds.
func NewRateLimitError(requestID string, retryAfter int) *KoreksiError {
	return &KoreksiError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewExternalServiceError reports a failed model provider call: transport,
// auth, quota or an open circuit. The message stays generic; err is logged only.
func NewExternalServiceError(requestID string, err error) *KoreksiError {
	return &KoreksiError{
		Type:      ExternalServiceError,
		Message:   "Failed to process grammar check",
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewMalformedModelResponseError reports a model reply that held no parseable
// JSON object. Clients see the same generic message as an external failure.
func NewMalformedModelResponseError(requestID string, err error) *KoreksiError {
	return &KoreksiError{
		Type:      MalformedModelResponse,
		Message:   "Failed to process grammar check",
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(requestID, message string) *KoreksiError {
	return &KoreksiError{
		Type:      NotFoundError,
		Message:   message,
		Code:      http.StatusNotFound,
		RequestID: requestID,
	}
}

// NewQueueFullError is returned when the check queue has no free slot.
func NewQueueFullError(requestID string, maxSize int64) *KoreksiError {
	return &KoreksiError{
		Type:      QueueFullError,
		Message:   "Queue is full",
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		Details: map[string]interface{}{
			"max_size": maxSize,
		},
	}
}

// NewInternalError creates an internal server error for anything not covered
// by the other types: panics, database failures, encoding failures.
func NewInternalError(requestID string, err error) *KoreksiError {
	return &KoreksiError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
