// Package errors provides error response utilities.
package errors

import (
	"errors"
)

const RequestIDKey = "request_id"

// ErrorResponse is the wire shape of a KoreksiError as clients decode it.
type ErrorResponse struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is so callers need only one errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New is a wrapper around errors.New for sentinel errors.
func New(text string) error {
	return errors.New(text)
}

// TypeOf returns the ErrorType of err, or InternalError when err is not a
// KoreksiError.
func TypeOf(err error) ErrorType {
	var ke *KoreksiError
	if errors.As(err, &ke) {
		return ke.Type
	}
	return InternalError
}
