// Package validation decodes and checks request bodies with
// go-playground/validator. Failures become ValidationError responses with
// one entry per offending field, named by its JSON path.
package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/koreksi/errors"
)

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError describes one failed constraint.
type FieldError struct {
	Field   string `json:"field"`   // JSON path, e.g. suggestions[0].original
	Message string `json:"message"` // Human-readable error message
	Code    string `json:"code"`    // Machine-readable error code
}

// Struct validates v and returns nil when it passes.
func Struct(v any) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "request", Message: err.Error(), Code: "invalid"}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: message(fe),
			Code:    fe.Tag() + "_validation_failed",
		})
	}
	return out
}

// Validate runs Struct and wraps failures in a 400 KoreksiError.
func Validate(requestID string, v any) *errors.KoreksiError {
	fields := Struct(v)
	if fields == nil {
		return nil
	}
	return errors.NewValidationError(requestID, "Invalid request data", map[string]interface{}{
		"fields": fields,
	})
}

// DecodeJSON reads at most maxBytes of JSON from r into dst and validates
// it. A body that is not JSON, is too large, or fails validation yields a 400.
func DecodeJSON(r *http.Request, dst any, maxBytes int64, requestID string) *errors.KoreksiError {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return errors.NewValidationError(requestID, "Invalid request data", map[string]interface{}{
				"fields": []FieldError{{
					Field:   "header:Content-Type",
					Message: "Content-Type must be application/json",
					Code:    "invalid_content_type",
				}},
			})
		}
	}

	var body io.Reader = r.Body
	if maxBytes > 0 {
		body = io.LimitReader(r.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.NewValidationError(requestID, "Invalid request data", bodyError("unreadable body", "invalid_body"))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return errors.NewValidationError(requestID, "Invalid request data",
			bodyError(fmt.Sprintf("body exceeds %d bytes", maxBytes), "body_too_large"))
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.NewValidationError(requestID, "Invalid request data", bodyError(err.Error(), "invalid_json"))
	}

	return Validate(requestID, dst)
}

func bodyError(msg, code string) map[string]interface{} {
	return map[string]interface{}{
		"fields": []FieldError{{Field: "body", Message: msg, Code: code}},
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
