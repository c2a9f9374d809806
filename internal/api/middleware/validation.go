package middleware

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/evilham/prometheus-adlermanager/internal/apierrors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// maxIngestBodyBytes mirrors ingest.MaxBodyBytes; kept independent since
// this middleware checks the declared Content-Length ahead of the handler's
// own check on the bytes it reads.
const maxIngestBodyBytes = 4 << 20

// ContentType rejects ingestion requests whose Content-Type isn't JSON or
// whose declared size already exceeds the ingestion limit, before the
// handler ever reads the body.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType != "" && contentType != "application/json" {
			apierrors.WriteRequest(w, r, http.StatusBadRequest, "invalid_content_type", "Content-Type must be application/json")
			return
		}

		if r.ContentLength > maxIngestBodyBytes {
			apierrors.WriteRequest(w, r, http.StatusBadRequest, "payload_too_large", "request body too large")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ValidateStruct validates a struct using its validator tags. No route or
// handler calls it; inbound alerts are validated one by one through
// alertmodel.Raw.Validate in site.Manager.ProcessAlerts.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationError represents a field-level validation error
type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
	Hint  string `json:"hint,omitempty"`
}

// FormatValidationErrors converts validator errors to ValidationError slice
func FormatValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errors = append(errors, ValidationError{
				Field: e.Field(),
				Issue: e.Tag(),
				Hint:  getValidationHint(e),
			})
		}
	}

	return errors
}

// getValidationHint returns a human-readable hint for validation error
func getValidationHint(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		return "Must be at least " + e.Param() + " characters"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "uuid":
		return "Must be a valid UUID"
	case "url":
		return "Must be a valid URL"
	default:
		return "Validation failed: " + e.Tag()
	}
}
