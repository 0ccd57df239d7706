// Package errors provides the API error model and RFC 7807 rendering
// for the SitePulse HTTP surface.
package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the structured error the transport layer raises. The
// ErrorCode selects the problem type URI when the error is rendered.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render sets the response status for chi's render stack.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message, Details: details}
}

// Sentinel errors for the outcomes the handlers map service failures
// onto. Comparison is by pointer, so these must not be mutated.
var (
	ErrUnauthorized       = New(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	ErrForbidden          = New(http.StatusForbidden, "FORBIDDEN", "Access denied")
	ErrAccountLocked      = New(http.StatusForbidden, "ACCOUNT_LOCKED", "Account temporarily locked after repeated failures")
	ErrNotFound           = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrJobNotFound        = New(http.StatusNotFound, "JOB_NOT_FOUND", "Processing job not found")
	ErrConflict           = New(http.StatusConflict, "CONFLICT", "Resource conflict")
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
)

// ValidationError is a single field failure inside a validation error's
// details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidRequestWithError wraps a decode or read failure as a 400.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ErrValidation reports one failing field as a 400.
func ErrValidation(field, message string) *APIError {
	return NewValidationErrors([]ValidationError{{Field: field, Message: message}})
}

// NewValidationErrors bundles field failures into one 400 whose details
// list every failing field.
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", errs)
}

// ConflictError is a 409 with a caller-supplied message.
func ConflictError(message string) *APIError {
	return New(http.StatusConflict, "CONFLICT", message)
}
