package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/go-chi/render"

	"sitepulse/internal/infrastructure"
)

// ErrorHandler renders every error leaving the API as an RFC 7807
// problem document and logs it with request context.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler builds the shared handler. includeStack attaches
// stack traces to problem documents and is only for development.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// problemTypes maps APIError codes to problem type URIs.
var problemTypes = map[string]string{
	"VALIDATION_FAILED":    TypeValidation,
	"INVALID_REQUEST":      TypeValidation,
	"INVALID_JSON":         TypeValidation,
	"INVALID_UPLOAD":       TypeValidation,
	"PAYLOAD_TOO_LARGE":    TypeValidation,
	"UNSUPPORTED_FORMAT":   TypeValidation,
	"INVALID_TRANSITION":   TypeValidation,
	"NOT_FOUND":            TypeNotFound,
	"JOB_NOT_FOUND":        TypeJobNotFound,
	"NO_ACTIVE_INSPECTION": TypeNotFound,
	"UNAUTHORIZED":         TypeUnauthorized,
	"ACCOUNT_LOCKED":       TypeAccountLocked,
	"FORBIDDEN":            TypeForbidden,
	"CONFLICT":             TypeConflict,
	"SERVICE_UNAVAILABLE":  TypeServiceDown,
}

// HandleError logs the error and writes the problem response. Client
// errors log at warn, server errors at error.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.toProblem(err, r)

	reqID := infrastructure.GetTraceID(r.Context())
	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem.WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", stackTrace())
	}

	render.Render(w, r, problem)
}

func (h *ErrorHandler) toProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"Request Timeout", "The request took too long to process and was cancelled", r.URL.Path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		problemType, ok := problemTypes[apiErr.ErrorCode]
		if !ok {
			problemType = TypeInternal
		}
		problem := NewProblemDetails(apiErr.StatusCode, problemType,
			http.StatusText(apiErr.StatusCode), apiErr.Message, r.URL.Path).
			WithExtension("error_code", apiErr.ErrorCode)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem
	}

	// Untyped errors should not reach this point; the handlers map
	// service sentinels before calling HandleError. Sniff the two store
	// phrasings that can slip through, then fail closed.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound,
			"Resource Not Found", msg, r.URL.Path)
	case strings.Contains(msg, "already exists"):
		return NewProblemDetails(http.StatusConflict, TypeConflict,
			"Conflict", msg, r.URL.Path)
	default:
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Internal Server Error", "An unexpected error occurred while processing your request", r.URL.Path)
	}
}

// HandlePanic is the recover path: log with the stack, answer 500.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred", r.URL.Path).
		WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", stackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound is the router fallback for unknown paths.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNotFound,
		"Not Found", "The requested resource was not found", r.URL.Path).
		WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))
	render.Render(w, r, problem)
}

// MethodNotAllowed is the router fallback for wrong verbs.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusMethodNotAllowed, TypeInternal,
		"Method Not Allowed", fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path).
		WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))
	render.Render(w, r, problem)
}

func stackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
