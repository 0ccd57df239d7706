package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/infrastructure"
)

func renderError(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	h := NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	req := httptest.NewRequest(http.MethodGet, "/api/defects/42", nil)
	req = req.WithContext(infrastructure.WithTraceID(req.Context(), "trace-abc"))
	rec := httptest.NewRecorder()
	h.HandleError(rec, req, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHandleErrorAPIError(t *testing.T) {
	status, body := renderError(t, ErrJobNotFound)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, TypeJobNotFound, body["type"])
	assert.Equal(t, "JOB_NOT_FOUND", body["error_code"])
	assert.Equal(t, "trace-abc", body["trace_id"])
	assert.Equal(t, "/api/defects/42", body["instance"])
}

func TestHandleErrorUnknownCodeFailsClosed(t *testing.T) {
	status, body := renderError(t, New(http.StatusTeapot, "MYSTERY", "odd"))
	assert.Equal(t, http.StatusTeapot, status)
	assert.Equal(t, TypeInternal, body["type"])
}

func TestHandleErrorUntyped(t *testing.T) {
	status, body := renderError(t, fmt.Errorf("building tower-a: not found"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, TypeNotFound, body["type"])

	status, body = renderError(t, fmt.Errorf("username already exists"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, TypeConflict, body["type"])

	status, body = renderError(t, fmt.Errorf("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body["detail"], "disk", "internal detail must not leak")
}

func TestHandleErrorContextCancellation(t *testing.T) {
	status, body := renderError(t, fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, TypeTimeout, body["type"])
}

func TestValidationErrorDetails(t *testing.T) {
	apiErr := ErrValidation("limit", "limit must be between 1 and 1000")
	assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

	fields, ok := apiErr.Details.([]ValidationError)
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "limit", fields[0].Field)
}
