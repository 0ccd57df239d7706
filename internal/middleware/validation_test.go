package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "sitepulse/internal/errors"
)

func newTestValidation(t *testing.T) (*ValidationMiddleware, *QueryParamValidator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return NewValidationMiddleware(logger, errorHandler), NewQueryParamValidator(logger, errorHandler)
}

type defectUpdatePayload struct {
	Status   string `json:"status" validate:"required,defect_status"`
	Assignee string `json:"assignee" validate:"omitempty,min=3"`
	DueDate  string `json:"due_date" validate:"omitempty,iso8601"`
}

func TestValidateStructDomainTags(t *testing.T) {
	vm, _ := newTestValidation(t)

	ok := defectUpdatePayload{Status: "in_progress", Assignee: "builder1", DueDate: "2026-03-01"}
	require.NoError(t, vm.ValidateStruct(&ok))

	bad := defectUpdatePayload{Status: "finished", Assignee: "ab", DueDate: "2026-02-30"}
	err := vm.ValidateStruct(&bad)
	require.Error(t, err)

	apiErr, isAPI := err.(*apierrors.APIError)
	require.True(t, isAPI)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

	fields, isList := apiErr.Details.([]apierrors.ValidationError)
	require.True(t, isList)
	require.Len(t, fields, 3)

	byField := map[string]string{}
	for _, fe := range fields {
		byField[fe.Field] = fe.Message
	}
	assert.Contains(t, byField["status"], "defect status")
	assert.Contains(t, byField["assignee"], "at least 3")
	assert.Contains(t, byField["due_date"], "ISO8601")
}

func TestValidateRequestRejectsMalformedJSON(t *testing.T) {
	vm, _ := newTestValidation(t)

	handler := vm.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/defects", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON")

	req = httptest.NewRequest(http.MethodGet, "/api/defects", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code, "reads are never body-checked")
}

func TestValidateRequestRestoresBody(t *testing.T) {
	vm, _ := newTestValidation(t)

	var seen string
	handler := vm.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/mappings", strings.NewReader(`{"room":"Balcony"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, `{"room":"Balcony"}`, seen)
}

func TestValidateIntBounds(t *testing.T) {
	_, qp := newTestValidation(t)

	get := func(query string) (*httptest.ResponseRecorder, *http.Request) {
		return httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/audit"+query, nil)
	}

	rec, req := get("")
	n, ok := qp.ValidateInt(rec, req, "limit", 1, 1000, 200)
	assert.True(t, ok)
	assert.Equal(t, 200, n)

	rec, req = get("?limit=50")
	n, ok = qp.ValidateInt(rec, req, "limit", 1, 1000, 200)
	assert.True(t, ok)
	assert.Equal(t, 50, n)

	rec, req = get("?limit=5000")
	_, ok = qp.ValidateInt(rec, req, "limit", 1, 1000, 200)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "between 1 and 1000")

	rec, req = get("?limit=ten")
	_, ok = qp.ValidateInt(rec, req, "limit", 1, 1000, 200)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
