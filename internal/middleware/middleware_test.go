package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterIsPerClientAddress(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rl := NewRateLimiter(1, 1, logger)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/inspections", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"), "burst of one exhausted")

	// A different client keeps its own bucket.
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2"))
}

func TestRequestIDHonoursClientHeader(t *testing.T) {
	var handled bool
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, handled)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
