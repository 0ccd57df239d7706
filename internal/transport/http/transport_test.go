package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/auth"
	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/middleware"
	"sitepulse/internal/services"
	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/domain"
)

const testPassword = "settlement-2024"

type testEnv struct {
	store   *store.Store
	manager *auth.Manager
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), 0, logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	seedUser(t, st, "admin", domain.RoleAdmin)
	seedUser(t, st, "builder1", domain.RoleBuilder)

	manager := auth.NewManager(st, logger, time.Hour)
	errorHandler := apierrors.NewErrorHandler(logger, false)
	validation := middleware.NewValidationMiddleware(logger, errorHandler)
	queryParams := middleware.NewQueryParamValidator(logger, errorHandler)

	authHandler := NewAuthHandler(manager, validation, false, logger, errorHandler)
	defectHandler := NewDefectHandler(services.NewDefectService(st, nil, logger), validation, logger, errorHandler)
	reportHandler := NewReportHandler(services.NewReportService(st, nil, nil, nil, nil, logger), logger, errorHandler)
	mappingHandler := NewMappingHandler(services.NewMappingService(st, logger), validation, logger, errorHandler)
	userHandler := NewUserHandler(services.NewUserService(st, logger), validation, queryParams, logger, errorHandler)
	healthHandler := NewHealthHandler(services.NewHealthService(st, nil, nil, logger), logger, errorHandler)

	r := chi.NewRouter()
	r.Mount("/", healthHandler.Routes())
	r.Mount("/api/auth", authHandler.Routes())
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(manager, logger))
		r.Get("/api/auth/me", authHandler.Me)
		r.Mount("/api/defects", defectHandler.Routes())
		r.Mount("/api/reports", reportHandler.Routes())
		r.Mount("/api/mappings", mappingHandler.Routes())
		r.Mount("/api/users", userHandler.Routes())
	})

	return &testEnv{store: st, manager: manager, router: r}
}

func seedUser(t *testing.T, st *store.Store, username string, role domain.Role) {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	err = st.CreateUser(context.Background(), domain.User{
		Username: username,
		FullName: "Test " + username,
		Email:    username + "@example.com",
		Role:     role,
		IsActive: true,
	}, hash)
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLoginSessionFlow(t *testing.T) {
	env := newTestEnv(t)

	token := env.login(t, "admin")

	rec := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User        domain.User `json:"user"`
		Permissions []string    `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "admin", me.User.Username)
	assert.NotEmpty(t, me.Permissions)

	rec = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "ab",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDefectRoutesValidateID(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin")

	rec := env.do(t, http.MethodGet, "/api/defects/not-a-number", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/defects/42", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDefectsRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/defects/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReportDownloadWithoutActiveInspection(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin")

	rec := env.do(t, http.MethodGet, "/api/reports/Tower%20A/excel", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportDownloadForbiddenForBuilder(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "builder1")

	rec := env.do(t, http.MethodGet, "/api/reports/Tower%20A/excel", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMappingReplaceAndList(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin")

	rec := env.do(t, http.MethodPut, "/api/mappings/", token, map[string]interface{}{
		"mappings": []map[string]string{
			{"room": "Kitchen", "component": "Sink", "trade": "Plumber"},
			{"room": "Bathroom", "component": "Tiles", "trade": "Tiler"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/mappings/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestMappingReplaceRejectsEmptySet(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin")

	rec := env.do(t, http.MethodPut, "/api/mappings/", token, map[string]interface{}{
		"mappings": []map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin")

	rec := env.do(t, http.MethodPost, "/api/users/", token, map[string]string{
		"username":  "inspector9",
		"password":  testPassword,
		"full_name": "Ins Pector",
		"email":     "inspector9@example.com",
		"role":      "inspector",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/users/inspector9", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/users/inspector9", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var u struct {
		User domain.User `json:"user"`
	}
	rec = env.do(t, http.MethodGet, "/api/users/inspector9", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.False(t, u.User.IsActive)
}

func TestAuditRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "builder1")

	rec := env.do(t, http.MethodGet, "/api/users/audit", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.NotEmpty(t, health.Version)

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/version", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
