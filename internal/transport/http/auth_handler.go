package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sitepulse/internal/auth"
	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/middleware"
	"sitepulse/pkg/contracts/api/v1"
)

// AuthHandler handles login, logout and the current-session endpoint.
type AuthHandler struct {
	manager       *auth.Manager
	validation    *middleware.ValidationMiddleware
	secureCookies bool
	logger        *slog.Logger
	errorHandler  *apierrors.ErrorHandler
}

func NewAuthHandler(manager *auth.Manager, validation *middleware.ValidationMiddleware, secureCookies bool, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AuthHandler {
	return &AuthHandler{
		manager:       manager,
		validation:    validation,
		secureCookies: secureCookies,
		logger:        logger.With(slog.String("component", "auth_handler")),
		errorHandler:  errorHandler,
	}
}

// Routes returns the public auth routes. The /me route is mounted
// separately behind the authentication middleware.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	return r
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req v1.LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	client := auth.ClientInfo{
		IP:        middleware.GetRealIP(r),
		UserAgent: r.UserAgent(),
	}
	session, user, err := h.manager.Login(r.Context(), req.Username, req.Password, client)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			h.errorHandler.HandleError(w, r, apierrors.ErrAccountLocked)
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrAccountDisabled):
			// Disabled accounts get the same response as bad
			// credentials so usernames cannot be probed.
			h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		default:
			h.errorHandler.HandleError(w, r, err)
		}
		return
	}

	http.SetCookie(w, sessionCookie(session.Token, session.ExpiresAt, h.secureCookies))
	render.JSON(w, r, map[string]interface{}{
		"status":      "success",
		"token":       session.Token,
		"expires_at":  session.ExpiresAt,
		"user":        user,
		"permissions": auth.Permissions(user.Role),
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := extractSessionToken(r)
	if token != "" {
		client := auth.ClientInfo{
			IP:        middleware.GetRealIP(r),
			UserAgent: r.UserAgent(),
		}
		if err := h.manager.Logout(r.Context(), token, client); err != nil {
			h.logger.WarnContext(r.Context(), "logout failed",
				slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, expiredSessionCookie(h.secureCookies))
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// Me handles GET /api/auth/me for an authenticated session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return
	}
	session, _ := middleware.CurrentSession(r.Context())
	render.JSON(w, r, map[string]interface{}{
		"status":      "success",
		"user":        user,
		"expires_at":  session.ExpiresAt,
		"permissions": auth.Permissions(user.Role),
	})
}
