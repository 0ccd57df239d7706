package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/jobs"
	"sitepulse/internal/services"
	"sitepulse/internal/store"
)

// sessionCookie builds the HttpOnly session cookie issued on login.
// secure marks it HTTPS-only for TLS deployments.
func sessionCookie(token string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// expiredSessionCookie clears the session cookie on logout.
func expiredSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// extractSessionToken mirrors the auth middleware's token sources so
// logout works from either the Authorization header or the cookie.
func extractSessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(config.SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// mapServiceError translates service and store sentinel errors to the
// API error vocabulary. Unknown errors pass through and render as 500s.
func mapServiceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrForbidden):
		return apierrors.ErrForbidden
	case errors.Is(err, services.ErrInvalidTransition):
		return apierrors.NewWithDetails(http.StatusUnprocessableEntity,
			"INVALID_TRANSITION", "Defect status transition not allowed", err.Error())
	case errors.Is(err, services.ErrNoActiveInspection):
		return apierrors.New(http.StatusNotFound,
			"NO_ACTIVE_INSPECTION", "Building has no active inspection")
	case errors.Is(err, services.ErrUnsupportedFormat):
		return apierrors.NewWithDetails(http.StatusBadRequest,
			"UNSUPPORTED_FORMAT", "Unsupported report format", err.Error())
	case errors.Is(err, services.ErrLastAdmin):
		return apierrors.ConflictError("Cannot demote or deactivate the last active administrator")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apierrors.ErrUnauthorized
	case errors.Is(err, jobs.ErrNotFound):
		return apierrors.ErrJobNotFound
	case errors.Is(err, store.ErrNotFound):
		return apierrors.ErrNotFound
	case errors.Is(err, store.ErrDuplicate):
		return apierrors.ErrConflict
	default:
		return err
	}
}
