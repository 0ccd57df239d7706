package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	"sitepulse/internal/infrastructure"
	"sitepulse/pkg/contracts/domain"
)

type contextKey string

const (
	userContextKey    contextKey = "authenticated-user"
	sessionContextKey contextKey = "session"
)

// CurrentUser returns the authenticated user from the request context.
func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(domain.User)
	return u, ok
}

// CurrentSession returns the session from the request context.
func CurrentSession(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(domain.Session)
	return s, ok
}

// extractToken pulls the session token from the Authorization header
// (Bearer) or the session cookie, in that order.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
	}
	if c, err := r.Cookie(config.SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate validates the session token and injects the user into
// the request context. Requests without a valid session get a 401.
func Authenticate(manager *auth.Manager, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			user, sess, err := manager.Validate(ctx, extractToken(r))
			if err != nil {
				logger.DebugContext(ctx, "authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				unauthorized(w, ctx, "Authentication required")
				return
			}

			ctx = context.WithValue(ctx, userContextKey, user)
			ctx = context.WithValue(ctx, sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects requests whose authenticated user lacks the
// permission. Must run after Authenticate.
func RequirePermission(permission string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			user, ok := CurrentUser(ctx)
			if !ok {
				unauthorized(w, ctx, "Authentication required")
				return
			}
			if !auth.Can(user.Role, permission) {
				logger.WarnContext(ctx, "permission denied",
					"username", user.Username,
					"role", string(user.Role),
					"permission", permission,
					"path", r.URL.Path,
				)
				forbidden(w, ctx, "You don't have permission to perform this action")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission passes when the user holds at least one of the
// permissions, used for endpoints shared by view_all and view_assigned.
func RequireAnyPermission(logger *slog.Logger, permissions ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			user, ok := CurrentUser(ctx)
			if !ok {
				unauthorized(w, ctx, "Authentication required")
				return
			}
			for _, p := range permissions {
				if auth.Can(user.Role, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.WarnContext(ctx, "permission denied",
				"username", user.Username,
				"role", string(user.Role),
				"path", r.URL.Path,
			)
			forbidden(w, ctx, "You don't have permission to perform this action")
		})
	}
}

func unauthorized(w http.ResponseWriter, ctx context.Context, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	traceID := infrastructure.GetTraceID(ctx)
	w.Write([]byte(`{"type":"/errors/unauthorized","title":"Unauthorized","status":401,"detail":"` + detail + `","trace_id":"` + traceID + `"}`))
}

func forbidden(w http.ResponseWriter, ctx context.Context, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusForbidden)
	traceID := infrastructure.GetTraceID(ctx)
	w.Write([]byte(`{"type":"/errors/forbidden","title":"Forbidden","status":403,"detail":"` + detail + `","trace_id":"` + traceID + `"}`))
}
