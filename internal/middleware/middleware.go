// Package middleware provides the HTTP middleware chain: request IDs,
// structured logging, panic recovery, rate limiting, CORS, security
// headers, session authentication and permission checks.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/infrastructure"
)

// RequestID assigns each request an ID, honouring an X-Request-ID sent
// by the client. The ID doubles as the trace_id in log output, so this
// must run first in the chain.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(infrastructure.WithTraceID(r.Context(), id)))
	})
}

// StructuredLogger writes one slog line per completed request.
func StructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// Recoverer turns panics into a 500 problem response. The body is
// written directly because the panic may have originated inside the
// render stack.
func Recoverer(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				ctx := r.Context()
				logger.ErrorContext(ctx, "panic recovered",
					slog.Any("panic", rvr),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				writeProblem(w, http.StatusInternalServerError,
					apierrors.TypeInternal, "Internal Server Error",
					"An unexpected error occurred", infrastructure.GetTraceID(ctx))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// writeProblem emits a minimal RFC 7807 body without going through the
// render stack.
func writeProblem(w http.ResponseWriter, status int, typ, title, detail, traceID string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"type":%q,"title":%q,"status":%d,"detail":%q,"trace_id":%q}`,
		typ, title, status, detail, traceID)
}

// rateLimiterIdle is how long an address's bucket survives without
// traffic before pruning reclaims it.
const rateLimiterIdle = 3 * time.Minute

// RateLimiter applies a token-bucket limit per client address so one
// noisy client cannot starve the rest of the API surface.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	lastPrune time.Time
	rps       rate.Limit
	burst     int
	logger    *slog.Logger
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		buckets:   make(map[string]*clientBucket),
		lastPrune: time.Now(),
		rps:       rate.Limit(rps),
		burst:     burst,
		logger:    logger,
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastPrune) > rateLimiterIdle {
		for addr, b := range rl.buckets {
			if now.Sub(b.lastSeen) > rateLimiterIdle {
				delete(rl.buckets, addr)
			}
		}
		rl.lastPrune = now
	}

	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// Handler rejects requests over the limit with 429 and a Retry-After.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.allow(GetRealIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		rl.logger.WarnContext(ctx, "rate limit exceeded",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
		)
		w.Header().Set("Retry-After", "60")
		writeProblem(w, http.StatusTooManyRequests,
			apierrors.TypeRateLimit, "Too Many Requests",
			"Rate limit exceeded. Please retry after 60 seconds", infrastructure.GetTraceID(ctx))
	})
}

// CORSConfig controls the CORS middleware. Zero-value method, header
// and max-age fields fall back to sensible defaults.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
	Logger           *slog.Logger
}

func CORS(cfg CORSConfig) func(next http.Handler) http.Handler {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 300
	}

	allowAll := len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*"
	originAllowed := func(origin string) bool {
		if len(cfg.AllowedOrigins) == 0 || allowAll {
			return true
		}
		for _, o := range cfg.AllowedOrigins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := originAllowed(origin)

			switch {
			case allowed && origin != "":
				w.Header().Set("Access-Control-Allow-Origin", origin)
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
			if len(cfg.ExposedHeaders) > 0 {
				w.Header().Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposedHeaders, ", "))
			}
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))

			if r.Method == http.MethodOptions {
				if cfg.Logger != nil {
					cfg.Logger.DebugContext(r.Context(), "CORS preflight",
						slog.String("origin", origin),
						slog.Bool("allowed", allowed))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets the standard browser hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self' data:")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// RealIP extracts the client IP from proxy headers via chi.
func RealIP(next http.Handler) http.Handler {
	return middleware.RealIP(next)
}

// StripSlashes removes trailing slashes before routing via chi.
func StripSlashes(next http.Handler) http.Handler {
	return middleware.StripSlashes(next)
}
