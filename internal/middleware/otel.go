package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"sitepulse/internal/infrastructure"
)

// OTelMiddleware traces each request and records the HTTP metrics. The
// span's trace ID becomes the logging trace_id, so logs, spans and
// problem responses correlate on one value.
type OTelMiddleware struct {
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

func NewOTelMiddleware(providers *infrastructure.OTelProviders) (*OTelMiddleware, error) {
	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create business metrics: %w", err)
	}
	return &OTelMiddleware{
		tracer:  providers.Tracer,
		metrics: metrics,
		logger:  providers.Logger,
	}, nil
}

// Metrics exposes the instrument set for services to record against.
func (m *OTelMiddleware) Metrics() *infrastructure.BusinessMetrics {
	return m.metrics
}

func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := m.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(r.URL.Path),
				semconv.ServerAddressKey.String(r.Host),
				semconv.UserAgentOriginalKey.String(r.UserAgent()),
				semconv.HTTPRequestBodySizeKey.Int64(r.ContentLength),
				semconv.ClientAddressKey.String(GetRealIP(r)),
			),
		)
		defer span.End()

		ctx = infrastructure.WithTraceID(ctx, span.SpanContext().TraceID().String())
		r = r.WithContext(ctx)

		m.metrics.HTTPActiveRequests.Add(ctx, 1)
		defer m.metrics.HTTPActiveRequests.Add(ctx, -1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		measure := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", routePattern(r)),
			attribute.Int("status_code", rec.status),
		)
		m.metrics.HTTPRequestsTotal.Add(ctx, 1, measure)
		m.metrics.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), measure)

		span.SetAttributes(
			semconv.HTTPResponseStatusCodeKey.Int(rec.status),
			semconv.HTTPResponseBodySizeKey.Int64(rec.written),
			attribute.Float64("http.request.duration", elapsed.Seconds()),
		)
		if rec.status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += int64(n)
	return n, err
}

// routePattern prefers the chi pattern ("/api/defects/{id}") over the
// raw path so metric cardinality stays bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// WebSocketTrace spans the upgrade request only. The connection itself
// outlives the span; per-message tracing is not worth the volume.
func WebSocketTrace(logger *slog.Logger) func(http.Handler) http.Handler {
	tracer := otel.Tracer("sitepulse.websocket")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "websocket_upgrade",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String("/ws"),
					attribute.String("connection.type", "websocket"),
					attribute.String("origin", r.Header.Get("Origin")),
				),
			)
			defer span.End()

			traceID := span.SpanContext().TraceID().String()
			logger.InfoContext(ctx, "websocket upgrade",
				slog.String("origin", r.Header.Get("Origin")),
				slog.String("trace_id", traceID))

			next.ServeHTTP(w, r.WithContext(infrastructure.WithTraceID(ctx, traceID)))
		})
	}
}

// GetRealIP reports the client address, preferring proxy headers.
func GetRealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
