package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Inspection processing metrics
	UploadsTotal       metric.Int64Counter
	ProcessingDuration metric.Float64Histogram
	ItemsProcessed     metric.Int64Counter
	DefectsRecorded    metric.Int64Counter

	// Report metrics
	ReportsGenerated       metric.Int64Counter
	ReportGenerationTime   metric.Float64Histogram

	// Auth metrics
	LoginAttempts  metric.Int64Counter
	ActiveSessions metric.Int64UpDownCounter

	// WebSocket metrics
	WebSocketConnections metric.Int64UpDownCounter

	// Error metrics
	SystemErrors metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	uploadsTotal, err := meter.Int64Counter(
		"inspection_uploads_total",
		metric.WithDescription("Total number of inspection CSV uploads"),
	)
	if err != nil {
		return nil, err
	}

	processingDuration, err := meter.Float64Histogram(
		"inspection_processing_duration_seconds",
		metric.WithDescription("Inspection processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	itemsProcessed, err := meter.Int64Counter(
		"inspection_items_processed_total",
		metric.WithDescription("Total number of inspection items melted and classified"),
	)
	if err != nil {
		return nil, err
	}

	defectsRecorded, err := meter.Int64Counter(
		"inspection_defects_recorded_total",
		metric.WithDescription("Total number of defects entered into the workflow"),
	)
	if err != nil {
		return nil, err
	}

	reportsGenerated, err := meter.Int64Counter(
		"reports_generated_total",
		metric.WithDescription("Total number of reports generated"),
	)
	if err != nil {
		return nil, err
	}

	reportGenerationTime, err := meter.Float64Histogram(
		"report_generation_duration_seconds",
		metric.WithDescription("Report generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	loginAttempts, err := meter.Int64Counter(
		"login_attempts_total",
		metric.WithDescription("Total number of login attempts"),
	)
	if err != nil {
		return nil, err
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Number of live sessions"),
	)
	if err != nil {
		return nil, err
	}

	webSocketConnections, err := meter.Int64UpDownCounter(
		"websocket_connections",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	systemErrors, err := meter.Int64Counter(
		"system_errors_total",
		metric.WithDescription("Total number of system errors"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		HTTPRequestsTotal:    httpRequestsTotal,
		HTTPRequestDuration:  httpRequestDuration,
		HTTPActiveRequests:   httpActiveRequests,
		UploadsTotal:         uploadsTotal,
		ProcessingDuration:   processingDuration,
		ItemsProcessed:       itemsProcessed,
		DefectsRecorded:      defectsRecorded,
		ReportsGenerated:     reportsGenerated,
		ReportGenerationTime: reportGenerationTime,
		LoginAttempts:        loginAttempts,
		ActiveSessions:       activeSessions,
		WebSocketConnections: webSocketConnections,
		SystemErrors:         systemErrors,
	}, nil
}

// RecordProcessingMetrics records the outcome of one inspection upload.
func RecordProcessingMetrics(ctx context.Context, metrics *BusinessMetrics, building string, items, defects int, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("building", building),
		attribute.String("status", status),
	)
	metrics.UploadsTotal.Add(ctx, 1, attrs)
	metrics.ProcessingDuration.Record(ctx, duration.Seconds(), attrs)
	if success {
		metrics.ItemsProcessed.Add(ctx, int64(items), attrs)
		metrics.DefectsRecorded.Add(ctx, int64(defects), attrs)
	}
}

// RecordReportMetrics records a report generation.
func RecordReportMetrics(ctx context.Context, metrics *BusinessMetrics, format string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("format", format),
		attribute.String("status", status),
	)
	metrics.ReportsGenerated.Add(ctx, 1, attrs)
	metrics.ReportGenerationTime.Record(ctx, duration.Seconds(), attrs)
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}
