package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"sitepulse/pkg/contracts"
)

const (
	// ServiceName identifies this service in telemetry
	ServiceName = "sitepulse"
	// MeterName is the instrumentation scope name
	MeterName = "sitepulse"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	traceExporter := "none"
	if env == "development" {
		traceExporter = "stdout"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    env,
		TraceExporter:  traceExporter,
		MetricExporter: "prometheus",
		SampleRatio:    1.0,
	}
}

// InitializeOTel initializes tracing and metrics providers.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentName(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{Logger: logger}

	if err := initializeTracing(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := initializeMetrics(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter))

	return providers, nil
}

func initializeTracing(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	if cfg.TraceExporter == "none" {
		return nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)
	return nil
}

func initializeMetrics(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	if cfg.MetricExporter == "none" {
		return nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	providers.PrometheusHTTP = promhttp.Handler()

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	providers.MeterProvider = mp
	providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetMeterProvider(mp)
	return nil
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
