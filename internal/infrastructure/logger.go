package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sitepulse/internal/config"
)

type traceIDKey struct{}

// WithTraceID stores the request trace ID on the context so every log
// record written with that context carries it.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// GetTraceID returns the trace ID stored on the context, or "".
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

var (
	initOnce sync.Once
	logFile  *os.File
	fileMu   sync.Mutex
)

// InitializeLogger builds the application logger from LoggingConfig and
// installs it as the slog default. Called once at startup; repeated
// calls return the already-installed logger.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	initOnce.Do(func() {
		var logger *slog.Logger
		logger, err = buildLogger(cfg)
		if err == nil {
			slog.SetDefault(logger)
		}
	})
	if err != nil {
		return nil, err
	}
	return slog.Default(), nil
}

// CloseLogFile flushes and closes the log file, when file output is
// configured. Part of graceful shutdown.
func CloseLogFile() {
	fileMu.Lock()
	defer fileMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	output, err := logDestination(cfg)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     levelFromString(cfg.Level),
		AddSource: cfg.Development,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(&tracingHandler{inner: handler}), nil
}

// logDestination resolves the configured output: console, a log file,
// or both (multi-writer).
func logDestination(cfg config.LoggingConfig) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "file":
		f, err := appendFile(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		return f, nil
	case "both":
		f, err := appendFile(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		return io.MultiWriter(os.Stdout, f), nil
	default:
		return os.Stdout, nil
	}
}

func appendFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func levelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// tracingHandler decorates every record with the trace_id from the
// context, so handlers and services never pass it explicitly.
type tracingHandler struct {
	inner slog.Handler
}

func (h *tracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *tracingHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *tracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &tracingHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *tracingHandler) WithGroup(name string) slog.Handler {
	return &tracingHandler{inner: h.inner.WithGroup(name)}
}
