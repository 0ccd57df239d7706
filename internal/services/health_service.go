package services

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"sitepulse/internal/config"
	"sitepulse/internal/store"
	"sitepulse/internal/websocket"
	"sitepulse/pkg/contracts"
)

// HealthService reports liveness and readiness for the platform.
type HealthService struct {
	store     *store.Store
	hub       *websocket.Hub
	paths     *config.Paths
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the health endpoint response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

func NewHealthService(s *store.Store, hub *websocket.Hub, paths *config.Paths, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		store:     s,
		hub:       hub,
		paths:     paths,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// Check pings the dependencies and assembles the status document.
func (s *HealthService) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		},
		Services: map[string]interface{}{},
	}

	dbStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status.Status = "degraded"
		s.logger.ErrorContext(ctx, "database health check failed",
			slog.String("error", err.Error()))
	}
	status.Services["database"] = dbStatus

	if s.hub != nil {
		status.Services["websocket"] = s.hub.Stats()
	}

	// Word and PDF exports shell out; missing tools degrade those
	// formats only, so they do not flip the overall status.
	status.Services["pandoc"] = toolStatus("pandoc")
	chromium := toolStatus("chromium-browser")
	if chromium != "available" {
		chromium = toolStatus("chromium")
	}
	status.Services["chromium"] = chromium

	if s.paths != nil {
		status.Services["reports_dir"] = s.reportsDirStatus()
	}

	return status
}

func toolStatus(name string) string {
	if _, err := exec.LookPath(name); err != nil {
		return "not installed"
	}
	return "available"
}

// reportsDirStatus probes that report artifacts can actually be written.
func (s *HealthService) reportsDirStatus() string {
	probe := filepath.Join(s.paths.ReportsDir, ".writecheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return "not writable: " + err.Error()
	}
	os.Remove(probe)
	return "writable"
}

// Ready reports whether the platform can serve traffic.
func (s *HealthService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
