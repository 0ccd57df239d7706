package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/services"
	"sitepulse/pkg/contracts"
)

// HealthHandler serves the unauthenticated liveness, readiness and
// version endpoints.
type HealthHandler struct {
	service      *services.HealthService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewHealthHandler(service *services.HealthService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *HealthHandler {
	return &HealthHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "health_handler")),
		errorHandler: errorHandler,
	}
}

func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	r.Get("/version", h.Version)
	return r
}

// Health handles GET /healthz. Degraded dependencies still return 200
// so orchestrators don't restart a partially working instance.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Check(r.Context()))
}

// Ready handles GET /readyz.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ready(r.Context()); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrServiceUnavailable)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "ready"})
}

// Version handles GET /version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, contracts.CurrentBuild())
}
