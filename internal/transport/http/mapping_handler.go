package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/middleware"
	"sitepulse/internal/services"
	"sitepulse/pkg/contracts/api/v1"
	"sitepulse/pkg/contracts/domain"
)

// MappingHandler manages the active trade-mapping set.
type MappingHandler struct {
	service      *services.MappingService
	validation   *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewMappingHandler(service *services.MappingService, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MappingHandler {
	return &MappingHandler{
		service:      service,
		validation:   validation,
		logger:       logger.With(slog.String("component", "mapping_handler")),
		errorHandler: errorHandler,
	}
}

func (h *MappingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)
	r.Get("/export", h.Export)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermDataProcess, h.logger))
		r.Put("/", h.Replace)
		r.Post("/", h.Upsert)
		r.Post("/import", h.Import)
		r.Delete("/", h.Delete)
	})
	return r
}

// List handles GET /api/mappings.
func (h *MappingHandler) List(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":   "success",
		"mappings": mappings,
		"count":    len(mappings),
	})
}

// Replace handles PUT /api/mappings, swapping the whole active set.
func (h *MappingHandler) Replace(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	var req v1.ReplaceMappingsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	mappings := make([]domain.TradeMapping, len(req.Mappings))
	for i, m := range req.Mappings {
		mappings[i] = domain.TradeMapping{
			Room:      m.Room,
			Component: m.Component,
			Trade:     m.Trade,
		}
	}

	if err := h.service.Replace(r.Context(), user, mappings); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"count":  len(mappings),
	})
}

// Upsert handles POST /api/mappings for a single entry.
func (h *MappingHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	var req v1.TradeMappingEntry
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	m := domain.TradeMapping{Room: req.Room, Component: req.Component, Trade: req.Trade}
	if err := h.service.Upsert(r.Context(), user, m); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"mapping": m,
	})
}

// Export handles GET /api/mappings/export, streaming the active set as
// a CSV download.
func (h *MappingHandler) Export(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ExportCSV(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Write(result.Data)
}

// Import handles POST /api/mappings/import with a multipart CSV upload.
// The uploaded set replaces the active mappings atomically.
func (h *MappingHandler) Import(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadBytes)
	file, _, err := r.FormFile(config.UploadFieldName)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer file.Close()

	count, err := h.service.ImportCSV(r.Context(), user, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"count":  count,
	})
}

// Delete handles DELETE /api/mappings?room=...&component=...
func (h *MappingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	room := r.URL.Query().Get("room")
	component := r.URL.Query().Get("component")
	if room == "" || component == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("room",
			"room and component query parameters are required"))
		return
	}

	if err := h.service.Delete(r.Context(), user, room, component); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}
