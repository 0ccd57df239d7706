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
	"sitepulse/internal/jobs"
	"sitepulse/internal/middleware"
	"sitepulse/internal/services"
)

// InspectionHandler exposes CSV upload, job tracking and inspection
// retrieval endpoints.
type InspectionHandler struct {
	service      *services.InspectionService
	queryParams  *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewInspectionHandler(service *services.InspectionService, queryParams *middleware.QueryParamValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *InspectionHandler {
	return &InspectionHandler{
		service:      service,
		queryParams:  queryParams,
		logger:       logger.With(slog.String("component", "inspection_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the inspection routes. Permission middleware is
// applied by the router where these are mounted.
func (h *InspectionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.With(middleware.RequirePermission(auth.PermDataUpload, h.logger)).
		Post("/upload", h.Upload)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAnyPermission(h.logger, auth.PermDataUpload, auth.PermDataProcess))
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)
		r.Delete("/jobs/{id}", h.CancelJob)
	})

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/items", h.Items)
	r.With(middleware.RequirePermission(auth.PermDataProcess, h.logger)).
		Delete("/{id}", h.Delete)

	return r
}

// Upload handles POST /api/inspections/upload (multipart form).
func (h *InspectionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadBytes)
	file, header, err := r.FormFile(config.UploadFieldName)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest, "INVALID_UPLOAD",
			"Multipart form must carry the CSV in the '"+config.UploadFieldName+"' field",
			err.Error()))
		return
	}
	defer file.Close()

	buildingName := r.FormValue("building_name")

	job, err := h.service.Upload(r.Context(), user, header.Filename, file, buildingName)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "upload rejected",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest, "INVALID_UPLOAD", "Upload rejected", err.Error()))
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"status": "accepted",
		"job":    job,
	})
}

// ListJobs handles GET /api/inspections/jobs.
func (h *InspectionHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryParams.ValidateInt(w, r, "limit", 1, 500, 100)
	if !ok {
		return
	}
	filter := jobs.Filter{
		Status:      jobs.Status(r.URL.Query().Get("status")),
		RequestedBy: r.URL.Query().Get("requested_by"),
		Limit:       limit,
	}

	list := h.service.Jobs(filter)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"jobs":   list,
		"count":  len(list),
	})
}

// GetJob handles GET /api/inspections/jobs/{id}.
func (h *InspectionHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Job(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"job":    job,
	})
}

// CancelJob handles DELETE /api/inspections/jobs/{id}.
func (h *InspectionHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())
	if err := h.service.CancelJob(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// List handles GET /api/inspections. ?active=true restricts the list to
// each building's active inspection.
func (h *InspectionHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())
	activeOnly := r.URL.Query().Get("active") == "true"

	inspections, err := h.service.List(r.Context(), user, activeOnly)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":      "success",
		"inspections": inspections,
		"count":       len(inspections),
	})
}

// Get handles GET /api/inspections/{id}.
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	insp, err := h.service.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":     "success",
		"inspection": insp,
	})
}

// Items handles GET /api/inspections/{id}/items. ?format=csv downloads
// the item list instead of rendering JSON.
func (h *InspectionHandler) Items(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	if r.URL.Query().Get("format") == "csv" {
		result, err := h.service.ExportItemsCSV(r.Context(), user, chi.URLParam(r, "id"))
		if err != nil {
			h.errorHandler.HandleError(w, r, mapServiceError(err))
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.Write(result.Data)
		return
	}

	items, err := h.service.Items(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"items":  items,
		"count":  len(items),
	})
}

// Delete handles DELETE /api/inspections/{id}.
func (h *InspectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	if err := h.service.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}
