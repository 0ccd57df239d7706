package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/middleware"
	"sitepulse/internal/services"
	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/api/v1"
	"sitepulse/pkg/contracts/domain"
)

// DefectHandler exposes the defect rectification workflow.
type DefectHandler struct {
	service      *services.DefectService
	validation   *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewDefectHandler(service *services.DefectService, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DefectHandler {
	return &DefectHandler{
		service:      service,
		validation:   validation,
		logger:       logger.With(slog.String("component", "defect_handler")),
		errorHandler: errorHandler,
	}
}

func (h *DefectHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.defectIDCtx)
		r.Get("/", h.Get)
		r.Put("/status", h.UpdateStatus)
		r.Put("/assign", h.Assign)
		r.Get("/history", h.History)
	})
	return r
}

type defectIDKey struct{}

func contextWithDefectID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, defectIDKey{}, id)
}

func defectIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(defectIDKey{}).(int64)
	return id
}

// defectIDCtx validates the {id} path parameter once for the subtree.
func (h *DefectHandler) defectIDCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "must be a positive integer"))
			return
		}
		ctx := contextWithDefectID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// List handles GET /api/defects with optional filters.
func (h *DefectHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	q := r.URL.Query()
	filter := store.DefectFilter{
		InspectionID: q.Get("inspection_id"),
		Status:       domain.DefectStatus(q.Get("status")),
		AssignedTo:   q.Get("assigned_to"),
		Trade:        q.Get("trade"),
		Unit:         q.Get("unit"),
	}

	defects, err := h.service.List(r.Context(), user, filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"defects": defects,
		"count":   len(defects),
	})
}

// Get handles GET /api/defects/{id}.
func (h *DefectHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	defect, err := h.service.Get(r.Context(), user, defectIDFromContext(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"defect": defect,
	})
}

// UpdateStatus handles PUT /api/defects/{id}/status.
func (h *DefectHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	var req v1.DefectUpdateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	defect, err := h.service.UpdateStatus(r.Context(), user,
		defectIDFromContext(r.Context()), domain.DefectStatus(req.Status), req.Note)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"defect": defect,
	})
}

// Assign handles PUT /api/defects/{id}/assign.
func (h *DefectHandler) Assign(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	var req struct {
		AssignedTo string `json:"assigned_to" validate:"required,min=3,max=32"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	defect, err := h.service.Assign(r.Context(), user, defectIDFromContext(r.Context()), req.AssignedTo)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"defect": defect,
	})
}

// History handles GET /api/defects/{id}/history.
func (h *DefectHandler) History(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	history, err := h.service.History(r.Context(), user, defectIDFromContext(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"history": history,
		"count":   len(history),
	})
}
