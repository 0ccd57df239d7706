package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/export"
	"sitepulse/internal/middleware"
	"sitepulse/internal/services"
)

// ReportHandler streams generated report artifacts and serves the
// portfolio summary.
type ReportHandler struct {
	service      *services.ReportService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewReportHandler(service *services.ReportService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ReportHandler {
	return &ReportHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "report_handler")),
		errorHandler: errorHandler,
	}
}

func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/portfolio", h.Portfolio)
	r.Get("/{building}/{format}", h.Download)
	return r
}

// Download handles GET /api/reports/{building}/{format} and streams the
// artifact as an attachment.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return
	}

	building := chi.URLParam(r, "building")
	if unescaped, err := url.PathUnescape(building); err == nil {
		building = unescaped
	}
	format := export.Format(chi.URLParam(r, "format"))

	result, err := h.service.Generate(r.Context(), user, building, format)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		h.logger.WarnContext(r.Context(), "report download interrupted",
			slog.String("filename", result.Filename),
			slog.String("error", err.Error()))
	}
}

// Portfolio handles GET /api/reports/portfolio.
func (h *ReportHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	summary, err := h.service.Portfolio(r.Context(), user)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"summary": summary,
	})
}
