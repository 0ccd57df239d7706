package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/middleware"
	"sitepulse/internal/services"
	"sitepulse/pkg/contracts/api/v1"
	"sitepulse/pkg/contracts/domain"
)

// HierarchyHandler manages the portfolio, project and building tree.
type HierarchyHandler struct {
	service      *services.HierarchyService
	validation   *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewHierarchyHandler(service *services.HierarchyService, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *HierarchyHandler {
	return &HierarchyHandler{
		service:      service,
		validation:   validation,
		logger:       logger.With(slog.String("component", "hierarchy_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the read routes available to any authenticated user.
// Write routes are in AdminRoutes.
func (h *HierarchyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/portfolios", h.ListPortfolios)
	r.Get("/portfolios/{id}", h.GetPortfolio)
	r.Get("/projects", h.ListProjects)
	r.Get("/projects/{id}", h.GetProject)
	r.Get("/buildings", h.ListBuildings)
	r.Get("/buildings/{id}", h.GetBuilding)
	return r
}

// AdminRoutes returns the mutating routes, mounted behind the building
// administration permission.
func (h *HierarchyHandler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/portfolios", h.CreatePortfolio)
	r.Delete("/portfolios/{id}", h.DeletePortfolio)
	r.Post("/projects", h.CreateProject)
	r.Delete("/projects/{id}", h.DeleteProject)
	r.Post("/buildings", h.CreateBuilding)
	r.Delete("/buildings/{id}", h.DeleteBuilding)
	return r
}

func (h *HierarchyHandler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())

	var req v1.PortfolioRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	created, err := h.service.CreatePortfolio(r.Context(), actor, domain.Portfolio{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status":    "success",
		"portfolio": created,
	})
}

func (h *HierarchyHandler) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.service.ListPortfolios(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":     "success",
		"portfolios": portfolios,
		"count":      len(portfolios),
	})
}

func (h *HierarchyHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPortfolio(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":    "success",
		"portfolio": p,
	})
}

func (h *HierarchyHandler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())
	if err := h.service.DeletePortfolio(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

func (h *HierarchyHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())

	var req v1.ProjectRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	created, err := h.service.CreateProject(r.Context(), actor, domain.Project{
		PortfolioID: req.PortfolioID,
		Name:        req.Name,
		Description: req.Description,
		Manager:     req.Manager,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"project": created,
	})
}

// ListProjects handles GET /api/projects?portfolio_id=...
func (h *HierarchyHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context(), r.URL.Query().Get("portfolio_id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":   "success",
		"projects": projects,
		"count":    len(projects),
	})
}

func (h *HierarchyHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"project": p,
	})
}

func (h *HierarchyHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())
	if err := h.service.DeleteProject(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

func (h *HierarchyHandler) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())

	var req v1.BuildingRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	created, err := h.service.CreateBuilding(r.Context(), actor, domain.Building{
		ProjectID:    req.ProjectID,
		Name:         req.Name,
		Address:      req.Address,
		TotalUnits:   req.TotalUnits,
		BuildingType: req.BuildingType,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status":   "success",
		"building": created,
	})
}

// ListBuildings handles GET /api/buildings?project_id=..., scoped to
// the caller's visible buildings.
func (h *HierarchyHandler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	buildings, err := h.service.ListBuildings(r.Context(), user, r.URL.Query().Get("project_id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":    "success",
		"buildings": buildings,
		"count":     len(buildings),
	})
}

func (h *HierarchyHandler) GetBuilding(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBuilding(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":   "success",
		"building": b,
	})
}

func (h *HierarchyHandler) DeleteBuilding(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())
	if err := h.service.DeleteBuilding(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}
