package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sitepulse/internal/auth"
	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/middleware"
	"sitepulse/internal/services"
	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/api/v1"
	"sitepulse/pkg/contracts/domain"
)

// UserHandler covers account administration, access grants and the
// audit trail.
type UserHandler struct {
	service      *services.UserService
	validation   *middleware.ValidationMiddleware
	queryParams  *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewUserHandler(service *services.UserService, validation *middleware.ValidationMiddleware, queryParams *middleware.QueryParamValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *UserHandler {
	return &UserHandler{
		service:      service,
		validation:   validation,
		queryParams:  queryParams,
		logger:       logger.With(slog.String("component", "user_handler")),
		errorHandler: errorHandler,
	}
}

func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.With(middleware.RequirePermission(auth.PermUsersViewAll, h.logger)).Get("/", h.List)
	r.With(middleware.RequirePermission(auth.PermUsersCreate, h.logger)).Post("/", h.Create)
	r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.logger)).Get("/audit", h.Audit)
	r.Route("/{username}", func(r chi.Router) {
		// Get and password allow self-service; the handler and service
		// enforce the self-or-admin rule.
		r.Get("/", h.Get)
		r.Post("/password", h.ChangePassword)
		r.With(middleware.RequirePermission(auth.PermUsersEdit, h.logger)).Put("/", h.Update)
		r.With(middleware.RequirePermission(auth.PermUsersDelete, h.logger)).Delete("/", h.Deactivate)
		r.With(middleware.RequirePermission(auth.PermUsersViewAll, h.logger)).Get("/grants", h.Grants)
		r.With(middleware.RequirePermission(auth.PermUsersEdit, h.logger)).Post("/grants", h.Grant)
		r.With(middleware.RequirePermission(auth.PermUsersEdit, h.logger)).Delete("/grants", h.Revoke)
	})
	return r
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"users":  users,
		"count":  len(users),
	})
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())

	var req v1.CreateUserRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	u := domain.User{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Role:     domain.Role(req.Role),
	}
	if err := h.service.Create(r.Context(), actor, u, req.Password); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	created, err := h.service.Get(r.Context(), req.Username)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"user":   created,
	})
}

// Get handles GET /api/users/{username}. Users may always view their
// own account.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())
	username := chi.URLParam(r, "username")
	if actor.Username != username && !auth.Can(actor.Role, auth.PermUsersViewAll) {
		h.errorHandler.HandleError(w, r, apierrors.ErrForbidden)
		return
	}

	user, err := h.service.Get(r.Context(), username)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"user":   user,
	})
}

// Update handles PUT /api/users/{username}. Omitted fields keep their
// current value.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())
	username := chi.URLParam(r, "username")

	var req v1.UpdateUserRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	current, err := h.service.Get(r.Context(), username)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	if req.FullName != nil {
		current.FullName = *req.FullName
	}
	if req.Email != nil {
		current.Email = *req.Email
	}
	if req.Role != nil {
		current.Role = domain.Role(*req.Role)
	}
	if req.IsActive != nil {
		current.IsActive = *req.IsActive
	}

	if err := h.service.Update(r.Context(), actor, current); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"user":   current,
	})
}

// Deactivate handles DELETE /api/users/{username}.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())

	if err := h.service.Deactivate(r.Context(), actor, chi.URLParam(r, "username")); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// ChangePassword handles POST /api/users/{username}/password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())
	username := chi.URLParam(r, "username")

	var req v1.ChangePasswordRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	// Admins resetting another account may omit the current password.
	if actor.Role == domain.RoleAdmin && actor.Username != username {
		req.CurrentPassword = "-"
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), actor, username, req.CurrentPassword, req.NewPassword); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// Grants handles GET /api/users/{username}/grants.
func (h *UserHandler) Grants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.Grants(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"grants": grants,
		"count":  len(grants),
	})
}

// Grant handles POST /api/users/{username}/grants.
func (h *UserHandler) Grant(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())
	username := chi.URLParam(r, "username")

	var req v1.GrantAccessRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	req.Username = username
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	grant := store.AccessGrant{
		Username:     username,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Level:        req.Level,
	}
	if err := h.service.Grant(r.Context(), actor, grant); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// Revoke handles DELETE /api/users/{username}/grants?resource_type=...&resource_id=...
func (h *UserHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())
	username := chi.URLParam(r, "username")

	resourceType := r.URL.Query().Get("resource_type")
	resourceID := r.URL.Query().Get("resource_id")
	if resourceType == "" || resourceID == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("resource_type",
			"resource_type and resource_id query parameters are required"))
		return
	}

	if err := h.service.Revoke(r.Context(), actor, username, resourceType, resourceID); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// Audit handles GET /api/users/audit.
func (h *UserHandler) Audit(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentUser(r.Context())

	limit, ok := h.queryParams.ValidateInt(w, r, "limit", 1, 1000, 200)
	if !ok {
		return
	}
	offset, ok := h.queryParams.ValidateInt(w, r, "offset", 0, 1<<30, 0)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := store.AuditFilter{
		Username: q.Get("username"),
		Action:   q.Get("action"),
		Limit:    limit,
		Offset:   offset,
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("since", "must be RFC 3339"))
			return
		}
		filter.Since = t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("until", "must be RFC 3339"))
			return
		}
		filter.Until = t
	}

	entries, err := h.service.Audit(r.Context(), actor, filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"entries": entries,
		"count":   len(entries),
	})
}
