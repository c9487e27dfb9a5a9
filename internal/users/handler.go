package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/neuracraft/atlas/internal/platform/httpx"
	"github.com/neuracraft/atlas/internal/rbac"
)

// Handler exposes the user management API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: mw}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/users", "view"))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/users", "add"))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/users", "edit"))
		r.Put("/{id}", h.update)
		r.Put("/{id}/password", h.changePassword)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/users", "assign_roles"))
		r.Put("/{id}/roles", h.setRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/users", "delete"))
		r.Delete("/{id}", h.remove)
	})
}

type createUserRequest struct {
	Email      string `json:"email" validate:"required,email,max=200"`
	Name       string `json:"name" validate:"required,max=200"`
	Password   string `json:"password" validate:"required,min=8"`
	Phone      string `json:"phone" validate:"max=50"`
	EmployeeID string `json:"employee_id" validate:"max=50"`
	Department *int64 `json:"department" validate:"omitempty,gt=0"`
	IsActive   *bool  `json:"is_active"`
}

type updateUserRequest struct {
	Email      string `json:"email" validate:"required,email,max=200"`
	Name       string `json:"name" validate:"required,max=200"`
	Phone      string `json:"phone" validate:"max=50"`
	EmployeeID string `json:"employee_id" validate:"max=50"`
	Department *int64 `json:"department" validate:"omitempty,gt=0"`
	IsActive   *bool  `json:"is_active"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

type setRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"required,dive,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	created, err := h.service.Create(r.Context(), User{
		Email:        req.Email,
		Name:         req.Name,
		Phone:        req.Phone,
		EmployeeID:   req.EmployeeID,
		DepartmentID: req.Department,
		IsActive:     active,
	}, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	updated, err := h.service.Update(r.Context(), id, User{
		Email:        req.Email,
		Name:         req.Name,
		Phone:        req.Phone,
		EmployeeID:   req.EmployeeID,
		DepartmentID: req.Department,
		IsActive:     active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ChangePassword(r.Context(), id, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) setRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req setRolesRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.SetRoles(r.Context(), id, req.RoleIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
