package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/neuracraft/atlas/internal/platform/httpx"
	"github.com/neuracraft/atlas/internal/rbac"
)

// Handler exposes the module catalog management API.
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

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/modules", "view"))
		r.Get("/", h.listModules)
		r.Get("/all-with-permissions", h.listModulesWithPermissions)
		r.Get("/{id}", h.getModule)
		r.Get("/{id}/with-permissions", h.getModuleWithPermissions)
		r.Get("/{id}/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/modules", "add"))
		r.Post("/", h.createModule)
		r.Post("/create-with-permissions", h.createModuleWithPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/modules", "edit"))
		r.Put("/{id}", h.updateModule)
		r.Put("/{id}/update-with-permissions", h.updateModuleWithPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/modules", "delete"))
		r.Delete("/{id}", h.deleteModule)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability("/modules", "manage_permissions"))
		r.Post("/{id}/permissions", h.addPermission)
		r.Put("/permissions/{id}", h.updatePermission)
		r.Delete("/permissions/{id}", h.deletePermission)
	})
}

type moduleRequest struct {
	Name        string              `json:"name" validate:"required,max=100"`
	Icon        string              `json:"icon" validate:"max=50"`
	Path        string              `json:"path" validate:"required,max=200"`
	Parent      *int64              `json:"parent"`
	Order       int                 `json:"order"`
	IsActive    *bool               `json:"is_active"`
	Permissions []permissionRequest `json:"permissions"`
}

type permissionRequest struct {
	Codename string `json:"codename" validate:"required,max=100"`
	Label    string `json:"label" validate:"required,max=200"`
	Category string `json:"category" validate:"omitempty,oneof=crud column component action field"`
	Order    int    `json:"order"`
}

func (req moduleRequest) module() Module {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Module{
		Name:     req.Name,
		Icon:     req.Icon,
		Path:     req.Path,
		ParentID: req.Parent,
		Order:    req.Order,
		IsActive: active,
	}
}

func (req moduleRequest) permissionInputs() []PermissionInput {
	if req.Permissions == nil {
		return nil
	}
	inputs := make([]PermissionInput, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		inputs = append(inputs, p.input())
	}
	return inputs
}

func (p permissionRequest) input() PermissionInput {
	category := Category(p.Category)
	if p.Category == "" {
		category = CategoryCRUD
	}
	return PermissionInput{
		Codename: p.Codename,
		Label:    p.Label,
		Category: category,
		Order:    p.Order,
	}
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.ListTree(r.Context(), false)
	if err != nil {
		h.logger.Error("list modules", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if tree == nil {
		tree = []Module{}
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) listModulesWithPermissions(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.ListTreeWithPermissions(r.Context())
	if err != nil {
		h.logger.Error("list modules with permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) getModule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	module, err := h.service.GetModule(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, module)
}

type moduleWithPermissionsResponse struct {
	Module
	Permissions []ModulePermission `json:"permissions"`
}

func (h *Handler) getModuleWithPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	module, err := h.service.GetModule(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.service.ListPermissions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []ModulePermission{}
	}
	httpx.JSON(w, http.StatusOK, moduleWithPermissionsResponse{Module: module, Permissions: perms})
}

func (h *Handler) createModule(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeModule(w, r)
	if !ok {
		return
	}
	created, err := h.service.CreateModule(r.Context(), req.module())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) createModuleWithPermissions(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeModule(w, r)
	if !ok {
		return
	}
	created, perms, err := h.service.CreateModuleWithPermissions(r.Context(), req.module(), req.permissionInputs())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, moduleWithPermissionsResponse{Module: created, Permissions: perms})
}

func (h *Handler) updateModule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := h.decodeModule(w, r)
	if !ok {
		return
	}
	updated, err := h.service.UpdateModule(r.Context(), id, req.module())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) updateModuleWithPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := h.decodeModule(w, r)
	if !ok {
		return
	}
	updated, perms, err := h.service.UpdateModuleWithPermissions(r.Context(), id, req.module(), req.permissionInputs())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, moduleWithPermissionsResponse{Module: updated, Permissions: perms})
}

func (h *Handler) deleteModule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteModule(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	perms, err := h.service.ListPermissions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []ModulePermission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) addPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.AddPermission(r.Context(), id, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.UpdatePermission(r.Context(), id, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decodeModule(w http.ResponseWriter, r *http.Request) (moduleRequest, bool) {
	var req moduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return moduleRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return moduleRequest{}, false
	}
	return req, true
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
