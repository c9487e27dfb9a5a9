package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/neuracraft/atlas/internal/platform/httpx"
	"github.com/neuracraft/atlas/internal/shared"
)

// ResolutionObserver records menu resolution outcomes for metrics.
type ResolutionObserver interface {
	ObserveResolution(outcome string)
}

// Handler serves the resolved menu and the role grant endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	cache    *MenuCache
	validate *validator.Validate
	observer ResolutionObserver
	group    singleflight.Group
}

func NewHandler(logger *slog.Logger, service *Service, cache *MenuCache, observer ResolutionObserver) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		cache:    cache,
		validate: validator.New(),
		observer: observer,
	}
}

// MountMenuRoutes registers the menu endpoint. Callers wrap it with the auth
// middleware.
func (h *Handler) MountMenuRoutes(r chi.Router) {
	r.Get("/", h.menu)
}

// MountGrantRoutes registers the role grant endpoints under /{roleID}.
func (h *Handler) MountGrantRoutes(r chi.Router) {
	r.Get("/{id}/permissions", h.assignments)
	r.Post("/{id}/permissions", h.setGrants)
}

func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	userID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	roleIDs, err := h.service.repo.GetUserRoleIDs(r.Context(), userID)
	if err != nil {
		h.observe("error")
		h.logger.Error("load user roles", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}

	menu, err := h.resolveCached(r.Context(), roleIDs)
	if err != nil {
		h.observe("error")
		h.logger.Error("resolve menu", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	h.observe("ok")
	httpx.JSON(w, http.StatusOK, menu)
}

// resolveCached collapses concurrent resolutions of the same role set into a
// single cache fill.
func (h *Handler) resolveCached(ctx context.Context, roleIDs []int64) ([]MenuNode, error) {
	if len(roleIDs) == 0 {
		return []MenuNode{}, nil
	}
	key, err := h.cache.MenuKey(ctx, roleIDs)
	if err != nil {
		// Cache version unavailable, resolve directly.
		return h.service.ResolveMenu(ctx, roleIDs)
	}
	result, err, _ := h.group.Do(key, func() (any, error) {
		return h.cache.FetchMenu(ctx, key, func(ctx context.Context) ([]MenuNode, error) {
			return h.service.ResolveMenu(ctx, roleIDs)
		})
	})
	if err != nil {
		return nil, err
	}
	return result.([]MenuNode), nil
}

func (h *Handler) assignments(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathRoleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	assignments, err := h.service.RoleAssignments(r.Context(), roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, assignments)
}

type grantRequest struct {
	ModuleID int64 `json:"module_id" validate:"required,gt=0"`
	// Omitting permissions clears the module's grants.
	Granted []string `json:"permissions" validate:"omitempty,dive,min=1"`
}

type setGrantsRequest struct {
	Grants []grantRequest `json:"grants" validate:"required,dive"`
}

func (h *Handler) setGrants(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathRoleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	var req setGrantsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	inputs := make([]GrantInput, 0, len(req.Grants))
	for _, grant := range req.Grants {
		inputs = append(inputs, GrantInput{ModuleID: grant.ModuleID, Granted: grant.Granted})
	}
	if err := h.service.SetRoleGrants(r.Context(), roleID, inputs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveResolution(outcome)
	}
}

func pathRoleID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
