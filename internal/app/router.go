package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuracraft/atlas/internal/auth"
	"github.com/neuracraft/atlas/internal/catalog"
	"github.com/neuracraft/atlas/internal/departments"
	"github.com/neuracraft/atlas/internal/observability"
	"github.com/neuracraft/atlas/internal/rbac"
	"github.com/neuracraft/atlas/internal/roles"
	"github.com/neuracraft/atlas/internal/shared"
	"github.com/neuracraft/atlas/internal/users"
	"github.com/neuracraft/atlas/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	CatalogHandler     *catalog.Handler
	DepartmentsHandler *departments.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	RBACHandler        *rbac.Handler
	JobHandler         *jobs.Handler
	Pool               *pgxpool.Pool
	RBACMiddleware     rbac.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Atlas defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", params.AuthHandler.MountRoutes)

		api.Group(func(authed chi.Router) {
			authed.Use(params.RBACMiddleware.RequireAuth)

			authed.Route("/menu", params.RBACHandler.MountMenuRoutes)
			authed.Route("/modules", params.CatalogHandler.MountRoutes)
			authed.Route("/departments", params.DepartmentsHandler.MountRoutes)
			authed.Route("/users", params.UsersHandler.MountRoutes)

			authed.Route("/roles", func(rr chi.Router) {
				params.RolesHandler.MountRoutes(rr)
				rr.Group(func(grants chi.Router) {
					grants.Use(params.RBACMiddleware.RequireCapability("/roles", "assign_permissions"))
					params.RBACHandler.MountGrantRoutes(grants)
				})
			})

			if params.JobHandler != nil {
				authed.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
