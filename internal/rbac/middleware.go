package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/neuracraft/atlas/internal/platform/httpx"
	"github.com/neuracraft/atlas/internal/shared"
)

// Middleware authorises requests against the grant graph using the session
// user's roles.
type Middleware struct {
	logger *slog.Logger
	svc    *Service
}

func NewMiddleware(logger *slog.Logger, svc *Service) Middleware {
	return Middleware{logger: logger, svc: svc}
}

// RequireAuth rejects requests without an authenticated session.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.sessionUser(r); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability rejects requests whose session user lacks the codename
// on the module at the given path.
func (m Middleware) RequireCapability(modulePath, codename string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := m.sessionUser(r)
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			allowed, err := m.svc.HasCapabilityForUser(r.Context(), userID, modulePath, codename)
			if err != nil {
				m.logger.Error("capability check failed",
					slog.Int64("user_id", userID),
					slog.String("module", modulePath),
					slog.String("codename", codename),
					slog.String("error", err.Error()))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "authorisation unavailable")
				return
			}
			if !allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission "+codename+" on "+modulePath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) sessionUser(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := sess.User()
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
