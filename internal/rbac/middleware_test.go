package rbac

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neuracraft/atlas/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requestWithUser(t *testing.T, userID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/employees", nil)
	sess := &shared.Session{}
	sess.SetUser(userID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	mw := NewMiddleware(discardLogger(), NewService(seededRepo(), nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/employees", nil)
	mw.RequireAuth(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthPassesSessionUser(t *testing.T) {
	mw := NewMiddleware(discardLogger(), NewService(seededRepo(), nil))

	rec := httptest.NewRecorder()
	mw.RequireAuth(okHandler()).ServeHTTP(rec, requestWithUser(t, "7"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireCapabilityForbidsMissingGrant(t *testing.T) {
	repo := seededRepo()
	repo.userRoles[7] = []int64{1}
	repo.memberships[1] = map[int64][]int64{100: {1}} // view only
	mw := NewMiddleware(discardLogger(), NewService(repo, nil))

	rec := httptest.NewRecorder()
	mw.RequireCapability("/employees", "add")(okHandler()).ServeHTTP(rec, requestWithUser(t, "7"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireCapabilityAllowsGrantedUser(t *testing.T) {
	repo := seededRepo()
	repo.userRoles[7] = []int64{1}
	repo.memberships[1] = map[int64][]int64{100: {2}}
	mw := NewMiddleware(discardLogger(), NewService(repo, nil))

	rec := httptest.NewRecorder()
	mw.RequireCapability("/employees", "add")(okHandler()).ServeHTTP(rec, requestWithUser(t, "7"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireCapabilityRejectsMalformedUser(t *testing.T) {
	mw := NewMiddleware(discardLogger(), NewService(seededRepo(), nil))

	rec := httptest.NewRecorder()
	mw.RequireCapability("/employees", "view")(okHandler()).ServeHTTP(rec, requestWithUser(t, "not-a-number"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
