package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/neuracraft/atlas/internal/shared"
)

type stubRepo struct {
	users  map[string]*User
	purged int64
}

func (r *stubRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	if user, ok := r.users[email]; ok {
		return user, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) FindByID(_ context.Context, id int64) (*User, error) {
	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) CreateSession(context.Context, string, int64, time.Time, string, string) error {
	return nil
}

func (r *stubRepo) DeleteSession(context.Context, string) error { return nil }

func (r *stubRepo) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return r.purged, nil
}

func newStubRepo(t *testing.T) *stubRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	return &stubRepo{users: map[string]*User{
		"admin@neuracraft.dev":    {ID: 1, Email: "admin@neuracraft.dev", PasswordHash: string(hash), IsActive: true},
		"disabled@neuracraft.dev": {ID: 2, Email: "disabled@neuracraft.dev", PasswordHash: string(hash), IsActive: false},
	}}
}

func TestAuthenticate(t *testing.T) {
	svc := NewService(newStubRepo(t))

	user, err := svc.Authenticate(context.Background(), "admin@neuracraft.dev", "correct horse")
	require.NoError(t, err)
	assert.EqualValues(t, 1, user.ID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := NewService(newStubRepo(t))

	_, err := svc.Authenticate(context.Background(), "admin@neuracraft.dev", "wrong")
	assert.True(t, errors.Is(err, shared.ErrInvalidCredentials))
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc := NewService(newStubRepo(t))

	_, err := svc.Authenticate(context.Background(), "ghost@neuracraft.dev", "correct horse")
	assert.True(t, errors.Is(err, shared.ErrInvalidCredentials))
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	svc := NewService(newStubRepo(t))

	_, err := svc.Authenticate(context.Background(), "disabled@neuracraft.dev", "correct horse")
	assert.True(t, errors.Is(err, shared.ErrInvalidCredentials))
}

func TestUserByID(t *testing.T) {
	repo := newStubRepo(t)
	repo.users["admin@neuracraft.dev"].Name = "Admin"
	svc := NewService(repo)

	user, err := svc.UserByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "admin@neuracraft.dev", user.Email)
	assert.Equal(t, "Admin", user.Name)

	_, err = svc.UserByID(context.Background(), 99)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestPurgeExpiredSessions(t *testing.T) {
	repo := newStubRepo(t)
	repo.purged = 3
	svc := NewService(repo)

	n, err := svc.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
