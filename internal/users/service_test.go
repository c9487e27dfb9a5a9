package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/neuracraft/atlas/internal/shared"
)

type fakeRepo struct {
	users  map[int64]User
	roles  map[int64][]int64
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users: map[int64]User{},
		roles: map[int64][]int64{},
	}
}

func (r *fakeRepo) List(context.Context) ([]User, error) {
	var out []User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *fakeRepo) Get(_ context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (r *fakeRepo) Create(_ context.Context, u User) (User, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return User{}, shared.ErrDuplicate
		}
	}
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = u
	return u, nil
}

func (r *fakeRepo) Update(_ context.Context, id int64, u User) (User, error) {
	existing, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	u.ID = existing.ID
	u.PasswordHash = existing.PasswordHash
	r.users[id] = u
	return u, nil
}

func (r *fakeRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.PasswordHash = passwordHash
	r.users[id] = u
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.users, id)
	delete(r.roles, id)
	return nil
}

func (r *fakeRepo) ReplaceRoles(_ context.Context, userID int64, roleIDs []int64) error {
	r.roles[userID] = roleIDs
	return nil
}

type fakeNotifier struct {
	calls int
}

func (n *fakeNotifier) GrantsChanged(context.Context) error {
	n.calls++
	return nil
}

func TestCreateHashesPassword(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	created, err := svc.Create(context.Background(), User{Email: "a@neuracraft.dev", Name: "A", IsActive: true}, "Test@1234")
	require.NoError(t, err)

	assert.NotEqual(t, "Test@1234", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("Test@1234")))
}

func TestCreateKeepsProfileFields(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	dept := int64(3)
	created, err := svc.Create(context.Background(), User{
		Email:        "a@neuracraft.dev",
		Name:         "A",
		Phone:        "9000000001",
		EmployeeID:   "EMP001",
		DepartmentID: &dept,
		IsActive:     true,
	}, "Test@1234")
	require.NoError(t, err)

	stored := repo.users[created.ID]
	assert.Equal(t, "9000000001", stored.Phone)
	assert.Equal(t, "EMP001", stored.EmployeeID)
	require.NotNil(t, stored.DepartmentID)
	assert.EqualValues(t, 3, *stored.DepartmentID)
}

func TestCreateRequiresEmailAndPassword(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.Create(context.Background(), User{Name: "A"}, "pw")
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Create(context.Background(), User{Email: "a@neuracraft.dev"}, "")
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestSetRolesReplacesAndNotifies(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, notifier)

	created, err := svc.Create(context.Background(), User{Email: "a@neuracraft.dev", IsActive: true}, "pw")
	require.NoError(t, err)

	_, err = svc.SetRoles(context.Background(), created.ID, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, repo.roles[created.ID])
	assert.Equal(t, 1, notifier.calls)

	_, err = svc.SetRoles(context.Background(), created.ID, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, repo.roles[created.ID])
	assert.Equal(t, 2, notifier.calls)
}

func TestSetRolesUnknownUser(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.SetRoles(context.Background(), 99, []int64{1})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestUpdateNotifies(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, notifier)

	created, err := svc.Create(context.Background(), User{Email: "a@neuracraft.dev", IsActive: true}, "pw")
	require.NoError(t, err)
	require.Zero(t, notifier.calls)

	deactivated := created
	deactivated.IsActive = false
	_, err = svc.Update(context.Background(), created.ID, deactivated)
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.calls)
}

func TestChangePasswordRehashes(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	created, err := svc.Create(context.Background(), User{Email: "a@neuracraft.dev", IsActive: true}, "old")
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(context.Background(), created.ID, "new"))
	stored := repo.users[created.ID]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("old")))
}
