package users

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/neuracraft/atlas/internal/shared"
)

// ChangeNotifier is told when role membership changes so cached menus can
// invalidate.
type ChangeNotifier interface {
	GrantsChanged(ctx context.Context) error
}

// Service handles user account business logic.
type Service struct {
	repo     Repository
	notifier ChangeNotifier
}

func NewService(repo Repository, notifier ChangeNotifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, u User, password string) (User, error) {
	if u.Email == "" || password == "" {
		return User{}, fmt.Errorf("email and password are required: %w", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.repo.Create(ctx, u)
}

func (s *Service) Update(ctx context.Context, id int64, u User) (User, error) {
	if u.Email == "" {
		return User{}, fmt.Errorf("email is required: %w", shared.ErrValidation)
	}
	updated, err := s.repo.Update(ctx, id, u)
	if err != nil {
		return User{}, err
	}
	// Deactivation changes what the account can resolve.
	s.notifyChanged(ctx)
	return updated, nil
}

func (s *Service) ChangePassword(ctx context.Context, id int64, password string) error {
	if password == "" {
		return fmt.Errorf("password is required: %w", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notifyChanged(ctx)
	return nil
}

// SetRoles replaces the user's role membership with the given set.
func (s *Service) SetRoles(ctx context.Context, userID int64, roleIDs []int64) (User, error) {
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return User{}, err
	}
	if err := s.repo.ReplaceRoles(ctx, userID, roleIDs); err != nil {
		return User{}, fmt.Errorf("replace roles: %w", err)
	}
	s.notifyChanged(ctx)
	return s.repo.Get(ctx, userID)
}

func (s *Service) notifyChanged(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.GrantsChanged(ctx)
}
