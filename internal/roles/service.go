package roles

import (
	"context"
	"fmt"

	"github.com/neuracraft/atlas/internal/shared"
)

// ChangeNotifier is told when roles change in ways that can affect resolved
// menus, deactivation included.
type ChangeNotifier interface {
	GrantsChanged(ctx context.Context) error
}

// Service handles role business logic.
type Service struct {
	repo     Repository
	notifier ChangeNotifier
}

func NewService(repo Repository, notifier ChangeNotifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Role, error) {
	roles, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, role Role) (Role, error) {
	if role.Name == "" {
		return Role{}, fmt.Errorf("name is required: %w", shared.ErrValidation)
	}
	created, err := s.repo.Create(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.notifyChanged(ctx)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, role Role) (Role, error) {
	if role.Name == "" {
		return Role{}, fmt.Errorf("name is required: %w", shared.ErrValidation)
	}
	updated, err := s.repo.Update(ctx, id, role)
	if err != nil {
		return Role{}, err
	}
	s.notifyChanged(ctx)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notifyChanged(ctx)
	return nil
}

func (s *Service) notifyChanged(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.GrantsChanged(ctx)
}
