package departments

import (
	"context"
	"fmt"

	"github.com/neuracraft/atlas/internal/shared"
)

// Service handles department business logic.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]Department, error) {
	departments, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	if departments == nil {
		departments = []Department{}
	}
	return departments, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Department, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, d Department) (Department, error) {
	if d.Name == "" || d.Code == "" {
		return Department{}, fmt.Errorf("name and code are required: %w", shared.ErrValidation)
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) Update(ctx context.Context, id int64, d Department) (Department, error) {
	if d.Name == "" || d.Code == "" {
		return Department{}, fmt.Errorf("name and code are required: %w", shared.ErrValidation)
	}
	return s.repo.Update(ctx, id, d)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
