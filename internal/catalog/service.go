package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuracraft/atlas/internal/shared"
)

// ChangeNotifier is told when the vocabulary changes so downstream caches
// (resolved menus) can be invalidated.
type ChangeNotifier interface {
	PermissionsChanged(ctx context.Context) error
}

// Service handles module catalog business logic.
type Service struct {
	repo     Repository
	notifier ChangeNotifier
}

// NewService builds a Service instance. notifier may be nil.
func NewService(repo Repository, notifier ChangeNotifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// ListTree returns root modules with their active children nested.
func (s *Service) ListTree(ctx context.Context, activeOnly bool) ([]Module, error) {
	modules, err := s.repo.ListModules(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return buildTree(modules), nil
}

// GetModule fetches a single module.
func (s *Service) GetModule(ctx context.Context, id int64) (Module, error) {
	if id <= 0 {
		return Module{}, fmt.Errorf("%w: invalid module id", shared.ErrValidation)
	}
	return s.repo.GetModule(ctx, id)
}

// CreateModule inserts a new module.
func (s *Service) CreateModule(ctx context.Context, m Module) (Module, error) {
	if err := s.validateModule(ctx, m); err != nil {
		return Module{}, err
	}
	return s.repo.CreateModule(ctx, m)
}

// CreateModuleWithPermissions inserts a module and its initial vocabulary.
func (s *Service) CreateModuleWithPermissions(ctx context.Context, m Module, perms []PermissionInput) (Module, []ModulePermission, error) {
	if err := validatePermissionInputs(perms); err != nil {
		return Module{}, nil, err
	}
	created, err := s.CreateModule(ctx, m)
	if err != nil {
		return Module{}, nil, err
	}
	for i, p := range perms {
		if p.Order == 0 {
			p.Order = i + 1
		}
		if _, err := s.repo.CreatePermission(ctx, ModulePermission{
			ModuleID: created.ID,
			Codename: p.Codename,
			Label:    p.Label,
			Category: p.Category,
			Order:    p.Order,
		}); err != nil {
			return Module{}, nil, err
		}
	}
	listed, err := s.repo.ListPermissions(ctx, created.ID)
	if err != nil {
		return Module{}, nil, err
	}
	return created, listed, nil
}

// UpdateModule updates module fields.
func (s *Service) UpdateModule(ctx context.Context, id int64, m Module) (Module, error) {
	if id <= 0 {
		return Module{}, fmt.Errorf("%w: invalid module id", shared.ErrValidation)
	}
	if m.ParentID != nil && *m.ParentID == id {
		return Module{}, fmt.Errorf("%w: module cannot be its own parent", shared.ErrValidation)
	}
	if err := s.validateModule(ctx, m); err != nil {
		return Module{}, err
	}
	updated, err := s.repo.UpdateModule(ctx, id, m)
	if err != nil {
		return Module{}, err
	}
	return updated, s.notifyChanged(ctx)
}

// DeleteModule removes a module and, by cascade, its subtree, vocabulary and
// grant edges.
func (s *Service) DeleteModule(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid module id", shared.ErrValidation)
	}
	if err := s.repo.DeleteModule(ctx, id); err != nil {
		return err
	}
	return s.notifyChanged(ctx)
}

// ListPermissions returns the module vocabulary ordered by
// (category, order, codename).
func (s *Service) ListPermissions(ctx context.Context, moduleID int64) ([]ModulePermission, error) {
	if _, err := s.repo.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	return s.repo.ListPermissions(ctx, moduleID)
}

// AddPermission registers a new capability on a module. Duplicate codenames
// for the same module are rejected.
func (s *Service) AddPermission(ctx context.Context, moduleID int64, in PermissionInput) (ModulePermission, error) {
	if err := validatePermissionInputs([]PermissionInput{in}); err != nil {
		return ModulePermission{}, err
	}
	if _, err := s.repo.GetModule(ctx, moduleID); err != nil {
		return ModulePermission{}, err
	}
	created, err := s.repo.CreatePermission(ctx, ModulePermission{
		ModuleID: moduleID,
		Codename: in.Codename,
		Label:    in.Label,
		Category: in.Category,
		Order:    in.Order,
	})
	if err != nil {
		return ModulePermission{}, err
	}
	return created, s.notifyChanged(ctx)
}

// UpdatePermission modifies an existing vocabulary entry.
func (s *Service) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (ModulePermission, error) {
	if err := validatePermissionInputs([]PermissionInput{in}); err != nil {
		return ModulePermission{}, err
	}
	updated, err := s.repo.UpdatePermission(ctx, id, in)
	if err != nil {
		return ModulePermission{}, err
	}
	return updated, s.notifyChanged(ctx)
}

// DeletePermission removes a vocabulary entry and, by cascade, any grant
// membership referencing it.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	return s.notifyChanged(ctx)
}

// ReplacePermissions swaps the module vocabulary for newSet using a diff:
// codenames kept across the call keep their ids, so grant references to
// them survive.
func (s *Service) ReplacePermissions(ctx context.Context, moduleID int64, newSet []PermissionInput) ([]ModulePermission, error) {
	if err := validatePermissionInputs(newSet); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	for i := range newSet {
		if newSet[i].Order == 0 {
			newSet[i].Order = i + 1
		}
	}
	if err := s.repo.ReplacePermissions(ctx, moduleID, newSet); err != nil {
		return nil, err
	}
	perms, err := s.repo.ListPermissions(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	return perms, s.notifyChanged(ctx)
}

// UpdateModuleWithPermissions updates the module and, when perms is non-nil,
// replaces its vocabulary in the same call.
func (s *Service) UpdateModuleWithPermissions(ctx context.Context, id int64, m Module, perms []PermissionInput) (Module, []ModulePermission, error) {
	updated, err := s.UpdateModule(ctx, id, m)
	if err != nil {
		return Module{}, nil, err
	}
	if perms == nil {
		listed, err := s.repo.ListPermissions(ctx, id)
		return updated, listed, err
	}
	listed, err := s.ReplacePermissions(ctx, id, perms)
	if err != nil {
		return Module{}, nil, err
	}
	return updated, listed, nil
}

// ListTreeWithPermissions returns active root modules with children, each
// carrying its available vocabulary. This feeds the role assignment screen.
func (s *Service) ListTreeWithPermissions(ctx context.Context) ([]ModuleWithPermissions, error) {
	modules, err := s.repo.ListModules(ctx, true)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	permsByModule, err := s.repo.ListPermissionsForModules(ctx, ids)
	if err != nil {
		return nil, err
	}
	return buildPermissionTree(modules, permsByModule), nil
}

func (s *Service) validateModule(ctx context.Context, m Module) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: module name required", shared.ErrValidation)
	}
	if strings.TrimSpace(m.Path) == "" {
		return fmt.Errorf("%w: module path required", shared.ErrValidation)
	}
	if m.ParentID != nil {
		if _, err := s.repo.GetModule(ctx, *m.ParentID); err != nil {
			return fmt.Errorf("parent module: %w", err)
		}
	}
	return nil
}

func validatePermissionInputs(perms []PermissionInput) error {
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		codename := strings.TrimSpace(p.Codename)
		if codename == "" {
			return fmt.Errorf("%w: permission codename required", shared.ErrValidation)
		}
		if !p.Category.Valid() {
			return fmt.Errorf("%w: unknown category %q", shared.ErrValidation, p.Category)
		}
		if _, dup := seen[codename]; dup {
			return fmt.Errorf("%w: codename %q repeated", shared.ErrDuplicate, codename)
		}
		seen[codename] = struct{}{}
	}
	return nil
}

func (s *Service) notifyChanged(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.PermissionsChanged(ctx)
}

func buildTree(modules []Module) []Module {
	children := make(map[int64][]Module)
	var roots []Module
	for _, m := range modules {
		if m.ParentID != nil {
			children[*m.ParentID] = append(children[*m.ParentID], m)
		}
	}
	for _, m := range modules {
		if m.ParentID == nil {
			m.Children = children[m.ID]
			roots = append(roots, m)
		}
	}
	return roots
}

func buildPermissionTree(modules []Module, perms map[int64][]ModulePermission) []ModuleWithPermissions {
	wrap := func(m Module) ModuleWithPermissions {
		available := perms[m.ID]
		if available == nil {
			available = []ModulePermission{}
		}
		return ModuleWithPermissions{
			ID:                   m.ID,
			Name:                 m.Name,
			Icon:                 m.Icon,
			Path:                 m.Path,
			ParentID:             m.ParentID,
			Order:                m.Order,
			IsActive:             m.IsActive,
			AvailablePermissions: available,
			Children:             []ModuleWithPermissions{},
		}
	}

	childrenOf := make(map[int64][]ModuleWithPermissions)
	for _, m := range modules {
		if m.ParentID != nil {
			childrenOf[*m.ParentID] = append(childrenOf[*m.ParentID], wrap(m))
		}
	}
	var roots []ModuleWithPermissions
	for _, m := range modules {
		if m.ParentID == nil {
			node := wrap(m)
			if nested := childrenOf[m.ID]; nested != nil {
				node.Children = nested
			}
			roots = append(roots, node)
		}
	}
	if roots == nil {
		roots = []ModuleWithPermissions{}
	}
	return roots
}
