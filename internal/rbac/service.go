package rbac

import (
	"context"
	"fmt"

	"github.com/neuracraft/atlas/internal/shared"
)

// ChangeNotifier is told whenever the grant graph changes, so dependent
// caches can invalidate.
type ChangeNotifier interface {
	GrantsChanged(ctx context.Context) error
}

// Service resolves menus and capabilities and manages the grant graph.
type Service struct {
	repo     Repository
	notifier ChangeNotifier
}

func NewService(repo Repository, notifier ChangeNotifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// ResolveMenu computes the navigation tree for a set of roles. An empty role
// set resolves to an empty menu without touching storage.
func (s *Service) ResolveMenu(ctx context.Context, roleIDs []int64) ([]MenuNode, error) {
	if len(roleIDs) == 0 {
		return []MenuNode{}, nil
	}
	edges, err := s.repo.GetGrantEdges(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("load grant edges: %w", err)
	}
	return BuildMenu(edges), nil
}

// ResolveMenuForUser resolves the menu from the user's active role set.
func (s *Service) ResolveMenuForUser(ctx context.Context, userID int64) ([]MenuNode, error) {
	roleIDs, err := s.repo.GetUserRoleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user roles: %w", err)
	}
	return s.ResolveMenu(ctx, roleIDs)
}

// HasCapability reports whether any of the roles grants the codename on the
// module at the given path. Unlike menu resolution there is no view gate: a
// grant counts even when "view" was never granted.
func (s *Service) HasCapability(ctx context.Context, roleIDs []int64, modulePath, codename string) (bool, error) {
	if len(roleIDs) == 0 {
		return false, nil
	}
	moduleID, err := s.repo.GetModuleIDByPath(ctx, modulePath)
	if err != nil {
		return false, fmt.Errorf("look up module %q: %w", modulePath, err)
	}
	if moduleID == 0 {
		return false, nil
	}
	codenames, err := s.repo.GetModuleCodenames(ctx, roleIDs, moduleID)
	if err != nil {
		return false, fmt.Errorf("load module grants: %w", err)
	}
	_, ok := MergeCodenames(codenames)[codename]
	return ok, nil
}

// HasCapabilityForUser checks a capability against the user's role set.
func (s *Service) HasCapabilityForUser(ctx context.Context, userID int64, modulePath, codename string) (bool, error) {
	roleIDs, err := s.repo.GetUserRoleIDs(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load user roles: %w", err)
	}
	return s.HasCapability(ctx, roleIDs, modulePath, codename)
}

// SetGrants replaces the permission set of one (role, module) edge. The
// GrantAll sentinel expands to every codename the module has right now;
// codenames unknown to the module vocabulary are dropped silently.
func (s *Service) SetGrants(ctx context.Context, roleID int64, input GrantInput) error {
	if err := s.setGrants(ctx, roleID, input); err != nil {
		return err
	}
	s.notifyChanged(ctx)
	return nil
}

// SetRoleGrants replaces grants on several modules for one role in a single
// call, notifying once.
func (s *Service) SetRoleGrants(ctx context.Context, roleID int64, inputs []GrantInput) error {
	for _, input := range inputs {
		if err := s.setGrants(ctx, roleID, input); err != nil {
			return err
		}
	}
	s.notifyChanged(ctx)
	return nil
}

func (s *Service) setGrants(ctx context.Context, roleID int64, input GrantInput) error {
	ok, err := s.repo.RoleExists(ctx, roleID)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !ok {
		return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
	}
	ok, err = s.repo.ModuleExists(ctx, input.ModuleID)
	if err != nil {
		return fmt.Errorf("check module: %w", err)
	}
	if !ok {
		return fmt.Errorf("module %d: %w", input.ModuleID, shared.ErrNotFound)
	}

	permissionIDs, err := s.resolveGranted(ctx, input)
	if err != nil {
		return err
	}
	if err := s.repo.ReplaceGrantMembership(ctx, roleID, input.ModuleID, permissionIDs); err != nil {
		return fmt.Errorf("replace grants: %w", err)
	}
	return nil
}

func (s *Service) resolveGranted(ctx context.Context, input GrantInput) ([]int64, error) {
	for _, codename := range input.Granted {
		if codename == GrantAll {
			ids, err := s.repo.AllPermissionIDs(ctx, input.ModuleID)
			if err != nil {
				return nil, fmt.Errorf("expand grant-all: %w", err)
			}
			return ids, nil
		}
	}
	if len(input.Granted) == 0 {
		return []int64{}, nil
	}
	ids, err := s.repo.ResolvePermissionIDs(ctx, input.ModuleID, input.Granted)
	if err != nil {
		return nil, fmt.Errorf("resolve codenames: %w", err)
	}
	return ids, nil
}

// RoleAssignments returns every active module with its vocabulary and the
// role's current grants, shaped as a tree for the assignment screen.
func (s *Service) RoleAssignments(ctx context.Context, roleID int64) ([]ModuleAssignment, error) {
	ok, err := s.repo.RoleExists(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("check role: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
	}
	assignments, err := s.repo.ListAssignments(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

func (s *Service) notifyChanged(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.GrantsChanged(ctx)
}
