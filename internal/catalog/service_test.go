package catalog

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuracraft/atlas/internal/shared"
)

type mockRepo struct {
	modules    map[int64]Module
	perms      map[int64]ModulePermission
	nextModule int64
	nextPerm   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		modules: map[int64]Module{},
		perms:   map[int64]ModulePermission{},
	}
}

func (r *mockRepo) ListModules(_ context.Context, activeOnly bool) ([]Module, error) {
	var out []Module
	for _, m := range r.modules {
		if activeOnly && !m.IsActive {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *mockRepo) GetModule(_ context.Context, id int64) (Module, error) {
	if m, ok := r.modules[id]; ok {
		return m, nil
	}
	return Module{}, shared.ErrNotFound
}

func (r *mockRepo) CreateModule(_ context.Context, m Module) (Module, error) {
	for _, existing := range r.modules {
		if existing.Path == m.Path {
			return Module{}, shared.ErrDuplicate
		}
	}
	r.nextModule++
	m.ID = r.nextModule
	r.modules[m.ID] = m
	return m, nil
}

func (r *mockRepo) UpdateModule(_ context.Context, id int64, m Module) (Module, error) {
	existing, ok := r.modules[id]
	if !ok {
		return Module{}, shared.ErrNotFound
	}
	m.ID = existing.ID
	r.modules[id] = m
	return m, nil
}

func (r *mockRepo) DeleteModule(_ context.Context, id int64) error {
	if _, ok := r.modules[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.modules, id)
	for pid, p := range r.perms {
		if p.ModuleID == id {
			delete(r.perms, pid)
		}
	}
	return nil
}

func (r *mockRepo) ListPermissions(_ context.Context, moduleID int64) ([]ModulePermission, error) {
	var out []ModulePermission
	for _, p := range r.perms {
		if p.ModuleID == moduleID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Codename < out[j].Codename
	})
	return out, nil
}

func (r *mockRepo) ListPermissionsForModules(ctx context.Context, moduleIDs []int64) (map[int64][]ModulePermission, error) {
	out := make(map[int64][]ModulePermission)
	for _, id := range moduleIDs {
		perms, _ := r.ListPermissions(ctx, id)
		if perms != nil {
			out[id] = perms
		}
	}
	return out, nil
}

func (r *mockRepo) CreatePermission(_ context.Context, p ModulePermission) (ModulePermission, error) {
	for _, existing := range r.perms {
		if existing.ModuleID == p.ModuleID && existing.Codename == p.Codename {
			return ModulePermission{}, shared.ErrDuplicate
		}
	}
	r.nextPerm++
	p.ID = r.nextPerm
	r.perms[p.ID] = p
	return p, nil
}

func (r *mockRepo) UpdatePermission(_ context.Context, id int64, in PermissionInput) (ModulePermission, error) {
	p, ok := r.perms[id]
	if !ok {
		return ModulePermission{}, shared.ErrNotFound
	}
	p.Codename = in.Codename
	p.Label = in.Label
	p.Category = in.Category
	p.Order = in.Order
	r.perms[id] = p
	return p, nil
}

func (r *mockRepo) DeletePermission(_ context.Context, id int64) error {
	if _, ok := r.perms[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.perms, id)
	return nil
}

// ReplacePermissions mirrors the production diff: entries whose codename
// survives keep their id.
func (r *mockRepo) ReplacePermissions(_ context.Context, moduleID int64, newSet []PermissionInput) error {
	byCodename := make(map[string]int64)
	for id, p := range r.perms {
		if p.ModuleID == moduleID {
			byCodename[p.Codename] = id
		}
	}
	kept := make(map[string]struct{}, len(newSet))
	for _, in := range newSet {
		kept[in.Codename] = struct{}{}
		if id, ok := byCodename[in.Codename]; ok {
			p := r.perms[id]
			p.Label = in.Label
			p.Category = in.Category
			p.Order = in.Order
			r.perms[id] = p
			continue
		}
		r.nextPerm++
		r.perms[r.nextPerm] = ModulePermission{
			ID:       r.nextPerm,
			ModuleID: moduleID,
			Codename: in.Codename,
			Label:    in.Label,
			Category: in.Category,
			Order:    in.Order,
		}
	}
	for codename, id := range byCodename {
		if _, ok := kept[codename]; !ok {
			delete(r.perms, id)
		}
	}
	return nil
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) PermissionsChanged(context.Context) error {
	n.calls++
	return nil
}

func TestCreateModuleValidation(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	_, err := svc.CreateModule(context.Background(), Module{Path: "/x"})
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.CreateModule(context.Background(), Module{Name: "X"})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCreateModuleDuplicatePath(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	_, err := svc.CreateModule(ctx, Module{Name: "A", Path: "/a", IsActive: true})
	require.NoError(t, err)
	_, err = svc.CreateModule(ctx, Module{Name: "B", Path: "/a", IsActive: true})
	assert.True(t, errors.Is(err, shared.ErrDuplicate))
}

func TestUpdateModuleSelfParent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.CreateModule(ctx, Module{Name: "A", Path: "/a", IsActive: true})
	require.NoError(t, err)

	self := created.ID
	_, err = svc.UpdateModule(ctx, created.ID, Module{Name: "A", Path: "/a", ParentID: &self})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCreateModuleWithPermissionsDefaultsOrder(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, perms, err := svc.CreateModuleWithPermissions(ctx,
		Module{Name: "Reports", Path: "/reports", IsActive: true},
		[]PermissionInput{
			{Codename: "view", Label: "Can View", Category: CategoryCRUD},
			{Codename: "export_csv", Label: "Export CSV", Category: CategoryAction},
		})
	require.NoError(t, err)
	require.Len(t, perms, 2)

	orders := map[string]int{}
	for _, p := range perms {
		orders[p.Codename] = p.Order
	}
	assert.Equal(t, 1, orders["view"])
	assert.Equal(t, 2, orders["export_csv"])
}

func TestPermissionInputValidation(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	_, _, err := svc.CreateModuleWithPermissions(ctx,
		Module{Name: "A", Path: "/a", IsActive: true},
		[]PermissionInput{{Codename: "", Label: "x", Category: CategoryCRUD}})
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, _, err = svc.CreateModuleWithPermissions(ctx,
		Module{Name: "B", Path: "/b", IsActive: true},
		[]PermissionInput{{Codename: "view", Label: "x", Category: Category("bogus")}})
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, _, err = svc.CreateModuleWithPermissions(ctx,
		Module{Name: "C", Path: "/c", IsActive: true},
		[]PermissionInput{
			{Codename: "view", Label: "x", Category: CategoryCRUD},
			{Codename: "view", Label: "y", Category: CategoryCRUD},
		})
	assert.True(t, errors.Is(err, shared.ErrDuplicate))
}

func TestReplacePermissionsKeepsSurvivorIDs(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	module, perms, err := svc.CreateModuleWithPermissions(ctx,
		Module{Name: "Users", Path: "/users", IsActive: true},
		[]PermissionInput{
			{Codename: "view", Label: "Can View", Category: CategoryCRUD},
			{Codename: "view_email", Label: "View Email", Category: CategoryColumn},
		})
	require.NoError(t, err)

	idByCodename := map[string]int64{}
	for _, p := range perms {
		idByCodename[p.Codename] = p.ID
	}

	replaced, err := svc.ReplacePermissions(ctx, module.ID, []PermissionInput{
		{Codename: "view", Label: "Can View", Category: CategoryCRUD},
		{Codename: "export_csv", Label: "Export CSV", Category: CategoryAction},
	})
	require.NoError(t, err)
	require.Len(t, replaced, 2)

	for _, p := range replaced {
		switch p.Codename {
		case "view":
			assert.Equal(t, idByCodename["view"], p.ID)
		case "export_csv":
			assert.NotEqual(t, idByCodename["view_email"], p.ID)
		default:
			t.Fatalf("unexpected codename %q", p.Codename)
		}
	}
}

func TestReplacePermissionsEmptyClears(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	module, _, err := svc.CreateModuleWithPermissions(ctx,
		Module{Name: "A", Path: "/a", IsActive: true},
		[]PermissionInput{{Codename: "view", Label: "Can View", Category: CategoryCRUD}})
	require.NoError(t, err)

	replaced, err := svc.ReplacePermissions(ctx, module.ID, []PermissionInput{})
	require.NoError(t, err)
	assert.Empty(t, replaced)
}

func TestListTreeNestsChildren(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	parent, err := svc.CreateModule(ctx, Module{Name: "Settings", Path: "/settings", Order: 1, IsActive: true})
	require.NoError(t, err)
	_, err = svc.CreateModule(ctx, Module{Name: "Security", Path: "/settings/security", ParentID: &parent.ID, Order: 1, IsActive: true})
	require.NoError(t, err)

	tree, err := svc.ListTree(ctx, true)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Security", tree[0].Children[0].Name)
}

func TestMutationsNotify(t *testing.T) {
	repo := newMockRepo()
	notifier := &countingNotifier{}
	svc := NewService(repo, notifier)
	ctx := context.Background()

	module, err := svc.CreateModule(ctx, Module{Name: "A", Path: "/a", IsActive: true})
	require.NoError(t, err)

	_, err = svc.AddPermission(ctx, module.ID, PermissionInput{Codename: "view", Label: "Can View", Category: CategoryCRUD})
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.calls)

	_, err = svc.ReplacePermissions(ctx, module.ID, []PermissionInput{
		{Codename: "view", Label: "Can View", Category: CategoryCRUD},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, notifier.calls)

	require.NoError(t, svc.DeleteModule(ctx, module.ID))
	assert.Equal(t, 3, notifier.calls)
}
