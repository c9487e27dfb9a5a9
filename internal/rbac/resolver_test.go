package rbac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func edge(roleID int64, module ModuleRef, codenames ...string) GrantEdge {
	return GrantEdge{RoleID: roleID, Module: module, Codenames: codenames}
}

var (
	modDashboard = ModuleRef{ID: 1, Name: "Dashboard", Icon: "home", Path: "/dashboard", Order: 1}
	modEmployees = ModuleRef{ID: 2, Name: "Employees", Icon: "users", Path: "/employees", Order: 2}
	modSettings  = ModuleRef{ID: 3, Name: "Settings", Icon: "cog", Path: "/settings", Order: 9}
	modSecurity  = ModuleRef{ID: 4, Name: "Security", Icon: "shield", Path: "/settings/security", ParentID: ptr(3), Order: 1}
	modGeneral   = ModuleRef{ID: 5, Name: "General", Icon: "sliders", Path: "/settings/general", ParentID: ptr(3), Order: 2}
)

func TestBuildMenuMergesAcrossRoles(t *testing.T) {
	menu := BuildMenu([]GrantEdge{
		edge(10, modEmployees, "view", "view_email"),
		edge(20, modEmployees, "view", "view_phone"),
	})

	require.Len(t, menu, 1)
	assert.Equal(t, "Employees", menu[0].Name)
	assert.Equal(t, []string{"view", "view_email", "view_phone"}, menu[0].Permissions)
}

func TestBuildMenuOrderIndependent(t *testing.T) {
	forward := []GrantEdge{
		edge(10, modEmployees, "view", "add"),
		edge(20, modDashboard, "view"),
		edge(20, modEmployees, "edit", "view"),
	}
	backward := []GrantEdge{forward[2], forward[1], forward[0]}

	a, err := json.Marshal(BuildMenu(forward))
	require.NoError(t, err)
	b, err := json.Marshal(BuildMenu(backward))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestBuildMenuViewGate(t *testing.T) {
	menu := BuildMenu([]GrantEdge{
		edge(10, modDashboard, "view"),
		edge(10, modEmployees, "add", "edit"),
	})

	require.Len(t, menu, 1)
	assert.Equal(t, "Dashboard", menu[0].Name)
}

func TestBuildMenuDropsChildBehindHiddenParent(t *testing.T) {
	// Security is granted view but its parent Settings is not visible.
	menu := BuildMenu([]GrantEdge{
		edge(10, modSettings, "edit"),
		edge(10, modSecurity, "view"),
	})

	assert.Empty(t, menu)
	assert.NotNil(t, menu)
}

func TestBuildMenuHierarchyAndOrdering(t *testing.T) {
	menu := BuildMenu([]GrantEdge{
		edge(10, modSettings, "view"),
		edge(10, modGeneral, "view"),
		edge(10, modSecurity, "view", "rotate_keys"),
		edge(10, modDashboard, "view"),
	})

	require.Len(t, menu, 2)
	assert.Equal(t, "Dashboard", menu[0].Name)
	assert.Equal(t, "Settings", menu[1].Name)
	require.Len(t, menu[1].Children, 2)
	assert.Equal(t, "Security", menu[1].Children[0].Name)
	assert.Equal(t, "General", menu[1].Children[1].Name)
	assert.Equal(t, []string{"rotate_keys", "view"}, menu[1].Children[0].Permissions)
}

func TestBuildMenuDeduplicatesCodenames(t *testing.T) {
	menu := BuildMenu([]GrantEdge{
		edge(10, modDashboard, "view", "view", "export"),
		edge(20, modDashboard, "export"),
	})

	require.Len(t, menu, 1)
	assert.Equal(t, []string{"export", "view"}, menu[0].Permissions)
}

func TestBuildMenuEmpty(t *testing.T) {
	menu := BuildMenu(nil)
	assert.NotNil(t, menu)
	assert.Empty(t, menu)
}

func TestBuildMenuWireShape(t *testing.T) {
	menu := BuildMenu([]GrantEdge{edge(10, modDashboard, "view")})

	raw, err := json.Marshal(menu)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"id": 1,
		"module_name": "Dashboard",
		"icon": "home",
		"path": "/dashboard",
		"order": 1,
		"permissions": ["view"],
		"children": []
	}]`, string(raw))
}

func TestMergeCodenames(t *testing.T) {
	merged := MergeCodenames([]string{"view", "add", "view"})
	assert.Len(t, merged, 2)
	_, ok := merged["add"]
	assert.True(t, ok)
}
