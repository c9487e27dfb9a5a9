package rbac

// CodenameView is the reserved capability gating whether a module is
// surfaced to a client at all.
const CodenameView = "view"

// GrantAll is the write-time sentinel meaning "every permission the module
// currently has". It expands once, into a concrete snapshot; permissions
// added to the module later are not granted retroactively.
const GrantAll = "__all__"

// ModuleRef carries the module fields the resolver needs.
type ModuleRef struct {
	ID       int64
	Name     string
	Icon     string
	Path     string
	ParentID *int64
	Order    int
}

// GrantEdge is one (role, module) grant with its capability codenames.
type GrantEdge struct {
	RoleID    int64
	Module    ModuleRef
	Codenames []string
}

// MenuNode is one entry of the resolved, authorized navigation forest.
// Field presence and ordering are part of the client contract.
type MenuNode struct {
	ID          int64      `json:"id"`
	Name        string     `json:"module_name"`
	Icon        string     `json:"icon"`
	Path        string     `json:"path"`
	Order       int        `json:"order"`
	Permissions []string   `json:"permissions"`
	Children    []MenuNode `json:"children"`
}

// AvailablePermission describes one grantable capability on the role
// assignment screen.
type AvailablePermission struct {
	ID       int64  `json:"id"`
	Codename string `json:"codename"`
	Label    string `json:"label"`
	Category string `json:"category"`
	Order    int    `json:"order"`
}

// ModuleAssignment lists, for one module, what can be granted to a role and
// what currently is.
type ModuleAssignment struct {
	ModuleID             int64                 `json:"module_id"`
	ModuleName           string                `json:"module_name"`
	ModulePath           string                `json:"module_path"`
	ModuleIcon           string                `json:"module_icon"`
	AvailablePermissions []AvailablePermission `json:"available_permissions"`
	GrantedPermissions   []string              `json:"granted_permissions"`
	Children             []ModuleAssignment    `json:"children"`
}

// GrantInput is one entry of a bulk grant update for a role.
type GrantInput struct {
	ModuleID int64    `json:"module_id"`
	Granted  []string `json:"granted"`
}
