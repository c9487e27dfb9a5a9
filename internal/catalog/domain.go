package catalog

import "time"

// Category classifies what a module permission controls.
type Category string

// Permission categories. `crud` covers the baseline operations, the rest
// scope finer-grained visibility units of a module.
const (
	CategoryCRUD      Category = "crud"
	CategoryColumn    Category = "column"
	CategoryComponent Category = "component"
	CategoryAction    Category = "action"
	CategoryField     Category = "field"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCRUD, CategoryColumn, CategoryComponent, CategoryAction, CategoryField:
		return true
	}
	return false
}

// Module is a navigable unit in the client, possibly nested under a parent.
type Module struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Path      string    `json:"path"`
	ParentID  *int64    `json:"parent"`
	Order     int       `json:"order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Children []Module `json:"children,omitempty"`
}

// ModulePermission declares one capability available on a module.
// (ModuleID, Codename) is unique.
type ModulePermission struct {
	ID       int64    `json:"id"`
	ModuleID int64    `json:"module"`
	Codename string   `json:"codename"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Order    int      `json:"order"`
}

// PermissionInput is the caller-facing shape for creating or replacing
// vocabulary entries.
type PermissionInput struct {
	Codename string   `json:"codename"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Order    int      `json:"order"`
}

// ModuleWithPermissions pairs a module with its available vocabulary, used
// by the role assignment screen.
type ModuleWithPermissions struct {
	ID                   int64                   `json:"id"`
	Name                 string                  `json:"name"`
	Icon                 string                  `json:"icon"`
	Path                 string                  `json:"path"`
	ParentID             *int64                  `json:"parent"`
	Order                int                     `json:"order"`
	IsActive             bool                    `json:"is_active"`
	AvailablePermissions []ModulePermission      `json:"available_permissions"`
	Children             []ModuleWithPermissions `json:"children"`
}
