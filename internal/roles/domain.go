package roles

import "time"

// Role is a named permission holder, optionally scoped to a department.
// The same role name may exist in different departments.
type Role struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	DepartmentID   *int64    `json:"department_id"`
	DepartmentName string    `json:"department_name,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListFilters narrows role listings.
type ListFilters struct {
	DepartmentID *int64
	ActiveOnly   bool
}
