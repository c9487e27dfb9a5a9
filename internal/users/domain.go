package users

import "time"

// User represents an account that signs in and carries roles.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	EmployeeID   string    `json:"employee_id"`
	DepartmentID *int64    `json:"department"`
	IsActive     bool      `json:"is_active"`
	Roles        []RoleRef `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleRef is the role summary embedded in user payloads.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
