// Package rbac owns the permission graph: users, roles, permissions and
// the relations between them. The auth service is the only writer; every
// other service consumes derived state through tokens, the permission
// cache and change events.
package rbac

import "time"

// Permission is an atomic capability identified by (resource, action).
// Once a permission is referenced by a grant it is treated as immutable.
type Permission struct {
	ID          string    `json:"id"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Code renders the canonical "resource:action" form used in token
// claims and permission checks.
func (p Permission) Code() string {
	return p.Resource + ":" + p.Action
}

// Role is a named bundle of permissions.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// RoleAssignment links a principal to a role. One row per (user, role).
type RoleAssignment struct {
	UserID     string    `json:"user_id"`
	RoleID     string    `json:"role_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// RoleGrant links a role to a permission. One row per (role, permission).
type RoleGrant struct {
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	GrantedAt    time.Time `json:"granted_at"`
}

// CreateRoleInput carries the fields for a new role.
type CreateRoleInput struct {
	Name        string
	Description string
}

// CreatePermissionInput carries the fields for a new permission.
type CreatePermissionInput struct {
	Resource    string
	Action      string
	Description string
}
