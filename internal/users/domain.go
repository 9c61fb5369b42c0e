// Package users manages principal accounts: creation, profile updates
// and deactivation. Accounts are never hard-deleted; deactivation keeps
// the row and flips is_active.
package users

import "time"

// User represents a managed account.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	PasswordHash string `json:"-"`

	// Roles is populated on detail reads.
	Roles []string `json:"roles,omitempty"`
}

// CreateUserInput carries the fields for a new account.
type CreateUserInput struct {
	Username    string
	Email       string
	Password    string
	IsSuperuser bool
}

// UpdateUserInput carries optional profile changes. Nil fields are left
// untouched.
type UpdateUserInput struct {
	Email    *string
	Password *string
}
