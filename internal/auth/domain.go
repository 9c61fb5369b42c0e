// Package auth implements the authentication flows: credential checks,
// token issuance and refresh, and sign-out via the token blacklist.
package auth

import "time"

// User represents a principal account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
