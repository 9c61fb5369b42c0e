package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate resource or duplicate assignment.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials indicates authentication failure. It covers both
	// unknown-user and bad-password so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates an authenticated caller lacking a required permission.
	ErrForbidden = errors.New("forbidden")
)
