package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates access tokens from refresh tokens. A token of one
// type is never accepted where the other is expected.
type Type string

const (
	// TypeAccess is the short-lived credential presented on API requests.
	TypeAccess Type = "access"
	// TypeRefresh is the long-lived credential exchanged for new access tokens.
	TypeRefresh Type = "refresh"
)

// Claims is the payload embedded in every signed token. The permission
// list is a point-in-time snapshot taken at issuance; it may lag behind
// the permission graph until the token expires.
type Claims struct {
	Username    string   `json:"username"`
	IsSuperuser bool     `json:"is_superuser"`
	Permissions []string `json:"permissions"`
	TokenType   Type     `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// HasPermission reports whether the snapshot carries the given
// resource:action string. Superusers satisfy every check.
func (c *Claims) HasPermission(perm string) bool {
	if c.IsSuperuser {
		return true
	}
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// ExpiresIn reports the remaining lifetime at the given instant.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}
