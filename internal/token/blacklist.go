package token

import "context"

// Blacklist answers whether a specific token string has been revoked
// before its natural expiry (logout, password change). The auth service
// backs this with postgres; services without database access to the
// auth store use NoopBlacklist and rely on token expiry alone.
type Blacklist interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// NoopBlacklist never reports a token as revoked.
type NoopBlacklist struct{}

// Contains always returns false.
func (NoopBlacklist) Contains(context.Context, string) (bool, error) {
	return false, nil
}
