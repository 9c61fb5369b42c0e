// Package authz turns verified claims into allow/deny decisions and
// wires those decisions into the HTTP stack. The decision functions are
// pure: they look only at the claims they are handed, so they can be
// tested without any framework or store.
package authz

import (
	"fmt"
	"strings"

	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

// PermissionError reports a denied check and names what was missing.
// It unwraps to shared.ErrForbidden for the HTTP error taxonomy.
type PermissionError struct {
	Missing []string
	anyOf   bool
}

func (e *PermissionError) Error() string {
	if e.anyOf {
		return fmt.Sprintf("permission denied, required one of: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("permission denied, missing: %s", strings.Join(e.Missing, ", "))
}

func (e *PermissionError) Unwrap() error {
	return shared.ErrForbidden
}

// Check allows when the claims carry the required permission. Superuser
// bypasses every check.
func Check(claims *token.Claims, required string) error {
	if claims == nil {
		return &PermissionError{Missing: []string{required}}
	}
	if claims.HasPermission(required) {
		return nil
	}
	return &PermissionError{Missing: []string{required}}
}

// CheckAny allows when the claims carry at least one of the required permissions.
func CheckAny(claims *token.Claims, required ...string) error {
	if len(required) == 0 {
		return nil
	}
	if claims != nil {
		for _, perm := range required {
			if claims.HasPermission(perm) {
				return nil
			}
		}
	}
	return &PermissionError{Missing: required, anyOf: true}
}

// CheckAll allows only when the claims carry every required permission.
// The error names exactly the permissions that were missing.
func CheckAll(claims *token.Claims, required ...string) error {
	if claims != nil && claims.IsSuperuser {
		return nil
	}
	var missing []string
	for _, perm := range required {
		if claims == nil || !claims.HasPermission(perm) {
			missing = append(missing, perm)
		}
	}
	if len(missing) > 0 {
		return &PermissionError{Missing: missing}
	}
	return nil
}

// CheckSuperuser allows only superusers.
func CheckSuperuser(claims *token.Claims) error {
	if claims == nil || !claims.IsSuperuser {
		return fmt.Errorf("%w: superuser required", shared.ErrForbidden)
	}
	return nil
}
