package authz

import (
	"errors"
	"strings"
	"testing"

	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

func claimsWith(perms ...string) *token.Claims {
	return &token.Claims{Permissions: perms}
}

func TestCheckAllowsGrantedPermission(t *testing.T) {
	claims := claimsWith("employee:read")
	if err := Check(claims, "employee:read"); err != nil {
		t.Fatalf("unexpected deny: %v", err)
	}
}

func TestCheckDeniesAndNamesMissing(t *testing.T) {
	claims := claimsWith("employee:read")
	err := Check(claims, "payroll:write")
	if err == nil {
		t.Fatalf("expected deny")
	}
	if !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if !strings.Contains(err.Error(), "payroll:write") {
		t.Fatalf("error should name the missing permission: %v", err)
	}
}

func TestCheckSuperuserBypassesEverything(t *testing.T) {
	claims := &token.Claims{IsSuperuser: true}
	for _, perm := range []string{"anything:anything", "payroll:write", "x:y"} {
		if err := Check(claims, perm); err != nil {
			t.Fatalf("superuser denied %s: %v", perm, err)
		}
	}
	if err := CheckAll(claims, "a:b", "c:d"); err != nil {
		t.Fatalf("superuser denied all-check: %v", err)
	}
	if err := CheckAny(claims, "a:b"); err != nil {
		t.Fatalf("superuser denied any-check: %v", err)
	}
}

func TestCheckAny(t *testing.T) {
	claims := claimsWith("department:read")
	if err := CheckAny(claims, "employee:read", "department:read"); err != nil {
		t.Fatalf("unexpected deny: %v", err)
	}
	err := CheckAny(claims, "employee:write", "payroll:write")
	if err == nil {
		t.Fatalf("expected deny")
	}
	if !strings.Contains(err.Error(), "one of") {
		t.Fatalf("any-denial should say 'one of': %v", err)
	}
}

func TestCheckAllNamesOnlyMissing(t *testing.T) {
	claims := claimsWith("employee:read", "department:read")
	err := CheckAll(claims, "employee:read", "payroll:read", "payroll:write")
	if err == nil {
		t.Fatalf("expected deny")
	}
	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermissionError, got %T", err)
	}
	if len(perr.Missing) != 2 {
		t.Fatalf("expected 2 missing, got %v", perr.Missing)
	}
	if perr.Missing[0] != "payroll:read" || perr.Missing[1] != "payroll:write" {
		t.Fatalf("unexpected missing set %v", perr.Missing)
	}
}

func TestNilClaimsAlwaysDenied(t *testing.T) {
	if err := Check(nil, "employee:read"); err == nil {
		t.Fatalf("nil claims must be denied")
	}
	if err := CheckSuperuser(nil); err == nil {
		t.Fatalf("nil claims must not be superuser")
	}
}
