package token

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubBlacklist struct {
	tokens map[string]bool
	err    error
}

func (s *stubBlacklist) Contains(ctx context.Context, tok string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.tokens[tok], nil
}

func newTestManager(t *testing.T, bl Blacklist) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: "test-secret", Blacklist: bl})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	perms := []string{"employee:read", "employee:write", "department:read", "payroll:read"}

	tok, err := m.IssueAccessToken("u-1", "hrmanager", false, perms)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	claims, err := m.Verify(context.Background(), tok, TypeAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID() != "u-1" {
		t.Fatalf("expected subject u-1 got %q", claims.UserID())
	}
	if claims.Username != "hrmanager" {
		t.Fatalf("expected username hrmanager got %q", claims.Username)
	}
	if claims.IsSuperuser {
		t.Fatalf("expected is_superuser=false")
	}
	if len(claims.Permissions) != len(perms) {
		t.Fatalf("expected %d permissions got %d", len(perms), len(claims.Permissions))
	}
	for i, p := range perms {
		if claims.Permissions[i] != p {
			t.Fatalf("permission %d: expected %q got %q", i, p, claims.Permissions[i])
		}
	}
}

func TestVerifyRejectsWrongType(t *testing.T) {
	m := newTestManager(t, nil)

	refresh, err := m.IssueRefreshToken("u-1", "hrmanager", false)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	if _, err := m.Verify(context.Background(), refresh, TypeAccess); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType got %v", err)
	}

	access, err := m.IssueAccessToken("u-1", "hrmanager", false, nil)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := m.Verify(context.Background(), access, TypeRefresh); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newTestManager(t, nil)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := m.IssueAccessToken("u-1", "hrmanager", false, nil)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	m.now = time.Now

	if _, err := m.Verify(context.Background(), tok, TypeAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired got %v", err)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	m := newTestManager(t, nil)
	other, err := NewManager(Config{Secret: "another-secret"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tok, err := other.IssueAccessToken("u-1", "hrmanager", false, nil)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := m.Verify(context.Background(), tok, TypeAccess); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid got %v", err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.Verify(context.Background(), "not-a-token", TypeAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed got %v", err)
	}
}

func TestVerifyRejectsBlacklisted(t *testing.T) {
	bl := &stubBlacklist{tokens: map[string]bool{}}
	m := newTestManager(t, bl)

	tok, err := m.IssueAccessToken("u-1", "hrmanager", false, nil)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	bl.tokens[tok] = true

	if _, err := m.Verify(context.Background(), tok, TypeAccess); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked got %v", err)
	}
}

func TestVerifyBlacklistErrorFailsClosed(t *testing.T) {
	bl := &stubBlacklist{err: errors.New("db down")}
	m := newTestManager(t, bl)

	tok, err := m.IssueAccessToken("u-1", "hrmanager", false, nil)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := m.Verify(context.Background(), tok, TypeAccess); err == nil {
		t.Fatalf("expected error when blacklist is unreachable")
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.IssueAccessToken("", "ghost", false, nil); !errors.Is(err, ErrNoSubject) {
		t.Fatalf("expected ErrNoSubject got %v", err)
	}
}

func TestDecodeDoesNotAuthenticate(t *testing.T) {
	other, err := NewManager(Config{Secret: "another-secret"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tok, err := other.IssueAccessToken("u-9", "x", false, nil)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	m := newTestManager(t, nil)
	claims, err := m.Decode(tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.UserID() != "u-9" {
		t.Fatalf("expected decoded subject u-9 got %q", claims.UserID())
	}
}

func TestSuperuserHasEveryPermission(t *testing.T) {
	claims := &Claims{IsSuperuser: true, Permissions: []string{}}
	if !claims.HasPermission("anything:anything") {
		t.Fatalf("superuser with empty permission claim must pass every check")
	}
}
