package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hr/meridian-hr/internal/permcache"
	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

type stubRepo struct {
	byUsername map[string]*User
	byID       map[string]*User
	blacklist  map[string]time.Time
	lastLogin  map[string]time.Time
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		byUsername: map[string]*User{},
		byID:       map[string]*User{},
		blacklist:  map[string]time.Time{},
		lastLogin:  map[string]time.Time{},
	}
}

func (r *stubRepo) addUser(t *testing.T, id, username, password string, active, superuser bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &User{ID: id, Username: username, Email: username + "@meridian.test", PasswordHash: string(hash), IsActive: active, IsSuperuser: superuser}
	r.byUsername[username] = user
	r.byID[id] = user
}

func (r *stubRepo) FindByUsername(_ context.Context, username string) (*User, error) {
	user, ok := r.byUsername[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (r *stubRepo) FindByID(_ context.Context, id string) (*User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (r *stubRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.lastLogin[id] = at
	return nil
}

func (r *stubRepo) BlacklistToken(_ context.Context, tokenString string, expiresAt time.Time) error {
	r.blacklist[tokenString] = expiresAt
	return nil
}

func (r *stubRepo) IsTokenBlacklisted(_ context.Context, tokenString string) (bool, error) {
	_, ok := r.blacklist[tokenString]
	return ok, nil
}

func (r *stubRepo) DeleteExpiredBlacklistEntries(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for tok, exp := range r.blacklist {
		if exp.Before(before) {
			delete(r.blacklist, tok)
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) Contains(ctx context.Context, tokenString string) (bool, error) {
	return r.IsTokenBlacklisted(ctx, tokenString)
}

type stubResolver struct {
	perms map[string][]string
	roles map[string][]string
}

func (s *stubResolver) ResolvePermissions(_ context.Context, userID string) ([]string, error) {
	if p, ok := s.perms[userID]; ok {
		return p, nil
	}
	return []string{}, nil
}

func (s *stubResolver) RoleNames(_ context.Context, userID string) ([]string, error) {
	if r, ok := s.roles[userID]; ok {
		return r, nil
	}
	return []string{}, nil
}

func newAuthService(t *testing.T) (*Service, *stubRepo, *stubResolver, *token.Manager, *permcache.Cache) {
	t.Helper()
	repo := newStubRepo()
	manager, err := token.NewManager(token.Config{Secret: "auth-test-secret", Blacklist: repo})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	mr := miniredis.RunT(t)
	cache := permcache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	resolver := &stubResolver{perms: map[string][]string{}, roles: map[string][]string{}}
	svc := NewService(repo, manager, resolver, cache, nil)
	return svc, repo, resolver, manager, cache
}

func TestSignInEmbedsResolvedPermissions(t *testing.T) {
	svc, repo, resolver, manager, cache := newAuthService(t)
	ctx := context.Background()
	repo.addUser(t, "u-hr", "hrmanager", "s3cret", true, false)
	resolver.perms["u-hr"] = []string{"department:read", "employee:read", "employee:write", "payroll:read"}
	resolver.roles["u-hr"] = []string{"hr_manager"}

	pair, err := svc.SignIn(ctx, "hrmanager", "s3cret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	claims, err := manager.Verify(ctx, pair.AccessToken, token.TypeAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := []string{"department:read", "employee:read", "employee:write", "payroll:read"}
	if len(claims.Permissions) != len(want) {
		t.Fatalf("expected %v got %v", want, claims.Permissions)
	}
	for i := range want {
		if claims.Permissions[i] != want[i] {
			t.Fatalf("expected %v got %v", want, claims.Permissions)
		}
	}
	if claims.IsSuperuser {
		t.Fatalf("hrmanager must not be superuser")
	}
	if _, ok := repo.lastLogin["u-hr"]; !ok {
		t.Fatalf("last_login not recorded")
	}
	perms, err := cache.GetPermissions(ctx, "u-hr")
	if err != nil {
		t.Fatalf("expected seeded cache, got %v", err)
	}
	if len(perms) != len(want) {
		t.Fatalf("cache seeded with %v", perms)
	}
	roles, err := cache.GetRoles(ctx, "u-hr")
	if err != nil || len(roles) != 1 || roles[0] != "hr_manager" {
		t.Fatalf("role cache seeded with %v (%v)", roles, err)
	}
}

func TestSignInFailuresAreIndistinguishable(t *testing.T) {
	svc, repo, _, _, _ := newAuthService(t)
	ctx := context.Background()
	repo.addUser(t, "u-1", "alice", "correct", true, false)
	repo.addUser(t, "u-2", "bob", "correct", false, false)

	cases := map[string]struct{ username, password string }{
		"unknown user":   {"nobody", "whatever"},
		"wrong password": {"alice", "incorrect"},
		"inactive user":  {"bob", "correct"},
	}
	for name, tc := range cases {
		if _, err := svc.SignIn(ctx, tc.username, tc.password); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Fatalf("%s: expected invalid credentials, got %v", name, err)
		}
	}
}

func TestRefreshReResolvesPermissions(t *testing.T) {
	svc, repo, resolver, manager, _ := newAuthService(t)
	ctx := context.Background()
	repo.addUser(t, "u-1", "alice", "s3cret", true, false)
	resolver.perms["u-1"] = []string{"employee:read", "payroll:write"}

	pair, err := svc.SignIn(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	// Downgrade between sign-in and refresh.
	resolver.perms["u-1"] = []string{"employee:read"}

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken != pair.RefreshToken {
		t.Fatalf("refresh must keep the refresh token")
	}
	claims, err := manager.Verify(ctx, refreshed.AccessToken, token.TypeAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "employee:read" {
		t.Fatalf("refresh did not re-resolve permissions: %v", claims.Permissions)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, repo, _, _, _ := newAuthService(t)
	ctx := context.Background()
	repo.addUser(t, "u-1", "alice", "s3cret", true, false)

	pair, err := svc.SignIn(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, token.ErrWrongType) {
		t.Fatalf("expected wrong type, got %v", err)
	}
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	svc, repo, _, _, _ := newAuthService(t)
	ctx := context.Background()
	repo.addUser(t, "u-1", "alice", "s3cret", true, false)

	pair, err := svc.SignIn(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	repo.byID["u-1"].IsActive = false
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestSignOutRevokesTokens(t *testing.T) {
	svc, repo, _, manager, cache := newAuthService(t)
	ctx := context.Background()
	repo.addUser(t, "u-1", "alice", "s3cret", true, false)

	pair, err := svc.SignIn(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := svc.SignOut(ctx, "u-1", pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := manager.Verify(ctx, pair.AccessToken, token.TypeAccess); !errors.Is(err, token.ErrRevoked) {
		t.Fatalf("access token should be revoked, got %v", err)
	}
	if _, err := manager.Verify(ctx, pair.RefreshToken, token.TypeRefresh); !errors.Is(err, token.ErrRevoked) {
		t.Fatalf("refresh token should be revoked, got %v", err)
	}
	if _, err := cache.GetPermissions(ctx, "u-1"); !errors.Is(err, permcache.ErrMiss) {
		t.Fatalf("cache entry should be invalidated, got %v", err)
	}
}

func TestPruneBlacklistRemovesOnlyExpired(t *testing.T) {
	svc, repo, _, _, _ := newAuthService(t)
	ctx := context.Background()
	repo.blacklist["expired"] = time.Now().Add(-time.Hour)
	repo.blacklist["live"] = time.Now().Add(time.Hour)

	n, err := svc.PruneBlacklist(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	if _, ok := repo.blacklist["live"]; !ok {
		t.Fatalf("live entry must survive pruning")
	}
}
