package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-hr/meridian-hr/internal/permcache"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

func newMiddleware(t *testing.T) (Middleware, *token.Manager, *permcache.Cache, *miniredis.Miniredis) {
	t.Helper()
	manager, err := token.NewManager(token.Config{Secret: "mw-secret"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := permcache.New(client, time.Minute)
	return Middleware{Manager: manager, Cache: cache}, manager, cache, mr
}

func protected(mw Middleware, perm string) http.Handler {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h = mw.RequirePermission(perm)(h)
	return mw.Authenticate(h)
}

func doRequest(h http.Handler, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/employees", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestAuthenticatedRequestAllowed(t *testing.T) {
	mw, manager, _, _ := newMiddleware(t)
	tok, err := manager.IssueAccessToken("u-1", "hrmanager", false, []string{"employee:read"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res := doRequest(protected(mw, "employee:read"), tok)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
}

func TestMissingTokenRejected(t *testing.T) {
	mw, _, _, _ := newMiddleware(t)
	res := doRequest(protected(mw, "employee:read"), "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}

func TestInsufficientPermissionForbidden(t *testing.T) {
	mw, manager, _, _ := newMiddleware(t)
	tok, err := manager.IssueAccessToken("u-1", "clerk", false, []string{"employee:read"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res := doRequest(protected(mw, "payroll:write"), tok)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", res.Code)
	}
}

func TestCacheMissPopulatesFromTokenSnapshot(t *testing.T) {
	mw, manager, cache, _ := newMiddleware(t)
	tok, err := manager.IssueAccessToken("u-1", "hrmanager", false, []string{"employee:read"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res := doRequest(protected(mw, "employee:read"), tok)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}
	cached, err := cache.GetPermissions(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("expected populated cache, got %v", err)
	}
	if len(cached) != 1 || cached[0] != "employee:read" {
		t.Fatalf("unexpected cached set %v", cached)
	}
}

func TestCacheHitOverridesTokenSnapshot(t *testing.T) {
	mw, manager, cache, _ := newMiddleware(t)

	// The token still embeds payroll:write, but the cache already
	// reflects the downgrade. The fresher cached set must win.
	if err := cache.SetPermissions(context.Background(), "u-1", []string{"employee:read"}); err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}
	tok, err := manager.IssueAccessToken("u-1", "hrmanager", false, []string{"employee:read", "payroll:write"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res := doRequest(protected(mw, "payroll:write"), tok)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected downgrade to deny, got %d", res.Code)
	}
}

func TestCacheOutageFailsOpenToTokenClaims(t *testing.T) {
	mw, manager, _, mr := newMiddleware(t)
	tok, err := manager.IssueAccessToken("u-1", "hrmanager", false, []string{"employee:read"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	mr.Close()

	res := doRequest(protected(mw, "employee:read"), tok)
	if res.Code != http.StatusOK {
		t.Fatalf("cache outage must not fail the request, got %d", res.Code)
	}
}

func TestRequireSuperuser(t *testing.T) {
	mw, manager, _, _ := newMiddleware(t)

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h = mw.Authenticate(mw.RequireSuperuser()(h))

	admin, err := manager.IssueAccessToken("u-admin", "root", true, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if res := doRequest(h, admin); res.Code != http.StatusOK {
		t.Fatalf("expected 200 for superuser got %d", res.Code)
	}

	mortal, err := manager.IssueAccessToken("u-2", "clerk", false, []string{"employee:read"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if res := doRequest(h, mortal); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-superuser got %d", res.Code)
	}
}

func TestRefreshTokenRejectedOnAPIRoute(t *testing.T) {
	mw, manager, _, _ := newMiddleware(t)
	refresh, err := manager.IssueRefreshToken("u-1", "hrmanager", false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res := doRequest(protected(mw, "employee:read"), refresh)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token must not pass as access token, got %d", res.Code)
	}
}
