package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-hr/meridian-hr/internal/observability"
	"github.com/meridian-hr/meridian-hr/internal/permcache"
	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

// Middleware authenticates bearer tokens and enforces permissions on
// HTTP handlers. Outside the auth service the Cache is consulted on
// every request: a hit replaces the token's embedded snapshot because
// the cache reflects more recent state; a miss trusts the token claims
// and populates the cache. The cache is an optimization, never a
// dependency, so any cache failure is treated as a miss.
type Middleware struct {
	Manager *token.Manager
	Cache   *permcache.Cache
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Authenticate verifies the bearer access token and stores the claims
// in the request context. Mount once, ahead of any Require* guard.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			m.count("missing")
			httpx.RespondError(w, token.ErrMalformed)
			return
		}
		claims, err := m.Manager.Verify(r.Context(), raw, token.TypeAccess)
		if err != nil {
			m.count(verifyOutcome(err))
			httpx.RespondError(w, err)
			return
		}
		m.count("ok")

		m.freshenFromCache(r, claims)

		ctx := token.ContextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// freshenFromCache overlays cached permissions onto the claims when an
// entry exists, and seeds the cache from the token snapshot when it
// does not. Superusers skip the cache entirely; their checks never
// consult the permission list.
func (m Middleware) freshenFromCache(r *http.Request, claims *token.Claims) {
	if m.Cache == nil || claims.IsSuperuser {
		return
	}
	cached, err := m.Cache.GetPermissions(r.Context(), claims.UserID())
	switch {
	case err == nil:
		m.cacheCount("hit")
		claims.Permissions = cached
	case errors.Is(err, permcache.ErrMiss):
		m.cacheCount("miss")
		if err := m.Cache.SetPermissions(r.Context(), claims.UserID(), claims.Permissions); err != nil && m.Logger != nil {
			m.Logger.Warn("permission cache populate", slog.Any("error", err))
		}
	default:
		// Unreachable store: fail open to the token snapshot.
		m.cacheCount("error")
		if m.Logger != nil {
			m.Logger.Warn("permission cache lookup", slog.Any("error", err))
		}
	}
}

// RequirePermission guards a route with a single permission.
func (m Middleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return m.guard(func(claims *token.Claims) error {
		return Check(claims, perm)
	})
}

// RequireAny guards a route, allowing callers holding at least one of
// the given permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.guard(func(claims *token.Claims) error {
		return CheckAny(claims, perms...)
	})
}

// RequireAll guards a route, allowing only callers holding every given permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.guard(func(claims *token.Claims) error {
		return CheckAll(claims, perms...)
	})
}

// RequireSuperuser guards administrative routes.
func (m Middleware) RequireSuperuser() func(http.Handler) http.Handler {
	return m.guard(CheckSuperuser)
}

func (m Middleware) guard(decide func(*token.Claims) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := token.ClaimsFromContext(r.Context())
			if claims == nil {
				httpx.RespondError(w, token.ErrMalformed)
				return
			}
			if err := decide(claims); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) count(outcome string) {
	if m.Metrics != nil {
		m.Metrics.TokenVerification(outcome)
	}
}

func (m Middleware) cacheCount(result string) {
	if m.Metrics != nil {
		m.Metrics.PermCacheLookup(result)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, token.ErrRevoked):
		return "revoked"
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrSignatureInvalid):
		return "signature"
	case errors.Is(err, token.ErrWrongType):
		return "wrong_type"
	default:
		return "malformed"
	}
}
