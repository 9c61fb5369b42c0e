package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hr/meridian-hr/internal/permcache"
	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

// PermissionResolver traverses the permission graph for a principal.
// Satisfied by rbac.Service.
type PermissionResolver interface {
	ResolvePermissions(ctx context.Context, userID string) ([]string, error)
	RoleNames(ctx context.Context, userID string) ([]string, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *token.Manager
	resolver PermissionResolver
	cache    *permcache.Cache
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *token.Manager, resolver PermissionResolver, cache *permcache.Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, resolver: resolver, cache: cache, logger: logger}
}

// Authenticate validates username/password credentials. Every failure
// collapses into ErrInvalidCredentials so responses cannot be used to
// probe which usernames exist.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SignIn authenticates and mints an access/refresh pair. The access
// token embeds the permission set resolved from the graph at this
// moment; the cache is seeded with the same snapshot.
func (s *Service) SignIn(ctx context.Context, username, password string) (*token.Pair, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	permissions, err := s.resolver.ResolvePermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.IssuePair(user.ID, user.Username, user.IsSuperuser, permissions)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.warn("update last_login", user.ID, err)
	}
	s.seedCache(ctx, user.ID, permissions)
	return pair, nil
}

// Refresh verifies a refresh token and mints a fresh access token. The
// permission set is re-resolved from the graph, so a refresh always
// picks up role changes made since the last issuance.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	claims, err := s.tokens.Verify(ctx, refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, claims.UserID())
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	permissions, err := s.resolver.ResolvePermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	access, err := s.tokens.IssueAccessToken(user.ID, user.Username, user.IsSuperuser, permissions)
	if err != nil {
		return nil, err
	}
	s.seedCache(ctx, user.ID, permissions)
	return &token.Pair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// SignOut blacklists the presented tokens until their natural expiry
// and drops the principal's cache entries. Tokens that cannot be
// decoded are ignored; there is nothing to revoke.
func (s *Service) SignOut(ctx context.Context, userID string, tokens ...string) error {
	for _, raw := range tokens {
		if raw == "" {
			continue
		}
		claims, err := s.tokens.Decode(raw)
		if err != nil || claims.ExpiresAt == nil {
			continue
		}
		if err := s.repo.BlacklistToken(ctx, raw, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.warn("cache invalidate on sign-out", userID, err)
	}
	return nil
}

// CurrentUser loads the account behind verified claims.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

// PruneBlacklist removes blacklist entries for tokens that have expired
// on their own.
func (s *Service) PruneBlacklist(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredBlacklistEntries(ctx, time.Now())
}

func (s *Service) seedCache(ctx context.Context, userID string, permissions []string) {
	if err := s.cache.SetPermissions(ctx, userID, permissions); err != nil {
		s.warn("seed permission cache", userID, err)
		return
	}
	roles, err := s.resolver.RoleNames(ctx, userID)
	if err != nil {
		s.warn("resolve role names", userID, err)
		return
	}
	if err := s.cache.SetRoles(ctx, userID, roles); err != nil {
		s.warn("seed role cache", userID, err)
	}
}

func (s *Service) warn(msg, userID string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.String("user_id", userID), slog.Any("error", err))
	}
}
