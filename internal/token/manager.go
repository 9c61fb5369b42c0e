// Package token issues and verifies the signed bearer credentials shared
// by every Meridian service. Tokens are HS256-signed with a process-wide
// secret loaded once at startup; rotating the secret invalidates all
// outstanding tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL bounds how long an embedded permission snapshot
	// can outlive a change to the permission graph.
	DefaultAccessTTL = 30 * time.Minute
	// DefaultRefreshTTL is the refresh token lifetime.
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Pair bundles the two credentials returned by sign-in.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Manager mints and verifies tokens.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	now        func() time.Time
}

// Config collects Manager construction parameters.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Blacklist is optional; nil means no revocation checks.
	Blacklist Blacklist
}

// NewManager constructs a Manager. The secret is mandatory.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token: signing secret required")
	}
	m := &Manager{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		blacklist:  cfg.Blacklist,
		now:        time.Now,
	}
	if m.accessTTL <= 0 {
		m.accessTTL = DefaultAccessTTL
	}
	if m.refreshTTL <= 0 {
		m.refreshTTL = DefaultRefreshTTL
	}
	if m.blacklist == nil {
		m.blacklist = NoopBlacklist{}
	}
	return m, nil
}

// IssueAccessToken mints an access token embedding the principal's
// permission snapshot as resolved at this moment.
func (m *Manager) IssueAccessToken(userID, username string, isSuperuser bool, permissions []string) (string, error) {
	return m.issue(userID, username, isSuperuser, permissions, TypeAccess, m.accessTTL)
}

// IssueRefreshToken mints a refresh token. Refresh tokens carry no
// permission snapshot; permissions are re-resolved on refresh.
func (m *Manager) IssueRefreshToken(userID, username string, isSuperuser bool) (string, error) {
	return m.issue(userID, username, isSuperuser, nil, TypeRefresh, m.refreshTTL)
}

// IssuePair mints an access/refresh pair for a freshly authenticated principal.
func (m *Manager) IssuePair(userID, username string, isSuperuser bool, permissions []string) (*Pair, error) {
	access, err := m.IssueAccessToken(userID, username, isSuperuser, permissions)
	if err != nil {
		return nil, err
	}
	refresh, err := m.IssueRefreshToken(userID, username, isSuperuser)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

func (m *Manager) issue(userID, username string, isSuperuser bool, permissions []string, typ Type, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrNoSubject
	}
	if permissions == nil {
		permissions = []string{}
	}
	now := m.now()
	claims := &Claims{
		Username:    username,
		IsSuperuser: isSuperuser,
		Permissions: permissions,
		TokenType:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify authenticates a bearer credential. Checks run in a fixed order:
// blacklist membership, signature, token type, expiry, subject. The
// blacklist runs first so a logged-out token is rejected without
// spending signature work on it.
func (m *Manager) Verify(ctx context.Context, tokenString string, expected Type) (*Claims, error) {
	revoked, err := m.blacklist.Contains(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("token: blacklist lookup: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}

	claims := &Claims{}
	// Expiry is validated manually after the type check so a wrong-type
	// token reports ErrWrongType even when it is also expired.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(tokenString, claims, m.keyFunc); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if claims.TokenType != expected {
		return nil, ErrWrongType
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(m.now()) {
		return nil, ErrExpired
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

// Decode extracts claims without verifying the signature. Used when
// blacklisting a token to recover its expiry; never for authentication.
func (m *Manager) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}

// AccessTTL exposes the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return m.secret, nil
}
