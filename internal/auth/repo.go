package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	BlacklistToken(ctx context.Context, tokenString string, expiresAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error)
	DeleteExpiredBlacklistEntries(ctx context.Context, before time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL. It doubles as the
// token.Blacklist for the verifier through Contains.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, is_active, is_superuser, last_login, created_at, updated_at`

// FindByUsername fetches a user by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *PGRepository) findUser(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.IsActive, &user.IsSuperuser, &user.LastLogin,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin records the sign-in timestamp.
func (r *PGRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login=$2, updated_at=NOW() WHERE id=$1`, id, at.UTC())
	return err
}

// BlacklistToken stores a revoked token until its natural expiry.
// Re-blacklisting the same token is a no-op.
func (r *PGRepository) BlacklistToken(ctx context.Context, tokenString string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO token_blacklist (token, expires_at, created_at)
VALUES ($1, $2, NOW()) ON CONFLICT (token) DO NOTHING`, tokenString, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsTokenBlacklisted reports whether the token has been revoked.
func (r *PGRepository) IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE token=$1)`, tokenString).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return exists, nil
}

// DeleteExpiredBlacklistEntries prunes entries whose tokens have expired
// on their own. Run periodically from the job worker.
func (r *PGRepository) DeleteExpiredBlacklistEntries(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM token_blacklist WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Contains satisfies token.Blacklist.
func (r *PGRepository) Contains(ctx context.Context, tokenString string) (bool, error) {
	return r.IsTokenBlacklisted(ctx, tokenString)
}

var _ Repository = (*PGRepository)(nil)
