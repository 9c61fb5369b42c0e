package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, email, password_hash, is_active, is_superuser, last_login, created_at, updated_at`

// CreateUser inserts an account. Duplicate username or email maps to
// shared.ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, input CreateUserInput, passwordHash string) (User, error) {
	user := User{ID: uuid.NewString(), Username: input.Username, Email: input.Email, IsActive: true, IsSuperuser: input.IsSuperuser}
	err := r.pool.QueryRow(ctx, `INSERT INTO users (id, username, email, password_hash, is_active, is_superuser, created_at, updated_at)
VALUES ($1, $2, $3, $4, TRUE, $5, NOW(), NOW()) RETURNING created_at, updated_at`,
		user.ID, user.Username, user.Email, passwordHash, user.IsSuperuser).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fmt.Errorf("user %q: %w", input.Username, shared.ErrConflict)
		}
		return User{}, err
	}
	return user, nil
}

// GetUser fetches an account by id.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.IsActive, &user.IsSuperuser, &user.LastLogin,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	return user, nil
}

// ListUsers returns a page of accounts and the total count.
func (r *Repository) ListUsers(ctx context.Context, page, perPage int) ([]User, int, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.IsActive, &user.IsSuperuser, &user.LastLogin,
			&user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// UpdateUser applies the non-nil fields. The password hash is updated
// only when newHash is non-empty.
func (r *Repository) UpdateUser(ctx context.Context, id string, input UpdateUserInput, newHash string) (User, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET
email = COALESCE($2, email),
password_hash = CASE WHEN $3 <> '' THEN $3 ELSE password_hash END,
updated_at = NOW()
WHERE id=$1`, id, input.Email, newHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fmt.Errorf("user %s: %w", id, shared.ErrConflict)
		}
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	return r.GetUser(ctx, id)
}

// DeactivateUser flips is_active off. Deactivating an already inactive
// account is a no-op that still succeeds.
func (r *Repository) DeactivateUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	return nil
}
