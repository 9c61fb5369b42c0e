package rbac

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

// Repository provides PostgreSQL backed persistence for the permission
// graph.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRole inserts a role. Duplicate names map to shared.ErrConflict.
func (r *Repository) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	role := Role{ID: uuid.NewString(), Name: input.Name, Description: input.Description}
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (id, name, description, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW()) RETURNING created_at, updated_at`,
		role.ID, role.Name, role.Description).Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, graphErr(err, fmt.Sprintf("role %q", input.Name))
	}
	return role, nil
}

// GetRole returns a role with its granted permissions.
func (r *Repository) GetRole(ctx context.Context, roleID string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM roles WHERE id=$1`, roleID).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %s: %w", roleID, shared.ErrNotFound)
		}
		return Role{}, err
	}
	perms, err := r.ListRolePermissions(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// DeleteRole removes a role and, through cascading deletes, its
// assignments and grants.
func (r *Repository) DeleteRole(ctx context.Context, roleID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id=$1`, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %s: %w", roleID, shared.ErrNotFound)
	}
	return nil
}

// CreatePermission inserts a permission. Duplicate (resource, action)
// pairs map to shared.ErrConflict.
func (r *Repository) CreatePermission(ctx context.Context, input CreatePermissionInput) (Permission, error) {
	perm := Permission{ID: uuid.NewString(), Resource: input.Resource, Action: input.Action, Description: input.Description}
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (id, resource, action, description, created_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		perm.ID, perm.Resource, perm.Action, perm.Description).Scan(&perm.CreatedAt)
	if err != nil {
		return Permission{}, graphErr(err, fmt.Sprintf("permission %q", perm.Code()))
	}
	return perm, nil
}

// ListPermissions returns all permissions ordered by canonical code.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, resource, action, description, created_at FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ListRolePermissions returns the permissions granted to a role.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.resource, p.action, p.description, p.created_at
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1
ORDER BY p.resource, p.action`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// AssignRole creates a RoleAssignment. A duplicate pair maps to
// shared.ErrConflict; an unknown user or role maps to shared.ErrNotFound
// via the foreign keys.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES ($1, $2, NOW())`, userID, roleID)
	if err != nil {
		return graphErr(err, fmt.Sprintf("assignment user=%s role=%s", userID, roleID))
	}
	return nil
}

// RemoveRole deletes a RoleAssignment. A missing pair maps to
// shared.ErrNotFound.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id=$1 AND role_id=$2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assignment user=%s role=%s: %w", userID, roleID, shared.ErrNotFound)
	}
	return nil
}

// GrantPermission creates a RoleGrant with the same duplicate and
// existence semantics as AssignRole.
func (r *Repository) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id, granted_at) VALUES ($1, $2, NOW())`, roleID, permissionID)
	if err != nil {
		return graphErr(err, fmt.Sprintf("grant role=%s permission=%s", roleID, permissionID))
	}
	return nil
}

// RevokePermission deletes a RoleGrant.
func (r *Repository) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id=$1 AND permission_id=$2`, roleID, permissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("grant role=%s permission=%s: %w", roleID, permissionID, shared.ErrNotFound)
	}
	return nil
}

// ListUserRoles returns the roles assigned to a principal.
func (r *Repository) ListUserRoles(ctx context.Context, userID string) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.name, r.description, r.created_at, r.updated_at
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1
ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListRoleMembers returns the ids of every principal holding the role.
func (r *Repository) ListRoleMembers(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM user_roles WHERE role_id=$1 ORDER BY user_id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// ResolvePermissions traverses principal -> roles -> permissions and
// returns the deduplicated canonical permission strings. A principal
// with no roles resolves to an empty set.
func (r *Repository) ResolvePermissions(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT p.resource || ':' || p.action AS code
FROM user_roles ur
JOIN role_permissions rp ON rp.role_id = ur.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1
ORDER BY code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		perms = append(perms, code)
	}
	return perms, rows.Err()
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Resource, &perm.Action, &perm.Description, &perm.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// graphErr maps postgres constraint violations onto the shared error
// taxonomy: unique violations become conflicts, broken foreign keys
// become not-found.
func graphErr(err error, subject string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", subject, shared.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", subject, shared.ErrNotFound)
		}
	}
	return err
}
