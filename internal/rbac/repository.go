package rbac

import "context"

// RepositoryPort defines data access methods for the permission graph.
type RepositoryPort interface {
	CreateRole(ctx context.Context, input CreateRoleInput) (Role, error)
	GetRole(ctx context.Context, roleID string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	DeleteRole(ctx context.Context, roleID string) error

	CreatePermission(ctx context.Context, input CreatePermissionInput) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRolePermissions(ctx context.Context, roleID string) ([]Permission, error)

	AssignRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	GrantPermission(ctx context.Context, roleID, permissionID string) error
	RevokePermission(ctx context.Context, roleID, permissionID string) error

	ListUserRoles(ctx context.Context, userID string) ([]Role, error)
	ListRoleMembers(ctx context.Context, roleID string) ([]string, error)
	ResolvePermissions(ctx context.Context, userID string) ([]string, error)
}
