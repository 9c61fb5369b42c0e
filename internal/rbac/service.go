package rbac

import (
	"context"
	"log/slog"
	"sort"

	"github.com/meridian-hr/meridian-hr/internal/events"
	"github.com/meridian-hr/meridian-hr/internal/permcache"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Service mutates the permission graph and propagates the consequences.
// Every successful mutation invalidates the affected principals' cache
// entries and publishes a change event. Both are best effort: the graph
// write is the source of truth, and a lost event only leaves stale
// cache entries until their TTL expires.
type Service struct {
	repo      RepositoryPort
	publisher *events.Publisher
	cache     *permcache.Cache
	audit     *shared.AuditLogger
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, publisher *events.Publisher, cache *permcache.Cache, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, cache: cache, audit: audit, logger: logger}
}

// CreateRole creates a role. Duplicate names conflict.
func (s *Service) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	return s.repo.CreateRole(ctx, input)
}

// CreatePermission creates a permission. Duplicate (resource, action)
// pairs conflict.
func (s *Service) CreatePermission(ctx context.Context, input CreatePermissionInput) (Permission, error) {
	return s.repo.CreatePermission(ctx, input)
}

// GetRole returns a role with its permissions.
func (s *Service) GetRole(ctx context.Context, roleID string) (Role, error) {
	return s.repo.GetRole(ctx, roleID)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// DeleteRole removes a role and everything hanging off it, then drops
// the cache entries of every former member.
func (s *Service) DeleteRole(ctx context.Context, actorID, roleID string) error {
	members, err := s.repo.ListRoleMembers(ctx, roleID)
	if err != nil {
		return err
	}
	before, err := s.snapshotPermissions(ctx, members)
	if err != nil {
		return err
	}
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	s.fanOutPermissionChanges(ctx, members, before)
	s.recordAudit(ctx, actorID, "role.delete", "role", roleID, map[string]any{"role_name": role.Name})
	return nil
}

// AssignRole links a principal to a role. The second assignment of the
// same pair conflicts.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID string) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	oldPerms, err := s.ResolvePermissions(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	newPerms, err := s.ResolvePermissions(ctx, userID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.publisher.PublishBestEffort(ctx, events.NewRoleAssigned(userID, role.ID, role.Name))
	s.publisher.PublishBestEffort(ctx, events.NewPermissionsChanged(userID, oldPerms, newPerms))
	s.recordAudit(ctx, actorID, "role.assign", "user", userID,
		shared.PermissionDeltaMeta(oldPerms, diff(newPerms, oldPerms), diff(oldPerms, newPerms)))
	return nil
}

// RemoveRole unlinks a principal from a role. Removing an assignment
// that does not exist is NotFound.
func (s *Service) RemoveRole(ctx context.Context, actorID, userID, roleID string) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	oldPerms, err := s.ResolvePermissions(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	newPerms, err := s.ResolvePermissions(ctx, userID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.publisher.PublishBestEffort(ctx, events.NewRoleRemoved(userID, role.ID, role.Name))
	s.publisher.PublishBestEffort(ctx, events.NewPermissionsChanged(userID, oldPerms, newPerms))
	s.recordAudit(ctx, actorID, "role.remove", "user", userID,
		shared.PermissionDeltaMeta(oldPerms, diff(newPerms, oldPerms), diff(oldPerms, newPerms)))
	return nil
}

// GrantPermission adds a permission to a role. The change reaches every
// member of the role, so each member's cache entry is dropped and a
// permissions-changed event is published per member.
func (s *Service) GrantPermission(ctx context.Context, actorID, roleID, permissionID string) error {
	members, before, err := s.membersSnapshot(ctx, roleID)
	if err != nil {
		return err
	}
	if err := s.repo.GrantPermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.fanOutPermissionChanges(ctx, members, before)
	s.recordAudit(ctx, actorID, "permission.grant", "role", roleID, map[string]any{"permission_id": permissionID})
	return nil
}

// RevokePermission removes a permission from a role, with the same
// fan-out as GrantPermission.
func (s *Service) RevokePermission(ctx context.Context, actorID, roleID, permissionID string) error {
	members, before, err := s.membersSnapshot(ctx, roleID)
	if err != nil {
		return err
	}
	if err := s.repo.RevokePermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.fanOutPermissionChanges(ctx, members, before)
	s.recordAudit(ctx, actorID, "permission.revoke", "role", roleID, map[string]any{"permission_id": permissionID})
	return nil
}

// ListUserRoles returns the roles assigned to a principal.
func (s *Service) ListUserRoles(ctx context.Context, userID string) ([]Role, error) {
	return s.repo.ListUserRoles(ctx, userID)
}

// RoleNames returns just the role names for a principal, the shape
// cached under user_roles:{id}.
func (s *Service) RoleNames(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.repo.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names, nil
}

// ResolvePermissions returns the union of permissions across every role
// assigned to the principal, deduplicated and sorted. A principal with
// no roles resolves to an empty, non-nil set.
func (s *Service) ResolvePermissions(ctx context.Context, userID string) ([]string, error) {
	perms, err := s.repo.ResolvePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dedupe(perms), nil
}

func (s *Service) membersSnapshot(ctx context.Context, roleID string) ([]string, map[string][]string, error) {
	members, err := s.repo.ListRoleMembers(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}
	before, err := s.snapshotPermissions(ctx, members)
	if err != nil {
		return nil, nil, err
	}
	return members, before, nil
}

func (s *Service) snapshotPermissions(ctx context.Context, userIDs []string) (map[string][]string, error) {
	snapshot := make(map[string][]string, len(userIDs))
	for _, id := range userIDs {
		perms, err := s.ResolvePermissions(ctx, id)
		if err != nil {
			return nil, err
		}
		snapshot[id] = perms
	}
	return snapshot, nil
}

func (s *Service) fanOutPermissionChanges(ctx context.Context, userIDs []string, before map[string][]string) {
	for _, id := range userIDs {
		after, err := s.ResolvePermissions(ctx, id)
		if err != nil {
			// The graph write already committed. Invalidate anyway so
			// the next read repopulates from fresh state.
			s.warn("resolve after graph change", id, err)
			s.invalidate(ctx, id)
			continue
		}
		s.invalidate(ctx, id)
		s.publisher.PublishBestEffort(ctx, events.NewPermissionsChanged(id, before[id], after))
	}
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.warn("permission cache invalidate", userID, err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: entity, EntityID: entityID, Meta: meta}); err != nil {
		s.warn("audit record", entityID, err)
	}
}

func (s *Service) warn(msg, userID string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.String("user_id", userID), slog.Any("error", err))
	}
}

// dedupe sorts and removes duplicates, returning a non-nil slice.
func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// diff returns the elements of a not present in b.
func diff(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, v := range b {
		seen[v] = struct{}{}
	}
	out := []string{}
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
