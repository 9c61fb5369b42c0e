// Package permcache is the distributed permission cache consulted by
// services that cannot query the permission graph directly. It is an
// optimization layer, never a source of truth: entries expire after a
// TTL and are dropped eagerly when auth events arrive.
package permcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how stale a cached permission set can get when an
// invalidation event is lost.
const DefaultTTL = time.Hour

// ErrMiss indicates no cached entry for the principal. Distinct from an
// empty permission set, which is a valid cached value.
var ErrMiss = errors.New("permcache: miss")

// Cache stores principal -> permission set with TTL-bounded freshness.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a Cache. A non-positive ttl falls back to DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func permissionsKey(userID string) string {
	return "user_permissions:" + userID
}

func rolesKey(userID string) string {
	return "user_roles:" + userID
}

// GetPermissions returns the cached permission set for a principal, or
// ErrMiss when no entry exists.
func (c *Cache) GetPermissions(ctx context.Context, userID string) ([]string, error) {
	return c.get(ctx, permissionsKey(userID))
}

// SetPermissions caches the permission set with the configured TTL. An
// empty set is stored as an empty array, not skipped.
func (c *Cache) SetPermissions(ctx context.Context, userID string, permissions []string) error {
	return c.set(ctx, permissionsKey(userID), permissions)
}

// GetRoles returns the cached role names for a principal.
func (c *Cache) GetRoles(ctx context.Context, userID string) ([]string, error) {
	return c.get(ctx, rolesKey(userID))
}

// SetRoles caches the role names with the configured TTL.
func (c *Cache) SetRoles(ctx context.Context, userID string, roles []string) error {
	return c.set(ctx, rolesKey(userID), roles)
}

// Invalidate drops every cached entry for the principal. Invalidating a
// principal with no entries is a no-op, which keeps duplicate event
// delivery harmless.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, permissionsKey(userID), rolesKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("permcache: invalidate %s: %w", userID, err)
	}
	return nil
}

func (c *Cache) get(ctx context.Context, key string) ([]string, error) {
	if c == nil || c.client == nil {
		return nil, ErrMiss
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("permcache: get %s: %w", key, err)
	}
	var values []string
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, fmt.Errorf("permcache: decode %s: %w", key, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func (c *Cache) set(ctx context.Context, key string, values []string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if values == nil {
		values = []string{}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("permcache: encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("permcache: set %s: %w", key, err)
	}
	return nil
}
