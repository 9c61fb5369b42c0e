// Package events propagates auth-state changes between services. The
// auth service publishes on topic-style routing keys; every other
// service subscribes and drops its cached view of the affected
// principal. Delivery is at-least-once from the subscriber's point of
// view, so handlers must be idempotent.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys. Subscribers bind with patterns such as "user.*".
const (
	UserPermissionsChanged = "user.permissions.changed"
	UserRoleAssigned       = "user.role.assigned"
	UserRoleRemoved        = "user.role.removed"
	UserDeactivated        = "user.deactivated"

	EmployeeTerminated = "employee.terminated"
	EmployeeUpdated    = "employee.updated"
)

// PatternUserEvents matches every auth event a consuming service cares about.
const PatternUserEvents = "user.*"

// PatternEmployeeEvents matches employee lifecycle events consumed by authd.
const PatternEmployeeEvents = "employee.*"

// Event is the common envelope. Kind-specific fields are empty for
// kinds that do not carry them.
type Event struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id"`

	// user.permissions.changed
	OldPermissions     []string `json:"old_permissions,omitempty"`
	NewPermissions     []string `json:"new_permissions,omitempty"`
	AddedPermissions   []string `json:"added_permissions,omitempty"`
	RemovedPermissions []string `json:"removed_permissions,omitempty"`

	// user.role.assigned / user.role.removed
	RoleID   string `json:"role_id,omitempty"`
	RoleName string `json:"role_name,omitempty"`

	// employee.updated
	UpdatedFields map[string]string `json:"updated_fields,omitempty"`
}

func newEnvelope(eventType, userID string) Event {
	return Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    userID,
	}
}

// NewPermissionsChanged builds a user.permissions.changed event carrying
// the full before/after sets plus the computed deltas.
func NewPermissionsChanged(userID string, oldPerms, newPerms []string) Event {
	ev := newEnvelope(UserPermissionsChanged, userID)
	ev.OldPermissions = oldPerms
	ev.NewPermissions = newPerms
	ev.AddedPermissions = diff(newPerms, oldPerms)
	ev.RemovedPermissions = diff(oldPerms, newPerms)
	return ev
}

// NewRoleAssigned builds a user.role.assigned event.
func NewRoleAssigned(userID, roleID, roleName string) Event {
	ev := newEnvelope(UserRoleAssigned, userID)
	ev.RoleID = roleID
	ev.RoleName = roleName
	return ev
}

// NewRoleRemoved builds a user.role.removed event.
func NewRoleRemoved(userID, roleID, roleName string) Event {
	ev := newEnvelope(UserRoleRemoved, userID)
	ev.RoleID = roleID
	ev.RoleName = roleName
	return ev
}

// NewUserDeactivated builds a user.deactivated event.
func NewUserDeactivated(userID string) Event {
	return newEnvelope(UserDeactivated, userID)
}

// NewEmployeeTerminated builds an employee.terminated event for the
// user account linked to the employee record.
func NewEmployeeTerminated(userID string) Event {
	return newEnvelope(EmployeeTerminated, userID)
}

// NewEmployeeUpdated builds an employee.updated event with the changed fields.
func NewEmployeeUpdated(userID string, updated map[string]string) Event {
	ev := newEnvelope(EmployeeUpdated, userID)
	ev.UpdatedFields = updated
	return ev
}

// diff returns the elements of a not present in b.
func diff(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		seen[s] = struct{}{}
	}
	out := []string{}
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
