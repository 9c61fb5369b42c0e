// Package employee manages the HR core records: departments, positions
// and employees. Termination is a lifecycle transition, not a delete,
// and notifies the auth service through an employee.terminated event so
// the linked account is deactivated.
package employee

import "time"

// Employee status values.
const (
	StatusActive     = "active"
	StatusOnLeave    = "on_leave"
	StatusTerminated = "terminated"
)

// Department groups positions and employees.
type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Position is a job title within a department.
type Position struct {
	ID           string    `json:"id"`
	DepartmentID string    `json:"department_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
}

// Employee is an HR record, optionally linked to a platform account.
type Employee struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id,omitempty"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	DepartmentID string     `json:"department_id"`
	PositionID   string     `json:"position_id"`
	Status       string     `json:"status"`
	HiredAt      time.Time  `json:"hired_at"`
	TerminatedAt *time.Time `json:"terminated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HireInput carries the fields for a new employee record.
type HireInput struct {
	UserID       string
	FirstName    string
	LastName     string
	Email        string
	DepartmentID string
	PositionID   string
	HiredAt      time.Time
}

// UpdateInput carries optional employee changes. Nil fields are left
// untouched.
type UpdateInput struct {
	FirstName    *string
	LastName     *string
	Email        *string
	DepartmentID *string
	PositionID   *string
	Status       *string
}

// Changed lists the field names an update touches, for the
// employee.updated event payload.
func (in UpdateInput) Changed() map[string]string {
	changed := map[string]string{}
	if in.FirstName != nil {
		changed["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		changed["last_name"] = *in.LastName
	}
	if in.Email != nil {
		changed["email"] = *in.Email
	}
	if in.DepartmentID != nil {
		changed["department_id"] = *in.DepartmentID
	}
	if in.PositionID != nil {
		changed["position_id"] = *in.PositionID
	}
	if in.Status != nil {
		changed["status"] = *in.Status
	}
	return changed
}
