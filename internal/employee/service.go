package employee

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridian-hr/meridian-hr/internal/events"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// RepositoryPort defines data access methods for HR records.
type RepositoryPort interface {
	CreateDepartment(ctx context.Context, name, description string) (Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
	CreatePosition(ctx context.Context, departmentID, title string) (Position, error)
	ListPositions(ctx context.Context, departmentID string) ([]Position, error)

	CreateEmployee(ctx context.Context, input HireInput) (Employee, error)
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context, page, perPage int) ([]Employee, int, error)
	UpdateEmployee(ctx context.Context, id string, input UpdateInput) (Employee, error)
	TerminateEmployee(ctx context.Context, id string, at time.Time) (Employee, error)
}

// Service handles HR business logic.
type Service struct {
	repo      RepositoryPort
	publisher *events.Publisher
	audit     *shared.AuditLogger
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, publisher *events.Publisher, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, audit: audit, logger: logger}
}

// CreateDepartment creates a department.
func (s *Service) CreateDepartment(ctx context.Context, name, description string) (Department, error) {
	return s.repo.CreateDepartment(ctx, name, description)
}

// ListDepartments returns all departments.
func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.repo.ListDepartments(ctx)
}

// CreatePosition creates a position in a department.
func (s *Service) CreatePosition(ctx context.Context, departmentID, title string) (Position, error) {
	return s.repo.CreatePosition(ctx, departmentID, title)
}

// ListPositions returns the positions of a department.
func (s *Service) ListPositions(ctx context.Context, departmentID string) ([]Position, error) {
	return s.repo.ListPositions(ctx, departmentID)
}

// Hire creates an employee record.
func (s *Service) Hire(ctx context.Context, actorID string, input HireInput) (Employee, error) {
	if input.HiredAt.IsZero() {
		input.HiredAt = time.Now().UTC()
	}
	emp, err := s.repo.CreateEmployee(ctx, input)
	if err != nil {
		return Employee{}, err
	}
	s.recordAudit(ctx, actorID, "employee.hire", emp.ID, map[string]any{"email": emp.Email})
	return emp, nil
}

// Get returns an employee record.
func (s *Service) Get(ctx context.Context, id string) (Employee, error) {
	return s.repo.GetEmployee(ctx, id)
}

// List returns a page of employees.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Employee, shared.Pagination, error) {
	employees, total, err := s.repo.ListEmployees(ctx, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return employees, shared.NewPagination(page, perPage, total), nil
}

// Update applies changes and publishes employee.updated with the
// touched fields when the employee is linked to an account.
func (s *Service) Update(ctx context.Context, actorID, id string, input UpdateInput) (Employee, error) {
	emp, err := s.repo.UpdateEmployee(ctx, id, input)
	if err != nil {
		return Employee{}, err
	}
	if emp.UserID != "" {
		s.publisher.PublishBestEffort(ctx, events.NewEmployeeUpdated(emp.UserID, input.Changed()))
	}
	s.recordAudit(ctx, actorID, "employee.update", id, map[string]any{"fields": input.Changed()})
	return emp, nil
}

// Terminate transitions the employee to terminated and publishes
// employee.terminated so the auth service deactivates the linked
// account. The record is kept.
func (s *Service) Terminate(ctx context.Context, actorID, id string) (Employee, error) {
	emp, err := s.repo.TerminateEmployee(ctx, id, time.Now())
	if err != nil {
		return Employee{}, err
	}
	if emp.UserID != "" {
		s.publisher.PublishBestEffort(ctx, events.NewEmployeeTerminated(emp.UserID))
	}
	s.recordAudit(ctx, actorID, "employee.terminate", id, map[string]any{"user_id": emp.UserID})
	return emp, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "employee", EntityID: entityID, Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("employee_id", entityID), slog.Any("error", err))
	}
}
