package employee

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const employeeColumns = `id, user_id, first_name, last_name, email, department_id, position_id, status, hired_at, terminated_at, created_at, updated_at`

// CreateDepartment inserts a department. Duplicate names conflict.
func (r *Repository) CreateDepartment(ctx context.Context, name, description string) (Department, error) {
	dep := Department{ID: uuid.NewString(), Name: name, Description: description}
	err := r.pool.QueryRow(ctx, `INSERT INTO departments (id, name, description, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW()) RETURNING created_at, updated_at`,
		dep.ID, dep.Name, dep.Description).Scan(&dep.CreatedAt, &dep.UpdatedAt)
	if err != nil {
		return Department{}, hrErr(err, fmt.Sprintf("department %q", name))
	}
	return dep, nil
}

// ListDepartments returns all departments ordered by name.
func (r *Repository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deps []Department
	for rows.Next() {
		var dep Department
		if err := rows.Scan(&dep.ID, &dep.Name, &dep.Description, &dep.CreatedAt, &dep.UpdatedAt); err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// CreatePosition inserts a position in a department.
func (r *Repository) CreatePosition(ctx context.Context, departmentID, title string) (Position, error) {
	pos := Position{ID: uuid.NewString(), DepartmentID: departmentID, Title: title}
	err := r.pool.QueryRow(ctx, `INSERT INTO positions (id, department_id, title, created_at)
VALUES ($1, $2, $3, NOW()) RETURNING created_at`,
		pos.ID, pos.DepartmentID, pos.Title).Scan(&pos.CreatedAt)
	if err != nil {
		return Position{}, hrErr(err, fmt.Sprintf("position %q", title))
	}
	return pos, nil
}

// ListPositions returns the positions of a department.
func (r *Repository) ListPositions(ctx context.Context, departmentID string) ([]Position, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, department_id, title, created_at FROM positions WHERE department_id=$1 ORDER BY title`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var positions []Position
	for rows.Next() {
		var pos Position
		if err := rows.Scan(&pos.ID, &pos.DepartmentID, &pos.Title, &pos.CreatedAt); err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// CreateEmployee inserts an employee record.
func (r *Repository) CreateEmployee(ctx context.Context, input HireInput) (Employee, error) {
	emp := Employee{
		ID:           uuid.NewString(),
		UserID:       input.UserID,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		DepartmentID: input.DepartmentID,
		PositionID:   input.PositionID,
		Status:       StatusActive,
		HiredAt:      input.HiredAt,
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO employees (id, user_id, first_name, last_name, email, department_id, position_id, status, hired_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()) RETURNING created_at, updated_at`,
		emp.ID, nullString(emp.UserID), emp.FirstName, emp.LastName, emp.Email,
		emp.DepartmentID, emp.PositionID, emp.Status, emp.HiredAt).Scan(&emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		return Employee{}, hrErr(err, fmt.Sprintf("employee %q", input.Email))
	}
	return emp, nil
}

// GetEmployee fetches an employee by id.
func (r *Repository) GetEmployee(ctx context.Context, id string) (Employee, error) {
	var emp Employee
	var userID *string
	err := r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id=$1`, id).Scan(
		&emp.ID, &userID, &emp.FirstName, &emp.LastName, &emp.Email,
		&emp.DepartmentID, &emp.PositionID, &emp.Status, &emp.HiredAt,
		&emp.TerminatedAt, &emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, fmt.Errorf("employee %s: %w", id, shared.ErrNotFound)
		}
		return Employee{}, err
	}
	if userID != nil {
		emp.UserID = *userID
	}
	return emp, nil
}

// ListEmployees returns a page of employees and the total count.
func (r *Repository) ListEmployees(ctx context.Context, page, perPage int) ([]Employee, int, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY last_name, first_name LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var employees []Employee
	for rows.Next() {
		var emp Employee
		var userID *string
		if err := rows.Scan(&emp.ID, &userID, &emp.FirstName, &emp.LastName, &emp.Email,
			&emp.DepartmentID, &emp.PositionID, &emp.Status, &emp.HiredAt,
			&emp.TerminatedAt, &emp.CreatedAt, &emp.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if userID != nil {
			emp.UserID = *userID
		}
		employees = append(employees, emp)
	}
	return employees, total, rows.Err()
}

// UpdateEmployee applies the non-nil fields.
func (r *Repository) UpdateEmployee(ctx context.Context, id string, input UpdateInput) (Employee, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE employees SET
first_name = COALESCE($2, first_name),
last_name = COALESCE($3, last_name),
email = COALESCE($4, email),
department_id = COALESCE($5, department_id),
position_id = COALESCE($6, position_id),
status = COALESCE($7, status),
updated_at = NOW()
WHERE id=$1`, id, input.FirstName, input.LastName, input.Email, input.DepartmentID, input.PositionID, input.Status)
	if err != nil {
		return Employee{}, hrErr(err, fmt.Sprintf("employee %s", id))
	}
	if tag.RowsAffected() == 0 {
		return Employee{}, fmt.Errorf("employee %s: %w", id, shared.ErrNotFound)
	}
	return r.GetEmployee(ctx, id)
}

// TerminateEmployee transitions the record to terminated. Terminating
// an already terminated employee is NotFound so the caller does not
// publish a second event.
func (r *Repository) TerminateEmployee(ctx context.Context, id string, at time.Time) (Employee, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE employees SET status=$2, terminated_at=$3, updated_at=NOW()
WHERE id=$1 AND status <> $2`, id, StatusTerminated, at.UTC())
	if err != nil {
		return Employee{}, err
	}
	if tag.RowsAffected() == 0 {
		return Employee{}, fmt.Errorf("employee %s: %w", id, shared.ErrNotFound)
	}
	return r.GetEmployee(ctx, id)
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func hrErr(err error, subject string) error {
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
