package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-hr/meridian-hr/internal/platform/db"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Repository persists payroll data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SetSalary inserts a new salary record for an employee. The latest
// record by effective_from wins.
func (r *Repository) SetSalary(ctx context.Context, input SetSalaryInput) (SalaryRecord, error) {
	record := SalaryRecord{
		ID:             uuid.NewString(),
		EmployeeID:     input.EmployeeID,
		BaseCents:      input.BaseCents,
		AllowanceCents: input.AllowanceCents,
		DeductionCents: input.DeductionCents,
		Currency:       input.Currency,
		EffectiveFrom:  input.EffectiveFrom,
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO salary_records (id, employee_id, base_cents, allowance_cents, deduction_cents, currency, effective_from, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`,
		record.ID, record.EmployeeID, record.BaseCents, record.AllowanceCents,
		record.DeductionCents, record.Currency, record.EffectiveFrom).Scan(&record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return SalaryRecord{}, fmt.Errorf("employee %s: %w", input.EmployeeID, shared.ErrNotFound)
		}
		return SalaryRecord{}, err
	}
	return record, nil
}

// GetSalary returns the salary record in force for the employee.
func (r *Repository) GetSalary(ctx context.Context, employeeID string) (SalaryRecord, error) {
	var record SalaryRecord
	err := r.pool.QueryRow(ctx, `SELECT id, employee_id, base_cents, allowance_cents, deduction_cents, currency, effective_from, created_at
FROM salary_records WHERE employee_id=$1 AND effective_from <= NOW()
ORDER BY effective_from DESC LIMIT 1`, employeeID).Scan(
		&record.ID, &record.EmployeeID, &record.BaseCents, &record.AllowanceCents,
		&record.DeductionCents, &record.Currency, &record.EffectiveFrom, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalaryRecord{}, fmt.Errorf("salary for employee %s: %w", employeeID, shared.ErrNotFound)
		}
		return SalaryRecord{}, err
	}
	return record, nil
}

// ListActiveSalaries returns the salary in force for every active
// employee, with the employee's display name.
func (r *Repository) ListActiveSalaries(ctx context.Context) ([]SalaryRecord, map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (s.employee_id)
s.id, s.employee_id, s.base_cents, s.allowance_cents, s.deduction_cents, s.currency, s.effective_from, s.created_at,
e.first_name || ' ' || e.last_name
FROM salary_records s
JOIN employees e ON e.id = s.employee_id AND e.status = 'active'
WHERE s.effective_from <= NOW()
ORDER BY s.employee_id, s.effective_from DESC`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var records []SalaryRecord
	names := map[string]string{}
	for rows.Next() {
		var record SalaryRecord
		var name string
		if err := rows.Scan(&record.ID, &record.EmployeeID, &record.BaseCents, &record.AllowanceCents,
			&record.DeductionCents, &record.Currency, &record.EffectiveFrom, &record.CreatedAt, &name); err != nil {
			return nil, nil, err
		}
		records = append(records, record)
		names[record.EmployeeID] = name
	}
	return records, names, rows.Err()
}

// CreateRun stores a run and its payslips in one transaction. A second
// run for the same period maps to shared.ErrConflict.
func (r *Repository) CreateRun(ctx context.Context, run Run, slips []Payslip) (Run, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO payroll_runs (id, period, status, gross_cents, net_cents, created_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING created_at`,
			run.ID, run.Period, run.Status, run.GrossCents, run.NetCents).Scan(&run.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("payroll run for %s: %w", run.Period, shared.ErrConflict)
			}
			return err
		}
		for _, slip := range slips {
			if _, err := tx.Exec(ctx, `INSERT INTO payslips (id, run_id, employee_id, employee_name, period, base_cents, allowance_cents, deduction_cents, tax_cents, gross_cents, net_cents, currency, pdf_rendered, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, FALSE, NOW())`,
				slip.ID, run.ID, slip.EmployeeID, slip.EmployeeName, slip.Period,
				slip.BaseCents, slip.AllowanceCents, slip.DeductionCents, slip.TaxCents,
				slip.GrossCents, slip.NetCents, slip.Currency); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// GetRun fetches a run by id.
func (r *Repository) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := r.pool.QueryRow(ctx, `SELECT id, period, status, gross_cents, net_cents, created_at, completed_at FROM payroll_runs WHERE id=$1`, id).
		Scan(&run.ID, &run.Period, &run.Status, &run.GrossCents, &run.NetCents, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, fmt.Errorf("payroll run %s: %w", id, shared.ErrNotFound)
		}
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (r *Repository) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, period, status, gross_cents, net_cents, created_at, completed_at FROM payroll_runs ORDER BY period DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Period, &run.Status, &run.GrossCents, &run.NetCents, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListPayslips returns the payslips of a run.
func (r *Repository) ListPayslips(ctx context.Context, runID string) ([]Payslip, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, run_id, employee_id, employee_name, period, base_cents, allowance_cents, deduction_cents, tax_cents, gross_cents, net_cents, currency, pdf_rendered, created_at
FROM payslips WHERE run_id=$1 ORDER BY employee_name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slips []Payslip
	for rows.Next() {
		var slip Payslip
		if err := rows.Scan(&slip.ID, &slip.RunID, &slip.EmployeeID, &slip.EmployeeName, &slip.Period,
			&slip.BaseCents, &slip.AllowanceCents, &slip.DeductionCents, &slip.TaxCents,
			&slip.GrossCents, &slip.NetCents, &slip.Currency, &slip.PDFRendered, &slip.CreatedAt); err != nil {
			return nil, err
		}
		slips = append(slips, slip)
	}
	return slips, rows.Err()
}

// GetPayslip fetches one payslip.
func (r *Repository) GetPayslip(ctx context.Context, id string) (Payslip, error) {
	var slip Payslip
	err := r.pool.QueryRow(ctx, `SELECT id, run_id, employee_id, employee_name, period, base_cents, allowance_cents, deduction_cents, tax_cents, gross_cents, net_cents, currency, pdf_rendered, created_at
FROM payslips WHERE id=$1`, id).Scan(&slip.ID, &slip.RunID, &slip.EmployeeID, &slip.EmployeeName, &slip.Period,
		&slip.BaseCents, &slip.AllowanceCents, &slip.DeductionCents, &slip.TaxCents,
		&slip.GrossCents, &slip.NetCents, &slip.Currency, &slip.PDFRendered, &slip.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payslip{}, fmt.Errorf("payslip %s: %w", id, shared.ErrNotFound)
		}
		return Payslip{}, err
	}
	return slip, nil
}

// StorePayslipPDF saves the rendered document and marks the slip done.
func (r *Repository) StorePayslipPDF(ctx context.Context, id string, pdf []byte) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payslips SET pdf=$2, pdf_rendered=TRUE WHERE id=$1`, id, pdf)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payslip %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// MarkRunCompleted flips a pending run to completed.
func (r *Repository) MarkRunCompleted(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payroll_runs SET status=$2, completed_at=$3 WHERE id=$1 AND status=$4`,
		id, RunStatusCompleted, at.UTC(), RunStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payroll run %s: %w", id, shared.ErrNotFound)
	}
	return nil
}
