package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// RepositoryPort defines data access methods for payroll.
type RepositoryPort interface {
	SetSalary(ctx context.Context, input SetSalaryInput) (SalaryRecord, error)
	GetSalary(ctx context.Context, employeeID string) (SalaryRecord, error)
	ListActiveSalaries(ctx context.Context) ([]SalaryRecord, map[string]string, error)

	CreateRun(ctx context.Context, run Run, slips []Payslip) (Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context) ([]Run, error)
	ListPayslips(ctx context.Context, runID string) ([]Payslip, error)
	GetPayslip(ctx context.Context, id string) (Payslip, error)
	StorePayslipPDF(ctx context.Context, id string, pdf []byte) error
	MarkRunCompleted(ctx context.Context, id string, at time.Time) error
}

// PayslipEnqueuer hands rendering work to the job queue. Satisfied by
// jobs.Client.
type PayslipEnqueuer interface {
	EnqueuePayslipRender(ctx context.Context, payslipID string) error
}

// Renderer converts HTML to PDF. Satisfied by report.Client.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ErrInvalidPeriod reports a run period not shaped like YYYY-MM.
var ErrInvalidPeriod = errors.New("payroll period must be YYYY-MM")

// Service handles payroll business logic.
type Service struct {
	repo     RepositoryPort
	enqueuer PayslipEnqueuer
	renderer Renderer
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, enqueuer PayslipEnqueuer, renderer Renderer, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, enqueuer: enqueuer, renderer: renderer, audit: audit, logger: logger}
}

// SetSalary records new compensation for an employee.
func (s *Service) SetSalary(ctx context.Context, actorID string, input SetSalaryInput) (SalaryRecord, error) {
	if input.Currency == "" {
		input.Currency = "USD"
	}
	if input.EffectiveFrom.IsZero() {
		input.EffectiveFrom = time.Now().UTC()
	}
	record, err := s.repo.SetSalary(ctx, input)
	if err != nil {
		return SalaryRecord{}, err
	}
	s.recordAudit(ctx, actorID, "salary.set", input.EmployeeID, map[string]any{"base_cents": input.BaseCents})
	return record, nil
}

// GetSalary returns the compensation in force for an employee.
func (s *Service) GetSalary(ctx context.Context, employeeID string) (SalaryRecord, error) {
	return s.repo.GetSalary(ctx, employeeID)
}

// StartRun calculates payslips for every active employee with a salary
// record and enqueues PDF rendering for each slip. One run per period.
func (s *Service) StartRun(ctx context.Context, actorID, period string) (Run, []Payslip, error) {
	if !periodPattern.MatchString(period) {
		return Run{}, nil, fmt.Errorf("%w: got %q", ErrInvalidPeriod, period)
	}
	records, names, err := s.repo.ListActiveSalaries(ctx)
	if err != nil {
		return Run{}, nil, err
	}
	run := Run{ID: uuid.NewString(), Period: period, Status: RunStatusPending}
	slips := make([]Payslip, 0, len(records))
	for _, record := range records {
		slip := Calculate(record)
		slip.ID = uuid.NewString()
		slip.RunID = run.ID
		slip.Period = period
		slip.EmployeeName = names[record.EmployeeID]
		run.GrossCents += slip.GrossCents
		run.NetCents += slip.NetCents
		slips = append(slips, slip)
	}
	run, err = s.repo.CreateRun(ctx, run, slips)
	if err != nil {
		return Run{}, nil, err
	}
	for _, slip := range slips {
		if err := s.enqueuer.EnqueuePayslipRender(ctx, slip.ID); err != nil {
			// The slip row exists; rendering can be retried later.
			s.warn("enqueue payslip render", slip.ID, err)
		}
	}
	s.recordAudit(ctx, actorID, "payroll.run", run.ID, map[string]any{"period": period, "payslips": len(slips)})
	return run, slips, nil
}

// GetRun returns a run by id.
func (s *Service) GetRun(ctx context.Context, id string) (Run, error) {
	return s.repo.GetRun(ctx, id)
}

// ListRuns returns all runs.
func (s *Service) ListRuns(ctx context.Context) ([]Run, error) {
	return s.repo.ListRuns(ctx)
}

// ListPayslips returns the payslips of a run.
func (s *Service) ListPayslips(ctx context.Context, runID string) ([]Payslip, error) {
	return s.repo.ListPayslips(ctx, runID)
}

// RenderPayslip renders one payslip to PDF and stores it. Called from
// the job worker; when every slip of the run is rendered the run is
// marked completed.
func (s *Service) RenderPayslip(ctx context.Context, payslipID string) error {
	slip, err := s.repo.GetPayslip(ctx, payslipID)
	if err != nil {
		return err
	}
	if slip.PDFRendered {
		return nil
	}
	html, err := RenderPayslipHTML(slip)
	if err != nil {
		return err
	}
	pdf, err := s.renderer.RenderHTML(ctx, html)
	if err != nil {
		return fmt.Errorf("render payslip %s: %w", payslipID, err)
	}
	if err := s.repo.StorePayslipPDF(ctx, payslipID, pdf); err != nil {
		return err
	}
	s.maybeCompleteRun(ctx, slip.RunID)
	return nil
}

func (s *Service) maybeCompleteRun(ctx context.Context, runID string) {
	slips, err := s.repo.ListPayslips(ctx, runID)
	if err != nil {
		s.warn("list payslips", runID, err)
		return
	}
	for _, slip := range slips {
		if !slip.PDFRendered {
			return
		}
	}
	if err := s.repo.MarkRunCompleted(ctx, runID, time.Now()); err != nil {
		s.warn("complete run", runID, err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "payroll", EntityID: entityID, Meta: meta}); err != nil {
		s.warn("audit record", entityID, err)
	}
}

func (s *Service) warn(msg, id string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.String("id", id), slog.Any("error", err))
	}
}
