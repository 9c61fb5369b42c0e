// Package payroll computes pay runs from salary records and renders
// payslips. All monetary amounts are integer cents; formatting happens
// only at the presentation edge.
package payroll

import "time"

// Run status values.
const (
	RunStatusPending   = "pending"
	RunStatusCompleted = "completed"
)

// SalaryRecord is the active compensation for an employee. A new record
// supersedes the previous one from EffectiveFrom onward.
type SalaryRecord struct {
	ID             string    `json:"id"`
	EmployeeID     string    `json:"employee_id"`
	BaseCents      int64     `json:"base_cents"`
	AllowanceCents int64     `json:"allowance_cents"`
	DeductionCents int64     `json:"deduction_cents"`
	Currency       string    `json:"currency"`
	EffectiveFrom  time.Time `json:"effective_from"`
	CreatedAt      time.Time `json:"created_at"`
}

// Run is one payroll calculation for a period (YYYY-MM).
type Run struct {
	ID          string     `json:"id"`
	Period      string     `json:"period"`
	Status      string     `json:"status"`
	GrossCents  int64      `json:"gross_cents"`
	NetCents    int64      `json:"net_cents"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Payslip is one employee's slice of a run.
type Payslip struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	EmployeeID     string    `json:"employee_id"`
	EmployeeName   string    `json:"employee_name"`
	Period         string    `json:"period"`
	BaseCents      int64     `json:"base_cents"`
	AllowanceCents int64     `json:"allowance_cents"`
	DeductionCents int64     `json:"deduction_cents"`
	TaxCents       int64     `json:"tax_cents"`
	GrossCents     int64     `json:"gross_cents"`
	NetCents       int64     `json:"net_cents"`
	Currency       string    `json:"currency"`
	PDFRendered    bool      `json:"pdf_rendered"`
	CreatedAt      time.Time `json:"created_at"`
}

// SetSalaryInput carries a new salary record.
type SetSalaryInput struct {
	EmployeeID     string
	BaseCents      int64
	AllowanceCents int64
	DeductionCents int64
	Currency       string
	EffectiveFrom  time.Time
}
