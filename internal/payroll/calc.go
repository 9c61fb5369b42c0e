package payroll

// Flat withholding applied to gross pay. Progressive schedules are a
// per-country concern left to deployment configuration of a future
// release; every figure here still flows through the same fields.
const taxRatePermille = 150

// Calculate derives the payslip figures from a salary record.
// gross = base + allowance, tax = 15% of gross, net = gross - tax - deduction.
func Calculate(record SalaryRecord) Payslip {
	gross := record.BaseCents + record.AllowanceCents
	tax := gross * taxRatePermille / 1000
	net := gross - tax - record.DeductionCents
	if net < 0 {
		net = 0
	}
	return Payslip{
		EmployeeID:     record.EmployeeID,
		BaseCents:      record.BaseCents,
		AllowanceCents: record.AllowanceCents,
		DeductionCents: record.DeductionCents,
		TaxCents:       tax,
		GrossCents:     gross,
		NetCents:       net,
		Currency:       record.Currency,
	}
}
