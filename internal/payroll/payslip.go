package payroll

import (
	"bytes"
	"html/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var payslipTemplate = template.Must(template.New("payslip").
	Funcs(template.FuncMap{"money": FormatMoney}).
	Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Payslip {{.Period}}</title></head>
<body>
<h1>Payslip {{.Period}}</h1>
<p>{{.EmployeeName}} ({{.EmployeeID}})</p>
<table>
<tr><td>Base pay</td><td>{{money .BaseCents .Currency}}</td></tr>
<tr><td>Allowances</td><td>{{money .AllowanceCents .Currency}}</td></tr>
<tr><td>Gross</td><td>{{money .GrossCents .Currency}}</td></tr>
<tr><td>Tax withheld</td><td>{{money .TaxCents .Currency}}</td></tr>
<tr><td>Deductions</td><td>{{money .DeductionCents .Currency}}</td></tr>
<tr><th>Net pay</th><th>{{money .NetCents .Currency}}</th></tr>
</table>
</body>
</html>`))

// FormatMoney renders integer cents as a grouped decimal amount with
// its currency code, e.g. 1234567 cents -> "12,345.67 USD".
func FormatMoney(cents int64, currency string) string {
	printer := message.NewPrinter(language.English)
	whole := cents / 100
	frac := cents % 100
	if frac < 0 {
		frac = -frac
	}
	return printer.Sprintf("%d.%02d %s", whole, frac, currency)
}

// RenderPayslipHTML produces the HTML document sent to the PDF renderer.
func RenderPayslipHTML(slip Payslip) (string, error) {
	var buf bytes.Buffer
	if err := payslipTemplate.Execute(&buf, slip); err != nil {
		return "", err
	}
	return buf.String(), nil
}
