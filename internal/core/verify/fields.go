package verify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

const (
	DefaultNameThreshold          = 0.80
	DefaultSalaryTolerancePercent = 15
	softFlagPenalty               = 20
)

var (
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadhaarPattern = regexp.MustCompile(`^[2-9][0-9]{11}$`)
)

// FieldValidator reconciles OCR output against form-entered claims. It never
// fails a document on its own: each check yields a pass/fail plus a flag.
type FieldValidator struct {
	NameThreshold          float64
	SalaryTolerancePercent int
}

func NewFieldValidator(nameThreshold float64, salaryTolerancePercent int) FieldValidator {
	if nameThreshold <= 0 || nameThreshold > 1 {
		nameThreshold = DefaultNameThreshold
	}
	if salaryTolerancePercent <= 0 {
		salaryTolerancePercent = DefaultSalaryTolerancePercent
	}
	return FieldValidator{
		NameThreshold:          nameThreshold,
		SalaryTolerancePercent: salaryTolerancePercent,
	}
}

func (v FieldValidator) Validate(docType domain.DocumentType, fields domain.ExtractedFields, profile domain.ApplicantProfile) []domain.FieldCheck {
	switch docType {
	case domain.DocumentAadhaar:
		if fields.Aadhaar == nil {
			return []domain.FieldCheck{missingFields(docType)}
		}
		return []domain.FieldCheck{
			v.checkName("aadhaar_name", fields.Aadhaar.Name, profile.Name),
			checkIDFormat("aadhaar_number", compactDigits(fields.Aadhaar.Number), aadhaarPattern),
			checkDeclaredID("aadhaar_declared", compactDigits(fields.Aadhaar.Number), compactDigits(profile.DeclaredAadhaar)),
		}
	case domain.DocumentPAN:
		if fields.PAN == nil {
			return []domain.FieldCheck{missingFields(docType)}
		}
		number := strings.ToUpper(strings.TrimSpace(fields.PAN.Number))
		return []domain.FieldCheck{
			v.checkName("pan_name", fields.PAN.Name, profile.Name),
			checkIDFormat("pan_number", number, panPattern),
			checkDeclaredID("pan_declared", number, strings.ToUpper(strings.TrimSpace(profile.DeclaredPAN))),
		}
	case domain.DocumentSalarySlip:
		if fields.SalarySlip == nil {
			return []domain.FieldCheck{missingFields(docType)}
		}
		checks := []domain.FieldCheck{
			v.checkName("salary_slip_name", fields.SalarySlip.EmployeeName, profile.Name),
			v.checkIncome("salary_slip_amount", "slip", fields.SalarySlip.NetSalary, profile.MonthlyIncome),
		}
		if strings.TrimSpace(profile.EmployerName) != "" {
			checks = append(checks, v.checkName("salary_slip_employer", fields.SalarySlip.EmployerName, profile.EmployerName))
		}
		return checks
	case domain.DocumentBankStatement:
		if fields.BankStatement == nil {
			return []domain.FieldCheck{missingFields(docType)}
		}
		checks := []domain.FieldCheck{
			v.checkName("bank_statement_name", fields.BankStatement.AccountHolderName, profile.Name),
		}
		// Only the spreadsheet extractor derives an average; image OCR never
		// reports one, so its absence is not flagged.
		if fields.BankStatement.AverageMonthlyCredit != nil {
			checks = append(checks, v.checkIncome("bank_statement_income", "statement", fields.BankStatement.AverageMonthlyCredit, profile.MonthlyIncome))
		}
		return checks
	default:
		return nil
	}
}

// Confidence starts at 100 and loses a fixed penalty per failed soft check.
func Confidence(checks []domain.FieldCheck) int {
	score := 100
	for _, check := range checks {
		if !check.Passed && check.Severity == domain.SeveritySoft {
			score -= softFlagPenalty
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

func (v FieldValidator) checkName(name, extracted, claimed string) domain.FieldCheck {
	check := domain.FieldCheck{Name: name, Severity: domain.SeveritySoft}
	if strings.TrimSpace(extracted) == "" {
		check.Flag = fmt.Sprintf("%s: field missing from OCR output", name)
		return check
	}
	similarity := NameSimilarity(extracted, claimed)
	if similarity < v.NameThreshold {
		check.Flag = fmt.Sprintf("%s: %q does not match %q (similarity %.2f)", name, extracted, claimed, similarity)
		return check
	}
	check.Passed = true
	return check
}

// checkIncome compares a document amount with the declared monthly income
// inside the salary tolerance band.
func (v FieldValidator) checkIncome(name, source string, observed *int64, declared int64) domain.FieldCheck {
	check := domain.FieldCheck{Name: name, Severity: domain.SeveritySoft}
	if observed == nil {
		check.Flag = name + ": field missing from OCR output"
		return check
	}
	if declared <= 0 {
		check.Flag = name + ": no declared monthly income to compare"
		return check
	}
	deviation := decimal.NewFromInt(*observed - declared).Abs().
		Div(decimal.NewFromInt(declared)).
		Mul(decimal.NewFromInt(100))
	if deviation.GreaterThan(decimal.NewFromInt(int64(v.SalaryTolerancePercent))) {
		check.Flag = fmt.Sprintf("%s: %s shows %d, form declares %d (%s%% apart, tolerance %d%%)",
			name, source, *observed, declared, deviation.StringFixed(1), v.SalaryTolerancePercent)
		return check
	}
	check.Passed = true
	return check
}

func checkIDFormat(name, value string, pattern *regexp.Regexp) domain.FieldCheck {
	check := domain.FieldCheck{Name: name, Severity: domain.SeverityHard}
	if value == "" {
		check.Severity = domain.SeveritySoft
		check.Flag = fmt.Sprintf("%s: field missing from OCR output", name)
		return check
	}
	if !pattern.MatchString(value) {
		check.Flag = fmt.Sprintf("%s: %q has an invalid format", name, value)
		return check
	}
	check.Passed = true
	return check
}

// checkDeclaredID passes when nothing was declared on the form.
func checkDeclaredID(name, extracted, declared string) domain.FieldCheck {
	check := domain.FieldCheck{Name: name, Severity: domain.SeverityHard, Passed: true}
	if declared == "" || extracted == "" {
		return check
	}
	if extracted != declared {
		check.Passed = false
		check.Flag = fmt.Sprintf("%s: document number does not match the declared number", name)
	}
	return check
}

func missingFields(docType domain.DocumentType) domain.FieldCheck {
	return domain.FieldCheck{
		Name:     string(docType) + "_fields",
		Severity: domain.SeveritySoft,
		Flag:     fmt.Sprintf("%s: no fields extracted", docType),
	}
}

func compactDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
