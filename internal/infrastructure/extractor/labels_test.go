package extractor

import (
	"testing"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

func TestParseLabeledTextSalarySlip(t *testing.T) {
	text := `ACME Payroll Services
Employee Name : Asha Rao
Company Name: Acme Corp
Pay Period - March 2026
Net Pay:  Rs. 75,000.00
`
	fields := ParseLabeledText(domain.DocumentSalarySlip, text)
	want := map[string]string{
		"employee_name": "Asha Rao",
		"employer_name": "Acme Corp",
		"pay_month":     "March 2026",
		"net_salary":    "Rs. 75,000.00",
	}
	for key, value := range want {
		if fields[key] != value {
			t.Fatalf("%s: expected %q, got %q (all=%v)", key, value, fields[key], fields)
		}
	}

	parsed := domain.ParseExtractedFields(domain.DocumentSalarySlip, fields)
	if parsed.SalarySlip == nil || parsed.SalarySlip.NetSalary == nil || *parsed.SalarySlip.NetSalary != 75000 {
		t.Fatalf("unexpected parsed fields: %+v", parsed.SalarySlip)
	}
}

func TestParseLabeledTextFindsUnlabelledIdentityNumbers(t *testing.T) {
	pan := ParseLabeledText(domain.DocumentPAN, "INCOME TAX DEPARTMENT\nAsha Rao\nabcde1234f\n")
	if pan["pan_number"] != "ABCDE1234F" {
		t.Fatalf("expected PAN from free text, got %v", pan)
	}

	aadhaar := ParseLabeledText(domain.DocumentAadhaar, "Government of India\nDOB: 01/02/1990\n2345 6789 0123\n")
	if aadhaar["aadhaar_number"] != "2345 6789 0123" || aadhaar["dob"] != "01/02/1990" {
		t.Fatalf("unexpected aadhaar fields %v", aadhaar)
	}
}

func TestParseLabeledTextKeepsFirstValue(t *testing.T) {
	fields := ParseLabeledText(domain.DocumentBankStatement, "Account Holder: Asha Rao\nName: Someone Else\nA/C No.: 001122\n")
	if fields["account_holder_name"] != "Asha Rao" || fields["account_number"] != "001122" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestParseLabeledTextSelfieHasNoFields(t *testing.T) {
	if fields := ParseLabeledText(domain.DocumentSelfie, "Name: Asha"); len(fields) != 0 {
		t.Fatalf("selfies carry no fields, got %v", fields)
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := map[string]string{
		"A/C No.":         "a c no",
		"  Father's Name": "father s name",
		"NET PAY":         "net pay",
	}
	for in, want := range tests {
		if got := NormalizeLabel(in); got != want {
			t.Fatalf("NormalizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
