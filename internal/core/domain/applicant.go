package domain

import (
	"errors"
	"strings"
)

type EmploymentType string

const (
	EmploymentSalaried     EmploymentType = "salaried"
	EmploymentSelfEmployed EmploymentType = "self_employed"
)

// Supported reports whether the scoring engine accepts the employment type.
func (e EmploymentType) Supported() bool {
	return e == EmploymentSalaried || e == EmploymentSelfEmployed
}

// ApplicantProfile holds self-reported attributes. Amounts are plain integers
// in the smallest currency unit the intake form uses.
type ApplicantProfile struct {
	Name           string         `json:"name"`
	Age            int            `json:"age"`
	Phone          string         `json:"phone,omitempty"`
	Email          string         `json:"email,omitempty"`
	EmploymentType EmploymentType `json:"employment_type"`
	MonthlyIncome  int64          `json:"monthly_income"`
	ExistingEMI    int64          `json:"existing_emi"`
	LoanAmount     int64          `json:"loan_amount"`
	TenureMonths   int            `json:"tenure_months"`

	EmployerName    string `json:"employer_name,omitempty"`
	DeclaredPAN     string `json:"declared_pan,omitempty"`
	DeclaredAadhaar string `json:"declared_aadhaar,omitempty"`

	Version int `json:"version"`
}

// Validate rejects profiles the intake form should never produce. Business
// limits such as the age range are scoring gates, not validation errors.
func (p ApplicantProfile) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return WrapError(ErrInvalidInput, "validate profile", errors.New("name is required"))
	case p.Age < 0:
		return WrapError(ErrInvalidInput, "validate profile", errors.New("age must not be negative"))
	case p.MonthlyIncome < 0 || p.ExistingEMI < 0 || p.LoanAmount < 0:
		return WrapError(ErrInvalidInput, "validate profile", errors.New("amounts must not be negative"))
	case p.TenureMonths < 0:
		return WrapError(ErrInvalidInput, "validate profile", errors.New("tenure_months must not be negative"))
	}
	return nil
}
