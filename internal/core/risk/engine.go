// Package risk implements the deterministic multi-factor credit risk score.
//
// Four hard-reject gates run first and short-circuit to a zero score. Otherwise
// five weighted sub-scores are summed (weights total 100) and the total is
// mapped onto approved, pending or rejected. Every evaluated tier appends one
// entry to TriggeredRules in the fixed order income, employment, debt-to-income,
// age, loan-to-income, decision; that list is the applicant-facing explanation.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

const (
	MinAge           = 21
	MaxAge           = 60
	IncomeFloor      = 20000
	ApproveAtOrAbove = 85
	ReviewAtOrAbove  = 60

	MaxIncomeScore       = 35
	MaxEmploymentScore   = 20
	MaxDTIScore          = 25
	MaxAgeScore          = 10
	MaxLoanToIncomeScore = 10
)

const (
	GateAge        = "age_out_of_range"
	GateIncome     = "income_below_floor"
	GateEmployment = "unsupported_employment"
	GateDTI        = "dti_above_limit"
)

var (
	one          = decimal.NewFromInt(1)
	dtiGateLimit = decimal.RequireFromString("0.50")
)

type incomeTier struct {
	min    int64
	points int
}

var incomeTiers = []incomeTier{
	{min: 100000, points: 35},
	{min: 60000, points: 30},
	{min: 40000, points: 24},
	{min: 25000, points: 18},
	{min: 20000, points: 12},
}

type ratioTier struct {
	max    decimal.Decimal
	label  string
	points int
}

var dtiTiers = []ratioTier{
	{max: decimal.RequireFromString("0.10"), label: "0.10", points: 25},
	{max: decimal.RequireFromString("0.20"), label: "0.20", points: 20},
	{max: decimal.RequireFromString("0.30"), label: "0.30", points: 15},
	{max: decimal.RequireFromString("0.40"), label: "0.40", points: 10},
	{max: decimal.RequireFromString("0.50"), label: "0.50", points: 5},
}

var ltiTiers = []ratioTier{
	{max: decimal.RequireFromString("0.30"), label: "0.30", points: 10},
	{max: decimal.RequireFromString("0.50"), label: "0.50", points: 7},
	{max: decimal.RequireFromString("0.70"), label: "0.70", points: 4},
}

type ageTier struct {
	min, max int
	points   int
}

var ageTiers = []ageTier{
	{min: 25, max: 45, points: 10},
	{min: 21, max: 24, points: 8},
	{min: 46, max: 55, points: 6},
	{min: 56, max: 60, points: 3},
}

// Score evaluates profile. It performs no I/O and is fully deterministic.
func Score(profile domain.ApplicantProfile) domain.RiskAssessment {
	assessment := domain.RiskAssessment{
		ProfileVersion: profile.Version,
		TriggeredRules: make([]string, 0, 6),
	}

	dti := DebtToIncome(profile.ExistingEMI, profile.MonthlyIncome)
	if gate, rule, fired := evaluateGates(profile, dti); fired {
		assessment.Decision = domain.DecisionRejected
		assessment.HardReject = gate
		assessment.TriggeredRules = append(assessment.TriggeredRules, rule)
		return assessment
	}

	var rule string
	b := &assessment.Breakdown

	b.Income, rule = incomeScore(profile.MonthlyIncome)
	assessment.TriggeredRules = append(assessment.TriggeredRules, rule)

	b.Employment, rule = employmentScore(profile.EmploymentType)
	assessment.TriggeredRules = append(assessment.TriggeredRules, rule)

	b.DTI, rule = ratioScore("debt-to-income", dti, dtiTiers)
	assessment.TriggeredRules = append(assessment.TriggeredRules, rule)

	b.Age, rule = ageScore(profile.Age)
	assessment.TriggeredRules = append(assessment.TriggeredRules, rule)

	lti := LoanToIncome(profile.LoanAmount, profile.MonthlyIncome, profile.TenureMonths)
	b.LoanToIncome, rule = ratioScore("loan-to-income", lti, ltiTiers)
	assessment.TriggeredRules = append(assessment.TriggeredRules, rule)

	assessment.RiskScore = b.Total()
	assessment.Decision, rule = decide(assessment.RiskScore)
	assessment.TriggeredRules = append(assessment.TriggeredRules, rule)
	return assessment
}

// DebtToIncome returns emi/income, or 1 when income is not positive.
func DebtToIncome(emi, income int64) decimal.Decimal {
	if income <= 0 {
		return one
	}
	return decimal.NewFromInt(emi).Div(decimal.NewFromInt(income))
}

// LoanToIncome returns loan/(income*tenure), or 1 when the denominator is not positive.
func LoanToIncome(loan, income int64, tenureMonths int) decimal.Decimal {
	denominator := decimal.NewFromInt(income).Mul(decimal.NewFromInt(int64(tenureMonths)))
	if !denominator.IsPositive() {
		return one
	}
	return decimal.NewFromInt(loan).Div(denominator)
}

func evaluateGates(p domain.ApplicantProfile, dti decimal.Decimal) (string, string, bool) {
	switch {
	case p.Age < MinAge || p.Age > MaxAge:
		return GateAge, fmt.Sprintf("hard reject: age %d is outside the accepted range %d-%d", p.Age, MinAge, MaxAge), true
	case p.MonthlyIncome < IncomeFloor:
		return GateIncome, fmt.Sprintf("hard reject: monthly income %d is below the %d floor", p.MonthlyIncome, IncomeFloor), true
	case !p.EmploymentType.Supported():
		return GateEmployment, fmt.Sprintf("hard reject: employment type %q is not supported", p.EmploymentType), true
	case dti.GreaterThan(dtiGateLimit):
		return GateDTI, fmt.Sprintf("hard reject: debt-to-income %s exceeds %s", dti.StringFixed(3), dtiGateLimit.StringFixed(2)), true
	}
	return "", "", false
}

func incomeScore(income int64) (int, string) {
	for _, tier := range incomeTiers {
		if income >= tier.min {
			return tier.points, fmt.Sprintf("income: %d >= %d, +%d points", income, tier.min, tier.points)
		}
	}
	return 0, fmt.Sprintf("income: %d below %d, +0 points", income, IncomeFloor)
}

func employmentScore(employment domain.EmploymentType) (int, string) {
	switch employment {
	case domain.EmploymentSalaried:
		return 20, "employment: salaried, +20 points"
	case domain.EmploymentSelfEmployed:
		return 15, "employment: self_employed, +15 points"
	default:
		return 0, fmt.Sprintf("employment: %q unsupported, +0 points", employment)
	}
}

func ratioScore(name string, ratio decimal.Decimal, tiers []ratioTier) (int, string) {
	for _, tier := range tiers {
		if ratio.LessThanOrEqual(tier.max) {
			return tier.points, fmt.Sprintf("%s: %s <= %s, +%d points", name, ratio.StringFixed(3), tier.label, tier.points)
		}
	}
	last := tiers[len(tiers)-1]
	return 0, fmt.Sprintf("%s: %s > %s, +0 points", name, ratio.StringFixed(3), last.label)
}

func ageScore(age int) (int, string) {
	for _, tier := range ageTiers {
		if age >= tier.min && age <= tier.max {
			return tier.points, fmt.Sprintf("age: %d within %d-%d, +%d points", age, tier.min, tier.max, tier.points)
		}
	}
	return 0, fmt.Sprintf("age: %d outside scored bands, +0 points", age)
}

func decide(total int) (domain.Decision, string) {
	switch {
	case total >= ApproveAtOrAbove:
		return domain.DecisionApproved, fmt.Sprintf("decision: total %d >= %d, approved", total, ApproveAtOrAbove)
	case total >= ReviewAtOrAbove:
		return domain.DecisionPending, fmt.Sprintf("decision: total %d in %d-%d, pending manual review", total, ReviewAtOrAbove, ApproveAtOrAbove-1)
	default:
		return domain.DecisionRejected, fmt.Sprintf("decision: total %d < %d, rejected", total, ReviewAtOrAbove)
	}
}
