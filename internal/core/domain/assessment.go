package domain

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionPending  Decision = "pending"
	DecisionRejected Decision = "rejected"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionPending, DecisionRejected:
		return true
	default:
		return false
	}
}

// ScoreBreakdown carries the five weighted sub-scores.
type ScoreBreakdown struct {
	Income       int `json:"income"`
	Employment   int `json:"employment"`
	DTI          int `json:"dti"`
	Age          int `json:"age"`
	LoanToIncome int `json:"loan_to_income"`
}

func (b ScoreBreakdown) Total() int {
	return b.Income + b.Employment + b.DTI + b.Age + b.LoanToIncome
}

// RiskAssessment is produced once per profile version and never mutated.
type RiskAssessment struct {
	RiskScore      int            `json:"risk_score"`
	Decision       Decision       `json:"decision"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	TriggeredRules []string       `json:"triggered_rules"`
	HardReject     string         `json:"hard_reject,omitempty"`
	ProfileVersion int            `json:"profile_version"`
}
