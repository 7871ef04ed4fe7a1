package domain

import "time"

type KYCSummary struct {
	Passed      bool     `json:"passed"`
	NeedsReview bool     `json:"needs_review"`
	Warnings    []string `json:"warnings,omitempty"`
	Failures    []string `json:"failures,omitempty"`
}

type ExplanationSource string

const (
	ExplanationLLM      ExplanationSource = "llm"
	ExplanationTemplate ExplanationSource = "template"
)

type Application struct {
	ID                string            `json:"id"`
	Profile           ApplicantProfile  `json:"profile"`
	Stage             Stage             `json:"stage"`
	Assessment        *RiskAssessment   `json:"assessment,omitempty"`
	Decision          *DecisionRecord   `json:"decision,omitempty"`
	KYC               *KYCSummary       `json:"kyc,omitempty"`
	Explanation       string            `json:"explanation,omitempty"`
	ExplanationSource ExplanationSource `json:"explanation_source,omitempty"`
	Version           int               `json:"version"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// CurrentDecision returns the empty decision before one has been recorded.
func (a *Application) CurrentDecision() Decision {
	if a == nil || a.Decision == nil {
		return ""
	}
	return a.Decision.Decision
}
