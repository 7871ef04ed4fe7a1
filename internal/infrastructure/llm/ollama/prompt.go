package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

// buildExplanationPrompt never includes identity numbers or contact details.
func buildExplanationPrompt(app domain.Application) string {
	var facts strings.Builder
	decision := app.Decision
	fmt.Fprintf(&facts, "decision=%s decided_by=%s\n", decision.Decision, decision.Maker)
	if decision.Maker == domain.DecisionMakerAdmin && decision.OverrideReason != "" {
		fmt.Fprintf(&facts, "reviewer_note=%s\n", decision.OverrideReason)
	}

	if a := app.Assessment; a != nil {
		fmt.Fprintf(&facts, "risk_score=%d/100\n", a.RiskScore)
		fmt.Fprintf(&facts, "income=%d/30 employment=%d/20 debt_to_income=%d/25 age=%d/10 loan_to_income=%d/15\n",
			a.Breakdown.Income, a.Breakdown.Employment, a.Breakdown.DTI, a.Breakdown.Age, a.Breakdown.LoanToIncome)
		if a.HardReject != "" {
			fmt.Fprintf(&facts, "hard_reject=%s\n", a.HardReject)
		}
		if len(a.TriggeredRules) > 0 {
			fmt.Fprintf(&facts, "rules=%s\n", strings.Join(a.TriggeredRules, "; "))
		}
	}

	if k := app.KYC; k != nil {
		fmt.Fprintf(&facts, "documents_verified=%t needs_review=%t\n", k.Passed, k.NeedsReview)
		for _, failure := range k.Failures {
			fmt.Fprintf(&facts, "document_issue=%s\n", failure)
		}
		for _, warning := range k.Warnings {
			fmt.Fprintf(&facts, "document_warning=%s\n", warning)
		}
	}

	return fmt.Sprintf(`You write short explanations of loan decisions for the applicant.
Use only the facts below. Do not invent numbers, policies or next steps that are not implied by the facts.
Write two to four plain sentences addressed to the applicant as "you". No markdown, no lists.

Facts:
%s`, facts.String())
}
