package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
)

// explain asks the generator for a paragraph and falls back to the template
// when it is absent, erroring or returns nothing. The returned error is only
// informational; the explanation is always usable.
func explain(ctx context.Context, generator ports.ExplanationGenerator, app domain.Application) (string, domain.ExplanationSource, error) {
	if generator == nil {
		return templateExplanation(app), domain.ExplanationTemplate, nil
	}
	text, err := generator.GenerateExplanation(ctx, app)
	if err != nil {
		return templateExplanation(app), domain.ExplanationTemplate, fmt.Errorf("generate explanation: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return templateExplanation(app), domain.ExplanationTemplate, nil
	}
	return text, domain.ExplanationLLM, nil
}

func templateExplanation(app domain.Application) string {
	score := 0
	hardReject := ""
	if app.Assessment != nil {
		score = app.Assessment.RiskScore
		hardReject = app.Assessment.HardReject
	}

	switch app.CurrentDecision() {
	case domain.DecisionApproved:
		return fmt.Sprintf(
			"Your application for a loan of %d over %d months has been approved. Your risk score is %d out of 100 and your documents were verified.",
			app.Profile.LoanAmount, app.Profile.TenureMonths, score,
		)
	case domain.DecisionRejected:
		if hardReject != "" {
			return fmt.Sprintf("Your application could not be approved because of an eligibility rule: %s.", hardReject)
		}
		return fmt.Sprintf(
			"Your application could not be approved. Your risk score is %d out of 100, below the minimum required for a loan of %d.",
			score, app.Profile.LoanAmount,
		)
	default:
		return fmt.Sprintf(
			"Your application needs a manual review before a final decision. Your risk score is %d out of 100 and an underwriter will contact you.",
			score,
		)
	}
}
