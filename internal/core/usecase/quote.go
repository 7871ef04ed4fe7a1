package usecase

import (
	"context"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/risk"
)

// RiskQuoteUseCase scores a profile without creating an application.
type RiskQuoteUseCase struct{}

func NewRiskQuoteUseCase() *RiskQuoteUseCase {
	return &RiskQuoteUseCase{}
}

func (uc *RiskQuoteUseCase) Quote(_ context.Context, profile domain.ApplicantProfile) (domain.RiskAssessment, error) {
	if err := profile.Validate(); err != nil {
		return domain.RiskAssessment{}, err
	}
	return risk.Score(profile), nil
}
