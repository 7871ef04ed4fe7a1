package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
)

type OverrideDecisionUseCase struct {
	apps ports.ApplicationRepository
}

func NewOverrideDecisionUseCase(apps ports.ApplicationRepository) *OverrideDecisionUseCase {
	return &OverrideDecisionUseCase{apps: apps}
}

// Override replaces the current decision on a completed application. The
// request is validated before anything is read, and the stored version guards
// against a concurrent override landing in between.
func (uc *OverrideDecisionUseCase) Override(ctx context.Context, req domain.OverrideRequest) (*domain.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	newDecision, _ := req.NewDecision.Decision()

	app, err := uc.apps.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("fetch application by id: %w", err)
	}
	if app.Stage != domain.StageCompleted || app.Decision == nil {
		return nil, domain.WrapError(domain.ErrInvalidTransition, "override decision", fmt.Errorf("application is in stage %s", app.Stage))
	}
	if req.ExpectedVersion != 0 && req.ExpectedVersion != app.Version {
		return nil, domain.WrapError(domain.ErrConflict, "override decision",
			fmt.Errorf("expected version %d, current version %d", req.ExpectedVersion, app.Version))
	}

	if err := domain.Transition(app.Stage, domain.StageDecision); err != nil {
		return nil, err
	}
	if err := domain.Transition(domain.StageDecision, domain.StageCompleted); err != nil {
		return nil, err
	}

	previous := app.Decision.Decision
	record := domain.DecisionRecord{
		Decision:         newDecision,
		Maker:            domain.DecisionMakerAdmin,
		Actor:            req.Actor,
		PreviousDecision: previous,
		OverrideReason:   strings.TrimSpace(req.Reason),
		DecidedAt:        time.Now().UTC(),
	}
	entry := newAuditEntry(
		app.ID,
		req.Actor,
		domain.AuditDecisionOverridden,
		domain.StageDecision,
		domain.AuditStatusSuccess,
		map[string]any{
			"previous_decision": previous,
			"new_decision":      req.NewDecision,
			"reason":            record.OverrideReason,
		},
		record,
	)

	expected := app.Version
	app.Decision = &record
	app.UpdatedAt = record.DecidedAt
	if err := uc.apps.Update(ctx, app, expected, entry); err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			return nil, domain.WrapError(domain.ErrConflict, "override decision", errors.New("application changed concurrently, reload and retry"))
		}
		return nil, fmt.Errorf("apply override: %w", err)
	}

	slog.InfoContext(ctx, "decision_overridden",
		"application_id", app.ID,
		"actor", req.Actor,
		"previous_decision", previous,
		"new_decision", newDecision,
	)
	return app, nil
}
