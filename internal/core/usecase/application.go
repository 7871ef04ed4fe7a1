package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
)

type ApplicationUseCase struct {
	apps    ports.ApplicationRepository
	docs    ports.DocumentRepository
	audit   ports.AuditRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewApplicationUseCase(
	apps ports.ApplicationRepository,
	docs ports.DocumentRepository,
	audit ports.AuditRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *ApplicationUseCase {
	return &ApplicationUseCase{
		apps:    apps,
		docs:    docs,
		audit:   audit,
		storage: storage,
		queue:   queue,
	}
}

func (uc *ApplicationUseCase) Create(ctx context.Context, profile domain.ApplicantProfile) (*domain.Application, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Version = 1

	now := time.Now().UTC()
	app := &domain.Application{
		ID:        uuid.NewString(),
		Profile:   profile,
		Stage:     domain.StageIntake,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	entry := newAuditEntry(app.ID, domain.ActorSystem, domain.AuditApplicationCreated, domain.StageIntake, domain.AuditStatusSuccess, profile, nil)

	if err := uc.apps.Create(ctx, app, entry); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

func (uc *ApplicationUseCase) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	app, err := uc.apps.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch application by id: %w", err)
	}
	return app, nil
}

// Resubmit replaces the profile with a new version. It is only allowed before
// credit scoring, so an assessment is never computed from a profile that
// later changes. Verification results from the previous version are not
// reused by the pipeline.
func (uc *ApplicationUseCase) Resubmit(ctx context.Context, id string, profile domain.ApplicantProfile) (*domain.Application, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	app, err := uc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Stage != domain.StageIntake && app.Stage != domain.StageKYCVerification {
		return nil, domain.WrapError(domain.ErrInvalidTransition, "resubmit profile", fmt.Errorf("application is in stage %s", app.Stage))
	}

	previous := app.Profile
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Version = previous.Version + 1
	app.Profile = profile
	app.UpdatedAt = time.Now().UTC()

	entry := newAuditEntry(app.ID, domain.ActorSystem, domain.AuditProfileResubmitted, app.Stage, domain.AuditStatusSuccess,
		map[string]any{"previous_version": previous.Version, "previous": previous},
		profile,
	)
	if err := uc.apps.Update(ctx, app, app.Version, entry); err != nil {
		return nil, fmt.Errorf("resubmit profile: %w", err)
	}
	slog.InfoContext(ctx, "profile_resubmitted", "application_id", app.ID, "profile_version", profile.Version)
	return app, nil
}

// RequestEvaluation queues the application for the worker. Completed
// applications are never re-scored.
func (uc *ApplicationUseCase) RequestEvaluation(ctx context.Context, applicationID string) error {
	app, err := uc.GetByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.Stage == domain.StageCompleted {
		return domain.WrapError(domain.ErrInvalidTransition, "request evaluation", errors.New("application is already completed"))
	}
	if err := uc.queue.PublishApplicationEvaluate(ctx, app.ID); err != nil {
		return fmt.Errorf("publish evaluation event: %w", err)
	}
	return nil
}

// Delete logs the deletion before removing anything. Stored objects are
// removed after the database commit on a best-effort basis.
func (uc *ApplicationUseCase) Delete(ctx context.Context, id, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return domain.WrapError(domain.ErrUnauthorized, "delete application", errors.New("actor is required"))
	}
	app, err := uc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	docs, err := uc.docs.ListByApplication(ctx, app.ID)
	if err != nil {
		return fmt.Errorf("list application documents: %w", err)
	}

	entry := newAuditEntry(
		app.ID,
		actor,
		domain.AuditApplicationDeleted,
		app.Stage,
		domain.AuditStatusSuccess,
		map[string]any{"stage": app.Stage, "decision": app.CurrentDecision()},
		map[string]int{"documents": len(docs)},
	)
	if err := uc.apps.Delete(ctx, app.ID, entry); err != nil {
		return fmt.Errorf("delete application: %w", err)
	}

	for _, doc := range docs {
		if err := uc.storage.Delete(ctx, doc.StoragePath); err != nil {
			slog.WarnContext(ctx, "stored_object_delete_failed",
				"application_id", app.ID,
				"document_id", doc.ID,
				"error", err.Error(),
			)
		}
	}
	return nil
}

// ListAudit works for deleted applications too since audit rows are retained.
func (uc *ApplicationUseCase) ListAudit(ctx context.Context, id string) ([]domain.AuditLogEntry, error) {
	entries, err := uc.audit.ListByApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "list audit entries", fmt.Errorf("application_id=%s", id))
	}
	return entries, nil
}
