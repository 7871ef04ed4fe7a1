package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/loan-decision-engine/internal/config"
	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
)

type applicationsFake struct {
	createErr   error
	getErr      error
	resubmitErr error
	deleteErr   error
	auditErr    error

	created     *domain.ApplicantProfile
	resubmitted *domain.ApplicantProfile
	deletedBy   string
}

func (f *applicationsFake) Create(_ context.Context, profile domain.ApplicantProfile) (*domain.Application, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = &profile
	return &domain.Application{ID: "app-1", Profile: profile, Stage: domain.StageIntake, Version: 1}, nil
}

func (f *applicationsFake) GetByID(_ context.Context, id string) (*domain.Application, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.Application{ID: id, Stage: domain.StageIntake, Version: 1}, nil
}

func (f *applicationsFake) Resubmit(_ context.Context, id string, profile domain.ApplicantProfile) (*domain.Application, error) {
	if f.resubmitErr != nil {
		return nil, f.resubmitErr
	}
	profile.Version = 2
	f.resubmitted = &profile
	return &domain.Application{ID: id, Profile: profile, Stage: domain.StageKYCVerification, Version: 3}, nil
}

func (f *applicationsFake) Delete(_ context.Context, _ string, actor string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedBy = actor
	return nil
}

func (f *applicationsFake) ListAudit(_ context.Context, id string) ([]domain.AuditLogEntry, error) {
	if f.auditErr != nil {
		return nil, f.auditErr
	}
	return []domain.AuditLogEntry{{ID: "audit-1", ApplicationID: id, Action: domain.AuditApplicationCreated, Actor: domain.ActorSystem}}, nil
}

type documentsFake struct {
	err      error
	received *ports.UploadRequest
	body     []byte
}

func (f *documentsFake) Upload(_ context.Context, req ports.UploadRequest) (*domain.DocumentArtifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	f.received = &req
	f.body = raw
	return &domain.DocumentArtifact{
		ID:               "doc-1",
		ApplicationID:    req.ApplicationID,
		Type:             req.DocumentType,
		Filename:         req.Filename,
		MimeType:         req.MimeType,
		SizeBytes:        int64(len(raw)),
		ValidationStatus: domain.ValidationPending,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func (f *documentsFake) ListDocuments(context.Context, string) ([]domain.DocumentArtifact, error) {
	return nil, f.err
}

type evaluationsFake struct {
	err       error
	requested []string
}

func (f *evaluationsFake) RequestEvaluation(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.requested = append(f.requested, id)
	return nil
}

type overridesFake struct {
	err      error
	received *domain.OverrideRequest
}

func (f *overridesFake) Override(_ context.Context, req domain.OverrideRequest) (*domain.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.received = &req
	decision, _ := req.NewDecision.Decision()
	return &domain.Application{
		ID:      req.ApplicationID,
		Stage:   domain.StageCompleted,
		Version: 6,
		Decision: &domain.DecisionRecord{
			Decision:       decision,
			Maker:          domain.DecisionMakerAdmin,
			Actor:          req.Actor,
			OverrideReason: req.Reason,
		},
	}, nil
}

type quotesFake struct{}

func (quotesFake) Quote(_ context.Context, profile domain.ApplicantProfile) (domain.RiskAssessment, error) {
	if err := profile.Validate(); err != nil {
		return domain.RiskAssessment{}, err
	}
	return domain.RiskAssessment{RiskScore: 100, Decision: domain.DecisionApproved}, nil
}

type referencesFake struct {
	err   error
	calls int
}

func (f *referencesFake) Reload(context.Context) error {
	f.calls++
	return f.err
}

type routerFixture struct {
	apps        *applicationsFake
	docs        *documentsFake
	evaluations *evaluationsFake
	overrides   *overridesFake
	references  *referencesFake
}

func newRouterFixture() *routerFixture {
	return &routerFixture{
		apps:        &applicationsFake{},
		docs:        &documentsFake{},
		evaluations: &evaluationsFake{},
		overrides:   &overridesFake{},
		references:  &referencesFake{},
	}
}

func (fx *routerFixture) handler(cfg config.Config) http.Handler {
	if cfg.AdminTokens == nil {
		cfg.AdminTokens = map[string]string{"tok-alice": "alice"}
	}
	return NewRouter(cfg, Services{
		Applications: fx.apps,
		Documents:    fx.docs,
		Evaluations:  fx.evaluations,
		Overrides:    fx.overrides,
		Quotes:       quotesFake{},
		References:   fx.references,
	}).Handler()
}
