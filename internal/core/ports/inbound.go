package ports

import (
	"context"
	"io"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

// ApplicationService is the inbound contract for application lifecycle reads and writes.
type ApplicationService interface {
	Create(ctx context.Context, profile domain.ApplicantProfile) (*domain.Application, error)
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	Resubmit(ctx context.Context, id string, profile domain.ApplicantProfile) (*domain.Application, error)
	Delete(ctx context.Context, id, actor string) error
	ListAudit(ctx context.Context, id string) ([]domain.AuditLogEntry, error)
}

// DocumentUploader is the inbound contract for KYC document intake.
type DocumentUploader interface {
	Upload(ctx context.Context, req UploadRequest) (*domain.DocumentArtifact, error)
	ListDocuments(ctx context.Context, applicationID string) ([]domain.DocumentArtifact, error)
}

type UploadRequest struct {
	ApplicationID string
	DocumentType  domain.DocumentType
	Filename      string
	MimeType      string
	Body          io.Reader
}

// EvaluationRequester queues an application for the asynchronous pipeline.
type EvaluationRequester interface {
	RequestEvaluation(ctx context.Context, applicationID string) error
}

// ApplicationProcessor is the inbound contract for the asynchronous decision pipeline.
type ApplicationProcessor interface {
	ProcessByID(ctx context.Context, applicationID string) error
}

// DecisionOverrider applies admin overrides to completed applications.
type DecisionOverrider interface {
	Override(ctx context.Context, req domain.OverrideRequest) (*domain.Application, error)
}

// RiskQuoter scores a profile without persisting anything.
type RiskQuoter interface {
	Quote(ctx context.Context, profile domain.ApplicantProfile) (domain.RiskAssessment, error)
}

// ReferenceReloader re-reads the whitelist source on operator request.
type ReferenceReloader interface {
	Reload(ctx context.Context) error
}
