package ports

import (
	"context"
	"io"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

// ApplicationRepository persists application state. Every write carries the
// audit entries describing it and commits both atomically.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application, audit ...domain.AuditLogEntry) error
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	// Update succeeds only when the stored version equals expectedVersion and
	// fails with domain.ErrConflict otherwise. app.Version is bumped on success.
	Update(ctx context.Context, app *domain.Application, expectedVersion int, audit ...domain.AuditLogEntry) error
	// Delete writes the audit entry first, then removes the application with
	// its documents and verification results. Audit rows are retained.
	Delete(ctx context.Context, id string, audit domain.AuditLogEntry) error
}

// DocumentRepository persists uploaded document artifacts.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.DocumentArtifact, audit ...domain.AuditLogEntry) error
	GetByID(ctx context.Context, id string) (*domain.DocumentArtifact, error)
	ListByApplication(ctx context.Context, applicationID string) ([]domain.DocumentArtifact, error)
	SaveExtraction(ctx context.Context, id string, fields domain.ExtractedFields, status domain.OCRStatus) error
	// UpdateValidation only moves documents out of pending. Settled documents
	// are left untouched.
	UpdateValidation(ctx context.Context, id string, status domain.ValidationStatus, message string) error
	// MarkPending reopens a document for verification, e.g. after a profile
	// resubmission or a timed-out run.
	MarkPending(ctx context.Context, id, message string) error
}

// VerificationRepository stores verifier output keyed by application, content
// digest and document type.
type VerificationRepository interface {
	Find(ctx context.Context, applicationID, contentDigest string, docType domain.DocumentType) (*domain.VerificationResult, error)
	Save(ctx context.Context, result domain.VerificationResult, audit ...domain.AuditLogEntry) error
	ListByApplication(ctx context.Context, applicationID string) ([]domain.VerificationResult, error)
}

// AuditRepository is append-only.
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	ListByApplication(ctx context.Context, applicationID string) ([]domain.AuditLogEntry, error)
}

// ObjectStorage stores uploaded document bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes evaluation events.
type MessageQueue interface {
	PublishApplicationEvaluate(ctx context.Context, applicationID string) error
	SubscribeApplicationEvaluate(ctx context.Context, handler func(context.Context, string) error) error
}

// FieldExtractor runs OCR over a stored document and returns raw key/value
// pairs. Keys are normalised by domain.ParseExtractedFields.
type FieldExtractor interface {
	Extract(ctx context.Context, doc domain.DocumentArtifact, content []byte) (map[string]string, error)
}

// ExplanationGenerator turns a decided application into a short paragraph.
type ExplanationGenerator interface {
	GenerateExplanation(ctx context.Context, app domain.Application) (string, error)
}

// ReferenceStore resolves whitelist material for an identity claim. A nil set
// with a nil error means nothing is known for the claim.
type ReferenceStore interface {
	Lookup(ctx context.Context, applicantName string, docType domain.DocumentType) (*domain.ReferenceSet, error)
	Reload(ctx context.Context) error
}

// PipelineObserver receives per-document outcomes and final decisions for metrics.
type PipelineObserver interface {
	ObserveVerification(docType domain.DocumentType, status domain.ValidationStatus, reused bool)
	ObserveDecision(decision domain.Decision, maker domain.DecisionMaker)
}
