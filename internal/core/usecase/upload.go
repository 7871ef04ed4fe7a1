package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
	"github.com/kirillkom/loan-decision-engine/internal/core/verify"
)

const DefaultUploadMaxBytes = 10 << 20

type UploadDocumentUseCase struct {
	apps     ports.ApplicationRepository
	docs     ports.DocumentRepository
	storage  ports.ObjectStorage
	maxBytes int64
}

func NewUploadDocumentUseCase(
	apps ports.ApplicationRepository,
	docs ports.DocumentRepository,
	storage ports.ObjectStorage,
	maxBytes int64,
) *UploadDocumentUseCase {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	return &UploadDocumentUseCase{
		apps:     apps,
		docs:     docs,
		storage:  storage,
		maxBytes: maxBytes,
	}
}

func (uc *UploadDocumentUseCase) Upload(ctx context.Context, req ports.UploadRequest) (*domain.DocumentArtifact, error) {
	docType, ok := domain.ParseDocumentType(string(req.DocumentType))
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("unknown document_type %q", req.DocumentType))
	}

	app, err := uc.apps.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("fetch application by id: %w", err)
	}
	if app.Stage != domain.StageIntake && app.Stage != domain.StageKYCVerification {
		return nil, domain.WrapError(domain.ErrInvalidTransition, "upload document", fmt.Errorf("application is in stage %s", app.Stage))
	}

	content, err := uc.readBody(req.Body)
	if err != nil {
		return nil, err
	}
	digest, fingerprint := verify.Fingerprint(content)

	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(content)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s_%s", app.ID, id, sanitizeFilename(req.Filename))
	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.DocumentArtifact{
		ID:               id,
		ApplicationID:    app.ID,
		Type:             docType,
		Filename:         req.Filename,
		MimeType:         mimeType,
		StoragePath:      storageKey,
		ContentDigest:    digest,
		Fingerprint:      fingerprint,
		SizeBytes:        int64(len(content)),
		ValidationStatus: domain.ValidationPending,
		CreatedAt:        time.Now().UTC(),
	}
	entry := newAuditEntry(app.ID, domain.ActorSystem, domain.AuditDocumentUploaded, app.Stage, domain.AuditStatusSuccess,
		map[string]any{"document_type": docType, "filename": req.Filename, "size_bytes": doc.SizeBytes},
		map[string]string{"document_id": id, "content_digest": digest, "fingerprint": fingerprint},
	)
	if err := uc.docs.Create(ctx, doc, entry); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if app.Stage == domain.StageIntake {
		if err := uc.startKYC(ctx, app); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (uc *UploadDocumentUseCase) ListDocuments(ctx context.Context, applicationID string) ([]domain.DocumentArtifact, error) {
	if _, err := uc.apps.GetByID(ctx, applicationID); err != nil {
		return nil, fmt.Errorf("fetch application by id: %w", err)
	}
	docs, err := uc.docs.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list application documents: %w", err)
	}
	return docs, nil
}

func (uc *UploadDocumentUseCase) readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("empty body"))
	}
	content, err := io.ReadAll(io.LimitReader(body, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(content) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("empty file"))
	}
	if int64(len(content)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("file exceeds %d bytes", uc.maxBytes))
	}
	return content, nil
}

// startKYC moves the application out of intake on its first upload. A
// concurrent upload may win the race, which is fine once the stage moved.
func (uc *UploadDocumentUseCase) startKYC(ctx context.Context, app *domain.Application) error {
	expected := app.Version
	app.Stage = domain.StageKYCVerification
	app.UpdatedAt = time.Now().UTC()
	err := uc.apps.Update(ctx, app, expected, stageTransitionEntry(app.ID, domain.ActorSystem, domain.StageIntake, domain.StageKYCVerification))
	if err == nil {
		return nil
	}
	if !domain.IsKind(err, domain.ErrConflict) {
		return fmt.Errorf("advance to kyc_verification: %w", err)
	}
	current, getErr := uc.apps.GetByID(ctx, app.ID)
	if getErr != nil {
		return fmt.Errorf("advance to kyc_verification: %w", errors.Join(err, getErr))
	}
	if current.Stage == domain.StageIntake {
		return fmt.Errorf("advance to kyc_verification: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "document.bin"
	}
	return base
}
