package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const selectDocument = `
SELECT id, application_id, document_type, filename, mime_type, storage_path, content_digest, fingerprint,
	size_bytes, extracted_fields, ocr_status, validation_status, validation_message, created_at
FROM documents
`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.DocumentArtifact, audit ...domain.AuditLogEntry) error {
	fieldsJSON, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO documents (
	id, application_id, document_type, filename, mime_type, storage_path, content_digest, fingerprint,
	size_bytes, extracted_fields, ocr_status, validation_status, validation_message, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
			doc.ID, doc.ApplicationID, string(doc.Type), doc.Filename, doc.MimeType, doc.StoragePath,
			doc.ContentDigest, doc.Fingerprint, doc.SizeBytes, fieldsJSON, string(doc.OCRStatus),
			string(doc.ValidationStatus), doc.ValidationMessage, doc.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return insertAudit(ctx, tx, audit...)
	})
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.DocumentArtifact, error) {
	row := r.db.QueryRowContext(ctx, selectDocument+`WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document by id", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]domain.DocumentArtifact, error) {
	rows, err := r.db.QueryContext(ctx, selectDocument+`WHERE application_id = $1 ORDER BY created_at, id`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentArtifact, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) SaveExtraction(ctx context.Context, id string, fields domain.ExtractedFields, status domain.OCRStatus) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET extracted_fields = $2, ocr_status = $3
WHERE id = $1
`, id, fieldsJSON, string(status))
	if err != nil {
		return fmt.Errorf("save extracted fields: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save extracted fields rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "save extracted fields", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *DocumentRepository) UpdateValidation(ctx context.Context, id string, status domain.ValidationStatus, message string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET validation_status = $2, validation_message = $3
WHERE id = $1 AND validation_status = 'pending'
`, id, string(status), message)
	if err != nil {
		return fmt.Errorf("update document validation: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkPending(ctx context.Context, id, message string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET validation_status = 'pending', validation_message = $2
WHERE id = $1
`, id, message)
	if err != nil {
		return fmt.Errorf("mark document pending: %w", err)
	}
	return nil
}

func scanDocument(row scanner) (domain.DocumentArtifact, error) {
	var doc domain.DocumentArtifact
	var docType, ocrStatus, validationStatus string
	var fieldsRaw []byte

	err := row.Scan(
		&doc.ID,
		&doc.ApplicationID,
		&docType,
		&doc.Filename,
		&doc.MimeType,
		&doc.StoragePath,
		&doc.ContentDigest,
		&doc.Fingerprint,
		&doc.SizeBytes,
		&fieldsRaw,
		&ocrStatus,
		&validationStatus,
		&doc.ValidationMessage,
		&doc.CreatedAt,
	)
	if err != nil {
		return domain.DocumentArtifact{}, err
	}
	if len(fieldsRaw) > 0 {
		if err := json.Unmarshal(fieldsRaw, &doc.Fields); err != nil {
			return domain.DocumentArtifact{}, fmt.Errorf("unmarshal extracted fields: %w", err)
		}
	}
	doc.Type = domain.DocumentType(docType)
	doc.OCRStatus = domain.OCRStatus(ocrStatus)
	doc.ValidationStatus = domain.ValidationStatus(validationStatus)
	return doc, nil
}
