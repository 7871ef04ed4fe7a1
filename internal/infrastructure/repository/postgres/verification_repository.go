package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Find(ctx context.Context, applicationID, contentDigest string, docType domain.DocumentType) (*domain.VerificationResult, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `
SELECT result
FROM verification_results
WHERE application_id = $1 AND content_digest = $2 AND document_type = $3
`, applicationID, contentDigest, string(docType)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "find verification result",
				fmt.Errorf("application_id=%s digest=%s type=%s", applicationID, contentDigest, docType))
		}
		return nil, fmt.Errorf("find verification result: %w", err)
	}

	var result domain.VerificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal verification result: %w", err)
	}
	return &result, nil
}

// Save keeps the first result stored for a key and profile version; a result
// computed against a newer profile version replaces it. The audit entries are
// only written when a row was actually written.
func (r *VerificationRepository) Save(ctx context.Context, result domain.VerificationResult, audit ...domain.AuditLogEntry) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal verification result: %w", err)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO verification_results (application_id, content_digest, document_type, document_id, status, passed, result, created_at, profile_version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (application_id, content_digest, document_type) DO UPDATE
SET document_id = EXCLUDED.document_id, status = EXCLUDED.status, passed = EXCLUDED.passed,
	result = EXCLUDED.result, created_at = EXCLUDED.created_at, profile_version = EXCLUDED.profile_version
WHERE verification_results.profile_version < EXCLUDED.profile_version
`,
			result.ApplicationID, result.ContentDigest, string(result.DocumentType), result.DocumentID,
			string(result.Status), result.Passed, raw, result.CreatedAt, result.ProfileVersion,
		)
		if err != nil {
			return fmt.Errorf("insert verification result: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert verification result rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}
		return insertAudit(ctx, tx, audit...)
	})
}

func (r *VerificationRepository) ListByApplication(ctx context.Context, applicationID string) ([]domain.VerificationResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT result
FROM verification_results
WHERE application_id = $1
ORDER BY created_at, document_id
`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list verification results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.VerificationResult, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan verification result: %w", err)
		}
		var result domain.VerificationResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal verification result: %w", err)
		}
		out = append(out, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification results: %w", err)
	}
	return out, nil
}
