package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const selectApplication = `
SELECT id, profile, stage, assessment, decision, kyc, explanation, explanation_source, version, created_at, updated_at
FROM applications
`

func (r *ApplicationRepository) Create(ctx context.Context, app *domain.Application, audit ...domain.AuditLogEntry) error {
	profileJSON, err := json.Marshal(app.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO applications (id, profile, stage, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, app.ID, profileJSON, string(app.Stage), app.Version, app.CreatedAt, app.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert application: %w", err)
		}
		return insertAudit(ctx, tx, audit...)
	})
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	row := r.db.QueryRowContext(ctx, selectApplication+`WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get application by id", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepository) Update(ctx context.Context, app *domain.Application, expectedVersion int, audit ...domain.AuditLogEntry) error {
	assessmentJSON, err := jsonOrNull(app.Assessment)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	profileJSON, err := json.Marshal(app.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	decisionJSON, err := jsonOrNull(app.Decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	kycJSON, err := jsonOrNull(app.KYC)
	if err != nil {
		return fmt.Errorf("marshal kyc summary: %w", err)
	}

	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE applications
SET stage = $3, assessment = $4, decision = $5, kyc = $6, explanation = $7, explanation_source = $8,
	version = version + 1, updated_at = $9, profile = $10
WHERE id = $1 AND version = $2
`,
			app.ID, expectedVersion, string(app.Stage), assessmentJSON, decisionJSON, kycJSON,
			app.Explanation, string(app.ExplanationSource), app.UpdatedAt, profileJSON,
		)
		if err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update application rows affected: %w", err)
		}
		if rows == 0 {
			return r.missingOrConflict(ctx, tx, app.ID, expectedVersion)
		}
		return insertAudit(ctx, tx, audit...)
	})
	if err != nil {
		return err
	}
	app.Version = expectedVersion + 1
	return nil
}

func (r *ApplicationRepository) missingOrConflict(ctx context.Context, tx *sql.Tx, id string, expectedVersion int) error {
	var current int
	err := tx.QueryRowContext(ctx, `SELECT version FROM applications WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrNotFound, "update application", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return fmt.Errorf("read application version: %w", err)
	}
	return domain.WrapError(domain.ErrConflict, "update application",
		fmt.Errorf("id=%s expected version %d, current %d", id, expectedVersion, current))
}

// Delete commits the audit entry in the same transaction that removes the
// application rows. audit_log has no foreign key so the entry outlives them.
func (r *ApplicationRepository) Delete(ctx context.Context, id string, audit domain.AuditLogEntry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertAudit(ctx, tx, audit); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM verification_results WHERE application_id = $1`, id); err != nil {
			return fmt.Errorf("delete verification results: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE application_id = $1`, id); err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete application: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete application rows affected: %w", err)
		}
		if rows == 0 {
			return domain.WrapError(domain.ErrNotFound, "delete application", fmt.Errorf("id=%s", id))
		}
		return nil
	})
}

func scanApplication(row scanner) (*domain.Application, error) {
	var app domain.Application
	var profileRaw, assessmentRaw, decisionRaw, kycRaw []byte
	var stage, source string

	err := row.Scan(
		&app.ID,
		&profileRaw,
		&stage,
		&assessmentRaw,
		&decisionRaw,
		&kycRaw,
		&app.Explanation,
		&source,
		&app.Version,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(profileRaw, &app.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if app.Assessment, err = unmarshalNullable[domain.RiskAssessment](assessmentRaw); err != nil {
		return nil, fmt.Errorf("unmarshal assessment: %w", err)
	}
	if app.Decision, err = unmarshalNullable[domain.DecisionRecord](decisionRaw); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}
	if app.KYC, err = unmarshalNullable[domain.KYCSummary](kycRaw); err != nil {
		return nil, fmt.Errorf("unmarshal kyc summary: %w", err)
	}
	app.Stage = domain.Stage(stage)
	app.ExplanationSource = domain.ExplanationSource(source)
	return &app, nil
}
