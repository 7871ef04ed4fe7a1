package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

// AuditRepository only inserts and reads. The schema trigger rejects updates
// and deletes on audit_log.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	return insertAudit(ctx, r.db, entry)
}

func (r *AuditRepository) ListByApplication(ctx context.Context, applicationID string) ([]domain.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, application_id, actor, action, stage, input, output, status, created_at
FROM audit_log
WHERE application_id = $1
ORDER BY seq
`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditLogEntry, 0)
	for rows.Next() {
		var entry domain.AuditLogEntry
		var action, stage, status string
		var input, output []byte
		if err := rows.Scan(&entry.ID, &entry.ApplicationID, &entry.Actor, &action, &stage, &input, &output, &status, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = domain.AuditAction(action)
		entry.Stage = domain.Stage(stage)
		entry.Status = domain.AuditStatus(status)
		if len(input) > 0 {
			entry.Input = input
		}
		if len(output) > 0 {
			entry.Output = output
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
