package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

const schemaLockID = int64(2026101401)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	profile JSONB NOT NULL,
	stage TEXT NOT NULL,
	assessment JSONB,
	decision JSONB,
	kyc JSONB,
	explanation TEXT NOT NULL DEFAULT '',
	explanation_source TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	application_id TEXT NOT NULL REFERENCES applications(id),
	document_type TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	content_digest TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	extracted_fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	ocr_status TEXT NOT NULL DEFAULT '',
	validation_status TEXT NOT NULL,
	validation_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS verification_results (
	application_id TEXT NOT NULL REFERENCES applications(id),
	content_digest TEXT NOT NULL,
	document_type TEXT NOT NULL,
	document_id TEXT NOT NULL,
	status TEXT NOT NULL,
	passed BOOLEAN NOT NULL,
	result JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	profile_version INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (application_id, content_digest, document_type)
);

CREATE TABLE IF NOT EXISTS audit_log (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	application_id TEXT NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	input JSONB,
	output JSONB,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_application ON documents(application_id, created_at);
CREATE INDEX IF NOT EXISTS idx_applications_stage ON applications(stage);
CREATE INDEX IF NOT EXISTS idx_audit_log_application ON audit_log(application_id, seq);

CREATE OR REPLACE FUNCTION audit_log_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'audit_log is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS audit_log_no_mutation ON audit_log;
CREATE TRIGGER audit_log_no_mutation
	BEFORE UPDATE OR DELETE ON audit_log
	FOR EACH ROW EXECUTE FUNCTION audit_log_append_only();
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// withTx commits when fn returns nil and rolls back otherwise.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertAudit(ctx context.Context, ex execer, entries ...domain.AuditLogEntry) error {
	for _, entry := range entries {
		_, err := ex.ExecContext(ctx, `
INSERT INTO audit_log (id, application_id, actor, action, stage, input, output, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			entry.ID, entry.ApplicationID, entry.Actor, string(entry.Action), string(entry.Stage),
			rawOrNull(entry.Input), rawOrNull(entry.Output), string(entry.Status), entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert audit entry %s: %w", entry.Action, err)
		}
	}
	return nil
}

func rawOrNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func jsonOrNull[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func unmarshalNullable[T any](raw []byte) (*T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
