package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

var applicationColumns = []string{
	"id", "profile", "stage", "assessment", "decision", "kyc", "explanation", "explanation_source", "version", "created_at", "updated_at",
}

func TestGetApplicationDecodesJSONColumns(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewApplicationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(applicationColumns).AddRow(
		"app-1",
		[]byte(`{"name":"Ravi Kumar","age":30,"employment_type":"salaried","monthly_income":120000}`),
		"completed",
		[]byte(`{"risk_score":100,"decision":"approved","breakdown":{"income":35},"triggered_rules":["income: 120000 >= 100000, +35 points"]}`),
		[]byte(`{"decision":"approved","decision_maker":"system","actor":"system"}`),
		nil,
		"approved",
		"template",
		5,
		now,
		now,
	)
	mock.ExpectQuery("FROM applications").WithArgs("app-1").WillReturnRows(rows)

	app, err := repo.GetByID(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if app.Profile.Name != "Ravi Kumar" || app.Stage != domain.StageCompleted || app.Version != 5 {
		t.Fatalf("unexpected application: %+v", app)
	}
	if app.Assessment == nil || app.Assessment.RiskScore != 100 || len(app.Assessment.TriggeredRules) != 1 {
		t.Fatalf("unexpected assessment: %+v", app.Assessment)
	}
	if app.Decision == nil || app.Decision.Maker != domain.DecisionMakerSystem {
		t.Fatalf("unexpected decision: %+v", app.Decision)
	}
	if app.KYC != nil {
		t.Fatalf("expected nil kyc for NULL column")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetApplicationReturnsDomainNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery("FROM applications").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateApplicationBumpsVersionAndAppendsAudit(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").
		WithArgs("app-1", 3, string(domain.StageDecision), sqlmock.AnyArg(), nil, nil, "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app := &domain.Application{
		ID:         "app-1",
		Stage:      domain.StageDecision,
		Assessment: &domain.RiskAssessment{RiskScore: 90, Decision: domain.DecisionApproved},
		Version:    3,
		UpdatedAt:  time.Now().UTC(),
	}
	err := repo.Update(context.Background(), app, 3,
		domain.AuditLogEntry{ID: "a-1", Action: domain.AuditRiskScored},
		domain.AuditLogEntry{ID: "a-2", Action: domain.AuditStageTransition},
	)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if app.Version != 4 {
		t.Fatalf("expected version 4, got %d", app.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateApplicationReturnsConflictOnStaleVersion(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM applications").
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(6))
	mock.ExpectRollback()

	app := &domain.Application{ID: "app-1", Stage: domain.StageCompleted, Version: 5}
	err := repo.Update(context.Background(), app, 5, domain.AuditLogEntry{ID: "a-1", Action: domain.AuditDecisionOverridden})
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if app.Version != 5 {
		t.Fatalf("version must not change on conflict, got %d", app.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateApplicationReturnsNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM applications").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &domain.Application{ID: "missing"}, 1)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteApplicationWritesAuditBeforeRemoval(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM verification_results").WithArgs("app-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM documents").WithArgs("app-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM applications").WithArgs("app-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "app-1", domain.AuditLogEntry{
		ID:            "a-1",
		ApplicationID: "app-1",
		Actor:         "operator-1",
		Action:        domain.AuditApplicationDeleted,
		Status:        domain.AuditStatusSuccess,
	})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteApplicationRollsBackWhenMissing(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM verification_results").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM applications").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing", domain.AuditLogEntry{ID: "a-1"})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
