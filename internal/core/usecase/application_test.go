package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

func newApplicationFixture(apps ...domain.Application) (*ApplicationUseCase, *appRepoFake, *docRepoFake, *storageFake, *queueFake, *auditLogFake) {
	audit := &auditLogFake{}
	appRepo := newAppRepoFake(audit, apps...)
	docs := newDocRepoFake(audit)
	storage := newStorageFake()
	queue := &queueFake{}
	return NewApplicationUseCase(appRepo, docs, audit, storage, queue), appRepo, docs, storage, queue, audit
}

func TestCreateApplication(t *testing.T) {
	uc, apps, _, _, _, audit := newApplicationFixture()

	app, err := uc.Create(context.Background(), approvableProfile())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if app.ID == "" || app.Stage != domain.StageIntake || app.Version != 1 || app.Profile.Version != 1 {
		t.Fatalf("unexpected application: %+v", app)
	}
	if _, ok := apps.apps[app.ID]; !ok {
		t.Fatalf("application not persisted")
	}
	entries, _ := audit.ListByApplication(context.Background(), app.ID)
	if len(entries) != 1 || entries[0].Action != domain.AuditApplicationCreated || len(entries[0].Input) == 0 {
		t.Fatalf("expected creation audit with profile snapshot, got %+v", entries)
	}
}

func TestCreateApplicationRejectsInvalidProfile(t *testing.T) {
	uc, apps, _, _, _, _ := newApplicationFixture()

	_, err := uc.Create(context.Background(), domain.ApplicantProfile{Name: "  ", Age: 30})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(apps.apps) != 0 {
		t.Fatalf("nothing must be persisted")
	}
}

func TestRequestEvaluation(t *testing.T) {
	uc, _, _, _, queue, _ := newApplicationFixture(
		domain.Application{ID: "app-1", Stage: domain.StageKYCVerification, Version: 2},
		domain.Application{ID: "app-2", Stage: domain.StageCompleted, Version: 5},
	)

	if err := uc.RequestEvaluation(context.Background(), "app-1"); err != nil {
		t.Fatalf("RequestEvaluation() error = %v", err)
	}
	if len(queue.published) != 1 || queue.published[0] != "app-1" {
		t.Fatalf("unexpected published ids: %v", queue.published)
	}

	err := uc.RequestEvaluation(context.Background(), "app-2")
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("completed application must not be re-evaluated, got %v", err)
	}
}

func TestDeleteApplicationKeepsAuditTrail(t *testing.T) {
	uc, apps, docs, storage, _, audit := newApplicationFixture(
		domain.Application{ID: "app-1", Stage: domain.StageCompleted, Version: 5},
	)
	docs.docs["doc-1"] = domain.DocumentArtifact{ID: "doc-1", ApplicationID: "app-1", StoragePath: "app-1_doc-1_pan.png"}
	docs.order = append(docs.order, "doc-1")
	storage.objects["app-1_doc-1_pan.png"] = []byte("pan")
	audit.add(domain.AuditLogEntry{ID: "a-0", ApplicationID: "app-1", Action: domain.AuditApplicationCreated})

	if err := uc.Delete(context.Background(), "app-1", "operator-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(apps.deleted) != 1 {
		t.Fatalf("expected application delete, got %v", apps.deleted)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != "app-1_doc-1_pan.png" {
		t.Fatalf("expected stored object removal, got %v", storage.deleted)
	}

	entries, err := uc.ListAudit(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	last := entries[len(entries)-1]
	if last.Action != domain.AuditApplicationDeleted || last.Actor != "operator-1" {
		t.Fatalf("expected deletion entry by operator-1, got %+v", last)
	}
}

func TestDeleteApplicationNotFound(t *testing.T) {
	uc, _, _, _, _, audit := newApplicationFixture()
	err := uc.Delete(context.Background(), "missing", "operator-1")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(audit.actions()) != 0 {
		t.Fatalf("no audit entry for a missing application")
	}
}

func TestListAuditUnknownApplication(t *testing.T) {
	uc, _, _, _, _, _ := newApplicationFixture()
	if _, err := uc.ListAudit(context.Background(), "missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuoteScoresWithoutPersisting(t *testing.T) {
	assessment, err := NewRiskQuoteUseCase().Quote(context.Background(), approvableProfile())
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if assessment.RiskScore != 100 || assessment.Decision != domain.DecisionApproved {
		t.Fatalf("unexpected assessment: %+v", assessment)
	}
}

func TestTemplateExplanationIsKeyedByDecision(t *testing.T) {
	base := domain.Application{
		Profile:    approvableProfile(),
		Assessment: &domain.RiskAssessment{RiskScore: 0, HardReject: "age 62 is outside the accepted range 21-60"},
	}
	texts := map[domain.Decision]string{}
	for _, decision := range []domain.Decision{domain.DecisionApproved, domain.DecisionPending, domain.DecisionRejected} {
		app := base
		app.Decision = &domain.DecisionRecord{Decision: decision}
		text, source, err := explain(context.Background(), nil, app)
		if err != nil || source != domain.ExplanationTemplate || text == "" {
			t.Fatalf("%s: unexpected fallback %q %s %v", decision, text, source, err)
		}
		texts[decision] = text
	}
	if texts[domain.DecisionApproved] == texts[domain.DecisionRejected] || texts[domain.DecisionPending] == texts[domain.DecisionRejected] {
		t.Fatalf("templates must differ per decision: %v", texts)
	}
	if want := "age 62"; !strings.Contains(texts[domain.DecisionRejected], want) {
		t.Fatalf("rejection template should carry the hard reject reason, got %q", texts[domain.DecisionRejected])
	}
}

func TestResubmitBumpsProfileVersion(t *testing.T) {
	uc, apps, _, _, _, audit := newApplicationFixture(
		domain.Application{ID: "app-1", Profile: approvableProfile(), Stage: domain.StageKYCVerification, Version: 2},
	)

	profile := approvableProfile()
	profile.Name = "  Ravi K Kumar "
	profile.MonthlyIncome = 130000
	profile.Version = 7

	app, err := uc.Resubmit(context.Background(), "app-1", profile)
	if err != nil {
		t.Fatalf("Resubmit() error = %v", err)
	}
	if app.Profile.Version != 2 || app.Profile.Name != "Ravi K Kumar" || app.Version != 3 {
		t.Fatalf("unexpected application: %+v", app)
	}
	if stored := apps.stored("app-1"); stored.Profile.MonthlyIncome != 130000 || stored.Stage != domain.StageKYCVerification {
		t.Fatalf("profile not persisted: %+v", stored)
	}
	if audit.count(domain.AuditProfileResubmitted) != 1 {
		t.Fatalf("expected one resubmission audit entry, got %v", audit.actions())
	}
}

func TestResubmitRejectedAfterScoring(t *testing.T) {
	uc, apps, _, _, _, audit := newApplicationFixture(
		domain.Application{ID: "app-1", Profile: approvableProfile(), Stage: domain.StageDecision, Version: 4},
	)

	_, err := uc.Resubmit(context.Background(), "app-1", approvableProfile())
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if apps.updates != 0 || len(audit.actions()) != 0 {
		t.Fatalf("nothing must change after scoring")
	}
}

func TestResubmitValidatesProfile(t *testing.T) {
	uc, apps, _, _, _, _ := newApplicationFixture(
		domain.Application{ID: "app-1", Profile: approvableProfile(), Stage: domain.StageIntake, Version: 1},
	)
	_, err := uc.Resubmit(context.Background(), "app-1", domain.ApplicantProfile{Name: "Ravi", Age: -1})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if apps.getCalls != 0 {
		t.Fatalf("invalid profile must be rejected before any read")
	}
}
