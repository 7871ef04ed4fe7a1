package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
	"github.com/kirillkom/loan-decision-engine/internal/core/risk"
	"github.com/kirillkom/loan-decision-engine/internal/core/verify"
)

const (
	DefaultVerifyConcurrency = 4
	DefaultDocumentTimeout   = 30 * time.Second
)

type ProcessOptions struct {
	Concurrency     int
	DocumentTimeout time.Duration
}

// ProcessApplicationUseCase drives an application from intake to completed.
// Each stage is committed before the next one starts, so a retried run
// resumes where the previous one stopped.
type ProcessApplicationUseCase struct {
	apps       ports.ApplicationRepository
	docs       ports.DocumentRepository
	results    ports.VerificationRepository
	storage    ports.ObjectStorage
	extractor  ports.FieldExtractor
	references ports.ReferenceStore
	explainer  ports.ExplanationGenerator
	observer   ports.PipelineObserver
	verifier   *verify.DocumentVerifier
	opts       ProcessOptions
}

func NewProcessApplicationUseCase(
	apps ports.ApplicationRepository,
	docs ports.DocumentRepository,
	results ports.VerificationRepository,
	storage ports.ObjectStorage,
	extractor ports.FieldExtractor,
	references ports.ReferenceStore,
	explainer ports.ExplanationGenerator,
	verifier *verify.DocumentVerifier,
	opts ProcessOptions,
) *ProcessApplicationUseCase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultVerifyConcurrency
	}
	if opts.DocumentTimeout <= 0 {
		opts.DocumentTimeout = DefaultDocumentTimeout
	}
	if verifier == nil {
		verifier = verify.NewDocumentVerifier(verify.Options{})
	}
	return &ProcessApplicationUseCase{
		apps:       apps,
		docs:       docs,
		results:    results,
		storage:    storage,
		extractor:  extractor,
		references: references,
		explainer:  explainer,
		verifier:   verifier,
		opts:       opts,
	}
}

// WithObserver attaches a sink for per-document verification outcomes.
func (uc *ProcessApplicationUseCase) WithObserver(observer ports.PipelineObserver) *ProcessApplicationUseCase {
	uc.observer = observer
	return uc
}

func (uc *ProcessApplicationUseCase) ProcessByID(ctx context.Context, applicationID string) error {
	app, err := uc.apps.GetByID(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("fetch application by id: %w", err)
	}

	for app.Stage != domain.StageCompleted {
		if err := uc.runStage(ctx, app); err != nil {
			return err
		}
	}
	return nil
}

func (uc *ProcessApplicationUseCase) runStage(ctx context.Context, app *domain.Application) error {
	switch app.Stage {
	case domain.StageIntake:
		return uc.advance(ctx, app, domain.StageKYCVerification)
	case domain.StageKYCVerification:
		summary, err := uc.verifyDocuments(ctx, app)
		if err != nil {
			return err
		}
		app.KYC = &summary
		return uc.advance(ctx, app, domain.StageCreditScoring)
	case domain.StageCreditScoring:
		assessment := risk.Score(app.Profile)
		app.Assessment = &assessment
		entry := newAuditEntry(app.ID, domain.ActorSystem, domain.AuditRiskScored, domain.StageCreditScoring, domain.AuditStatusSuccess, app.Profile, assessment)
		return uc.advance(ctx, app, domain.StageDecision, entry)
	case domain.StageDecision:
		return uc.decide(ctx, app)
	default:
		return domain.WrapError(domain.ErrInvalidTransition, "process application", fmt.Errorf("unknown stage %q", app.Stage))
	}
}

func (uc *ProcessApplicationUseCase) decide(ctx context.Context, app *domain.Application) error {
	if app.Assessment == nil {
		return domain.WrapError(domain.ErrIntegrityViolation, "decide application", errors.New("missing risk assessment"))
	}
	kyc := domain.KYCSummary{}
	if app.KYC != nil {
		kyc = *app.KYC
	}

	decision, reason := aggregateDecision(*app.Assessment, kyc)
	record := domain.DecisionRecord{
		Decision:  decision,
		Maker:     domain.DecisionMakerSystem,
		Actor:     domain.ActorSystem,
		DecidedAt: time.Now().UTC(),
	}
	app.Decision = &record
	decisionEntry := newAuditEntry(app.ID, domain.ActorSystem, domain.AuditDecisionRecorded, domain.StageDecision, domain.AuditStatusSuccess,
		map[string]any{"risk_decision": app.Assessment.Decision, "risk_score": app.Assessment.RiskScore, "kyc": kyc},
		map[string]any{"decision": decision, "reason": reason},
	)

	text, source, err := explain(ctx, uc.explainer, *app)
	app.Explanation = text
	app.ExplanationSource = source
	explanationStatus := domain.AuditStatusSuccess
	explanationOutput := map[string]any{"source": source}
	if err != nil {
		if ctx.Err() != nil {
			return domain.WrapError(domain.ErrTemporary, "decide application", ctx.Err())
		}
		explanationStatus = domain.AuditStatusFailed
		explanationOutput["error"] = err.Error()
		slog.WarnContext(ctx, "explanation_fallback", "application_id", app.ID, "error", err.Error())
	}
	explanationEntry := newAuditEntry(app.ID, domain.ActorSystem, domain.AuditExplanation, domain.StageDecision, explanationStatus,
		map[string]any{"decision": decision}, explanationOutput,
	)

	if err := uc.advance(ctx, app, domain.StageCompleted, decisionEntry, explanationEntry); err != nil {
		return err
	}
	if uc.observer != nil {
		uc.observer.ObserveDecision(decision, domain.DecisionMakerSystem)
	}
	return nil
}

// aggregateDecision keeps the risk engine authoritative. KYC can only hold an
// approval back for manual review; it never rejects or promotes on its own.
func aggregateDecision(assessment domain.RiskAssessment, kyc domain.KYCSummary) (domain.Decision, string) {
	if assessment.Decision != domain.DecisionApproved {
		return assessment.Decision, fmt.Sprintf("risk engine decision %s stands", assessment.Decision)
	}
	switch {
	case !kyc.Passed:
		return domain.DecisionPending, "approved by risk engine, held for review: document verification did not pass"
	case kyc.NeedsReview:
		return domain.DecisionPending, "approved by risk engine, held for review: document verification raised warnings"
	default:
		return domain.DecisionApproved, "approved by risk engine and document verification passed"
	}
}

func (uc *ProcessApplicationUseCase) advance(ctx context.Context, app *domain.Application, to domain.Stage, entries ...domain.AuditLogEntry) error {
	from := app.Stage
	if err := domain.Transition(from, to); err != nil {
		return err
	}
	expected := app.Version
	app.Stage = to
	app.UpdatedAt = time.Now().UTC()
	entries = append(entries, stageTransitionEntry(app.ID, domain.ActorSystem, from, to))

	if err := uc.apps.Update(ctx, app, expected, entries...); err != nil {
		app.Stage = from
		return fmt.Errorf("advance %s -> %s: %w", from, to, err)
	}
	slog.InfoContext(ctx, "stage_transition", "application_id", app.ID, "from", from, "to", to)
	return nil
}

func (uc *ProcessApplicationUseCase) verifyDocuments(ctx context.Context, app *domain.Application) (domain.KYCSummary, error) {
	docs, err := uc.docs.ListByApplication(ctx, app.ID)
	if err != nil {
		return domain.KYCSummary{}, fmt.Errorf("list application documents: %w", err)
	}

	var primary, selfies []domain.DocumentArtifact
	for _, doc := range latestPerType(docs) {
		if doc.Type == domain.DocumentSelfie {
			selfies = append(selfies, doc)
			continue
		}
		primary = append(primary, doc)
	}

	results, err := uc.verifyAll(ctx, app, primary)
	if err != nil {
		return domain.KYCSummary{}, err
	}

	identity := domain.ValidationInvalid
	for _, result := range results {
		if !result.DocumentType.IsIdentity() {
			continue
		}
		if result.Passed {
			identity = domain.ValidationValid
			break
		}
		if result.Status == domain.ValidationPending {
			identity = domain.ValidationPending
		}
	}

	switch identity {
	case domain.ValidationValid:
		selfieResults, err := uc.verifyAll(ctx, app, selfies)
		if err != nil {
			return domain.KYCSummary{}, err
		}
		results = append(results, selfieResults...)
	case domain.ValidationPending:
		for _, selfie := range selfies {
			results = append(results, holdSelfie(selfie))
			slog.InfoContext(ctx, "selfie_held", "application_id", app.ID, "document_id", selfie.ID)
		}
	default:
		for _, selfie := range selfies {
			result, err := uc.rejectSelfie(ctx, selfie)
			if err != nil {
				return domain.KYCSummary{}, err
			}
			results = append(results, result)
		}
	}

	return summarize(results), nil
}

// latestPerType keeps the most recent artifact of each document type, so a
// re-upload replaces an earlier scan. Older artifacts keep their stored
// results for the audit trail.
func latestPerType(docs []domain.DocumentArtifact) []domain.DocumentArtifact {
	index := make(map[domain.DocumentType]int, len(docs))
	out := make([]domain.DocumentArtifact, 0, len(docs))
	for _, doc := range docs {
		i, ok := index[doc.Type]
		if !ok {
			index[doc.Type] = len(out)
			out = append(out, doc)
			continue
		}
		if !doc.CreatedAt.Before(out[i].CreatedAt) {
			out[i] = doc
		}
	}
	return out
}

// verifyAll checks documents concurrently. The first failure cancels the
// rest; finished documents keep their stored results for the retry.
func (uc *ProcessApplicationUseCase) verifyAll(ctx context.Context, app *domain.Application, docs []domain.DocumentArtifact) ([]domain.VerificationResult, error) {
	results := make([]domain.VerificationResult, len(docs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.opts.Concurrency)

	for i := range docs {
		group.Go(func() error {
			result, err := uc.verifyOne(groupCtx, app, docs[i])
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (uc *ProcessApplicationUseCase) verifyOne(ctx context.Context, app *domain.Application, doc domain.DocumentArtifact) (domain.VerificationResult, error) {
	existing, err := uc.results.Find(ctx, app.ID, doc.ContentDigest, doc.Type)
	switch {
	case err == nil && existing.ProfileVersion == app.Profile.Version:
		if err := uc.docs.UpdateValidation(ctx, doc.ID, existing.Status, existing.Message); err != nil {
			return domain.VerificationResult{}, fmt.Errorf("update document validation: %w", err)
		}
		uc.observe(doc.Type, existing.Status, true)
		return *existing, nil
	case err == nil:
		if err := uc.docs.MarkPending(ctx, doc.ID, "re-verifying against profile version "+strconv.Itoa(app.Profile.Version)); err != nil {
			return domain.VerificationResult{}, err
		}
	case !domain.IsKind(err, domain.ErrNotFound):
		return domain.VerificationResult{}, fmt.Errorf("find verification result: %w", err)
	}

	docCtx, cancel := context.WithTimeout(ctx, uc.opts.DocumentTimeout)
	defer cancel()

	result, err := uc.runVerifiers(docCtx, app, doc)
	if err != nil {
		if docCtx.Err() != nil {
			if markErr := uc.docs.MarkPending(ctx, doc.ID, "verification timed out, awaiting retry"); markErr != nil {
				slog.WarnContext(ctx, "mark_pending_failed", "application_id", doc.ApplicationID, "document_id", doc.ID, "error", markErr.Error())
			}
			uc.observe(doc.Type, domain.ValidationPending, false)
			return domain.VerificationResult{}, domain.WrapError(domain.ErrTemporary, "verify document",
				fmt.Errorf("document_id=%s left pending: %w", doc.ID, err))
		}
		return domain.VerificationResult{}, err
	}

	if err := uc.persistResult(ctx, doc, result); err != nil {
		return domain.VerificationResult{}, err
	}
	return result, nil
}

func (uc *ProcessApplicationUseCase) runVerifiers(ctx context.Context, app *domain.Application, doc domain.DocumentArtifact) (domain.VerificationResult, error) {
	content, err := uc.loadContent(ctx, doc)
	if err != nil {
		return domain.VerificationResult{}, err
	}

	doc, err = uc.extractFields(ctx, doc, content)
	if err != nil {
		return domain.VerificationResult{}, err
	}

	var references *domain.ReferenceSet
	if uc.references != nil {
		references, err = uc.references.Lookup(ctx, app.Profile.Name, doc.Type)
		if err != nil {
			return domain.VerificationResult{}, domain.WrapError(domain.ErrTemporary, "lookup references", err)
		}
	}

	return uc.verifier.Verify(verify.Input{
		Artifact:   doc,
		Content:    content,
		Profile:    app.Profile,
		References: references,
	}), nil
}

func (uc *ProcessApplicationUseCase) loadContent(ctx context.Context, doc domain.DocumentArtifact) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored document: %w", err)
	}
	return content, nil
}

// extractFields runs OCR once per document. A collaborator failure is
// recorded on the artifact and verification continues without fields.
func (uc *ProcessApplicationUseCase) extractFields(ctx context.Context, doc domain.DocumentArtifact, content []byte) (domain.DocumentArtifact, error) {
	if doc.OCRStatus != "" {
		return doc, nil
	}
	if doc.Type == domain.DocumentSelfie || uc.extractor == nil {
		doc.OCRStatus = domain.OCRStatusSkipped
		return doc, uc.docs.SaveExtraction(ctx, doc.ID, doc.Fields, doc.OCRStatus)
	}

	raw, err := uc.extractor.Extract(ctx, doc, content)
	if err != nil {
		if ctx.Err() != nil {
			return doc, fmt.Errorf("extract fields: %w", err)
		}
		slog.WarnContext(ctx, "ocr_failed", "application_id", doc.ApplicationID, "document_id", doc.ID, "error", err.Error())
		doc.Fields = domain.ExtractedFields{}
		doc.OCRStatus = domain.OCRStatusFailed
	} else {
		doc.Fields = domain.ParseExtractedFields(doc.Type, raw)
		doc.OCRStatus = domain.OCRStatusOK
	}

	if err := uc.docs.SaveExtraction(ctx, doc.ID, doc.Fields, doc.OCRStatus); err != nil {
		return doc, fmt.Errorf("save extracted fields: %w", err)
	}
	return doc, nil
}

func (uc *ProcessApplicationUseCase) rejectSelfie(ctx context.Context, doc domain.DocumentArtifact) (domain.VerificationResult, error) {
	const flag = "identity_prerequisite: selfie requires an accepted aadhaar or pan document"
	result := domain.VerificationResult{
		DocumentID:    doc.ID,
		ApplicationID: doc.ApplicationID,
		DocumentType:  doc.Type,
		ContentDigest: doc.ContentDigest,
		HashMatch:     domain.HashMatchNone,
		Checks: []domain.FieldCheck{{
			Name:     "identity_prerequisite",
			Severity: domain.SeverityHard,
			Flag:     flag,
		}},
		Status:    domain.ValidationInvalid,
		Message:   flag,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.persistResult(ctx, doc, result); err != nil {
		return domain.VerificationResult{}, err
	}
	return result, nil
}

// holdSelfie leaves the selfie pending while the identity document awaits
// manual review. Nothing is stored, so the next run checks it again.
func holdSelfie(doc domain.DocumentArtifact) domain.VerificationResult {
	const message = "identity_prerequisite: identity document awaits manual review"
	return domain.VerificationResult{
		DocumentID:    doc.ID,
		ApplicationID: doc.ApplicationID,
		DocumentType:  doc.Type,
		ContentDigest: doc.ContentDigest,
		HashMatch:     domain.HashMatchNone,
		Checks:        []domain.FieldCheck{},
		Status:        domain.ValidationPending,
		Message:       message,
		CreatedAt:     time.Now().UTC(),
	}
}

func (uc *ProcessApplicationUseCase) persistResult(ctx context.Context, doc domain.DocumentArtifact, result domain.VerificationResult) error {
	status := domain.AuditStatusSuccess
	switch result.Status {
	case domain.ValidationInvalid:
		status = domain.AuditStatusFailed
	case domain.ValidationPending:
		status = domain.AuditStatusPending
	}
	entry := newAuditEntry(doc.ApplicationID, domain.ActorSystem, domain.AuditDocumentVerified, domain.StageKYCVerification, status,
		map[string]any{"document_id": doc.ID, "document_type": doc.Type, "content_digest": doc.ContentDigest},
		result,
	)
	if err := uc.results.Save(ctx, result, entry); err != nil {
		return fmt.Errorf("save verification result: %w", err)
	}
	if err := uc.docs.UpdateValidation(ctx, doc.ID, result.Status, result.Message); err != nil {
		return fmt.Errorf("update document validation: %w", err)
	}

	uc.observe(doc.Type, result.Status, false)
	slog.InfoContext(ctx, "document_verified",
		"application_id", doc.ApplicationID,
		"document_id", doc.ID,
		"document_type", doc.Type,
		"status", result.Status,
		"hash_match", result.HashMatch,
		"confidence", result.Confidence,
	)
	return nil
}

func (uc *ProcessApplicationUseCase) observe(docType domain.DocumentType, status domain.ValidationStatus, reused bool) {
	if uc.observer != nil {
		uc.observer.ObserveVerification(docType, status, reused)
	}
}

// summarize passes KYC when every document passed and at least one of them
// establishes identity. Pending documents and soft flags request a review
// instead of failing.
func summarize(results []domain.VerificationResult) domain.KYCSummary {
	summary := domain.KYCSummary{Passed: true, Warnings: []string{}, Failures: []string{}}
	identityPassed, identityPending := false, false
	for _, result := range results {
		for _, warning := range result.Warnings() {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %s", result.DocumentType, warning))
		}
		if result.Status == domain.ValidationPending {
			summary.NeedsReview = true
			if result.DocumentType.IsIdentity() {
				identityPending = true
			}
			continue
		}
		if !result.Passed {
			summary.Passed = false
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %s", result.DocumentType, result.Message))
			continue
		}
		if result.DocumentType.IsIdentity() {
			identityPassed = true
		}
	}
	if !identityPassed && !identityPending {
		summary.Passed = false
		if len(results) == 0 {
			summary.Failures = append(summary.Failures, "no documents uploaded")
		} else {
			summary.Failures = append(summary.Failures, "no accepted identity document")
		}
	}
	if len(summary.Warnings) > 0 {
		summary.NeedsReview = true
	}
	return summary
}
