package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

type auditLogFake struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
}

func (f *auditLogFake) add(entries ...domain.AuditLogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
}

func (f *auditLogFake) Append(_ context.Context, entry domain.AuditLogEntry) error {
	f.add(entry)
	return nil
}

func (f *auditLogFake) ListByApplication(_ context.Context, applicationID string) ([]domain.AuditLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditLogEntry, 0)
	for _, entry := range f.entries {
		if entry.ApplicationID == applicationID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *auditLogFake) actions() []domain.AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, entry.Action)
	}
	return out
}

func (f *auditLogFake) count(action domain.AuditAction) int {
	n := 0
	for _, a := range f.actions() {
		if a == action {
			n++
		}
	}
	return n
}

type appRepoFake struct {
	mu        sync.Mutex
	apps      map[string]domain.Application
	audit     *auditLogFake
	getCalls  int
	updates   int
	updateErr error
	deleted   []string
}

func newAppRepoFake(audit *auditLogFake, apps ...domain.Application) *appRepoFake {
	f := &appRepoFake{apps: map[string]domain.Application{}, audit: audit}
	for _, app := range apps {
		f.apps[app.ID] = app
	}
	return f
}

func (f *appRepoFake) Create(_ context.Context, app *domain.Application, audit ...domain.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[app.ID] = *app
	f.audit.add(audit...)
	return nil
}

func (f *appRepoFake) GetByID(_ context.Context, id string) (*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	app, ok := f.apps[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get application", fmt.Errorf("id=%s", id))
	}
	return &app, nil
}

func (f *appRepoFake) Update(_ context.Context, app *domain.Application, expectedVersion int, audit ...domain.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.apps[app.ID]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update application", fmt.Errorf("id=%s", app.ID))
	}
	if stored.Version != expectedVersion {
		return domain.WrapError(domain.ErrConflict, "update application", fmt.Errorf("version %d", expectedVersion))
	}
	app.Version = expectedVersion + 1
	f.apps[app.ID] = *app
	f.updates++
	f.audit.add(audit...)
	return nil
}

func (f *appRepoFake) Delete(_ context.Context, id string, audit domain.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit.add(audit)
	delete(f.apps, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *appRepoFake) stored(id string) domain.Application {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apps[id]
}

type docRepoFake struct {
	mu    sync.Mutex
	order []string
	docs  map[string]domain.DocumentArtifact
	audit *auditLogFake
}

func newDocRepoFake(audit *auditLogFake, docs ...domain.DocumentArtifact) *docRepoFake {
	f := &docRepoFake{docs: map[string]domain.DocumentArtifact{}, audit: audit}
	for _, doc := range docs {
		f.order = append(f.order, doc.ID)
		f.docs[doc.ID] = doc
	}
	return f
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.DocumentArtifact, audit ...domain.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, doc.ID)
	f.docs[doc.ID] = *doc
	f.audit.add(audit...)
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.DocumentArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (f *docRepoFake) ListByApplication(_ context.Context, applicationID string) ([]domain.DocumentArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DocumentArtifact, 0)
	for _, id := range f.order {
		if doc := f.docs[id]; doc.ApplicationID == applicationID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *docRepoFake) SaveExtraction(_ context.Context, id string, fields domain.ExtractedFields, status domain.OCRStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.docs[id]
	doc.Fields = fields
	doc.OCRStatus = status
	f.docs[id] = doc
	return nil
}

func (f *docRepoFake) UpdateValidation(_ context.Context, id string, status domain.ValidationStatus, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.docs[id]
	if doc.ValidationStatus != domain.ValidationPending {
		return nil
	}
	doc.ValidationStatus = status
	doc.ValidationMessage = message
	f.docs[id] = doc
	return nil
}

func (f *docRepoFake) MarkPending(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.docs[id]
	doc.ValidationStatus = domain.ValidationPending
	doc.ValidationMessage = message
	f.docs[id] = doc
	return nil
}

func (f *docRepoFake) get(id string) domain.DocumentArtifact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id]
}

type resultRepoFake struct {
	mu      sync.Mutex
	results map[string]domain.VerificationResult
	audit   *auditLogFake
}

func newResultRepoFake(audit *auditLogFake) *resultRepoFake {
	return &resultRepoFake{results: map[string]domain.VerificationResult{}, audit: audit}
}

func resultKey(applicationID, digest string, docType domain.DocumentType) string {
	return applicationID + "|" + digest + "|" + string(docType)
}

func (f *resultRepoFake) Find(_ context.Context, applicationID, digest string, docType domain.DocumentType) (*domain.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.results[resultKey(applicationID, digest, docType)]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "find verification result", errors.New("missing"))
	}
	return &result, nil
}

func (f *resultRepoFake) Save(_ context.Context, result domain.VerificationResult, audit ...domain.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := resultKey(result.ApplicationID, result.ContentDigest, result.DocumentType)
	if stored, ok := f.results[key]; ok && stored.ProfileVersion >= result.ProfileVersion {
		return nil
	}
	f.results[key] = result
	f.audit.add(audit...)
	return nil
}

func (f *resultRepoFake) ListByApplication(_ context.Context, applicationID string) ([]domain.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.VerificationResult, 0)
	for _, result := range f.results {
		if result.ApplicationID == applicationID {
			out = append(out, result)
		}
	}
	return out, nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	err     error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open object", fmt.Errorf("key=%s", key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishApplicationEvaluate(_ context.Context, applicationID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, applicationID)
	return nil
}

func (f *queueFake) SubscribeApplicationEvaluate(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	mu     sync.Mutex
	fields map[domain.DocumentType]map[string]string
	err    error
	block  bool
	calls  int
}

func (f *extractorFake) Extract(ctx context.Context, doc domain.DocumentArtifact, _ []byte) (map[string]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.fields[doc.Type], nil
}

type referenceFake struct {
	sets map[domain.DocumentType]*domain.ReferenceSet
}

func (f *referenceFake) Lookup(_ context.Context, _ string, docType domain.DocumentType) (*domain.ReferenceSet, error) {
	return f.sets[docType], nil
}

func (f *referenceFake) Reload(context.Context) error { return nil }

type explainerFake struct {
	text string
	err  error
}

func (f *explainerFake) GenerateExplanation(context.Context, domain.Application) (string, error) {
	return f.text, f.err
}

type observerFake struct {
	mu            sync.Mutex
	verifications []string
	decisions     []domain.Decision
}

func (f *observerFake) ObserveVerification(docType domain.DocumentType, status domain.ValidationStatus, reused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := string(docType) + ":" + string(status)
	if reused {
		entry += ":reused"
	}
	f.verifications = append(f.verifications, entry)
}

func (f *observerFake) ObserveDecision(decision domain.Decision, _ domain.DecisionMaker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, decision)
}
