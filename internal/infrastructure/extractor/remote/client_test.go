package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/resilience"
)

func TestExtractSendsDocumentAndFlattensFields(t *testing.T) {
	var captured extractRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/extract" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"fields":{"employee_name":"Asha Rao","net_salary":75000,"nested":{"x":1}}}`))
	}))
	defer server.Close()

	doc := domain.DocumentArtifact{Type: domain.DocumentSalarySlip, MimeType: "image/png", Filename: "slip.png"}
	fields, err := New(server.URL, time.Second, nil).Extract(context.Background(), doc, []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if fields["employee_name"] != "Asha Rao" || fields["net_salary"] != "75000" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["nested"]; ok {
		t.Fatalf("nested values must be dropped: %v", fields)
	}
	raw, _ := base64.StdEncoding.DecodeString(captured.ContentBase64)
	if captured.DocumentType != "salary_slip" || string(raw) != "png-bytes" {
		t.Fatalf("unexpected request %+v", captured)
	}
}

func TestExtractRetriesAndMarksTemporary(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	_, err := New(server.URL, time.Second, executor).Extract(context.Background(), domain.DocumentArtifact{Type: domain.DocumentPAN}, []byte("x"))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestExtractDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unsupported image", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryInitialBackoff: time.Millisecond})
	_, err := New(server.URL, time.Second, executor).Extract(context.Background(), domain.DocumentArtifact{Type: domain.DocumentPAN}, []byte("x"))
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
