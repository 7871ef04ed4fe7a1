package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

func TestEvaluateMessageCarriesAttempt(t *testing.T) {
	msg := evaluateMessage("applications.evaluate", "app-1", 3)
	if string(msg.Data) != "app-1" || msg.Subject != "applications.evaluate" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if got := messageAttempt(msg); got != 3 {
		t.Fatalf("expected attempt 3, got %d", got)
	}
}

func TestMessageAttemptDefaultsToFirstDelivery(t *testing.T) {
	if got := messageAttempt(&nats.Msg{Data: []byte("app-1")}); got != 1 {
		t.Fatalf("expected 1 without header, got %d", got)
	}
	msg := nats.NewMsg("s")
	msg.Header.Set(attemptHeader, "garbage")
	if got := messageAttempt(msg); got != 1 {
		t.Fatalf("expected 1 for unparsable header, got %d", got)
	}
}

func TestShouldRedeliverOnlyTemporaryErrors(t *testing.T) {
	temporary := domain.WrapError(domain.ErrTemporary, "verify document", errors.New("timeout"))
	if !shouldRedeliver(temporary, 1, 3) {
		t.Fatalf("temporary error within budget should be redelivered")
	}
	if shouldRedeliver(temporary, 4, 3) {
		t.Fatalf("redelivery budget exceeded")
	}
	if shouldRedeliver(temporary, 1, 0) {
		t.Fatalf("redelivery disabled")
	}
	if shouldRedeliver(domain.WrapError(domain.ErrNotFound, "get", errors.New("x")), 1, 3) {
		t.Fatalf("permanent errors must not be redelivered")
	}
}

func TestClassifyNATSError(t *testing.T) {
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must be neither retried nor recorded: %+v", class)
	}
	if class := classifyNATSError(nats.ErrNoServers); !class.Retryable || !class.RecordFailure {
		t.Fatalf("no servers must be retryable: %+v", class)
	}
	if class := classifyNATSError(nats.ErrBadSubject); class.Retryable {
		t.Fatalf("bad subject must not be retried: %+v", class)
	}
	if class := classifyNATSError(fmt.Errorf("publish: %w", gobreaker.ErrOpenState)); !class.Retryable {
		t.Fatalf("open breaker should be retryable: %+v", class)
	}
}

func TestWrapPublishError(t *testing.T) {
	if err := wrapPublishError(nats.ErrTimeout); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("timeout should become temporary, got %v", err)
	}
	if err := wrapPublishError(nats.ErrConnectionReconnecting); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("reconnecting should become temporary, got %v", err)
	}
	if err := wrapPublishError(nats.ErrMaxPayload); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("oversized payload should be invalid input, got %v", err)
	}
	if err := wrapPublishError(errors.New("nats: permissions violation")); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("unknown errors must stay permanent, got %v", err)
	}
	if class := classifyNATSError(nats.ErrMaxPayload); class.RecordFailure {
		t.Fatalf("caller errors must not trip the breaker: %+v", class)
	}
}

func TestMessageLag(t *testing.T) {
	msg := evaluateMessage("applications.evaluate", "app-1", 1)
	published, err := time.Parse(time.RFC3339Nano, msg.Header.Get(publishedAtHeader))
	if err != nil {
		t.Fatalf("parse published header: %v", err)
	}

	lag, ok := messageLag(msg, published.Add(1500*time.Millisecond))
	if !ok || lag != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s lag, got %v (ok=%v)", lag, ok)
	}
	if lag, ok := messageLag(msg, published.Add(-time.Second)); !ok || lag != 0 {
		t.Fatalf("clock skew must clamp to zero, got %v", lag)
	}
	if _, ok := messageLag(nats.NewMsg("x"), time.Now()); ok {
		t.Fatalf("message without header must not report lag")
	}
}
