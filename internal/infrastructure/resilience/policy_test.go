package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyBackoff(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     400 * time.Millisecond,
		Multiplier:     2,
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 400 * time.Millisecond}
	for i, expected := range want {
		if got := policy.Backoff(i + 1); got != expected {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, expected, got)
		}
	}
}

func TestRetryOverridesUseLongestPrefix(t *testing.T) {
	cfg := Config{
		RetryMaxAttempts: 3,
		RetryOverrides: map[string]RetryPolicy{
			"ollama.":          {MaxAttempts: 1},
			"ollama.generate.": {MaxAttempts: 2},
		},
	}.normalize()

	if got := cfg.retryPolicy("nats.publish").MaxAttempts; got != 3 {
		t.Fatalf("expected default attempts, got %d", got)
	}
	if got := cfg.retryPolicy("ollama.embed").MaxAttempts; got != 1 {
		t.Fatalf("expected ollama override, got %d", got)
	}
	generate := cfg.retryPolicy("ollama.generate.explain")
	if generate.MaxAttempts != 2 {
		t.Fatalf("expected longest prefix override, got %d", generate.MaxAttempts)
	}
	if generate.InitialBackoff != cfg.RetryInitialBackoff {
		t.Fatalf("zero override fields must inherit the default, got %v", generate.InitialBackoff)
	}
}

func TestExecuteHonoursRetryOverride(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryOverrides:      map[string]RetryPolicy{"ollama.": {MaxAttempts: 1}},
	})

	attempts := 0
	_ = exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		attempts++
		return errors.New("unavailable")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}
