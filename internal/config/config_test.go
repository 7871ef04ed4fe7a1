package config

import (
	"strings"
	"testing"
)

func TestLoadIncludesVerificationDefaults(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "")
	t.Setenv("NAME_SIMILARITY_THRESHOLD", "")
	t.Setenv("SALARY_TOLERANCE_PERCENT", "")
	t.Setenv("ON_MISSING_REFERENCE", "")
	t.Setenv("VERIFY_CONCURRENCY", "")

	cfg := Load()
	if cfg.SimilarityThreshold != 80 {
		t.Fatalf("expected default similarity threshold 80, got %d", cfg.SimilarityThreshold)
	}
	if cfg.NameSimilarityThreshold != 0.80 {
		t.Fatalf("expected default name threshold 0.80, got %v", cfg.NameSimilarityThreshold)
	}
	if cfg.SalaryTolerancePercent != 15 {
		t.Fatalf("expected default salary tolerance 15, got %d", cfg.SalaryTolerancePercent)
	}
	if cfg.OnMissingReference != "accept" {
		t.Fatalf("expected default missing reference policy accept, got %q", cfg.OnMissingReference)
	}
	if cfg.NATSSubject != "applications.evaluate" {
		t.Fatalf("expected default subject applications.evaluate, got %q", cfg.NATSSubject)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate, got %v", err)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "90")
	t.Setenv("NAME_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("ON_MISSING_REFERENCE", "require-manual-review")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("VERIFY_CONCURRENCY", "not-a-number")

	cfg := Load()
	if cfg.SimilarityThreshold != 90 || cfg.NameSimilarityThreshold != 0.9 {
		t.Fatalf("expected threshold overrides, got %d / %v", cfg.SimilarityThreshold, cfg.NameSimilarityThreshold)
	}
	if cfg.OnMissingReference != "require-manual-review" {
		t.Fatalf("expected policy override, got %q", cfg.OnMissingReference)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.VerifyConcurrency != 4 {
		t.Fatalf("unparsable values fall back to defaults, got %d", cfg.VerifyConcurrency)
	}
}

func TestParseAdminTokens(t *testing.T) {
	tokens := parseAdminTokens(" alice:tok-a , bob:tok-b,broken, :nobody,carol: ")
	if len(tokens) != 2 || tokens["tok-a"] != "alice" || tokens["tok-b"] != "bob" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
	if len(parseAdminTokens("")) != 0 {
		t.Fatalf("empty input yields no tokens")
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Load()
	cfg.SimilarityThreshold = 0
	cfg.OnMissingReference = "maybe"
	cfg.VerifyConcurrency = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, key := range []string{"SIMILARITY_THRESHOLD", "ON_MISSING_REFERENCE", "VERIFY_CONCURRENCY"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in %v", key, err)
		}
	}
}

func TestValidateRejectsZeroSalaryTolerance(t *testing.T) {
	cfg := Load()
	cfg.SalaryTolerancePercent = 0

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SALARY_TOLERANCE_PERCENT") {
		t.Fatalf("expected SALARY_TOLERANCE_PERCENT error, got %v", err)
	}

	cfg.SalaryTolerancePercent = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("1%% tolerance must be accepted, got %v", err)
	}
}
