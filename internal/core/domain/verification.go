package domain

import "time"

type HashMatch string

const (
	HashMatchNone        HashMatch = "none"
	HashMatchDigest      HashMatch = "digest"
	HashMatchFingerprint HashMatch = "fingerprint"
)

type FlagSeverity string

const (
	SeveritySoft FlagSeverity = "soft"
	SeverityHard FlagSeverity = "hard"
)

// FieldCheck is one cross-validation outcome. Flag is empty when Passed.
type FieldCheck struct {
	Name     string       `json:"name"`
	Passed   bool         `json:"passed"`
	Severity FlagSeverity `json:"severity"`
	Flag     string       `json:"flag,omitempty"`
}

type MissingReferencePolicy string

const (
	MissingReferenceAccept       MissingReferencePolicy = "accept"
	MissingReferenceReject       MissingReferencePolicy = "reject"
	MissingReferenceManualReview MissingReferencePolicy = "require-manual-review"
)

func (p MissingReferencePolicy) Valid() bool {
	switch p {
	case MissingReferenceAccept, MissingReferenceReject, MissingReferenceManualReview:
		return true
	default:
		return false
	}
}

// VerificationResult is keyed by application and content digest so a retried
// pipeline reuses it instead of re-running the verifiers. ProfileVersion ties
// the field checks to the claims they were compared against.
type VerificationResult struct {
	DocumentID        string           `json:"document_id"`
	ApplicationID     string           `json:"application_id"`
	DocumentType      DocumentType     `json:"document_type"`
	ContentDigest     string           `json:"content_digest"`
	HashMatch         HashMatch        `json:"hash_match"`
	SimilarityPercent *int             `json:"similarity_percent,omitempty"`
	ReferenceMissing  bool             `json:"reference_missing"`
	Matched           bool             `json:"matched"`
	Checks            []FieldCheck     `json:"checks"`
	Confidence        int              `json:"confidence"`
	Passed            bool             `json:"passed"`
	Status            ValidationStatus `json:"status"`
	Message           string           `json:"message,omitempty"`
	ProfileVersion    int              `json:"profile_version"`
	CreatedAt         time.Time        `json:"created_at"`
}

// HardFailed reports whether any check carries a hard flag.
func (v VerificationResult) HardFailed() bool {
	for _, check := range v.Checks {
		if !check.Passed && check.Severity == SeverityHard {
			return true
		}
	}
	return false
}

// Warnings returns the soft flags in check order.
func (v VerificationResult) Warnings() []string {
	out := make([]string, 0)
	for _, check := range v.Checks {
		if !check.Passed && check.Severity == SeveritySoft && check.Flag != "" {
			out = append(out, check.Flag)
		}
	}
	return out
}
