package verify

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

type Options struct {
	SimilarityThreshold    int
	MissingReferencePolicy domain.MissingReferencePolicy
	Fields                 FieldValidator
}

// DocumentVerifier combines the hash, similarity and field checks into one
// VerificationResult. It performs no I/O.
type DocumentVerifier struct {
	opts Options
}

func NewDocumentVerifier(opts Options) *DocumentVerifier {
	if opts.SimilarityThreshold <= 0 || opts.SimilarityThreshold > 100 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if !opts.MissingReferencePolicy.Valid() {
		opts.MissingReferencePolicy = domain.MissingReferenceAccept
	}
	if opts.Fields.NameThreshold == 0 {
		opts.Fields = NewFieldValidator(0, 0)
	}
	return &DocumentVerifier{opts: opts}
}

type Input struct {
	Artifact   domain.DocumentArtifact
	Content    []byte
	Profile    domain.ApplicantProfile
	References *domain.ReferenceSet
}

func (v *DocumentVerifier) Verify(in Input) domain.VerificationResult {
	hash := VerifyHash(in.Content, in.References)
	result := domain.VerificationResult{
		DocumentID:     in.Artifact.ID,
		ApplicationID:  in.Artifact.ApplicationID,
		DocumentType:   in.Artifact.Type,
		ContentDigest:  hash.Digest,
		HashMatch:      hash.Match,
		Matched:        hash.Matched,
		ProfileVersion: in.Profile.Version,
		CreatedAt:      time.Now().UTC(),
	}
	messages := []string{hash.Message}
	manualReview := false

	if !hash.Matched {
		switch {
		case in.References != nil && in.References.HasReference():
			similarity := Compare(in.Content, in.References.Reference)
			result.SimilarityPercent = &similarity
			result.Matched = similarity >= v.opts.SimilarityThreshold
			messages = append(messages, fmt.Sprintf("similarity %d%% (threshold %d%%)", similarity, v.opts.SimilarityThreshold))
		default:
			result.ReferenceMissing = true
			switch v.opts.MissingReferencePolicy {
			case domain.MissingReferenceAccept:
				result.Matched = true
				messages = append(messages, "no reference image, accepted by policy")
			case domain.MissingReferenceReject:
				messages = append(messages, "no reference image, rejected by policy")
			case domain.MissingReferenceManualReview:
				manualReview = true
				messages = append(messages, "no reference image, manual review required")
			}
		}
	}

	result.Checks = v.opts.Fields.Validate(in.Artifact.Type, in.Artifact.Fields, in.Profile)
	if result.Checks == nil {
		result.Checks = []domain.FieldCheck{}
	}
	result.Confidence = Confidence(result.Checks)

	switch {
	case manualReview:
		result.Status = domain.ValidationPending
	case !result.Matched:
		result.Status = domain.ValidationInvalid
	case result.HardFailed():
		result.Status = domain.ValidationInvalid
	default:
		result.Status = domain.ValidationValid
	}
	result.Passed = result.Status == domain.ValidationValid && !result.HardFailed()

	for _, check := range result.Checks {
		if !check.Passed && check.Flag != "" {
			messages = append(messages, check.Flag)
		}
	}
	result.Message = strings.Join(messages, "; ")
	return result
}
