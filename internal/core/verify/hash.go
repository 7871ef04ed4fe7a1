// Package verify holds the document authenticity checks: exact digest and
// fingerprint matching, byte-sampling similarity, and OCR field cross-validation.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

const fingerprintPrefixLen = 16

type HashResult struct {
	Matched     bool             `json:"matched"`
	Digest      string           `json:"digest"`
	Fingerprint string           `json:"fingerprint"`
	Match       domain.HashMatch `json:"match"`
	Message     string           `json:"message"`
}

// Fingerprint returns the hex SHA-256 digest of data and the coarser
// fingerprint: the first 16 hex characters joined with the byte length.
func Fingerprint(data []byte) (digest, fingerprint string) {
	sum := sha256.Sum256(data)
	digest = hex.EncodeToString(sum[:])
	fingerprint = digest[:fingerprintPrefixLen] + "_" + strconv.Itoa(len(data))
	return digest, fingerprint
}

// VerifyHash checks data against known. A digest hit wins over a fingerprint
// hit; any byte-level change misses both.
func VerifyHash(data []byte, known *domain.ReferenceSet) HashResult {
	digest, fingerprint := Fingerprint(data)
	result := HashResult{
		Digest:      digest,
		Fingerprint: fingerprint,
		Match:       domain.HashMatchNone,
	}
	if known == nil {
		result.Message = "no whitelist entry for declared identity"
		return result
	}

	for _, candidate := range known.Digests {
		if strings.EqualFold(strings.TrimSpace(candidate), digest) {
			result.Matched = true
			result.Match = domain.HashMatchDigest
			result.Message = "exact digest match"
			return result
		}
	}
	for _, candidate := range known.Fingerprints {
		if strings.EqualFold(strings.TrimSpace(candidate), fingerprint) {
			result.Matched = true
			result.Match = domain.HashMatchFingerprint
			result.Message = "fingerprint match"
			return result
		}
	}
	result.Message = "digest and fingerprint not in whitelist"
	return result
}
