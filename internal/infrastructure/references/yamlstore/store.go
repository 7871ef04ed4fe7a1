// Package yamlstore serves the identity whitelist from a YAML file and its
// reference images, reloaded on demand or when the file changes.
package yamlstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/verify"
)

const maxReferenceBytes = 10 << 20

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

type fileFormat struct {
	Applicants []applicantEntry `yaml:"applicants"`
}

type applicantEntry struct {
	Name      string                    `yaml:"name"`
	Documents map[string]documentEntry `yaml:"documents"`
}

type documentEntry struct {
	Digests      []string `yaml:"digests"`
	Fingerprints []string `yaml:"fingerprints"`
	// Reference is resolved relative to the YAML file. Its own digest and
	// fingerprint are whitelisted automatically.
	Reference string `yaml:"reference"`
}

type Store struct {
	path string

	mu      sync.RWMutex
	entries map[string]map[domain.DocumentType]domain.ReferenceSet
}

// Open loads path once. An empty path yields a store that knows nobody.
func Open(ctx context.Context, path string) (*Store, error) {
	s := &Store{
		path:    strings.TrimSpace(path),
		entries: map[string]map[domain.DocumentType]domain.ReferenceSet{},
	}
	if s.path == "" {
		return s, nil
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Lookup(_ context.Context, applicantName string, docType domain.DocumentType) (*domain.ReferenceSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType, ok := s.entries[verify.NormalizeName(applicantName)]
	if !ok {
		return nil, nil
	}
	set, ok := byType[docType]
	if !ok {
		return nil, nil
	}
	out := domain.ReferenceSet{
		Digests:      append([]string(nil), set.Digests...),
		Fingerprints: append([]string(nil), set.Fingerprints...),
		Reference:    set.Reference,
	}
	return &out, nil
}

// Reload replaces the whole whitelist atomically; on error the previous
// contents stay in place.
func (s *Store) Reload(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	entries, err := load(s.path)
	if err != nil {
		slog.ErrorContext(ctx, "reference_store_reload_failed", "path", s.path, "error", err.Error())
		return err
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	slog.InfoContext(ctx, "reference_store_reloaded", "path", s.path, "applicants", len(entries))
	return nil
}

func load(path string) (map[string]map[domain.DocumentType]domain.ReferenceSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference store: %w", err)
	}

	var file fileFormat
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse reference store", err)
	}

	baseDir := filepath.Dir(path)
	entries := make(map[string]map[domain.DocumentType]domain.ReferenceSet, len(file.Applicants))
	for idx, applicant := range file.Applicants {
		name := verify.NormalizeName(applicant.Name)
		if name == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse reference store", fmt.Errorf("applicant #%d has no name", idx+1))
		}
		byType := entries[name]
		if byType == nil {
			byType = make(map[domain.DocumentType]domain.ReferenceSet)
			entries[name] = byType
		}
		for rawType, doc := range applicant.Documents {
			docType, ok := domain.ParseDocumentType(rawType)
			if !ok {
				return nil, domain.WrapError(domain.ErrInvalidInput, "parse reference store", fmt.Errorf("applicant %q: unknown document type %q", applicant.Name, rawType))
			}
			set, err := buildSet(baseDir, doc)
			if err != nil {
				return nil, fmt.Errorf("applicant %q %s: %w", applicant.Name, docType, err)
			}
			byType[docType] = mergeSets(byType[docType], set)
		}
	}
	return entries, nil
}

func buildSet(baseDir string, doc documentEntry) (domain.ReferenceSet, error) {
	var set domain.ReferenceSet
	for _, digest := range doc.Digests {
		digest = strings.ToLower(strings.TrimSpace(digest))
		if !digestPattern.MatchString(digest) {
			return set, domain.WrapError(domain.ErrInvalidInput, "parse reference store", fmt.Errorf("invalid sha256 digest %q", digest))
		}
		set.Digests = append(set.Digests, digest)
	}
	for _, fingerprint := range doc.Fingerprints {
		if fingerprint = strings.ToLower(strings.TrimSpace(fingerprint)); fingerprint != "" {
			set.Fingerprints = append(set.Fingerprints, fingerprint)
		}
	}

	if ref := strings.TrimSpace(doc.Reference); ref != "" {
		if !filepath.IsAbs(ref) {
			ref = filepath.Join(baseDir, ref)
		}
		content, err := readReference(ref)
		if err != nil {
			return set, err
		}
		digest, fingerprint := verify.Fingerprint(content)
		set.Reference = content
		set.Digests = append(set.Digests, digest)
		set.Fingerprints = append(set.Fingerprints, fingerprint)
	}
	return set, nil
}

func readReference(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat reference file: %w", err)
	}
	if info.Size() > maxReferenceBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read reference file", fmt.Errorf("%s exceeds %d bytes", path, maxReferenceBytes))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}
	return content, nil
}

// mergeSets lets one applicant appear more than once in the file.
func mergeSets(existing, extra domain.ReferenceSet) domain.ReferenceSet {
	existing.Digests = append(existing.Digests, extra.Digests...)
	existing.Fingerprints = append(existing.Fingerprints, extra.Fingerprints...)
	if len(extra.Reference) > 0 {
		existing.Reference = extra.Reference
	}
	return existing
}
