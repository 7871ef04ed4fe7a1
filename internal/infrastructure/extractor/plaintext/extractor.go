package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/extractor"
)

// Extractor reads labelled fields from text exports such as e-statements
// and payroll mails saved as .txt.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, doc domain.DocumentArtifact, content []byte) (map[string]string, error) {
	if !utf8.Valid(content) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text fields", fmt.Errorf("document %s is not valid utf-8", doc.Filename))
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return map[string]string{}, nil
	}
	return extractor.ParseLabeledText(doc.Type, text), nil
}
