package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/extractor"
)

// Extractor reads the text layer of digitally generated salary slips and
// statements. Scanned PDFs have no text layer and yield an empty map.
type Extractor struct {
	maxTextBytes int64
}

func NewExtractor() *Extractor {
	return &Extractor{maxTextBytes: 1 << 20}
}

func (e *Extractor) Extract(ctx context.Context, doc domain.DocumentArtifact, content []byte) (map[string]string, error) {
	text, err := e.plainText(content)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", doc.Filename, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return extractor.ParseLabeledText(doc.Type, text), nil
}

// plainText converts parser panics on malformed input into errors.
func (e *Extractor) plainText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.WrapError(domain.ErrInvalidInput, "parse pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse pdf", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text layer: %w", err)
	}
	raw, err := io.ReadAll(io.LimitReader(plain, e.maxTextBytes))
	if err != nil {
		return "", fmt.Errorf("read text layer: %w", err)
	}
	return string(raw), nil
}
