package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
)

type route struct {
	pattern   string
	extractor ports.FieldExtractor
}

// Chain picks a FieldExtractor by document mime type. Patterns are either an
// exact media type or a "type/" prefix. The fallback serves unmatched types
// and routed extractors that found nothing, e.g. a PDF without a text layer.
type Chain struct {
	routes   []route
	fallback ports.FieldExtractor
}

func NewChain(fallback ports.FieldExtractor) *Chain {
	return &Chain{fallback: fallback}
}

func (c *Chain) Route(extractor ports.FieldExtractor, patterns ...string) *Chain {
	for _, pattern := range patterns {
		c.routes = append(c.routes, route{pattern: strings.ToLower(pattern), extractor: extractor})
	}
	return c
}

func (c *Chain) Extract(ctx context.Context, doc domain.DocumentArtifact, content []byte) (map[string]string, error) {
	mediaType := normalizeMediaType(doc.MimeType)
	routed := c.match(mediaType)
	if routed == nil {
		if c.fallback == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "extract fields", fmt.Errorf("no extractor for mime type %q", mediaType))
		}
		return c.fallback.Extract(ctx, doc, content)
	}

	fields, err := routed.Extract(ctx, doc, content)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 && c.fallback != nil {
		slog.InfoContext(ctx, "extractor_fallback",
			"document_id", doc.ID,
			"mime_type", mediaType,
		)
		return c.fallback.Extract(ctx, doc, content)
	}
	return fields, nil
}

func (c *Chain) match(mediaType string) ports.FieldExtractor {
	for _, r := range c.routes {
		if r.pattern == mediaType {
			return r.extractor
		}
		if strings.HasSuffix(r.pattern, "/") && strings.HasPrefix(mediaType, r.pattern) {
			return r.extractor
		}
	}
	return nil
}

func normalizeMediaType(raw string) string {
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mediaType
}
