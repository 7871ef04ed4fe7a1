package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/resilience"
)

// Client calls an OCR service that accepts base64 document bytes and replies
// with a flat key/value field map.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type extractRequest struct {
	DocumentType  string `json:"document_type"`
	MimeType      string `json:"mime_type"`
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

type extractResponse struct {
	Fields map[string]any `json:"fields"`
}

func (c *Client) Extract(ctx context.Context, doc domain.DocumentArtifact, content []byte) (map[string]string, error) {
	body, err := json.Marshal(extractRequest{
		DocumentType:  string(doc.Type),
		MimeType:      doc.MimeType,
		Filename:      doc.Filename,
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ocr request: %w", err)
	}

	var response extractResponse
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create ocr request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("ocr extract request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("ocr", "extract", resp)
		}
		response = extractResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("decode ocr response: %w", err)
		}
		return nil
	}

	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, "ocr.extract", call, resilience.ClassifyHTTPError)
	}
	if err != nil {
		return nil, resilience.WrapTemporary("ocr extract", err, resilience.ClassifyHTTPError)
	}
	return flatten(response.Fields), nil
}

// flatten keeps scalar values only; services report numbers unquoted.
func flatten(raw map[string]any) map[string]string {
	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case float64:
			fields[key] = fmt.Sprintf("%.0f", v)
		case bool:
			fields[key] = fmt.Sprintf("%t", v)
		}
	}
	return fields
}
