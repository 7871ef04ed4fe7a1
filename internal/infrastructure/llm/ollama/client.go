package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithExecutor routes every call through the retry/breaker executor.
func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL, genModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Explainer writes applicant-facing decision explanations.
type Explainer struct {
	client *Client
}

func NewExplainer(client *Client) *Explainer {
	return &Explainer{client: client}
}

func (e *Explainer) GenerateExplanation(ctx context.Context, app domain.Application) (string, error) {
	if app.Decision == nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "generate explanation", errors.New("application has no decision"))
	}
	return e.client.generateText(ctx, buildExplanationPrompt(app))
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": 0.2,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return cleanExplanation(response.Response), nil
}

// cleanExplanation drops surrounding quotes and markdown fences some models emit.
func cleanExplanation(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.Trim(strings.TrimSpace(text), `"`)
	return strings.TrimSpace(text)
}
