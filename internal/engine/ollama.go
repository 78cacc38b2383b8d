package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// OllamaClient implements Generator using a local Ollama server.
type OllamaClient struct {
	baseURL   string
	model     string
	numCtx    int
	transport *jsonTransport
}

// OllamaOption configures the Ollama client.
type OllamaOption func(*OllamaClient)

// WithOllamaModel sets the model name.
func WithOllamaModel(model string) OllamaOption {
	return func(c *OllamaClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithOllamaTimeout sets the per-request HTTP timeout.
func WithOllamaTimeout(d time.Duration) OllamaOption {
	return func(c *OllamaClient) {
		if d > 0 {
			c.transport.httpClient.Timeout = d
		}
	}
}

// WithOllamaContext sets the context window in tokens. Audit prompts carry
// the posting plus three prior stage outputs and outgrow small defaults.
func WithOllamaContext(tokens int) OllamaOption {
	return func(c *OllamaClient) {
		if tokens > 0 {
			c.numCtx = tokens
		}
	}
}

// NewOllamaClient creates a new Ollama generator.
func NewOllamaClient(baseURL string, opts ...OllamaOption) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	c := &OllamaClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     "llama3",
		numCtx:    8192,
		transport: newJSONTransport("ollama", 120*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type ollamaResponse struct {
	Response   string `json:"response"`
	DoneReason string `json:"done_reason,omitempty"`
	EvalCount  int    `json:"eval_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Complete runs one stage prompt with JSON output forced and returns the reply.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := ollamaRequest{
		Model:  c.model,
		System: qualifierSystemPrompt,
		Prompt: prompt,
		Format: "json",
		Options: ollamaOptions{
			Temperature: 0.3,
			NumCtx:      c.numCtx,
		},
	}

	var resp ollamaResponse
	if err := c.transport.post(ctx, c.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", errors.New("ollama: " + resp.Error)
	}
	if resp.Response == "" {
		return "", errors.New("ollama: empty response")
	}

	slog.Debug("ollama completion", "model", c.model, "eval_count", resp.EvalCount, "done_reason", resp.DoneReason)
	return resp.Response, nil
}
