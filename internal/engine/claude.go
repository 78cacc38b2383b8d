package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// ClaudeClient implements Generator using the Anthropic Messages API.
type ClaudeClient struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	transport *jsonTransport
}

// ClaudeOption configures the Claude client.
type ClaudeOption func(*ClaudeClient)

// WithClaudeModel sets the model name.
func WithClaudeModel(model string) ClaudeOption {
	return func(c *ClaudeClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithClaudeBaseURL overrides the API endpoint (default: https://api.anthropic.com/v1).
func WithClaudeBaseURL(url string) ClaudeOption {
	return func(c *ClaudeClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithClaudeTimeout sets the per-request HTTP timeout.
func WithClaudeTimeout(d time.Duration) ClaudeOption {
	return func(c *ClaudeClient) {
		if d > 0 {
			c.transport.httpClient.Timeout = d
		}
	}
}

// WithClaudeMaxTokens caps the reply length.
func WithClaudeMaxTokens(n int) ClaudeOption {
	return func(c *ClaudeClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewClaudeClient creates a new Anthropic Claude generator.
func NewClaudeClient(apiKey string, opts ...ClaudeOption) *ClaudeClient {
	c := &ClaudeClient{
		apiKey:    apiKey,
		baseURL:   "https://api.anthropic.com/v1",
		model:     "claude-sonnet-4-20250514",
		maxTokens: 2048,
		transport: newJSONTransport("claude", 60*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

// Complete runs one stage prompt and returns the first text block of the reply.
// Overloaded (529) and other 5xx answers are retried once.
func (c *ClaudeClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := claudeRequest{
		Model:       c.model,
		System:      qualifierSystemPrompt,
		MaxTokens:   c.maxTokens,
		Temperature: 0.3,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	}
	header := http.Header{
		"X-Api-Key":         {c.apiKey},
		"Anthropic-Version": {anthropicVersion},
	}

	var resp claudeResponse
	if err := c.transport.post(ctx, c.baseURL+"/messages", header, req, &resp); err != nil {
		return "", err
	}

	if resp.Usage != nil {
		slog.Debug("claude completion",
			"model", c.model,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"stop_reason", resp.StopReason,
		)
	}
	if resp.StopReason == "max_tokens" {
		slog.Warn("claude completion truncated", "model", c.model)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", errors.New("claude: no text content in response")
}
