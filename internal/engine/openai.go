package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// qualifierSystemPrompt frames every stage call. Stage personas live in the user prompt.
const qualifierSystemPrompt = "You are one stage of a B2B lead qualification pipeline. " +
	"Follow the stage instructions exactly and answer with a single JSON object, no prose."

// OpenAIClient implements Generator using the OpenAI Chat Completions API.
// It also works with any OpenAI-compatible service by setting a custom base URL.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	transport   *jsonTransport
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*OpenAIClient)

// WithModel sets the model name (default: gpt-4o-mini).
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		if d > 0 {
			c.transport.httpClient.Timeout = d
		}
	}
}

// WithBaseURL overrides the API endpoint (default: https://api.openai.com/v1).
func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithTemperature sets the sampling temperature (default 0.3).
func WithTemperature(t float64) OpenAIOption {
	return func(c *OpenAIClient) { c.temperature = t }
}

// NewOpenAIClient creates a new OpenAI generator.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:      apiKey,
		baseURL:     "https://api.openai.com/v1",
		model:       "gpt-4o-mini",
		temperature: 0.3,
		transport:   newJSONTransport("openai", 60*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete runs one stage prompt in JSON mode and returns the assistant's reply.
// Transient failures are retried once; quota and auth failures are not.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: qualifierSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	header := http.Header{"Authorization": {"Bearer " + c.apiKey}}

	var resp chatResponse
	if err := c.transport.post(ctx, c.baseURL+"/chat/completions", header, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", errors.New("openai: api error: " + resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}

	choice := resp.Choices[0]
	if resp.Usage != nil {
		slog.Debug("openai completion",
			"model", c.model,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"finish_reason", choice.FinishReason,
		)
	}
	if choice.FinishReason == "length" {
		slog.Warn("openai completion truncated", "model", c.model)
	}
	return choice.Message.Content, nil
}
