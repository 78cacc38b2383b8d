package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxRetryAfter caps how long a Retry-After header may stall a stage.
const maxRetryAfter = 30 * time.Second

// apiError is a non-200 answer from a model provider.
type apiError struct {
	StatusCode int
	Code       string // provider error code, e.g. "insufficient_quota"
	Message    string
	Body       string
	RetryAfter time.Duration
}

func (e *apiError) Error() string {
	switch {
	case e.Message != "" && e.Code != "":
		return fmt.Sprintf("HTTP %d (%s): %s", e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
}

// quotaExhausted reports a billing failure. Retrying cannot fix it.
func (e *apiError) quotaExhausted() bool {
	return e.Code == "insufficient_quota" || strings.Contains(strings.ToLower(e.Body), "insufficient_quota")
}

func (e *apiError) isRetryable() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return !e.quotaExhausted()
	}
	return e.StatusCode >= http.StatusInternalServerError
}

// newAPIError reads the provider error envelope. OpenAI-compatible services send
// {"error":{"message","type","code"}}; Ollama sends {"error":"..."}.
func newAPIError(resp *http.Response, body []byte) *apiError {
	ae := &apiError{StatusCode: resp.StatusCode, Body: string(body)}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		}
		var text string
		switch {
		case json.Unmarshal(envelope.Error, &detail) == nil:
			ae.Message = detail.Message
			if s, ok := detail.Code.(string); ok && s != "" {
				ae.Code = s
			} else {
				ae.Code = detail.Type
			}
		case json.Unmarshal(envelope.Error, &text) == nil:
			ae.Message = text
		}
	}

	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			ae.RetryAfter = min(time.Duration(secs)*time.Second, maxRetryAfter)
		}
	}
	return ae
}

// jsonTransport posts JSON to a model provider and retries transient failures.
type jsonTransport struct {
	provider    string
	httpClient  *http.Client
	backoff     time.Duration
	maxAttempts int
}

func newJSONTransport(provider string, timeout time.Duration) *jsonTransport {
	return &jsonTransport{
		provider:    provider,
		httpClient:  &http.Client{Timeout: timeout},
		backoff:     2 * time.Second,
		maxAttempts: 2,
	}
}

// post sends in as JSON to url and decodes the 200 response into out.
// Errors are prefixed with the provider name.
func (t *jsonTransport) post(ctx context.Context, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", t.provider, err)
	}

	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		lastErr = t.do(ctx, url, header, body, out)
		if lastErr == nil {
			return nil
		}

		var ae *apiError
		if errors.As(lastErr, &ae) && !ae.isRetryable() {
			break
		}
		if attempt == t.maxAttempts {
			break
		}

		wait := time.Duration(attempt) * t.backoff
		if ae != nil && ae.RetryAfter > 0 {
			wait = ae.RetryAfter
		}
		slog.Warn("model call failed, retrying", "provider", t.provider, "attempt", attempt, "wait", wait, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s: %w", t.provider, lastErr)
}

func (t *jsonTransport) do(ctx context.Context, url string, header http.Header, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
