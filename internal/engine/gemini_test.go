package engine

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type fakeGeminiModels struct {
	text   string
	err    error
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGeminiClient_Complete(t *testing.T) {
	fake := &fakeGeminiModels{text: `{"ok": true}`}
	c := newGeminiClient(fake, WithGeminiModel("gemini-2.5-flash"))

	got, err := c.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"ok": true}` {
		t.Errorf("Complete = %q", got)
	}
	if fake.model != "gemini-2.5-flash" {
		t.Errorf("model = %q, want gemini-2.5-flash", fake.model)
	}
	if fake.prompt != "hello" {
		t.Errorf("prompt = %q, want hello", fake.prompt)
	}
	if fake.config == nil || fake.config.ResponseMIMEType != "application/json" {
		t.Errorf("config = %+v, want JSON response type", fake.config)
	}
}

func TestGeminiClient_DefaultModel(t *testing.T) {
	c := newGeminiClient(&fakeGeminiModels{}, WithGeminiModel(""))
	if c.model != "gemini-2.0-flash" {
		t.Errorf("model = %q, want default", c.model)
	}
}

func TestGeminiClient_Errors(t *testing.T) {
	c := newGeminiClient(&fakeGeminiModels{text: "   "})
	if _, err := c.Complete(context.Background(), "x"); err == nil {
		t.Error("expected error for empty response")
	}

	c = newGeminiClient(&fakeGeminiModels{err: errors.New("Error 429, Status: RESOURCE_EXHAUSTED")})
	_, err := c.Complete(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ClassifyError(err); got != FailureQuotaExceeded {
		t.Errorf("ClassifyError = %q, want %q", got, FailureQuotaExceeded)
	}
}
