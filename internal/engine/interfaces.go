package engine

import "context"

// Generator abstracts LLM calls. Implementations can wrap OpenAI, Gemini, local models, etc.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// auditResult is the structured output of the audit step.
type auditResult struct {
	BuyabilityScore *float64 `json:"buyability_score"`
	Feedback        string   `json:"feedback"`
}

// pitchResult is the structured output of the pitch step.
type pitchResult struct {
	Message string `json:"message"`
}
