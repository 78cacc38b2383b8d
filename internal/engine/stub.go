package engine

import (
	"context"
	"fmt"
	"strings"
)

// StubGenerator returns canned model responses (for development/testing).
// AuditScore sets the buyability score it reports; zero means 85.
type StubGenerator struct {
	AuditScore float64
}

func (m *StubGenerator) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Intent Data Analyst"):
		return mustJSON(map[string]any{
			"signals": []map[string]any{{
				"name":         "[Stub] Prospect",
				"trigger_text": "looking for a better tool",
				"confidence":   8,
				"category":     "alternatives_request",
			}},
		}), nil

	case strings.Contains(prompt, "Business Intelligence Analyst"):
		return mustJSON(map[string]any{
			"company_name":      "[Stub] Company",
			"value_proposition": "Helps small teams ship software faster.",
			"recent_events":     []string{"Raised a seed round last quarter.", "Opened a second office."},
			"rejection_risk":    "Satisfied enough with spreadsheets to delay a switch.",
			"hook":              "Your post about outgrowing your current setup.",
		}), nil

	case strings.Contains(prompt, "Strategic Growth Copywriter"):
		return mustJSON(map[string]any{
			"message": "Saw your post about outgrowing your current setup. Teams your size usually cut " +
				"follow-up time from hours to minutes once the pipeline lives next to their chat. " +
				"Would a two-line summary of how that looks for a ten-person team be useful?",
		}), nil

	case strings.Contains(prompt, "Buyability Auditor"):
		score := m.AuditScore
		if score == 0 {
			score = 85
		}
		return fmt.Sprintf(`{"buyability_score": %g, "feedback": "[Stub] Clear intent with a specific hook."}`, score), nil
	}
	return "{}", nil
}
