package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yangwenmai/leadsniper/internal/model"
)

func formatLead(l model.RawLead) string {
	title := l.DisplayTitle()
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", orNA(l.Source))
	fmt.Fprintf(&b, "Platform: %s\n", orNA(l.Platform))
	fmt.Fprintf(&b, "Title/Name: %s\n", orNA(title))
	fmt.Fprintf(&b, "Content: %s\n", orNA(truncateRunes(l.Body(), 6000)))
	fmt.Fprintf(&b, "Author: %s\n", orNA(l.Author))
	fmt.Fprintf(&b, "Company: %s\n", orNA(l.Company))
	fmt.Fprintf(&b, "Location: %s\n", orNA(l.Location))
	fmt.Fprintf(&b, "URL: %s\n", orNA(l.URL))
	fmt.Fprintf(&b, "Posted At: %s", orNA(l.PostedAt))
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func buildSignalsPrompt(lead model.RawLead) string {
	return fmt.Sprintf(`You are an Intent Data Analyst. Identify "Active Intent" signals in the following posting.

Active Intent means one of:
1) tool_frustration: frustration with a tool they currently use
2) alternatives_request: asking for recommendations for a solution category
3) hiring_shift: hiring for roles that imply a tech stack shift

Output ONLY valid JSON with this exact structure (no markdown, no explanation):
{"signals": [{"name": "user or company", "trigger_text": "exact phrase showing intent", "confidence": 8, "category": "tool_frustration"}]}

Rules:
- 1 to 3 signals, strongest first
- trigger_text must be quoted from the posting
- confidence: integer 1-10 based on how urgent the need seems

Lead data:
%s`, formatLead(lead))
}

func buildResearchPrompt(lead model.RawLead, signals *model.SignalSection) string {
	return fmt.Sprintf(`You are a Business Intelligence Analyst. Build a context profile that makes a cold pitch feel warm.

Signals: %s

Output ONLY valid JSON with this exact structure:
{"company_name": "...", "value_proposition": "what they do", "recent_events": ["fact 1", "fact 2"], "rejection_risk": "likely objection", "hook": "specific personal opener"}

Rules:
- Exactly 2 recent_events
- hook must reference something specific to this lead, not a generic compliment
- rejection_risk: budget, satisfaction with current tool, integration effort, etc.

Lead data:
%s`, mustJSON(signals), formatLead(lead))
}

func buildPitchPrompt(signals *model.SignalSection, research *model.ResearchSection) string {
	return fmt.Sprintf(`You are a Strategic Growth Copywriter. Write one outreach message.

Signals: %s
Context profile: %s

Structure:
1) "I saw you": reference the trigger text of the strongest signal
2) Value bridge: frame a disproportionate (100x) improvement, not a feature list
3) Low-friction CTA: one easy-to-answer question, never a meeting request

Output ONLY valid JSON with this exact structure:
{"message": "..."}

Rules:
- At most %d words
- Professional yet conversational tone, never pushy
- Use the hook from the context profile`, mustJSON(signals), mustJSON(research), MaxPitchWords)
}

func buildAuditPrompt(lead model.RawLead, pc model.PipelineContext, report model.ValidationReport) string {
	return fmt.Sprintf(`You are a Buyability Auditor, the final check before a lead is packaged for sale.

Score the lead from 1 to 100 on buyability:
- strength of the buying intent signals
- quality and specificity of the context profile
- personalization of the pitch (generic = low)
- relevance of the value bridge

Output ONLY valid JSON with this exact structure:
{"buyability_score": 85, "feedback": "reasons for the score"}

Deterministic quality check: %s
Signals: %s
Context profile: %s
Pitch: %s

Lead data:
%s`, mustJSON(report), mustJSON(pc.Signals), mustJSON(pc.Research), mustJSON(pc.Pitch), formatLead(lead))
}

// truncateRunes truncates s to maxRunes runes (Unicode-safe).
func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "\n... [truncated]"
}

// mustJSON marshals v to a JSON string. It panics on error because callers
// only pass known struct types that are guaranteed to be serializable.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("engine: json.Marshal failed on known type: %v", err))
	}
	return string(b)
}
