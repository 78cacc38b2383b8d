package engine

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/yangwenmai/leadsniper/internal/model"
)

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n?(.*?)\\s*```$")

// unwrapFence strips a surrounding markdown code fence, if any.
func unwrapFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// decodeJSON strictly parses model output into v after unwrapping a code fence.
func decodeJSON(raw string, v any) error {
	if err := json.Unmarshal([]byte(unwrapFence(raw)), v); err != nil {
		return invalidf("not valid JSON: %v", err)
	}
	return nil
}

// scorePattern matches a labelled score in free text, e.g. `"buyability_score": 85` or `buyability_score = "72.5"`.
var scorePattern = regexp.MustCompile(`(?i)"?buyability_score"?\s*[:=]\s*"?(\d+(?:\.\d+)?)`)

// extractScore reads the buyability score from audit output. Strict JSON is the
// primary path; the labelled-number pattern is a degraded fallback for free text.
func extractScore(raw string) (score float64, source, feedback string, err error) {
	var res auditResult
	if decodeJSON(raw, &res) == nil && res.BuyabilityScore != nil {
		return clampScore(*res.BuyabilityScore), model.ScoreSourceStructured, res.Feedback, nil
	}

	m := scorePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, "", "", invalidf("no buyability_score in audit output")
	}
	v, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0, "", "", invalidf("unparseable buyability_score %q", m[1])
	}
	return clampScore(v), model.ScoreSourceTextFallback, truncateRunes(strings.TrimSpace(raw), 500), nil
}

func clampScore(v float64) float64 {
	switch {
	case v < 1:
		return 1
	case v > 100:
		return 100
	}
	return v
}
