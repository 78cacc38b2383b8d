// Package quality scores raw leads against a fixed, deterministic rubric.
package quality

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/yangwenmai/leadsniper/internal/model"
)

// Rubric weights. They sum to maxScore.
const (
	requiredFieldPoints = 10 // per required field
	substancePartial    = 15
	substanceFull       = 30
	intentPoints        = 30
	contactPoints       = 20

	maxScore = 2*requiredFieldPoints + substanceFull + intentPoints + contactPoints

	shortContent = 50
	longContent  = 100

	// ValidThreshold is the minimum quality score for IsValid.
	ValidThreshold = 60.0
)

// DefaultIntentKeywords denote buying intent. Matching is a case-insensitive substring test.
var DefaultIntentKeywords = []string{
	"hiring", "looking", "need", "seeking", "want", "searching",
	"looking for", "in search of", "require", "seeking to",
	"interested in", "considering", "evaluating", "comparing",
}

// Validator is a pure lead quality scorer.
type Validator struct {
	keywords []string
}

// New creates a Validator. A nil or empty keyword list falls back to DefaultIntentKeywords.
func New(keywords []string) *Validator {
	if len(keywords) == 0 {
		keywords = DefaultIntentKeywords
	}
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &Validator{keywords: kw}
}

// Validate scores lead. It never fails; missing fields lower the score.
func (v *Validator) Validate(lead model.RawLead) model.ValidationReport {
	var (
		achieved  int
		issues    = []string{}
		strengths = []string{}
		details   model.ValidationDetails
	)

	required := 0
	for _, f := range []struct{ name, value string }{
		{"source", lead.Source},
		{"content", lead.Content},
	} {
		if f.value == "" {
			issues = append(issues, "Missing required field: "+f.name)
			continue
		}
		required += requiredFieldPoints
		strengths = append(strengths, "Has "+f.name)
	}
	achieved += required
	details.RequiredFields = required == 2*requiredFieldPoints

	body := lead.Body()
	switch n := utf8.RuneCountInString(body); {
	case n < shortContent:
		issues = append(issues, fmt.Sprintf("Content too short (< %d chars)", shortContent))
	case n < longContent:
		achieved += substancePartial
		issues = append(issues, "Content could be more detailed")
	default:
		achieved += substanceFull
		details.ContentQuality = true
		strengths = append(strengths, "Content has sufficient detail")
	}

	found := v.matchKeywords(body)
	if len(found) > 0 {
		achieved += intentPoints
		details.BuyingIntent = true
		shown := found
		if len(shown) > 3 {
			shown = shown[:3]
		}
		strengths = append(strengths, "Buying intent detected: "+strings.Join(shown, ", "))
	} else {
		issues = append(issues, "No clear buying intent keywords detected")
	}

	if lead.HasContact() {
		achieved += contactPoints
		details.HasContact = true
		strengths = append(strengths, "Has contact/company information")
	} else {
		issues = append(issues, "Missing contact or company information")
	}

	score := math.Round(float64(achieved)/float64(maxScore)*100*100) / 100
	return model.ValidationReport{
		QualityScore:  score,
		IsValid:       score >= ValidThreshold,
		Issues:        issues,
		Strengths:     strengths,
		FoundKeywords: found,
		Details:       details,
	}
}

func (v *Validator) matchKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range v.keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}
