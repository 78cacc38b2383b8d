package engine

import (
	"context"
	"strings"

	"github.com/yangwenmai/leadsniper/internal/model"
)

// Stage limits.
const (
	MaxSignals         = 3
	MaxRecentEvents    = 2
	MaxPitchWords      = 150
	DefaultApprovalBar = 80.0
)

// Validator scores raw leads deterministically.
type Validator interface {
	Validate(lead model.RawLead) model.ValidationReport
}

// NewPipeline builds the standard qualification graph:
// signals -> research -> pitch -> audit.
func NewPipeline(gen Generator, v Validator, threshold float64) (*Graph, error) {
	if threshold <= 0 {
		threshold = DefaultApprovalBar
	}
	return NewGraph(
		&SignalsStep{Model: gen},
		&ResearchStep{Model: gen},
		&PitchStep{Model: gen},
		&AuditStep{Model: gen, Validator: v, Threshold: threshold},
	)
}

// complete calls the generator and tags failures as generation errors.
func complete(ctx context.Context, gen Generator, prompt string) (string, error) {
	raw, err := gen.Complete(ctx, prompt)
	if err != nil {
		return "", generationFailed(err)
	}
	return raw, nil
}

// ---------------------------------------------------------------------------
// Step 1: Signals
// ---------------------------------------------------------------------------

// SignalsStep extracts up to three buying-intent signals from the posting.
type SignalsStep struct {
	Model Generator
}

func (s *SignalsStep) Name() string    { return TaskSignals }
func (s *SignalsStep) Needs() []string { return nil }

func (s *SignalsStep) Run(ctx context.Context, in *RunState) (any, error) {
	raw, err := complete(ctx, s.Model, buildSignalsPrompt(in.Lead))
	if err != nil {
		return nil, err
	}

	var result model.SignalSection
	if err := decodeJSON(raw, &result); err != nil {
		return nil, err
	}
	if len(result.Signals) == 0 {
		return nil, invalidf("no intent signals found")
	}
	if len(result.Signals) > MaxSignals {
		result.Signals = result.Signals[:MaxSignals]
	}
	for i, sig := range result.Signals {
		if sig.Confidence < 1 || sig.Confidence > 10 {
			return nil, invalidf("signal %d confidence %d outside 1-10", i, sig.Confidence)
		}
		if strings.TrimSpace(sig.TriggerText) == "" {
			return nil, invalidf("signal %d has no trigger text", i)
		}
	}
	return &result, nil
}

// ---------------------------------------------------------------------------
// Step 2: Research
// ---------------------------------------------------------------------------

// ResearchStep builds the context profile used to personalise the pitch.
type ResearchStep struct {
	Model Generator
}

func (s *ResearchStep) Name() string    { return TaskResearch }
func (s *ResearchStep) Needs() []string { return []string{TaskSignals} }

func (s *ResearchStep) Run(ctx context.Context, in *RunState) (any, error) {
	raw, err := complete(ctx, s.Model, buildResearchPrompt(in.Lead, in.Signals()))
	if err != nil {
		return nil, err
	}

	var result model.ResearchSection
	if err := decodeJSON(raw, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.ValueProposition) == "" {
		return nil, invalidf("missing value_proposition")
	}
	if strings.TrimSpace(result.Hook) == "" {
		return nil, invalidf("missing hook")
	}
	if len(result.RecentEvents) > MaxRecentEvents {
		result.RecentEvents = result.RecentEvents[:MaxRecentEvents]
	}
	if result.RecentEvents == nil {
		result.RecentEvents = []string{}
	}
	return &result, nil
}

// ---------------------------------------------------------------------------
// Step 3: Pitch
// ---------------------------------------------------------------------------

// PitchStep composes the outreach message.
type PitchStep struct {
	Model Generator
}

func (s *PitchStep) Name() string    { return TaskPitch }
func (s *PitchStep) Needs() []string { return []string{TaskSignals, TaskResearch} }

func (s *PitchStep) Run(ctx context.Context, in *RunState) (any, error) {
	raw, err := complete(ctx, s.Model, buildPitchPrompt(in.Signals(), in.Research()))
	if err != nil {
		return nil, err
	}

	// Plain-text replies are accepted as the message itself.
	message := unwrapFence(raw)
	var result pitchResult
	if decodeJSON(raw, &result) == nil {
		message = result.Message
	}
	message = strings.TrimSpace(message)

	words := len(strings.Fields(message))
	if words == 0 {
		return nil, invalidf("empty pitch")
	}
	if words > MaxPitchWords {
		return nil, invalidf("pitch has %d words, limit is %d", words, MaxPitchWords)
	}
	return &model.PitchSection{Message: message, WordCount: words}, nil
}

// ---------------------------------------------------------------------------
// Step 4: Audit
// ---------------------------------------------------------------------------

// AuditStep scores buyability and frames the protected asset package on approval.
type AuditStep struct {
	Model     Generator
	Validator Validator
	Threshold float64
}

func (s *AuditStep) Name() string    { return TaskAudit }
func (s *AuditStep) Needs() []string { return []string{TaskSignals, TaskResearch, TaskPitch} }

func (s *AuditStep) Run(ctx context.Context, in *RunState) (any, error) {
	report := s.Validator.Validate(in.Lead)
	pc := model.PipelineContext{Signals: in.Signals(), Research: in.Research(), Pitch: in.Pitch()}

	raw, err := complete(ctx, s.Model, buildAuditPrompt(in.Lead, pc, report))
	if err != nil {
		return nil, err
	}

	score, source, feedback, err := extractScore(raw)
	if err != nil {
		return nil, err
	}

	result := &model.AuditSection{
		BuyabilityScore: score,
		Approved:        score >= s.Threshold,
		ScoreSource:     source,
		Feedback:        feedback,
		Quality:         report,
	}
	if result.Approved {
		result.Package = &model.AssetPackage{
			LeadData:        in.Lead.Redacted(),
			Pitch:           pc.Pitch.Message,
			BuyabilityScore: score,
			Metadata: model.AssetMetadata{
				Source:    in.Lead.Source,
				Platform:  in.Lead.Platform,
				Protected: true,
			},
		}
	}
	return result, nil
}
