package model

import "testing"

func TestRawLeadBody(t *testing.T) {
	tests := []struct {
		name string
		lead RawLead
		want string
	}{
		{"content wins", RawLead{Content: "c", Title: "t", Headline: "h"}, "c"},
		{"title fallback", RawLead{Title: "t", Headline: "h"}, "t"},
		{"headline fallback", RawLead{Headline: "h"}, "h"},
		{"empty", RawLead{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lead.Body(); got != tt.want {
				t.Errorf("Body() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRawLeadHasContact(t *testing.T) {
	if (RawLead{}).HasContact() {
		t.Error("empty lead should have no contact")
	}
	if (RawLead{Author: "   "}).HasContact() {
		t.Error("whitespace author should not count as contact")
	}
	for _, l := range []RawLead{{URL: "u"}, {Email: "e"}, {Company: "c"}, {Author: "a"}, {Name: "n"}} {
		if !l.HasContact() {
			t.Errorf("HasContact() = false for %+v", l)
		}
	}
}

func TestRawLeadRedacted(t *testing.T) {
	l := RawLead{Source: "reddit", Email: "a@b.c", RawData: map[string]any{"k": "v"}, Author: "x"}
	r := l.Redacted()
	if r.Email != "" || r.RawData != nil {
		t.Errorf("Redacted kept sensitive fields: %+v", r)
	}
	if r.Source != "reddit" || r.Author != "x" {
		t.Errorf("Redacted dropped public fields: %+v", r)
	}
	if l.Email == "" {
		t.Error("Redacted must not mutate the original")
	}
}

func TestNewProcessedLead(t *testing.T) {
	l := NewProcessedLead("id-1", RawLead{Source: "reddit"}, PipelineContext{})
	if l.Status != StatusProcessed {
		t.Errorf("Status = %q, want %q", l.Status, StatusProcessed)
	}
	if l.BuyabilityScore != nil {
		t.Error("BuyabilityScore should be nil until back-filled")
	}
	if l.Context == nil {
		t.Error("Context should be set")
	}
	if l.ProcessedAt.IsZero() {
		t.Error("ProcessedAt should not be zero")
	}
}

func TestNewErroredLead(t *testing.T) {
	l := NewErroredLead("id-1", RawLead{}, ErrorInfo{FailedStep: "pitch", Kind: "validation"})
	if l.Status != StatusError {
		t.Errorf("Status = %q, want %q", l.Status, StatusError)
	}
	if l.Context != nil {
		t.Error("errored lead must not carry partial context")
	}
	if l.Error == nil || l.Error.FailedStep != "pitch" {
		t.Errorf("Error = %+v", l.Error)
	}
}

func TestIsHighValue(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	tests := []struct {
		score *float64
		want  bool
	}{
		{nil, false},
		{score(79.9), false},
		{score(80), true},
		{score(95), true},
	}
	for _, tt := range tests {
		l := ProcessedLead{BuyabilityScore: tt.score}
		if got := l.IsHighValue(80); got != tt.want {
			t.Errorf("IsHighValue(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	v := 85.0
	l := ProcessedLead{LeadID: "id-1", Status: StatusProcessed, OriginalLead: RawLead{Source: "linkedin", Name: "GrowthCo"}, BuyabilityScore: &v}
	s := l.Summary(80)
	if s.Title != "GrowthCo" {
		t.Errorf("Title = %q, want name fallback", s.Title)
	}
	if !s.IsHighValue {
		t.Error("IsHighValue should be true")
	}
}
