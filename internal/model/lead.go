package model

import (
	"strings"
	"time"
)

// ProcessedLead status constants
const (
	StatusProcessed = "processed"
	StatusError     = "error"
)

// RawLead is a loosely structured posting harvested by a source connector.
// Every field is optional; missing fields lower the quality score instead of failing.
type RawLead struct {
	Source    string         `json:"source,omitempty"`
	Platform  string         `json:"platform,omitempty"`
	Title     string         `json:"title,omitempty"`
	Headline  string         `json:"headline,omitempty"`
	Name      string         `json:"name,omitempty"`
	Content   string         `json:"content,omitempty"`
	Author    string         `json:"author,omitempty"`
	Company   string         `json:"company,omitempty"`
	Email     string         `json:"email,omitempty"`
	Location  string         `json:"location,omitempty"`
	Subreddit string         `json:"subreddit,omitempty"`
	URL       string         `json:"url,omitempty"`
	PostedAt  string         `json:"posted_at,omitempty"`
	Upvotes   *int           `json:"upvotes,omitempty"`
	Comments  *int           `json:"comments,omitempty"`
	RawData   map[string]any `json:"raw_data,omitempty"`
}

// Body returns the descriptive text of the lead: content, else title, else headline.
func (l RawLead) Body() string {
	switch {
	case l.Content != "":
		return l.Content
	case l.Title != "":
		return l.Title
	default:
		return l.Headline
	}
}

// DisplayTitle returns the title, falling back to the poster's name.
func (l RawLead) DisplayTitle() string {
	if l.Title != "" {
		return l.Title
	}
	return l.Name
}

// HasContact reports whether any contact or identity field is present.
func (l RawLead) HasContact() bool {
	for _, v := range []string{l.URL, l.Email, l.Company, l.Author, l.Name} {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Redacted returns the view of the lead that is packaged into a protected asset.
// The scraper dump and direct e-mail address are dropped.
func (l RawLead) Redacted() RawLead {
	out := l
	out.Email = ""
	out.RawData = nil
	return out
}

// ProcessedLead is the lifecycle record of one processing call.
type ProcessedLead struct {
	LeadID          string           `json:"lead_id"`
	OriginalLead    RawLead          `json:"original_lead"`
	Context         *PipelineContext `json:"context,omitempty"`
	BuyabilityScore *float64         `json:"buyability_score"`
	Status          string           `json:"status"`
	Error           *ErrorInfo       `json:"error,omitempty"`
	ProcessedAt     time.Time        `json:"processed_at"`
}

// NewProcessedLead creates a successful record with no score yet.
func NewProcessedLead(id string, raw RawLead, pc PipelineContext) ProcessedLead {
	return ProcessedLead{
		LeadID:       id,
		OriginalLead: raw,
		Context:      &pc,
		Status:       StatusProcessed,
		ProcessedAt:  time.Now().UTC(),
	}
}

// NewErroredLead creates a status=error record. The partial context is discarded.
func NewErroredLead(id string, raw RawLead, info ErrorInfo) ProcessedLead {
	return ProcessedLead{
		LeadID:       id,
		OriginalLead: raw,
		Status:       StatusError,
		Error:        &info,
		ProcessedAt:  time.Now().UTC(),
	}
}

// IsHighValue reports whether the lead's score reaches threshold.
func (l ProcessedLead) IsHighValue(threshold float64) bool {
	return l.BuyabilityScore != nil && *l.BuyabilityScore >= threshold
}

// LeadSummary is the list view of a ProcessedLead. It never carries the payload.
type LeadSummary struct {
	LeadID          string    `json:"lead_id"`
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	Title           string    `json:"title"`
	BuyabilityScore *float64  `json:"buyability_score"`
	IsHighValue     bool      `json:"is_high_value"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// Summary builds the list view of the lead.
func (l ProcessedLead) Summary(threshold float64) LeadSummary {
	return LeadSummary{
		LeadID:          l.LeadID,
		Status:          l.Status,
		Source:          l.OriginalLead.Source,
		Title:           l.OriginalLead.DisplayTitle(),
		BuyabilityScore: l.BuyabilityScore,
		IsHighValue:     l.IsHighValue(threshold),
		ProcessedAt:     l.ProcessedAt,
	}
}
