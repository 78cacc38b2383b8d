package model

// Signal categories recognised as buying intent.
const (
	SignalToolFrustration     = "tool_frustration"
	SignalAlternativesRequest = "alternatives_request"
	SignalHiringShift         = "hiring_shift"
)

// Score sources recorded by the audit stage.
const (
	ScoreSourceStructured   = "structured"
	ScoreSourceTextFallback = "text_fallback"
)

// ValidationReport is the deterministic quality rubric result for a RawLead.
type ValidationReport struct {
	QualityScore  float64           `json:"quality_score"`
	IsValid       bool              `json:"is_valid"`
	Issues        []string          `json:"issues"`
	Strengths     []string          `json:"strengths"`
	FoundKeywords []string          `json:"found_keywords,omitempty"`
	Details       ValidationDetails `json:"validation_details"`
}

// ValidationDetails records which rubric sections were satisfied.
type ValidationDetails struct {
	RequiredFields bool `json:"required_fields"`
	ContentQuality bool `json:"content_quality"`
	BuyingIntent   bool `json:"buying_intent"`
	HasContact     bool `json:"has_contact"`
}

// Signal is one intent marker found in a posting.
type Signal struct {
	Name        string `json:"name"`
	TriggerText string `json:"trigger_text"`
	Confidence  int    `json:"confidence"`
	Category    string `json:"category,omitempty"`
}

// SignalSection is the Signal Extraction contribution.
type SignalSection struct {
	Signals []Signal `json:"signals"`
}

// ResearchSection is the Context Research contribution.
type ResearchSection struct {
	CompanyName      string   `json:"company_name,omitempty"`
	ValueProposition string   `json:"value_proposition"`
	RecentEvents     []string `json:"recent_events"`
	RejectionRisk    string   `json:"rejection_risk"`
	Hook             string   `json:"hook"`
}

// PitchSection is the Outreach Composition contribution.
type PitchSection struct {
	Message   string `json:"message"`
	WordCount int    `json:"word_count"`
}

// AuditSection is the Buyability Audit contribution.
type AuditSection struct {
	BuyabilityScore float64          `json:"buyability_score"`
	Approved        bool             `json:"approved"`
	ScoreSource     string           `json:"score_source"`
	Feedback        string           `json:"feedback,omitempty"`
	Quality         ValidationReport `json:"quality"`
	Package         *AssetPackage    `json:"package,omitempty"`
}

// AssetPackage frames the fields a protected asset is built from.
// It is only present on approved audits.
type AssetPackage struct {
	LeadData        RawLead       `json:"lead_data"`
	Pitch           string        `json:"pitch"`
	BuyabilityScore float64       `json:"buyability_score"`
	Metadata        AssetMetadata `json:"metadata"`
}

// PipelineContext accumulates stage outputs in stage order.
type PipelineContext struct {
	Signals  *SignalSection   `json:"signals,omitempty"`
	Research *ResearchSection `json:"research,omitempty"`
	Pitch    *PitchSection    `json:"pitch,omitempty"`
	Audit    *AuditSection    `json:"audit,omitempty"`
}
