package model

import "time"

// AssetStatusProtected is the only status a stored ProtectedAsset carries.
const AssetStatusProtected = "protected"

// NotificationHighValueLeadReady is the notification type for approved leads.
const NotificationHighValueLeadReady = "high_value_lead_ready"

// PaymentStatus is the state of a PaymentPlan.
type PaymentStatus string

// Payment plan states
const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentExpired PaymentStatus = "expired"
)

// AssetMetadata describes where a protected asset came from.
type AssetMetadata struct {
	Source    string `json:"source,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Protected bool   `json:"protected"`
}

// ProtectedAsset is the access-gated package of a high-scoring lead.
// AssetID always equals the lead id.
type ProtectedAsset struct {
	AssetID          string          `json:"asset_id"`
	LeadData         RawLead         `json:"lead_data"`
	Pitch            string          `json:"pitch"`
	ProcessedPayload PipelineContext `json:"processed_payload"`
	BuyabilityScore  float64         `json:"buyability_score"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	Metadata         AssetMetadata   `json:"metadata"`
}

// PaymentPlan is the price and payment state attached to one asset.
type PaymentPlan struct {
	PlanID     string        `json:"plan_id"`
	AssetID    string        `json:"asset_id"`
	Price      float64       `json:"price"`
	Currency   string        `json:"currency"`
	Status     PaymentStatus `json:"status"`
	PaymentURL string        `json:"payment_url"`
	PaymentID  string        `json:"payment_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	PaidAt     *time.Time    `json:"paid_at,omitempty"`
}

// PaymentResult is the outcome of a payment attempt.
type PaymentResult struct {
	Success     bool   `json:"success"`
	AssetID     string `json:"asset_id"`
	PaymentID   string `json:"payment_id,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PaymentVerification is the answer to "has this asset been paid for".
type PaymentVerification struct {
	IsPaid      bool          `json:"is_paid"`
	Status      PaymentStatus `json:"status"`
	AccessToken *string       `json:"access_token"`
}

// LeadPreview is the non-sensitive teaser shown for locked leads.
type LeadPreview struct {
	Source          string  `json:"source,omitempty"`
	Title           string  `json:"title"`
	BuyabilityScore float64 `json:"buyability_score"`
}

// Notification announces a newly available high-value lead.
type Notification struct {
	NotificationType string      `json:"notification_type"`
	LeadID           string      `json:"lead_id"`
	BuyabilityScore  float64     `json:"buyability_score"`
	Status           string      `json:"status"`
	PaymentURL       string      `json:"payment_url"`
	Preview          LeadPreview `json:"preview"`
	Timestamp        time.Time   `json:"timestamp"`
	Message          string      `json:"message"`
}
