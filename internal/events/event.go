// Package events provides an in-process event bus and the lead domain events.
package events

import (
	"context"
	"time"

	"github.com/yangwenmai/leadsniper/internal/model"
)

// Event is the base interface all domain events must implement.
type Event interface {
	// EventName returns a unique identifier for the event type.
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent creates a new base event with the current timestamp.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

// Handler processes events of a specific type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow ordinary functions to be used as handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus is the interface for publishing and subscribing to domain events.
type Bus interface {
	// Publish sends an event to all registered handlers asynchronously.
	Publish(ctx context.Context, event Event)
	// PublishSync sends an event and waits for all handlers to complete.
	PublishSync(ctx context.Context, event Event) error
	// Subscribe registers a handler for the event name returned by Event.EventName().
	Subscribe(eventName string, handler Handler)
}

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadProcessed is published after every processing call, successful or not.
type LeadProcessed struct {
	BaseEvent
	LeadID          string   `json:"lead_id"`
	Status          string   `json:"status"`
	BuyabilityScore *float64 `json:"buyability_score"`
}

func (e LeadProcessed) EventName() string { return "leads.lead.processed" }

// HighValueLeadReady is published when an approved lead becomes a protected asset.
type HighValueLeadReady struct {
	BaseEvent
	Notification model.Notification `json:"notification"`
}

func (e HighValueLeadReady) EventName() string { return "leads.lead.high_value_ready" }

// LeadUnlocked is published after a successful payment. It never carries the access token.
type LeadUnlocked struct {
	BaseEvent
	LeadID    string `json:"lead_id"`
	PaymentID string `json:"payment_id"`
}

func (e LeadUnlocked) EventName() string { return "leads.lead.unlocked" }
