package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yangwenmai/leadsniper/internal/engine"
	"github.com/yangwenmai/leadsniper/internal/events"
	"github.com/yangwenmai/leadsniper/internal/gateway"
	"github.com/yangwenmai/leadsniper/internal/model"
)

// previewTitleRunes is the length of the title shown in locked previews.
const previewTitleRunes = 100

// Pipeline runs the qualification stages for one lead.
type Pipeline interface {
	Run(ctx context.Context, lead model.RawLead, obs engine.Observer) (model.PipelineContext, error)
}

// Gateway is the protected-asset and payment surface the lead services use.
type Gateway interface {
	CreateProtectedAsset(ctx context.Context, lead model.ProcessedLead, score float64) (model.ProtectedAsset, error)
	GenerateNotification(ctx context.Context, assetID string, score float64, preview model.LeadPreview) (model.Notification, error)
	GetPaymentURL(ctx context.Context, assetID string) (string, error)
	ProcessPayment(ctx context.Context, assetID, method, paymentToken string) (model.PaymentResult, error)
	VerifyPayment(ctx context.Context, assetID, token string) (model.PaymentVerification, error)
	GetProtectedAsset(ctx context.Context, assetID, token string) (*model.ProtectedAsset, error)
}

var (
	_ Pipeline = (*engine.Graph)(nil)
	_ Gateway  = (*gateway.Gateway)(nil)
)

// ProcessResult is what a processing call returns: the stored lead and, for
// high-value leads, the protected asset and its notification.
type ProcessResult struct {
	Lead         model.ProcessedLead   `json:"lead"`
	Asset        *model.ProtectedAsset `json:"protected_asset,omitempty"`
	Notification *model.Notification   `json:"notification,omitempty"`
}

// Orchestrator runs raw leads through the pipeline and records the outcome.
type Orchestrator struct {
	pipeline  Pipeline
	repo      *Repository
	gateway   Gateway
	bus       events.Bus
	threshold float64
	newID     func() string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithThreshold sets the score at which a lead becomes a protected asset.
func WithThreshold(t float64) OrchestratorOption {
	return func(o *Orchestrator) {
		if t > 0 {
			o.threshold = t
		}
	}
}

// WithBus publishes lead events on bus.
func WithBus(bus events.Bus) OrchestratorOption {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithIDGenerator replaces the lead id generator.
func WithIDGenerator(f func() string) OrchestratorOption {
	return func(o *Orchestrator) { o.newID = f }
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(p Pipeline, repo *Repository, gw Gateway, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		pipeline:  p,
		repo:      repo,
		gateway:   gw,
		threshold: engine.DefaultApprovalBar,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Threshold is the protection threshold in use.
func (o *Orchestrator) Threshold() float64 { return o.threshold }

// Process qualifies raw under a fresh lead id. A failing pipeline run is stored
// as a status=error lead and is not an error; the returned error reports
// repository or gateway failures only.
func (o *Orchestrator) Process(ctx context.Context, raw model.RawLead) (*ProcessResult, error) {
	id := o.newID()
	log := slog.With("lead_id", id)
	log.Info("processing lead", "source", raw.Source, "title", truncate(raw.DisplayTitle(), 60))

	pc, err := o.pipeline.Run(ctx, raw, func(_ context.Context, s engine.State) {
		log.Info("lead state", "state", string(s))
	})
	if err == nil && pc.Audit == nil {
		err = &engine.StepError{Step: engine.TaskAudit, Err: errors.New("audit produced no score")}
	}
	if err != nil {
		return o.recordFailure(ctx, log, id, raw, err)
	}

	// Create with a nil score, then back-fill it once.
	if err := o.repo.Create(ctx, model.NewProcessedLead(id, raw, pc)); err != nil {
		return nil, err
	}
	score := pc.Audit.BuyabilityScore
	lead, err := o.repo.SetScore(ctx, id, score)
	if err != nil {
		return nil, err
	}
	log.Info("lead processed", "buyability_score", score, "approved", pc.Audit.Approved, "score_source", pc.Audit.ScoreSource)

	res := &ProcessResult{Lead: lead}
	if lead.IsHighValue(o.threshold) {
		if err := o.protect(ctx, lead, score, res); err != nil {
			return nil, err
		}
	}
	o.publish(ctx, events.LeadProcessed{BaseEvent: events.NewBaseEvent(), LeadID: id, Status: lead.Status, BuyabilityScore: lead.BuyabilityScore})
	return res, nil
}

func (o *Orchestrator) protect(ctx context.Context, lead model.ProcessedLead, score float64, res *ProcessResult) error {
	asset, err := o.gateway.CreateProtectedAsset(ctx, lead, score)
	if err != nil {
		return fmt.Errorf("create protected asset for %s: %w", lead.LeadID, err)
	}
	res.Asset = &asset

	n, err := o.gateway.GenerateNotification(ctx, lead.LeadID, score, previewOf(lead, score))
	if err != nil {
		return fmt.Errorf("notification for %s: %w", lead.LeadID, err)
	}
	res.Notification = &n
	o.publish(ctx, events.HighValueLeadReady{BaseEvent: events.NewBaseEvent(), Notification: n})
	return nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, log *slog.Logger, id string, raw model.RawLead, runErr error) (*ProcessResult, error) {
	info := engine.Describe(runErr)
	log.Warn("lead errored", "step", info.FailedStep, "kind", info.Kind, "error", runErr)

	lead := model.NewErroredLead(id, raw, info)
	// The run may have failed because ctx ended; the record is still written.
	ctx = context.WithoutCancel(ctx)
	if err := o.repo.Create(ctx, lead); err != nil {
		return nil, err
	}
	o.publish(ctx, events.LeadProcessed{BaseEvent: events.NewBaseEvent(), LeadID: id, Status: lead.Status})
	return &ProcessResult{Lead: lead}, nil
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if o.bus != nil {
		o.bus.Publish(ctx, e)
	}
}

func previewOf(lead model.ProcessedLead, score float64) model.LeadPreview {
	title := lead.OriginalLead.DisplayTitle()
	if title == "" {
		title = "N/A"
	}
	return model.LeadPreview{
		Source:          lead.OriginalLead.Source,
		Title:           truncate(title, previewTitleRunes),
		BuyabilityScore: score,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
