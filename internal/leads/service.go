package leads

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/yangwenmai/leadsniper/internal/apperr"
	"github.com/yangwenmai/leadsniper/internal/engine"
	"github.com/yangwenmai/leadsniper/internal/events"
	"github.com/yangwenmai/leadsniper/internal/gateway"
	"github.com/yangwenmai/leadsniper/internal/model"
	"github.com/yangwenmai/leadsniper/internal/worker"
)

// Listing bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PaymentNotRequired is the payment status reported for unprotected leads.
const PaymentNotRequired model.PaymentStatus = "not_required"

// Fetcher turns a posting URL into a raw lead.
type Fetcher interface {
	Fetch(ctx context.Context, url, source string) (model.RawLead, error)
}

// LockedLead is the view of a protected lead that has not been paid for.
type LockedLead struct {
	LeadID          string            `json:"lead_id"`
	Status          string            `json:"status"`
	BuyabilityScore float64           `json:"buyability_score"`
	IsHighValue     bool              `json:"is_high_value"`
	PaymentRequired bool              `json:"payment_required"`
	PaymentURL      string            `json:"payment_url"`
	Preview         model.LeadPreview `json:"preview"`
	Message         string            `json:"message"`
}

// LeadView is the answer to a lead lookup: either the full record (with the
// protected asset once paid for) or the locked view.
type LeadView struct {
	Lead   *model.ProcessedLead  `json:"lead,omitempty"`
	Asset  *model.ProtectedAsset `json:"protected_asset,omitempty"`
	Locked *LockedLead           `json:"locked,omitempty"`
}

// Page is one page of lead summaries.
type Page struct {
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Leads  []model.LeadSummary `json:"leads"`
}

// UnlockResult is the outcome of an unlock request.
type UnlockResult struct {
	LeadID      string  `json:"lead_id"`
	Unlocked    bool    `json:"unlocked"`
	AccessToken *string `json:"access_token"`
	PaymentID   string  `json:"payment_id,omitempty"`
	Message     string  `json:"message"`
}

// PaymentStatusView reports the payment state of one lead.
type PaymentStatusView struct {
	LeadID      string              `json:"lead_id"`
	IsProtected bool                `json:"is_protected"`
	IsPaid      bool                `json:"is_paid"`
	Status      model.PaymentStatus `json:"status"`
	PaymentURL  string              `json:"payment_url,omitempty"`
}

// Stats summarises every stored lead.
type Stats struct {
	TotalLeads  int     `json:"total_leads"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	HighValue   int     `json:"high_value"`
	SuccessRate float64 `json:"success_rate"`
}

// BatchError describes one lead of a batch that could not be processed.
type BatchError struct {
	Index     int    `json:"index"`
	LeadTitle string `json:"lead_title"`
	Error     string `json:"error"`
}

// BatchResult is the outcome of a batch submission.
type BatchResult struct {
	Total     int              `json:"total"`
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	HighValue int              `json:"high_value"`
	Results   []*ProcessResult `json:"results"`
	Errors    []BatchError     `json:"errors,omitempty"`
}

// Service is the boundary surface over the lead repository, the orchestrator
// and the payment gateway.
type Service struct {
	orch      *Orchestrator
	validator engine.Validator
	fetcher   Fetcher
	batch     *worker.Worker[*ProcessResult]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithFetcher enables URL submission.
func WithFetcher(f Fetcher) ServiceOption {
	return func(s *Service) { s.fetcher = f }
}

// WithConcurrency bounds how many leads of a batch run at once.
func WithConcurrency(n int) ServiceOption {
	return func(s *Service) { s.batch = worker.New[*ProcessResult](s.orch, n) }
}

// NewService creates a Service.
func NewService(orch *Orchestrator, validator engine.Validator, opts ...ServiceOption) *Service {
	s := &Service{orch: orch, validator: validator}
	s.batch = worker.New[*ProcessResult](orch, worker.DefaultConcurrency)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold is the protection threshold in use.
func (s *Service) Threshold() float64 { return s.orch.threshold }

// Validate scores raw with the quality rubric only.
func (s *Service) Validate(raw model.RawLead) model.ValidationReport {
	return s.validator.Validate(raw)
}

// Submit processes one raw lead.
func (s *Service) Submit(ctx context.Context, raw model.RawLead) (*ProcessResult, error) {
	return s.orch.Process(ctx, raw)
}

// SubmitBatch processes up to processLimit leads (all when processLimit <= 0)
// concurrently.
func (s *Service) SubmitBatch(ctx context.Context, batch []model.RawLead, processLimit int) (*BatchResult, error) {
	if len(batch) == 0 {
		return nil, apperr.Validation("no leads submitted")
	}
	out := s.batch.Run(ctx, batch, processLimit)

	res := &BatchResult{Total: len(out), Results: make([]*ProcessResult, 0, len(out))}
	for _, o := range out {
		if o.Err != nil {
			res.Failed++
			res.Errors = append(res.Errors, BatchError{Index: o.Index, LeadTitle: truncate(o.Lead.DisplayTitle(), 50), Error: o.Err.Error()})
			continue
		}
		res.Results = append(res.Results, o.Result)
		lead := o.Result.Lead
		if lead.Status != model.StatusProcessed {
			res.Failed++
			msg := "processing failed"
			if lead.Error != nil {
				msg = lead.Error.Message
			}
			res.Errors = append(res.Errors, BatchError{Index: o.Index, LeadTitle: truncate(lead.OriginalLead.DisplayTitle(), 50), Error: msg})
			continue
		}
		res.Processed++
		if o.Result.Asset != nil {
			res.HighValue++
		}
	}
	return res, nil
}

// SubmitURL fetches a posting and processes it.
func (s *Service) SubmitURL(ctx context.Context, url, source string) (*ProcessResult, error) {
	if s.fetcher == nil {
		return nil, apperr.Validation("url submission is not enabled")
	}
	raw, err := s.fetcher.Fetch(ctx, url, source)
	if err != nil {
		return nil, err
	}
	return s.orch.Process(ctx, raw)
}

// Get returns the lead. Protected leads are returned in full only when the
// token (or the plan) proves payment; otherwise the locked view is returned.
func (s *Service) Get(ctx context.Context, id, token string) (*LeadView, error) {
	lead, err := s.orch.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lead.IsHighValue(s.orch.threshold) {
		return &LeadView{Lead: &lead}, nil
	}

	v, err := s.orch.gateway.VerifyPayment(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if !v.IsPaid {
		url, err := s.orch.gateway.GetPaymentURL(ctx, id)
		if err != nil {
			return nil, err
		}
		score := *lead.BuyabilityScore
		return &LeadView{Locked: &LockedLead{
			LeadID:          id,
			Status:          "locked",
			BuyabilityScore: score,
			IsHighValue:     true,
			PaymentRequired: true,
			PaymentURL:      url,
			Preview:         previewOf(lead, score),
			Message:         "This is a high-value lead. Payment required to unlock full details.",
		}}, nil
	}

	asset, err := s.orch.gateway.GetProtectedAsset(ctx, id, token)
	if err != nil {
		return nil, err
	}
	return &LeadView{Lead: &lead, Asset: asset}, nil
}

// Delete removes the lead record. Its protected asset and plan are left in place.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.orch.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("lead deleted", "lead_id", id)
	return nil
}

// List returns a page of lead summaries in insertion order.
func (s *Service) List(ctx context.Context, offset, limit int) (*Page, error) {
	offset, limit = pageBounds(offset, limit)
	all, total, err := s.orch.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.page(all, total, offset, limit), nil
}

// ListProtected returns a page of high-value lead summaries in insertion order.
func (s *Service) ListProtected(ctx context.Context, offset, limit int) (*Page, error) {
	offset, limit = pageBounds(offset, limit)
	all, _, err := s.orch.repo.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	var protected []model.ProcessedLead
	for _, l := range all {
		if l.IsHighValue(s.orch.threshold) {
			protected = append(protected, l)
		}
	}
	total := len(protected)
	start := min(offset, total)
	end := min(start+limit, total)
	return s.page(protected[start:end], total, offset, limit), nil
}

func (s *Service) page(leads []model.ProcessedLead, total, offset, limit int) *Page {
	p := &Page{Total: total, Limit: limit, Offset: offset, Leads: make([]model.LeadSummary, 0, len(leads))}
	for _, l := range leads {
		p.Leads = append(p.Leads, l.Summary(s.orch.threshold))
	}
	return p
}

func pageBounds(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return offset, min(limit, MaxPageSize)
}

// Unlock pays for a protected lead and returns a fresh access token. Leads
// below the protection threshold are unlocked without touching the gateway.
func (s *Service) Unlock(ctx context.Context, id, method, paymentToken string) (*UnlockResult, error) {
	lead, err := s.orch.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lead.IsHighValue(s.orch.threshold) {
		return &UnlockResult{LeadID: id, Unlocked: true, Message: "Lead is not protected, no payment required"}, nil
	}

	if strings.TrimSpace(method) == "" {
		method = gateway.DefaultMethod
	}
	pr, err := s.orch.gateway.ProcessPayment(ctx, id, method, paymentToken)
	if err != nil {
		slog.Warn("unlock failed", "lead_id", id, "error", err, "cause", pr.Error)
		return &UnlockResult{LeadID: id, Message: "Payment failed: " + failureReason(pr, err)}, err
	}
	s.orch.publish(ctx, events.LeadUnlocked{BaseEvent: events.NewBaseEvent(), LeadID: id, PaymentID: pr.PaymentID})
	token := pr.AccessToken
	return &UnlockResult{
		LeadID:      id,
		Unlocked:    true,
		AccessToken: &token,
		PaymentID:   pr.PaymentID,
		Message:     "Lead unlocked successfully",
	}, nil
}

func failureReason(pr model.PaymentResult, err error) string {
	if pr.Error != "" {
		return pr.Error
	}
	return err.Error()
}

// PaymentStatus reports whether the lead has been paid for. The payment URL is
// only included for protected leads.
func (s *Service) PaymentStatus(ctx context.Context, id, token string) (*PaymentStatusView, error) {
	lead, err := s.orch.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lead.IsHighValue(s.orch.threshold) {
		return &PaymentStatusView{LeadID: id, Status: PaymentNotRequired}, nil
	}

	v, err := s.orch.gateway.VerifyPayment(ctx, id, token)
	if err != nil {
		return nil, err
	}
	url, err := s.orch.gateway.GetPaymentURL(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusView{LeadID: id, IsProtected: true, IsPaid: v.IsPaid, Status: v.Status, PaymentURL: url}, nil
}

// Stats counts stored leads by outcome.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	all, total, err := s.orch.repo.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	st := &Stats{TotalLeads: total}
	for _, l := range all {
		if l.Status == model.StatusProcessed {
			st.Successful++
		}
		if l.IsHighValue(s.orch.threshold) {
			st.HighValue++
		}
	}
	st.Failed = total - st.Successful
	if total > 0 {
		st.SuccessRate = math.Round(float64(st.Successful)/float64(total)*10000) / 100
	}
	return st, nil
}
