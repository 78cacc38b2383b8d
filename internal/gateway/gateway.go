// Package gateway gates high-value lead packages behind a payment step.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yangwenmai/leadsniper/internal/apperr"
	"github.com/yangwenmai/leadsniper/internal/model"
	"github.com/yangwenmai/leadsniper/internal/store"
)

// Defaults for Options.
const (
	DefaultPrice    = 0.01
	DefaultCurrency = "ETH"
	DefaultBaseURL  = "https://app.nevermined.io"
	DefaultMethod   = "nevermined"
)

// Options configures a Gateway.
type Options struct {
	BaseURL   string
	Price     float64
	Currency  string
	Threshold float64       // minimum score for a protected asset
	TokenTTL  time.Duration // 0 means tokens never expire
	Now       func() time.Time
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Price <= 0 {
		o.Price = DefaultPrice
	}
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
	if o.Threshold <= 0 {
		o.Threshold = 80
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
}

// accessGrant maps one access token to the asset it unlocks.
type accessGrant struct {
	AssetID  string    `json:"asset_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// tokenIndex lists the tokens issued for one asset.
type tokenIndex struct {
	Tokens []string `json:"tokens"`
}

// Gateway creates protected assets, runs each asset's payment plan and
// checks access tokens.
type Gateway struct {
	assets   *store.Collection[model.ProtectedAsset]
	plans    *store.Collection[model.PaymentPlan]
	grants   *store.Collection[accessGrant]
	index    *store.Collection[tokenIndex]
	provider Provider
	opts     Options
	locks    keyedMutex
}

// New opens the gateway keyspaces from open.
func New(open store.Factory, provider Provider, opts Options) (*Gateway, error) {
	opts.defaults()
	g := &Gateway{provider: provider, opts: opts}

	for name, bind := range map[string]func(store.KV){
		"assets":       func(kv store.KV) { g.assets = store.NewCollection[model.ProtectedAsset](kv) },
		"plans":        func(kv store.KV) { g.plans = store.NewCollection[model.PaymentPlan](kv) },
		"access_grant": func(kv store.KV) { g.grants = store.NewCollection[accessGrant](kv) },
		"asset_tokens": func(kv store.KV) { g.index = store.NewCollection[tokenIndex](kv) },
	} {
		kv, err := open(name)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		bind(kv)
	}
	return g, nil
}

// PaymentURL is the deterministic payment page for an asset.
func (g *Gateway) PaymentURL(assetID string) string {
	return g.opts.BaseURL + "/pay/" + assetID
}

// RegisterPaymentPlan returns the asset's plan, creating a pending one if absent.
// A non-positive price selects the configured default.
func (g *Gateway) RegisterPaymentPlan(ctx context.Context, assetID string, price float64) (model.PaymentPlan, error) {
	if price <= 0 {
		price = g.opts.Price
	}
	now := g.opts.Now()
	plan := model.PaymentPlan{
		PlanID:     "plan_" + assetID,
		AssetID:    assetID,
		Price:      price,
		Currency:   g.opts.Currency,
		Status:     model.PaymentPending,
		PaymentURL: g.PaymentURL(assetID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	stored, created, err := g.plans.PutIfAbsent(ctx, assetID, plan)
	if err != nil {
		return model.PaymentPlan{}, apperr.Internal("register payment plan", err)
	}
	if created {
		slog.Info("payment plan registered", "asset_id", assetID, "plan_id", stored.PlanID, "price", stored.Price)
	}
	return stored, nil
}

// CreateProtectedAsset packages an approved lead and registers its payment plan.
// Calling it again for the same lead returns the asset created first.
func (g *Gateway) CreateProtectedAsset(ctx context.Context, lead model.ProcessedLead, score float64) (model.ProtectedAsset, error) {
	if score < g.opts.Threshold {
		return model.ProtectedAsset{}, apperr.Validation(
			fmt.Sprintf("score %.2f is below the protection threshold %.0f", score, g.opts.Threshold))
	}

	asset := model.ProtectedAsset{
		AssetID:         lead.LeadID,
		LeadData:        lead.OriginalLead.Redacted(),
		BuyabilityScore: score,
		Status:          model.AssetStatusProtected,
		CreatedAt:       lead.ProcessedAt,
		Metadata: model.AssetMetadata{
			Source:    lead.OriginalLead.Source,
			Platform:  lead.OriginalLead.Platform,
			Protected: true,
		},
	}
	if lead.Context != nil {
		asset.ProcessedPayload = *lead.Context
		if lead.Context.Pitch != nil {
			asset.Pitch = lead.Context.Pitch.Message
		}
		if a := lead.Context.Audit; a != nil && a.Package != nil {
			asset.LeadData = a.Package.LeadData
			asset.Pitch = a.Package.Pitch
			asset.Metadata = a.Package.Metadata
		}
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = g.opts.Now()
	}

	stored, created, err := g.assets.PutIfAbsent(ctx, asset.AssetID, asset)
	if err != nil {
		return model.ProtectedAsset{}, apperr.Internal("store protected asset", err)
	}
	if created {
		slog.Info("protected asset created", "asset_id", asset.AssetID, "buyability_score", score)
	}
	if _, err := g.RegisterPaymentPlan(ctx, asset.AssetID, 0); err != nil {
		return model.ProtectedAsset{}, err
	}
	return stored, nil
}

// GetPaymentURL returns the payment URL, registering a plan if none exists.
func (g *Gateway) GetPaymentURL(ctx context.Context, assetID string) (string, error) {
	plan, err := g.RegisterPaymentPlan(ctx, assetID, 0)
	if err != nil {
		return "", err
	}
	return plan.PaymentURL, nil
}

// ProcessPayment charges for the asset and mints a fresh access token. Every
// successful call issues a new independent token; earlier tokens stay valid.
func (g *Gateway) ProcessPayment(ctx context.Context, assetID, method, paymentToken string) (model.PaymentResult, error) {
	unlock := g.locks.Lock(assetID)
	defer unlock()

	result := model.PaymentResult{AssetID: assetID}
	if _, err := g.assets.Get(ctx, assetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result, apperr.NotFound("protected asset not found")
		}
		return result, apperr.Internal("load protected asset", err)
	}

	plan, err := g.RegisterPaymentPlan(ctx, assetID, 0)
	if err != nil {
		return result, err
	}
	if plan.Status == model.PaymentExpired {
		result.Error = "payment plan expired"
		return result, apperr.Payment(result.Error)
	}

	if method == "" {
		method = DefaultMethod
	}
	charge, err := g.provider.Charge(ctx, ChargeRequest{
		AssetID:  assetID,
		PlanID:   plan.PlanID,
		Amount:   plan.Price,
		Currency: plan.Currency,
		Method:   method,
		Token:    paymentToken,
	})
	if err != nil {
		slog.Warn("payment declined", "asset_id", assetID, "method", method, "error", err)
		if plan.Status != model.PaymentPaid {
			plan.Status = model.PaymentFailed
			plan.UpdatedAt = g.opts.Now()
			if perr := g.plans.Put(ctx, assetID, plan); perr != nil {
				return result, apperr.Internal("update payment plan", perr)
			}
		}
		result.Error = err.Error()
		return result, apperr.Wrap(apperr.KindPayment, "payment failed", err)
	}

	token, err := newAccessToken()
	if err != nil {
		return result, apperr.Internal("generate access token", err)
	}
	// The grant is written last so a token is never usable before the plan
	// records the payment.
	now := g.opts.Now()
	plan.Status = model.PaymentPaid
	plan.PaymentID = charge.PaymentID
	plan.PaidAt = &now
	plan.UpdatedAt = now
	if err := g.plans.Put(ctx, assetID, plan); err != nil {
		return result, apperr.Internal("update payment plan", err)
	}

	idx, err := g.index.Get(ctx, assetID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return result, apperr.Internal("load token index", err)
	}
	idx.Tokens = append(idx.Tokens, token)
	if err := g.index.Put(ctx, assetID, idx); err != nil {
		return result, apperr.Internal("store token index", err)
	}
	if err := g.grants.Put(ctx, token, accessGrant{AssetID: assetID, IssuedAt: now}); err != nil {
		return result, apperr.Internal("store access token", err)
	}

	slog.Info("payment processed", "asset_id", assetID, "payment_id", charge.PaymentID, "method", method)
	result.Success = true
	result.PaymentID = charge.PaymentID
	result.AccessToken = token
	return result, nil
}

// VerifyPayment reports whether the asset is paid for. A token issued for this
// asset is checked first; otherwise the plan's status decides.
func (g *Gateway) VerifyPayment(ctx context.Context, assetID, token string) (model.PaymentVerification, error) {
	if token != "" {
		ok, err := g.tokenValid(ctx, assetID, token)
		if err != nil {
			return model.PaymentVerification{}, err
		}
		if ok {
			return model.PaymentVerification{IsPaid: true, Status: model.PaymentPaid, AccessToken: &token}, nil
		}
	}

	plan, err := g.plans.Get(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return model.PaymentVerification{Status: model.PaymentPending}, nil
	}
	if err != nil {
		return model.PaymentVerification{}, apperr.Internal("load payment plan", err)
	}
	return model.PaymentVerification{IsPaid: plan.Status == model.PaymentPaid, Status: plan.Status}, nil
}

func (g *Gateway) tokenValid(ctx context.Context, assetID, token string) (bool, error) {
	grant, err := g.grants.Get(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal("load access token", err)
	}
	if grant.AssetID != assetID {
		return false, nil
	}
	if g.opts.TokenTTL > 0 && g.opts.Now().After(grant.IssuedAt.Add(g.opts.TokenTTL)) {
		return false, nil
	}
	return true, nil
}

// GetProtectedAsset returns the asset only when payment is verified, else nil.
func (g *Gateway) GetProtectedAsset(ctx context.Context, assetID, token string) (*model.ProtectedAsset, error) {
	v, err := g.VerifyPayment(ctx, assetID, token)
	if err != nil {
		return nil, err
	}
	if !v.IsPaid {
		return nil, nil
	}
	asset, err := g.assets.Get(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("load protected asset", err)
	}
	return &asset, nil
}

// RevokeAccess expires the asset's plan and invalidates every token issued for it.
// It returns false when the asset has no plan.
func (g *Gateway) RevokeAccess(ctx context.Context, assetID string) (bool, error) {
	unlock := g.locks.Lock(assetID)
	defer unlock()

	plan, err := g.plans.Get(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal("load payment plan", err)
	}
	plan.Status = model.PaymentExpired
	plan.UpdatedAt = g.opts.Now()
	if err := g.plans.Put(ctx, assetID, plan); err != nil {
		return false, apperr.Internal("update payment plan", err)
	}

	idx, err := g.index.Get(ctx, assetID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, apperr.Internal("load token index", err)
	}
	for _, tok := range idx.Tokens {
		if err := g.grants.Delete(ctx, tok); err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, apperr.Internal("delete access token", err)
		}
	}
	if len(idx.Tokens) > 0 {
		if err := g.index.Delete(ctx, assetID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, apperr.Internal("delete token index", err)
		}
	}
	slog.Info("access revoked", "asset_id", assetID, "tokens", len(idx.Tokens))
	return true, nil
}

// GenerateNotification builds the dashboard payload announcing a high-value lead.
func (g *Gateway) GenerateNotification(ctx context.Context, assetID string, score float64, preview model.LeadPreview) (model.Notification, error) {
	url, err := g.GetPaymentURL(ctx, assetID)
	if err != nil {
		return model.Notification{}, err
	}
	return model.Notification{
		NotificationType: model.NotificationHighValueLeadReady,
		LeadID:           assetID,
		BuyabilityScore:  score,
		Status:           "ready_for_unlock",
		PaymentURL:       url,
		Preview:          preview,
		Timestamp:        g.opts.Now(),
		Message:          fmt.Sprintf("High-value intent lead (Score: %g/100) is available for unlock", score),
	}, nil
}

// newAccessToken returns 32 random bytes, base64url encoded.
func newAccessToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
