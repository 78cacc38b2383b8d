// Package leads owns the lead lifecycle: the repository of processed leads,
// the orchestrator that qualifies raw postings, and the service the HTTP and
// MCP adapters call.
package leads

import (
	"context"
	"errors"
	"sync"

	"github.com/yangwenmai/leadsniper/internal/apperr"
	"github.com/yangwenmai/leadsniper/internal/model"
	"github.com/yangwenmai/leadsniper/internal/store"
)

// Repository is the keyed store of ProcessedLead records.
type Repository struct {
	leads *store.Collection[model.ProcessedLead]
	mu    sync.Mutex // serializes SetScore
}

// NewRepository stores leads in kv.
func NewRepository(kv store.KV) *Repository {
	return &Repository{leads: store.NewCollection[model.ProcessedLead](kv)}
}

// Create stores a new lead. An existing id is a conflict.
func (r *Repository) Create(ctx context.Context, lead model.ProcessedLead) error {
	_, created, err := r.leads.PutIfAbsent(ctx, lead.LeadID, lead)
	if err != nil {
		return apperr.Internal("store lead", err).WithOp("leads.Create")
	}
	if !created {
		return apperr.New(apperr.KindConflict, "lead already exists").WithOp("leads.Create")
	}
	return nil
}

// Get returns the lead or a not-found error.
func (r *Repository) Get(ctx context.Context, id string) (model.ProcessedLead, error) {
	lead, err := r.leads.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.ProcessedLead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return model.ProcessedLead{}, apperr.Internal("load lead", err).WithOp("leads.Get")
	}
	return lead, nil
}

// SetScore back-fills the buyability score. A score can be set only once.
func (r *Repository) SetScore(ctx context.Context, id string, score float64) (model.ProcessedLead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, err := r.Get(ctx, id)
	if err != nil {
		return model.ProcessedLead{}, err
	}
	if lead.BuyabilityScore != nil {
		return model.ProcessedLead{}, apperr.New(apperr.KindConflict, "buyability score already set").WithOp("leads.SetScore")
	}
	lead.BuyabilityScore = &score
	if err := r.leads.Put(ctx, id, lead); err != nil {
		return model.ProcessedLead{}, apperr.Internal("store lead", err).WithOp("leads.SetScore")
	}
	return lead, nil
}

// Delete removes the lead permanently.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.leads.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	if err != nil {
		return apperr.Internal("delete lead", err).WithOp("leads.Delete")
	}
	return nil
}

// List returns a page of leads in insertion order and the total count.
// A non-positive limit returns every lead from offset on.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]model.ProcessedLead, int, error) {
	out, total, err := r.leads.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, apperr.Internal("list leads", err).WithOp("leads.List")
	}
	return out, total, nil
}
