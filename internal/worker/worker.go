// Package worker runs many leads through a processor with bounded concurrency.
package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yangwenmai/leadsniper/internal/model"
)

// DefaultConcurrency is used when a Worker is built with a non-positive limit.
const DefaultConcurrency = 4

// Processor runs the processing pipeline for a single lead.
type Processor[R any] interface {
	Process(ctx context.Context, raw model.RawLead) (R, error)
}

// Outcome is the result of one lead of a batch. Exactly one of Result and Err is meaningful.
type Outcome[R any] struct {
	Index  int
	Lead   model.RawLead
	Result R
	Err    error
}

// Worker fans a batch of leads out to a Processor.
type Worker[R any] struct {
	processor   Processor[R]
	concurrency int
}

// New creates a new Worker.
func New[R any](processor Processor[R], concurrency int) *Worker[R] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Worker[R]{processor: processor, concurrency: concurrency}
}

// Run processes at most limit leads (all of them when limit <= 0) and returns
// one Outcome per processed lead in input order. A failing lead never stops
// the others; Run only returns early when ctx is cancelled, in which case
// unstarted leads carry ctx.Err().
func (w *Worker[R]) Run(ctx context.Context, batch []model.RawLead, limit int) []Outcome[R] {
	if limit > 0 && limit < len(batch) {
		batch = batch[:limit]
	}
	out := make([]Outcome[R], len(batch))
	start := time.Now()
	slog.Info("batch started", "leads", len(batch), "concurrency", w.concurrency)

	g := new(errgroup.Group)
	g.SetLimit(w.concurrency)
	for i, raw := range batch {
		out[i] = Outcome[R]{Index: i, Lead: raw}
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		g.Go(func() error {
			res, err := w.processor.Process(ctx, raw)
			if err != nil {
				slog.Error("batch lead failed", "index", i, "error", err)
				out[i].Err = err
				return nil
			}
			out[i].Result = res
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	slog.Info("batch finished", "leads", len(batch), "failed", failed, "elapsed", time.Since(start).String())
	return out
}
