package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yangwenmai/leadsniper/internal/model"
)

type funcProcessor func(ctx context.Context, raw model.RawLead) (string, error)

func (f funcProcessor) Process(ctx context.Context, raw model.RawLead) (string, error) {
	return f(ctx, raw)
}

func batchOf(titles ...string) []model.RawLead {
	out := make([]model.RawLead, len(titles))
	for i, t := range titles {
		out[i] = model.RawLead{Title: t}
	}
	return out
}

func TestRun_PreservesOrder(t *testing.T) {
	w := New[string](funcProcessor(func(_ context.Context, raw model.RawLead) (string, error) {
		if raw.Title == "a" {
			time.Sleep(10 * time.Millisecond)
		}
		return "done-" + raw.Title, nil
	}), 3)

	out := w.Run(context.Background(), batchOf("a", "b", "c"), 0)
	if len(out) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(out))
	}
	for i, want := range []string{"done-a", "done-b", "done-c"} {
		if out[i].Index != i || out[i].Result != want || out[i].Err != nil {
			t.Errorf("out[%d] = %+v, want result %q", i, out[i], want)
		}
	}
}

func TestRun_Limit(t *testing.T) {
	var calls atomic.Int32
	w := New[string](funcProcessor(func(context.Context, model.RawLead) (string, error) {
		calls.Add(1)
		return "", nil
	}), 2)

	out := w.Run(context.Background(), batchOf("a", "b", "c", "d"), 2)
	if len(out) != 2 || calls.Load() != 2 {
		t.Errorf("outcomes=%d calls=%d, want 2 and 2", len(out), calls.Load())
	}
}

func TestRun_FailureIsolated(t *testing.T) {
	boom := errors.New("boom")
	w := New[string](funcProcessor(func(_ context.Context, raw model.RawLead) (string, error) {
		if raw.Title == "bad" {
			return "", boom
		}
		return "ok", nil
	}), 2)

	out := w.Run(context.Background(), batchOf("good", "bad", "good"), 0)
	if !errors.Is(out[1].Err, boom) {
		t.Errorf("out[1].Err = %v, want boom", out[1].Err)
	}
	if out[0].Err != nil || out[2].Err != nil {
		t.Errorf("healthy leads failed: %v, %v", out[0].Err, out[2].Err)
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	const limit = 2
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	w := New[string](funcProcessor(func(context.Context, model.RawLead) (string, error) {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return "", nil
	}), limit)

	w.Run(context.Background(), batchOf("a", "b", "c", "d", "e", "f"), 0)
	if peak > limit {
		t.Errorf("peak concurrency = %d, want <= %d", peak, limit)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	w := New[string](funcProcessor(func(context.Context, model.RawLead) (string, error) {
		calls.Add(1)
		return "", nil
	}), 1)

	out := w.Run(ctx, batchOf("a", "b"), 0)
	if calls.Load() != 0 {
		t.Errorf("processor called %d times after cancel", calls.Load())
	}
	for _, o := range out {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("Err = %v, want context.Canceled", o.Err)
		}
	}
}

func TestNew_DefaultConcurrency(t *testing.T) {
	w := New[string](funcProcessor(nil), 0)
	if w.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", w.concurrency, DefaultConcurrency)
	}
}
