package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/yangwenmai/leadsniper/internal/model"
)

func TestInMemoryBus_PublishSync(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var calls []string
	bus.Subscribe(LeadUnlocked{}.EventName(), HandlerFunc(func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.(LeadUnlocked).LeadID)
		return nil
	}))
	bus.Subscribe(LeadUnlocked{}.EventName(), HandlerFunc(func(context.Context, Event) error {
		calls = append(calls, "second")
		return errors.New("second failed")
	}))
	bus.Subscribe(LeadUnlocked{}.EventName(), HandlerFunc(func(context.Context, Event) error {
		panic("boom")
	}))

	err := bus.PublishSync(context.Background(), LeadUnlocked{BaseEvent: NewBaseEvent(), LeadID: "l1"})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(calls) != 2 || calls[0] != "first:l1" || calls[1] != "second" {
		t.Errorf("calls = %v", calls)
	}
}

func TestInMemoryBus_PublishAsync(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var n atomic.Int32
	for range 3 {
		bus.Subscribe(LeadProcessed{}.EventName(), HandlerFunc(func(context.Context, Event) error {
			n.Add(1)
			return nil
		}))
	}
	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, LeadProcessed{BaseEvent: NewBaseEvent(), LeadID: "l1"})
	cancel()
	bus.Wait()
	if n.Load() != 3 {
		t.Errorf("handlers run = %d, want 3", n.Load())
	}
}

func TestInMemoryBus_NoSubscribers(t *testing.T) {
	bus := NewInMemoryBus(nil)
	if err := bus.PublishSync(context.Background(), LeadProcessed{}); err != nil {
		t.Errorf("PublishSync with no handlers = %v", err)
	}
}

func TestNotificationFeed(t *testing.T) {
	feed := NewNotificationFeed(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		feed.Handle(ctx, HighValueLeadReady{Notification: model.Notification{LeadID: id}})
	}
	feed.Handle(ctx, LeadProcessed{LeadID: "ignored"})

	got := feed.Recent()
	if len(got) != 2 || got[0].LeadID != "c" || got[1].LeadID != "b" {
		t.Errorf("Recent = %+v, want [c b]", got)
	}
}
