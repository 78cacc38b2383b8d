package events

import (
	"context"
	"sync"

	"github.com/yangwenmai/leadsniper/internal/model"
)

// NotificationFeed keeps the most recent high-value lead notifications for the dashboard.
type NotificationFeed struct {
	mu    sync.Mutex
	size  int
	items []model.Notification
}

// NewNotificationFeed creates a feed holding at most size notifications.
func NewNotificationFeed(size int) *NotificationFeed {
	if size <= 0 {
		size = 50
	}
	return &NotificationFeed{size: size}
}

// Handle records HighValueLeadReady events and ignores everything else.
func (f *NotificationFeed) Handle(_ context.Context, event Event) error {
	e, ok := event.(HighValueLeadReady)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, e.Notification)
	if len(f.items) > f.size {
		f.items = f.items[len(f.items)-f.size:]
	}
	return nil
}

// Recent returns the notifications newest first.
func (f *NotificationFeed) Recent() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Notification, len(f.items))
	for i, n := range f.items {
		out[len(f.items)-1-i] = n
	}
	return out
}
