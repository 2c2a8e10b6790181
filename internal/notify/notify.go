// Package notify relays operation outcomes to the operator.
package notify

import (
	"context"
	"sync"
	"time"

	"goa.design/clue/log"

	"almondsense/internal/metrics"
)

// Outcome tags a notification as success or failure.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

// Notification is one operator-visible outcome.
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Outcome     Outcome   `json:"outcome"`
	Op          string    `json:"op"`
	At          time.Time `json:"at"`
}

// Relay delivers notifications. Implementations must not block for long:
// they are called from request handlers.
type Relay interface {
	Notify(ctx context.Context, n Notification)
}

// RelayFunc adapts a function to Relay.
type RelayFunc func(ctx context.Context, n Notification)

func (f RelayFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Feed keeps the most recent notifications in memory until drained.
type Feed struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

// NewFeed returns a feed holding at most limit notifications; the oldest
// are dropped first.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 1
	}
	return &Feed{limit: limit}
}

func (f *Feed) Notify(_ context.Context, n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, n)
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append([]Notification(nil), f.items[over:]...)
	}
}

// Drain returns and clears the pending notifications, oldest first.
func (f *Feed) Drain() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.items
	f.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Len returns the number of pending notifications.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// LogRelay writes notifications to the structured log and counts them.
type LogRelay struct{}

func (LogRelay) Notify(ctx context.Context, n Notification) {
	metrics.RecordNotification(n.Op, string(n.Outcome))
	log.Print(ctx,
		log.KV{K: "svc", V: "notify"},
		log.KV{K: "op", V: n.Op},
		log.KV{K: "outcome", V: string(n.Outcome)},
		log.KV{K: "title", V: n.Title},
		log.KV{K: "description", V: n.Description},
	)
}

// Fanout delivers each notification to every relay in order.
type Fanout []Relay

func (f Fanout) Notify(ctx context.Context, n Notification) {
	for _, r := range f {
		r.Notify(ctx, n)
	}
}
