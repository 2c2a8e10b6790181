// Package session is the operator session gate: an explicit session object
// created at login and destroyed at logout, plus the HTTP middleware that
// keeps unauthenticated callers away from the review workflow.
package session

import (
	"context"
	"sync/atomic"
	"time"
)

// Session is one logged-in operator.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	ended atomic.Bool
}

// Active reports whether s is live at now. A nil or ended session is never
// active.
func (s *Session) Active(now time.Time) bool {
	return s != nil && !s.ended.Load() && now.Before(s.ExpiresAt)
}

// End marks s as destroyed. Holders of s observe it through Active.
func (s *Session) End() {
	s.ended.Store(true)
}

type ctxKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by the gate, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
