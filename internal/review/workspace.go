package review

import (
	"context"
	"sync"
	"time"

	"almondsense/internal/domain"
	"almondsense/internal/lifecycle"
	"almondsense/internal/notify"
	"almondsense/internal/repository"
	"almondsense/internal/session"
	"almondsense/internal/stats"
)

// Workspace is the review state of one operator session.
type Workspace struct {
	Session     *session.Session
	Submissions *Controller[domain.Submission]
	Profiles    *Controller[domain.Profile]
	Feed        *notify.Feed

	loadOnce sync.Once
}

// WorkspaceConfig holds what every new workspace is built from.
type WorkspaceConfig struct {
	Submissions repository.Store[domain.Submission]
	Profiles    repository.Store[domain.Profile]
	Policy      lifecycle.TransitionPolicy
	FeedSize    int
	// Relay receives every notification besides the workspace feed.
	Relay notify.Relay
	Now   func() time.Time
}

// Workspaces keeps one workspace per live session.
type Workspaces struct {
	cfg WorkspaceConfig

	mu    sync.Mutex
	bySID map[string]*Workspace
}

// NewWorkspaces returns an empty registry.
func NewWorkspaces(cfg WorkspaceConfig) *Workspaces {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Workspaces{cfg: cfg, bySID: make(map[string]*Workspace)}
}

// Get returns the workspace of s, creating and loading it on first use.
// Concurrent first callers all wait for the initial load. An ended or
// expired session gets ErrUnauthenticated and no workspace.
func (w *Workspaces) Get(ctx context.Context, s *session.Session) (*Workspace, error) {
	w.mu.Lock()
	// Checked under mu so a concurrent Discard cannot be overtaken.
	if !s.Active(w.cfg.Now()) {
		w.mu.Unlock()
		return nil, ErrUnauthenticated
	}
	ws, ok := w.bySID[s.ID]
	if !ok {
		ws = w.build(s)
		w.bySID[s.ID] = ws
	}
	w.mu.Unlock()

	ws.loadOnce.Do(func() {
		// Failures surface through the notification feed and View.
		_ = ws.Submissions.Load(ctx)
		_ = ws.Profiles.Load(ctx)
	})
	return ws, nil
}

func (w *Workspaces) build(s *session.Session) *Workspace {
	feed := notify.NewFeed(w.cfg.FeedSize)
	var relay notify.Relay = feed
	if w.cfg.Relay != nil {
		relay = notify.Fanout{feed, w.cfg.Relay}
	}
	return &Workspace{
		Session: s,
		Submissions: NewController("submissions", s, w.cfg.Submissions, relay, w.cfg.Policy,
			WithStatus(func(r domain.Submission) lifecycle.Status { return r.Status }),
			WithSummary(stats.Summarize),
			WithClock[domain.Submission](w.cfg.Now),
		),
		Profiles: NewController("profiles", s, w.cfg.Profiles, relay, w.cfg.Policy,
			WithClock[domain.Profile](w.cfg.Now),
		),
		Feed: feed,
	}
}

// Discard drops the workspace of s. It is registered as a session end hook.
func (w *Workspaces) Discard(_ context.Context, s *session.Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.bySID, s.ID)
}

// Len returns the number of open workspaces.
func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.bySID)
}
