// Package review implements the operator review workflow: load the full
// record set, filter it, edit one row at a time through a local draft,
// change submission status in one step and delete with confirmation.
package review

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"goa.design/clue/log"

	"almondsense/internal/domain"
	"almondsense/internal/lifecycle"
	"almondsense/internal/notify"
	"almondsense/internal/repository"
	"almondsense/internal/search"
	"almondsense/internal/session"
	"almondsense/internal/stats"
)

// Operation names used in notifications.
const (
	OpLoad   = "load"
	OpUpdate = "update"
	OpStatus = "status"
	OpDelete = "delete"
)

var (
	ErrUnauthenticated  = errors.New("no live operator session")
	ErrEditInProgress   = errors.New("another record is being edited")
	ErrNoDraft          = errors.New("no edit in progress")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrNoStatus         = errors.New("record kind has no status")
)

// View is a snapshot of the controller state for rendering.
type View[T any] struct {
	Kind      string         `json:"kind"`
	Query     string         `json:"query"`
	Loaded    bool           `json:"loaded"`
	Total     int            `json:"total"`
	Records   []T            `json:"records"`
	EditingID string         `json:"editing_id,omitempty"`
	Draft     *T             `json:"draft,omitempty"`
	Staged    domain.Fields  `json:"staged,omitempty"`
	Summary   *stats.Summary `json:"summary,omitempty"`
}

// Option configures a Controller.
type Option[T domain.Record[T]] func(*Controller[T])

// WithStatus enables ChangeStatus; status reads a record's lifecycle status.
func WithStatus[T domain.Record[T]](status func(T) lifecycle.Status) Option[T] {
	return func(c *Controller[T]) { c.statusOf = status }
}

// WithSummary adds derived metrics to every View.
func WithSummary[T domain.Record[T]](summarize func([]T, time.Time) stats.Summary) Option[T] {
	return func(c *Controller[T]) { c.summarize = summarize }
}

// WithClock overrides the controller time source.
func WithClock[T domain.Record[T]](now func() time.Time) Option[T] {
	return func(c *Controller[T]) { c.now = now }
}

// Controller drives the review workflow of one record kind for one
// operator session. Store calls are made without holding the lock; the
// record list is replaced only by completed loads.
type Controller[T domain.Record[T]] struct {
	kind      string
	sess      *session.Session
	store     repository.Store[T]
	relay     notify.Relay
	policy    lifecycle.TransitionPolicy
	statusOf  func(T) lifecycle.Status
	summarize func([]T, time.Time) stats.Summary
	now       func() time.Time

	mu          sync.Mutex
	records     []T
	loaded      bool
	unavailable error
	reported    bool
	query       string
	editingID   string
	draft       domain.Fields
}

// NewController returns a controller bound to sess.
func NewController[T domain.Record[T]](kind string, sess *session.Session, store repository.Store[T], relay notify.Relay, policy lifecycle.TransitionPolicy, opts ...Option[T]) *Controller[T] {
	if policy == nil {
		policy = lifecycle.Permissive{}
	}
	c := &Controller[T]{
		kind:   kind,
		sess:   sess,
		store:  store,
		relay:  relay,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller[T]) authorize() error {
	if !c.sess.Active(c.now()) {
		return ErrUnauthenticated
	}
	return nil
}

func (c *Controller[T]) notify(ctx context.Context, op string, err error) {
	m := messages[op][err == nil]
	n := notify.Notification{
		Title:       m.title,
		Description: m.description,
		Outcome:     notify.Success,
		Op:          c.kind + "." + op,
		At:          c.now(),
	}
	if err != nil {
		n.Outcome = notify.Failure
		log.Errorf(ctx, err, "%s %s failed", c.kind, op)
	}
	c.relay.Notify(ctx, n)
}

// Load fetches the full record set. On failure the previous list is kept;
// a failure before any successful load marks the store unavailable.
func (c *Controller[T]) Load(ctx context.Context) error {
	if err := c.authorize(); err != nil {
		return err
	}
	err := c.reload(ctx)
	c.notify(ctx, OpLoad, err)
	return err
}

func (c *Controller[T]) reload(ctx context.Context) error {
	records, err := c.store.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if !c.loaded {
			c.unavailable = err
		}
		return err
	}
	c.records = records
	c.loaded = true
	c.unavailable = nil
	c.reported = false
	return nil
}

// refresh reloads after a successful mutation. If the reload fails the
// store's response for the mutated record is patched in instead.
func (c *Controller[T]) refresh(ctx context.Context, id string, updated *T) {
	err := c.reload(ctx)
	if err == nil {
		return
	}
	log.Errorf(ctx, err, "%s reload after mutation of %s failed, patching locally", c.kind, id)
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return
	}
	records := slices.Clone(c.records)
	if updated == nil {
		records = slices.Delete(records, i, i+1)
	} else {
		records[i] = *updated
	}
	c.records = records
}

// SetQuery changes the search query and returns the resulting view.
func (c *Controller[T]) SetQuery(ctx context.Context, query string) (View[T], error) {
	if err := c.authorize(); err != nil {
		return View[T]{}, err
	}
	c.mu.Lock()
	c.query = query
	c.mu.Unlock()
	return c.View(ctx)
}

// View returns the filtered records, the open draft and derived metrics.
func (c *Controller[T]) View(ctx context.Context) (View[T], error) {
	if err := c.authorize(); err != nil {
		return View[T]{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unavailable != nil {
		if !c.reported {
			c.reported = true
			log.Errorf(ctx, c.unavailable, "%s store unavailable, reload required", c.kind)
		}
		return View[T]{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, c.unavailable)
	}

	v := View[T]{
		Kind:      c.kind,
		Query:     c.query,
		Loaded:    c.loaded,
		Total:     len(c.records),
		Records:   search.Filter(c.records, c.query),
		EditingID: c.editingID,
	}
	if c.editingID != "" {
		if i := c.indexOf(c.editingID); i >= 0 {
			if d, err := c.records[i].Apply(c.draft); err == nil {
				v.Draft = &d
			}
		}
		v.Staged = c.draft.Merge(nil)
	}
	if c.summarize != nil {
		s := c.summarize(c.records, c.now())
		v.Summary = &s
	}
	return v, nil
}

// BeginEdit opens a draft for id. Re-opening the row already being edited
// returns the existing draft.
func (c *Controller[T]) BeginEdit(ctx context.Context, id string) (T, error) {
	var zero T
	if err := c.authorize(); err != nil {
		return zero, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editingID != "" && c.editingID != id {
		return zero, fmt.Errorf("%w: %s %s", ErrEditInProgress, c.kind, c.editingID)
	}
	i := c.indexOf(id)
	if i < 0 {
		return zero, fmt.Errorf("%s %s: %w", c.kind, id, repository.ErrNotFound)
	}
	if c.editingID != id {
		c.editingID = id
		c.draft = domain.Fields{}
	}
	return c.records[i].Apply(c.draft)
}

// EditDraft stages fields on the open draft. The canonical record is not
// touched.
func (c *Controller[T]) EditDraft(ctx context.Context, fields domain.Fields) (T, error) {
	var zero T
	if err := c.authorize(); err != nil {
		return zero, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editingID == "" {
		return zero, ErrNoDraft
	}
	i := c.indexOf(c.editingID)
	if i < 0 {
		return zero, fmt.Errorf("%s %s: %w", c.kind, c.editingID, repository.ErrNotFound)
	}
	staged := c.draft.Merge(fields)
	d, err := c.records[i].Apply(staged)
	if err != nil {
		return zero, err
	}
	c.draft = staged
	return d, nil
}

// CancelEdit discards the draft. Cancelling without a draft is a no-op.
func (c *Controller[T]) CancelEdit(ctx context.Context) error {
	if err := c.authorize(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = ""
	c.draft = nil
	return nil
}

// CommitEdit sends the staged fields as a partial update. On success the
// draft is dropped and the list reloaded; on failure the draft stays open.
func (c *Controller[T]) CommitEdit(ctx context.Context) (T, error) {
	var zero T
	if err := c.authorize(); err != nil {
		return zero, err
	}

	c.mu.Lock()
	id, fields := c.editingID, c.draft.Merge(nil)
	var current *T
	if i := c.indexOf(id); i >= 0 {
		r := c.records[i]
		current = &r
	}
	c.mu.Unlock()
	if id == "" {
		return zero, ErrNoDraft
	}

	if err := c.checkDraftStatus(id, current, fields); err != nil {
		c.notify(ctx, OpUpdate, err)
		return zero, err
	}

	updated, err := c.store.Update(ctx, id, fields)
	if err != nil {
		c.notify(ctx, OpUpdate, err)
		return zero, err
	}

	c.mu.Lock()
	if c.editingID == id {
		c.editingID = ""
		c.draft = nil
	}
	c.mu.Unlock()

	c.notify(ctx, OpUpdate, nil)
	c.refresh(ctx, id, &updated)
	return updated, nil
}

// checkDraftStatus applies the transition policy to a staged status. The
// policy needs the current status, so a row that left the list is reported
// as not found.
func (c *Controller[T]) checkDraftStatus(id string, current *T, fields domain.Fields) error {
	raw, ok := fields["status"]
	if !ok || c.statusOf == nil {
		return nil
	}
	if current == nil {
		return fmt.Errorf("%s %s: %w", c.kind, id, repository.ErrNotFound)
	}
	to, err := lifecycle.ParseStatus(fmt.Sprint(raw))
	if err != nil {
		return err
	}
	return c.policy.Check(c.statusOf(*current), to)
}

// ChangeStatus updates only the status of id, then reloads the list.
func (c *Controller[T]) ChangeStatus(ctx context.Context, id string, to lifecycle.Status) (T, error) {
	var zero T
	if err := c.authorize(); err != nil {
		return zero, err
	}
	if c.statusOf == nil {
		return zero, fmt.Errorf("%w: %s", ErrNoStatus, c.kind)
	}

	c.mu.Lock()
	i := c.indexOf(id)
	var from lifecycle.Status
	if i >= 0 {
		from = c.statusOf(c.records[i])
	}
	c.mu.Unlock()

	if i < 0 {
		err := fmt.Errorf("%s %s: %w", c.kind, id, repository.ErrNotFound)
		c.notify(ctx, OpStatus, err)
		return zero, err
	}
	if err := c.policy.Check(from, to); err != nil {
		c.notify(ctx, OpStatus, err)
		return zero, err
	}

	updated, err := c.store.Update(ctx, id, domain.Fields{"status": string(to)})
	if err != nil {
		c.notify(ctx, OpStatus, err)
		return zero, err
	}
	c.notify(ctx, OpStatus, nil)
	c.refresh(ctx, id, &updated)
	return updated, nil
}

// Delete removes id once the operator has confirmed. A declined
// confirmation does nothing.
func (c *Controller[T]) Delete(ctx context.Context, id string, confirmed bool) error {
	if err := c.authorize(); err != nil {
		return err
	}
	if !confirmed {
		return nil
	}
	if err := c.store.Delete(ctx, id); err != nil {
		c.notify(ctx, OpDelete, err)
		return err
	}

	c.mu.Lock()
	if c.editingID == id {
		c.editingID = ""
		c.draft = nil
	}
	c.mu.Unlock()

	c.notify(ctx, OpDelete, nil)
	c.refresh(ctx, id, nil)
	return nil
}

// Records returns a copy of the loaded list.
func (c *Controller[T]) Records() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.records)
}

// indexOf must be called with c.mu held.
func (c *Controller[T]) indexOf(id string) int {
	return slices.IndexFunc(c.records, func(r T) bool { return r.RecordID() == id })
}
