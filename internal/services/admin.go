package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"goa.design/clue/log"
	"gorm.io/gorm"

	"almondsense/internal/domain"
	"almondsense/internal/lifecycle"
	"almondsense/internal/metrics"
	"almondsense/internal/notify"
	"almondsense/internal/repository"
	"almondsense/internal/review"
	"almondsense/internal/session"
	apperrors "almondsense/pkg/errors"
)

// Record kinds exposed under /admin/api/{kind}.
const (
	KindSubmissions = "submissions"
	KindProfiles    = "profiles"
)

// LoginResult is returned by a successful operator login.
type LoginResult struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdminService exposes the review workflow to authenticated operators.
type AdminService struct {
	db         *gorm.DB
	sessions   *session.Manager
	workspaces *review.Workspaces
}

// NewAdminService creates the admin service and discards a session's
// workspace when the session ends.
func NewAdminService(db *gorm.DB, sessions *session.Manager, workspaces *review.Workspaces) *AdminService {
	sessions.OnEnd(func(ctx context.Context, s *session.Session) {
		workspaces.Discard(ctx, s)
		metrics.SetActiveSessions(sessions.Active())
	})
	return &AdminService{db: db, sessions: sessions, workspaces: workspaces}
}

// Login opens an operator session.
func (s *AdminService) Login(ctx context.Context, remoteKey, username, password string) (*LoginResult, error) {
	ctx = log.With(ctx, log.KV{K: "svc", V: "admin"})
	token, sess, err := s.sessions.Login(ctx, remoteKey, strings.TrimSpace(username), password)
	switch {
	case errors.Is(err, session.ErrRateLimited):
		return nil, apperrors.Wrap(apperrors.ErrCodeRateLimited, "Terlalu banyak percobaan login. Coba lagi nanti.", err)
	case errors.Is(err, session.ErrInvalidCredentials):
		return nil, apperrors.Wrap(apperrors.ErrCodeUnauthorized, "Username atau password salah.", err)
	case err != nil:
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "login failed", err)
	}
	metrics.SetActiveSessions(s.sessions.Active())
	return &LoginResult{Token: token, Username: sess.Username, ExpiresAt: sess.ExpiresAt}, nil
}

// Logout destroys the operator session behind token.
func (s *AdminService) Logout(ctx context.Context, token string) error {
	return s.sessions.Logout(log.With(ctx, log.KV{K: "svc", V: "admin"}), token)
}

// workspace returns the workspace of the session the gate put in ctx.
func (s *AdminService) workspace(ctx context.Context) (*review.Workspace, error) {
	sess, ok := session.FromContext(ctx)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "login required")
	}
	ws, err := s.workspaces.Get(ctx, sess)
	if err != nil {
		return nil, reviewError(err)
	}
	return ws, nil
}

// desk is the kind-independent view of a review controller.
type desk interface {
	Load(ctx context.Context) error
	View(ctx context.Context) (any, error)
	SetQuery(ctx context.Context, q string) (any, error)
	BeginEdit(ctx context.Context, id string) (any, error)
	EditDraft(ctx context.Context, f domain.Fields) (any, error)
	CancelEdit(ctx context.Context) error
	CommitEdit(ctx context.Context) (any, error)
	Delete(ctx context.Context, id string, confirmed bool) error
}

type deskOf[T domain.Record[T]] struct{ c *review.Controller[T] }

func (d deskOf[T]) Load(ctx context.Context) error { return d.c.Load(ctx) }
func (d deskOf[T]) View(ctx context.Context) (any, error) {
	return d.c.View(ctx)
}
func (d deskOf[T]) SetQuery(ctx context.Context, q string) (any, error) {
	return d.c.SetQuery(ctx, q)
}
func (d deskOf[T]) BeginEdit(ctx context.Context, id string) (any, error) {
	return d.c.BeginEdit(ctx, id)
}
func (d deskOf[T]) EditDraft(ctx context.Context, f domain.Fields) (any, error) {
	return d.c.EditDraft(ctx, f)
}
func (d deskOf[T]) CancelEdit(ctx context.Context) error { return d.c.CancelEdit(ctx) }
func (d deskOf[T]) CommitEdit(ctx context.Context) (any, error) {
	return d.c.CommitEdit(ctx)
}
func (d deskOf[T]) Delete(ctx context.Context, id string, confirmed bool) error {
	return d.c.Delete(ctx, id, confirmed)
}

func (s *AdminService) desk(ctx context.Context, kind string) (desk, error) {
	ws, err := s.workspace(ctx)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindSubmissions:
		return deskOf[domain.Submission]{ws.Submissions}, nil
	case KindProfiles:
		return deskOf[domain.Profile]{ws.Profiles}, nil
	default:
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "unknown record kind "+kind)
	}
}

// View returns the current view of kind. A non-nil query replaces the
// search query first.
func (s *AdminService) View(ctx context.Context, kind string, query *string) (any, error) {
	d, err := s.desk(ctx, kind)
	if err != nil {
		return nil, err
	}
	var v any
	if query != nil {
		v, err = d.SetQuery(ctx, *query)
	} else {
		v, err = d.View(ctx)
	}
	return v, reviewError(err)
}

// Reload fetches the full list of kind again and returns the new view.
func (s *AdminService) Reload(ctx context.Context, kind string) (any, error) {
	d, err := s.desk(ctx, kind)
	if err != nil {
		return nil, err
	}
	if err := d.Load(ctx); err != nil {
		return nil, reviewError(err)
	}
	v, err := d.View(ctx)
	return v, reviewError(err)
}

// BeginEdit opens a draft on id.
func (s *AdminService) BeginEdit(ctx context.Context, kind, id string) (any, error) {
	d, err := s.desk(ctx, kind)
	if err != nil {
		return nil, err
	}
	draft, err := d.BeginEdit(ctx, id)
	return draft, reviewError(err)
}

// EditDraft stages fields on the open draft.
func (s *AdminService) EditDraft(ctx context.Context, kind string, fields domain.Fields) (any, error) {
	d, err := s.desk(ctx, kind)
	if err != nil {
		return nil, err
	}
	draft, err := d.EditDraft(ctx, fields)
	return draft, reviewError(err)
}

// CancelEdit discards the open draft.
func (s *AdminService) CancelEdit(ctx context.Context, kind string) error {
	d, err := s.desk(ctx, kind)
	if err != nil {
		return err
	}
	return reviewError(d.CancelEdit(ctx))
}

// CommitEdit sends the open draft.
func (s *AdminService) CommitEdit(ctx context.Context, kind string) (any, error) {
	d, err := s.desk(ctx, kind)
	if err != nil {
		return nil, err
	}
	rec, err := d.CommitEdit(ctx)
	return rec, reviewError(err)
}

// ChangeStatus sets the status of a submission in one step.
func (s *AdminService) ChangeStatus(ctx context.Context, id, status string) (*domain.Submission, error) {
	ws, err := s.workspace(ctx)
	if err != nil {
		return nil, err
	}
	st, err := lifecycle.ParseStatus(status)
	if err != nil {
		return nil, reviewError(err)
	}
	rec, err := ws.Submissions.ChangeStatus(ctx, id, st)
	if err != nil {
		return nil, reviewError(err)
	}
	return &rec, nil
}

// Delete removes id when confirmed; an unconfirmed delete does nothing.
func (s *AdminService) Delete(ctx context.Context, kind, id string, confirmed bool) error {
	d, err := s.desk(ctx, kind)
	if err != nil {
		return err
	}
	return reviewError(d.Delete(ctx, id, confirmed))
}

// Notifications drains the operator's pending notifications.
func (s *AdminService) Notifications(ctx context.Context) ([]notify.Notification, error) {
	ws, err := s.workspace(ctx)
	if err != nil {
		return nil, err
	}
	return ws.Feed.Drain(), nil
}

// ProfilesByEmail resolves the e-mail relation from a submission to the
// customers registered with that address. It may return no profile or
// several.
func (s *AdminService) ProfilesByEmail(ctx context.Context, email string) ([]domain.Profile, error) {
	if _, err := s.workspace(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(email) == "" {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "email is required")
	}
	profiles, err := repository.ProfilesByEmail(ctx, s.db, email)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "profile lookup failed", err)
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	return profiles, nil
}

// reviewError maps workflow errors onto application error codes.
func reviewError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, review.ErrUnauthenticated):
		return apperrors.Wrap(apperrors.ErrCodeUnauthorized, "session expired", err)
	case errors.Is(err, review.ErrEditInProgress):
		return apperrors.Wrap(apperrors.ErrCodeConflict, "another record is being edited", err)
	case errors.Is(err, review.ErrNoDraft):
		return apperrors.Wrap(apperrors.ErrCodeConflict, "no edit in progress", err)
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return apperrors.Wrap(apperrors.ErrCodeConflict, err.Error(), err)
	case errors.Is(err, review.ErrStoreUnavailable):
		return apperrors.Wrap(apperrors.ErrCodeUnavailable, "record store unavailable, reload required", err)
	case errors.Is(err, review.ErrNoStatus):
		return apperrors.Wrap(apperrors.ErrCodeBadRequest, err.Error(), err)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.Wrap(apperrors.ErrCodeNotFound, "record not found", err)
	case errors.Is(err, domain.ErrInvalidFields), errors.Is(err, lifecycle.ErrUnknownStatus):
		return apperrors.Wrap(apperrors.ErrCodeValidation, err.Error(), err)
	default:
		return apperrors.Wrap(apperrors.ErrCodeInternalError, "record store error", err)
	}
}
