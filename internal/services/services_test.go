package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/clue/log"
	"gorm.io/gorm"

	"almondsense/internal/config"
	"almondsense/internal/database"
	"almondsense/internal/domain"
	"almondsense/internal/identity"
	"almondsense/internal/lifecycle"
	"almondsense/internal/notify"
	"almondsense/internal/repository"
	"almondsense/internal/review"
	"almondsense/internal/session"
	apperrors "almondsense/pkg/errors"
)

const secret = "0123456789abcdef0123456789abcdef"

type sentMail struct{ to, subject, html, text string }

type fakeMailer struct {
	sent chan sentMail
}

func newFakeMailer() *fakeMailer { return &fakeMailer{sent: make(chan sentMail, 4)} }

func (m *fakeMailer) SendHTMLEmail(_ context.Context, to, subject, html, text string) error {
	m.sent <- sentMail{to, subject, html, text}
	return nil
}

func (m *fakeMailer) IsEnabled() bool { return true }

type env struct {
	ctx      context.Context
	db       *gorm.DB
	subs     *repository.GormStore[domain.Submission]
	sessions *session.Manager
	admin    *AdminService
	feed     *notify.Feed
	ws       *review.Workspaces
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := log.Context(context.Background(), log.WithOutput(io.Discard))
	db, err := database.Open(ctx, config.DatabaseConfig{URL: "sqlite:///:memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	subs := repository.NewSubmissions(db)
	sessions := session.NewManager(session.Config{
		Username: "operator", Password: "kebun-rahasia", Secret: secret,
		TTL: time.Hour, RatePerMinute: 60, Burst: 10,
	}, nil)
	shared := notify.NewFeed(100)
	ws := review.NewWorkspaces(review.WorkspaceConfig{
		Submissions: subs,
		Profiles:    repository.NewProfiles(db),
		Policy:      lifecycle.Permissive{},
		FeedSize:    20,
		Relay:       shared,
	})
	return &env{
		ctx:      ctx,
		db:       db,
		subs:     subs,
		sessions: sessions,
		admin:    NewAdminService(db, sessions, ws),
		feed:     shared,
		ws:       ws,
	}
}

func (e *env) operatorCtx(t *testing.T) (context.Context, string) {
	t.Helper()
	res, err := e.admin.Login(e.ctx, "127.0.0.1", "operator", "kebun-rahasia")
	require.NoError(t, err)
	s, err := e.sessions.Authenticate(e.ctx, res.Token)
	require.NoError(t, err)
	return session.NewContext(e.ctx, s), res.Token
}

func payload(name, email string) *SubmitPayload {
	return &SubmitPayload{
		Name:    name,
		Email:   email,
		Phone:   "081234567890",
		Company: "Kebun " + name,
		Service: "Analisis AI Prediktif",
		Message: "Mohon info harga",
	}
}

func TestSubmitCreatesPendingAndMails(t *testing.T) {
	e := newEnv(t)
	mailer := newFakeMailer()
	svc := NewSubmissionService(e.subs, mailer, "ops@almondsense.id", e.feed)

	res, err := svc.Submit(e.ctx, payload("Budi", " Budi@Kebun.ID "))
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Status)
	assert.Equal(t, "Berhasil Terkirim!", res.Title)

	list, err := e.subs.List(e.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.ID, list[0].ID)
	assert.Equal(t, " Budi@Kebun.ID ", list[0].Email, "stored as given")

	select {
	case m := <-mailer.sent:
		assert.Equal(t, "ops@almondsense.id", m.to)
		assert.Contains(t, m.subject, "Budi")
		assert.Contains(t, m.text, res.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification mail not sent")
	}

	n := e.feed.Drain()
	require.Len(t, n, 1)
	assert.Equal(t, "submissions.create", n[0].Op)
}

func TestSubmitValidation(t *testing.T) {
	e := newEnv(t)
	svc := NewSubmissionService(e.subs, newFakeMailer(), "", nil)

	bad := []*SubmitPayload{
		{Email: "b@x.id", Phone: "081234567890", Service: "Paket Lengkap"},
		{Name: "Budi", Email: "  ", Phone: "081234567890", Service: "Paket Lengkap"},
		{Name: "Budi", Email: "b@x.id", Service: "Paket Lengkap"},
		{Name: "Budi", Email: "b@x.id", Phone: "081234567890", Service: "Drone"},
	}
	for _, p := range bad {
		_, err := svc.Submit(e.ctx, p)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err), "%+v", p)
	}
	list, err := e.subs.List(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.Len(t, svc.Services(e.ctx), 6)
}

func TestSubmitAcceptsShortNameAndPhone(t *testing.T) {
	e := newEnv(t)
	svc := NewSubmissionService(e.subs, newFakeMailer(), "", nil)

	p := &SubmitPayload{Name: "B", Email: "nope", Phone: "0812", Service: "Paket Lengkap", Message: " hi "}
	res, err := svc.Submit(e.ctx, p)
	require.NoError(t, err)

	list, err := e.subs.List(e.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, res.ID, got.ID)
	assert.Equal(t, "B", got.Name)
	assert.Equal(t, "nope", got.Email)
	assert.Equal(t, "0812", got.Phone)
	assert.Equal(t, " hi ", got.Message)
}

func TestAdminLogin(t *testing.T) {
	e := newEnv(t)

	_, err := e.admin.Login(e.ctx, "1.2.3.4", "operator", "wrong")
	assert.True(t, apperrors.IsUnauthorized(err))

	res, err := e.admin.Login(e.ctx, "1.2.3.4", " operator ", "kebun-rahasia")
	require.NoError(t, err)
	assert.Equal(t, "operator", res.Username)
	assert.NotEmpty(t, res.Token)
}

func TestAdminRequiresSessionInContext(t *testing.T) {
	e := newEnv(t)
	_, err := e.admin.View(e.ctx, KindSubmissions, nil)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestAdminReviewFlow(t *testing.T) {
	e := newEnv(t)
	svc := NewSubmissionService(e.subs, newFakeMailer(), "", nil)
	a, err := svc.Submit(e.ctx, payload("Budi", "budi@kebun.id"))
	require.NoError(t, err)
	_, err = svc.Submit(e.ctx, payload("Sari", "sari@tani.id"))
	require.NoError(t, err)

	ctx, token := e.operatorCtx(t)

	q := "budi"
	v, err := e.admin.View(ctx, KindSubmissions, &q)
	require.NoError(t, err)
	view := v.(review.View[domain.Submission])
	require.Len(t, view.Records, 1)
	assert.Equal(t, 2, view.Total)

	_, err = e.admin.BeginEdit(ctx, KindSubmissions, a.ID)
	require.NoError(t, err)
	_, err = e.admin.EditDraft(ctx, KindSubmissions, domain.Fields{"company": "Almond Nusantara"})
	require.NoError(t, err)
	rec, err := e.admin.CommitEdit(ctx, KindSubmissions)
	require.NoError(t, err)
	assert.Equal(t, "Almond Nusantara", rec.(domain.Submission).Company)

	updated, err := e.admin.ChangeStatus(ctx, a.ID, "negotiating")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusNegotiating, updated.Status)

	_, err = e.admin.ChangeStatus(ctx, a.ID, "archived")
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))

	require.NoError(t, e.admin.Delete(ctx, KindSubmissions, a.ID, false))
	list, err := e.subs.List(e.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2, "unconfirmed delete is a no-op")

	require.NoError(t, e.admin.Delete(ctx, KindSubmissions, a.ID, true))
	err = e.admin.Delete(ctx, KindSubmissions, a.ID, true)
	assert.True(t, apperrors.IsNotFound(err))

	notes, err := e.admin.Notifications(ctx)
	require.NoError(t, err)
	ops := []string{}
	for _, n := range notes {
		ops = append(ops, n.Op+":"+string(n.Outcome))
	}
	assert.Equal(t, []string{
		"submissions.load:success",
		"profiles.load:success",
		"submissions.update:success",
		"submissions.status:success",
		"submissions.delete:success",
		"submissions.delete:failure",
	}, ops)

	_, err = e.admin.View(ctx, "invoices", nil)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, e.admin.Logout(e.ctx, token))
	_, err = e.sessions.Authenticate(e.ctx, token)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestAdminLoggedOutSessionCannotReachStore(t *testing.T) {
	e := newEnv(t)
	svc := NewSubmissionService(e.subs, newFakeMailer(), "", nil)
	a, err := svc.Submit(e.ctx, payload("Budi", "budi@kebun.id"))
	require.NoError(t, err)

	ctx, token := e.operatorCtx(t)
	_, err = e.admin.View(ctx, KindSubmissions, nil)
	require.NoError(t, err)
	require.Equal(t, 1, e.ws.Len())

	require.NoError(t, e.admin.Logout(e.ctx, token))
	assert.Zero(t, e.ws.Len())

	// ctx still carries the session a request picked up before logout.
	_, err = e.admin.View(ctx, KindSubmissions, nil)
	assert.True(t, apperrors.IsUnauthorized(err), "got %v", err)
	assert.Zero(t, e.ws.Len(), "no workspace is rebuilt for an ended session")

	err = e.admin.Delete(ctx, KindSubmissions, a.ID, true)
	assert.True(t, apperrors.IsUnauthorized(err), "got %v", err)
	list, err := e.subs.List(e.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAdminEditConflict(t *testing.T) {
	e := newEnv(t)
	svc := NewSubmissionService(e.subs, newFakeMailer(), "", nil)
	a, err := svc.Submit(e.ctx, payload("Budi", "budi@kebun.id"))
	require.NoError(t, err)
	b, err := svc.Submit(e.ctx, payload("Sari", "sari@tani.id"))
	require.NoError(t, err)
	ctx, _ := e.operatorCtx(t)

	_, err = e.admin.BeginEdit(ctx, KindSubmissions, a.ID)
	require.NoError(t, err)
	_, err = e.admin.BeginEdit(ctx, KindSubmissions, b.ID)
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))

	require.NoError(t, e.admin.CancelEdit(ctx, KindSubmissions))
	_, err = e.admin.CommitEdit(ctx, KindSubmissions)
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))
}

func TestProfilesByEmailAndCustomerDashboard(t *testing.T) {
	e := newEnv(t)
	provider := identity.NewProvider(e.db, secret, time.Hour, nil)
	customers := NewCustomerService(e.db, provider)
	submissions := NewSubmissionService(e.subs, newFakeMailer(), "", nil)

	_, err := submissions.Submit(e.ctx, payload("Sari", "sari@tani.id"))
	require.NoError(t, err)
	_, err = submissions.Submit(e.ctx, payload("Budi", "budi@kebun.id"))
	require.NoError(t, err)

	reg, err := customers.SignUp(e.ctx, identity.SignUpInput{
		Email: "sari@tani.id", Password: "rahasia", FullName: "Sari", Phone: "081234567890",
	})
	require.NoError(t, err)
	assert.Equal(t, "Registrasi Berhasil", reg.Title)

	_, err = customers.SignUp(e.ctx, identity.SignUpInput{
		Email: "sari@tani.id", Password: "rahasia", FullName: "Sari", Phone: "081234567890",
	})
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))

	_, err = customers.SignUp(e.ctx, identity.SignUpInput{Email: "x@y.id", Password: "123"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Password minimal 6 karakter", appErr.Message)

	dash, err := customers.Dashboard(e.ctx, reg.Token)
	require.NoError(t, err)
	require.NotNil(t, dash.Profile)
	assert.Equal(t, "Sari", dash.Profile.FullName)
	require.Len(t, dash.Submissions, 1)
	assert.Equal(t, "Sari", dash.Submissions[0].Name)
	assert.Equal(t, 1, dash.Summary.Total)

	ctx, _ := e.operatorCtx(t)
	profiles, err := e.admin.ProfilesByEmail(ctx, "SARI@tani.id")
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	profiles, err = e.admin.ProfilesByEmail(ctx, "budi@kebun.id")
	require.NoError(t, err)
	assert.Empty(t, profiles, "a submission without a registered customer has no profile")

	require.NoError(t, customers.SignOut(e.ctx, reg.Token))
	_, err = customers.Dashboard(e.ctx, reg.Token)
	assert.True(t, apperrors.IsUnauthorized(err))

	signin, err := customers.SignIn(e.ctx, "sari@tani.id", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, "Login Berhasil", signin.Title)
	_, err = customers.SignIn(e.ctx, "sari@tani.id", "salah123")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestHealthCheck(t *testing.T) {
	e := newEnv(t)
	h := NewHealthService(e.db, "AlmondSense API", "1.0.0")

	res, err := h.Check(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", res.Status)

	require.NoError(t, database.Close(e.db))
	res, err = h.Check(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, "degraded", res.Status)
}

func TestSubmissionEmailEscapesHTML(t *testing.T) {
	_, html, text := submissionEmail(domain.Submission{ID: "x", Name: "<b>Budi</b>", Email: "b@x.id"})
	assert.Contains(t, html, "&lt;b&gt;Budi&lt;/b&gt;")
	assert.Contains(t, text, "<b>Budi</b>")
}

func TestHeaderValueStripsLineBreaks(t *testing.T) {
	assert.Equal(t, "Pengajuan baru dari Budi Bcc: x@y.id", headerValue("Pengajuan baru dari Budi\r\nBcc: x@y.id"))
}
