package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/clue/log"

	"almondsense/internal/config"
	"almondsense/internal/database"
	"almondsense/internal/domain"
	"almondsense/internal/identity"
	"almondsense/internal/lifecycle"
	"almondsense/internal/repository"
	"almondsense/internal/review"
	"almondsense/internal/services"
	"almondsense/internal/session"
)

const secret = "0123456789abcdef0123456789abcdef"

// countingStore counts calls reaching the record store.
type countingStore[T any] struct {
	repository.Store[T]
	calls atomic.Int32
}

func (c *countingStore[T]) List(ctx context.Context) ([]T, error) {
	c.calls.Add(1)
	return c.Store.List(ctx)
}

func (c *countingStore[T]) Create(ctx context.Context, r T) (T, error) {
	c.calls.Add(1)
	return c.Store.Create(ctx, r)
}

func (c *countingStore[T]) Update(ctx context.Context, id string, f domain.Fields) (T, error) {
	c.calls.Add(1)
	return c.Store.Update(ctx, id, f)
}

func (c *countingStore[T]) Delete(ctx context.Context, id string) error {
	c.calls.Add(1)
	return c.Store.Delete(ctx, id)
}

type noMail struct{}

func (noMail) SendHTMLEmail(context.Context, string, string, string, string) error { return nil }
func (noMail) IsEnabled() bool                                                    { return false }

type harness struct {
	srv  *httptest.Server
	subs *countingStore[domain.Submission]
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Name: "AlmondSense API", Version: "test"},
		Auth: config.AuthConfig{SecretKey: secret, TokenExpiryMinutes: 60},
		Admin: config.AdminConfig{
			Username: "operator", Password: "kebun-rahasia",
			SessionMinutes: 60, LoginRatePerMinute: 1, LoginBurst: 3, LoginPath: "/admin/login",
		},
		Review: config.ReviewConfig{StatusPolicy: "forward_only", NotificationFeedSize: 20},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"https://almondsense.id"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         600,
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig()
	ctx := log.Context(context.Background(), log.WithOutput(io.Discard))
	db, err := database.Open(ctx, config.DatabaseConfig{URL: "sqlite:///:memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	subs := &countingStore[domain.Submission]{Store: repository.NewSubmissions(db)}
	profiles := &countingStore[domain.Profile]{Store: repository.NewProfiles(db)}
	policy, err := lifecycle.PolicyByName(cfg.Review.StatusPolicy)
	require.NoError(t, err)

	sessions := session.NewManager(session.Config{
		Username: cfg.Admin.Username, Password: cfg.Admin.Password, Secret: secret,
		TTL: time.Hour, RatePerMinute: cfg.Admin.LoginRatePerMinute, Burst: cfg.Admin.LoginBurst,
	}, nil)
	ws := review.NewWorkspaces(review.WorkspaceConfig{
		Submissions: subs, Profiles: profiles, Policy: policy, FeedSize: cfg.Review.NotificationFeedSize,
	})
	s := New(cfg, Deps{
		Health:      services.NewHealthService(db, cfg.App.Name, cfg.App.Version),
		Submissions: services.NewSubmissionService(subs, noMail{}, "", nil),
		Customers:   services.NewCustomerService(db, identity.NewProvider(db, secret, time.Hour, nil)),
		Admin:       services.NewAdminService(db, sessions, ws),
		Sessions:    sessions,
	})
	srv := httptest.NewServer(s.Handler(ctx))
	t.Cleanup(srv.Close)
	return &harness{srv: srv, subs: subs}
}

func (h *harness) client() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func (h *harness) do(t *testing.T, method, path string, body any, mod ...func(*http.Request)) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mod {
		m(req)
	}
	resp, err := h.client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (h *harness) login(t *testing.T) *http.Cookie {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/admin/login", map[string]string{
		"username": "operator", "password": "kebun-rahasia",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			// The test server is plain HTTP, path scoping is not needed here.
			return &http.Cookie{Name: c.Name, Value: c.Value}
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func (h *harness) submit(t *testing.T, name, email string) string {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/api/v1/submissions", map[string]string{
		"name": name, "email": email, "phone": "081234567890",
		"service": "Paket Lengkap", "message": "Halo",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var res services.SubmitResult
	decodeBody(t, resp, &res)
	return res.ID
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var res services.HealthResult
	decodeBody(t, resp, &res)
	assert.Equal(t, "healthy", res.Status)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp = h.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestGateRedirectsWithoutTouchingStore(t *testing.T) {
	h := newHarness(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/admin/api/submissions"},
		{http.MethodPost, "/admin/api/submissions/reload"},
		{http.MethodPut, "/admin/api/submissions/abc/status"},
		{http.MethodDelete, "/admin/api/submissions/abc?confirm=true"},
		{http.MethodGet, "/admin/api/notifications"},
	} {
		resp := h.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusFound, resp.StatusCode, tc.path)
		assert.Equal(t, "/admin/login", resp.Header.Get("Location"), tc.path)
	}
	bogus := &http.Cookie{Name: session.CookieName, Value: "not-a-token"}
	resp := h.do(t, http.MethodGet, "/admin/api/submissions", nil, withCookie(bogus))
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	assert.Zero(t, h.subs.calls.Load())
}

func TestAdminLoginFailures(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "operator", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var e struct {
		Name    string `json:"name"`
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	decodeBody(t, resp, &e)
	assert.Equal(t, "UNAUTHORIZED", e.Name)
	assert.Equal(t, "Username atau password salah.", e.Message)
	assert.NotEmpty(t, e.ID)

	// Burst is three attempts, the first one is spent above.
	h.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "operator", "password": "x"})
	h.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "operator", "password": "x"})
	resp = h.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "operator", "password": "kebun-rahasia"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestAdminReviewOverHTTP(t *testing.T) {
	h := newHarness(t)
	budi := h.submit(t, "Budi", "budi@kebun.id")
	h.submit(t, "Sari", "sari@tani.id")
	cookie := h.login(t)

	resp := h.do(t, http.MethodGet, "/admin/api/submissions?q=BUDI", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view review.View[domain.Submission]
	decodeBody(t, resp, &view)
	assert.Equal(t, 2, view.Total)
	require.Len(t, view.Records, 1)
	assert.Equal(t, budi, view.Records[0].ID)
	require.NotNil(t, view.Summary)
	assert.Equal(t, 2, view.Summary.ByStatus[lifecycle.StatusPending])

	// forward_only: pending cannot jump to success.
	resp = h.do(t, http.MethodPut, "/admin/api/submissions/"+budi+"/status",
		map[string]string{"status": "success"}, withCookie(cookie))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(t, http.MethodPut, "/admin/api/submissions/"+budi+"/status",
		map[string]string{"status": "negotiating"}, withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sub domain.Submission
	decodeBody(t, resp, &sub)
	assert.Equal(t, lifecycle.StatusNegotiating, sub.Status)

	resp = h.do(t, http.MethodPut, "/admin/api/profiles/"+budi+"/status",
		map[string]string{"status": "negotiating"}, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/admin/api/submissions/"+budi+"/edit", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = h.do(t, http.MethodPatch, "/admin/api/submissions/draft",
		map[string]string{"company": "Almond Nusantara"}, withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = h.do(t, http.MethodPatch, "/admin/api/submissions/draft",
		map[string]string{"owner": "x"}, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = h.do(t, http.MethodPost, "/admin/api/submissions/draft/commit", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &sub)
	assert.Equal(t, "Almond Nusantara", sub.Company)

	resp = h.do(t, http.MethodDelete, "/admin/api/submissions/draft", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, http.MethodDelete, "/admin/api/submissions/"+budi, nil, withCookie(cookie))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/admin/api/submissions", nil, withCookie(cookie))
	decodeBody(t, resp, &view)
	assert.Len(t, view.Records, 2, "unconfirmed delete keeps the record")

	resp = h.do(t, http.MethodDelete, "/admin/api/submissions/"+budi+"?confirm=true", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.do(t, http.MethodDelete, "/admin/api/submissions/"+budi+"?confirm=true", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/admin/api/notifications", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var notes []map[string]any
	decodeBody(t, resp, &notes)
	assert.NotEmpty(t, notes)

	resp = h.do(t, http.MethodGet, "/admin/api/invoices", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/admin/logout", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/admin/api/submissions", nil, withCookie(cookie))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestCustomerFlow(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "Sari", "sari@tani.id")

	resp := h.do(t, http.MethodPost, "/api/v1/customer/signup", map[string]string{
		"email": "sari@tani.id", "password": "rahasia", "full_name": "Sari Tani", "phone": "081234567890",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var auth services.AuthResult
	decodeBody(t, resp, &auth)
	require.NotEmpty(t, auth.Token)

	resp = h.do(t, http.MethodGet, "/api/v1/customer/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/v1/customer/dashboard", nil, withBearer(auth.Token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash services.Dashboard
	decodeBody(t, resp, &dash)
	assert.Equal(t, "sari@tani.id", dash.Email)
	assert.Len(t, dash.Submissions, 1)

	resp = h.do(t, http.MethodPost, "/api/v1/customer/signout", nil, withBearer(auth.Token))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/api/v1/customer/dashboard", nil, withBearer(auth.Token))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/v1/customer/signup", map[string]string{
		"email": "sari@tani.id", "password": "rahasia", "full_name": "Sari Tani", "phone": "081234567890",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSubmitRejectsInvalidBody(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/api/v1/submissions", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/v1/submissions", map[string]string{"name": "Budi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, h.subs.calls.Load())
}

func TestCORS(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodOptions, "/api/v1/submissions", nil, func(r *http.Request) {
		r.Header.Set("Origin", "https://almondsense.id")
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://almondsense.id", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = h.do(t, http.MethodGet, "/health", nil, func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example")
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(io.EOF))
}
