// Package server exposes the lead desk over HTTP. Routes are served by the
// goa muxer; the admin review API sits behind the operator session gate.
package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goahttp "goa.design/goa/v3/http"
	"goa.design/goa/v3/http/middleware"

	"almondsense/internal/config"
	"almondsense/internal/metrics"
	"almondsense/internal/services"
	"almondsense/internal/session"
)

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Health      *services.HealthService
	Submissions *services.SubmissionService
	Customers   *services.CustomerService
	Admin       *services.AdminService
	Sessions    *session.Manager
}

// Server routes requests to the services.
type Server struct {
	cfg  *config.Config
	deps Deps
	mux  goahttp.Muxer
}

// New mounts every route and returns the server.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps, mux: goahttp.NewMuxer()}
	s.mount()
	return s
}

func (s *Server) mount() {
	m := s.mux
	m.Handle(http.MethodGet, "/health", s.health)

	m.Handle(http.MethodGet, "/api/v1/services", s.listServices)
	m.Handle(http.MethodPost, "/api/v1/submissions", s.submit)

	m.Handle(http.MethodPost, "/api/v1/customer/signup", s.customerSignUp)
	m.Handle(http.MethodPost, "/api/v1/customer/signin", s.customerSignIn)
	m.Handle(http.MethodPost, "/api/v1/customer/signout", s.customerSignOut)
	m.Handle(http.MethodGet, "/api/v1/customer/dashboard", s.customerDashboard)

	m.Handle(http.MethodGet, s.loginPath(), s.adminLoginRequired)
	m.Handle(http.MethodPost, s.loginPath(), s.adminLogin)
	m.Handle(http.MethodPost, "/admin/logout", s.adminLogout)

	gated := s.gated
	m.Handle(http.MethodGet, "/admin/api/notifications", gated(s.notifications))
	m.Handle(http.MethodGet, "/admin/api/profiles/by-email", gated(s.profilesByEmail))
	m.Handle(http.MethodGet, "/admin/api/{kind}", gated(s.view))
	m.Handle(http.MethodPost, "/admin/api/{kind}/reload", gated(s.reload))
	m.Handle(http.MethodPatch, "/admin/api/{kind}/draft", gated(s.editDraft))
	m.Handle(http.MethodPost, "/admin/api/{kind}/draft/commit", gated(s.commitEdit))
	m.Handle(http.MethodDelete, "/admin/api/{kind}/draft", gated(s.cancelEdit))
	m.Handle(http.MethodPost, "/admin/api/{kind}/{id}/edit", gated(s.beginEdit))
	m.Handle(http.MethodPut, "/admin/api/{kind}/{id}/status", gated(s.changeStatus))
	m.Handle(http.MethodDelete, "/admin/api/{kind}/{id}", gated(s.deleteRecord))
}

func (s *Server) loginPath() string {
	if s.cfg.Admin.LoginPath == "" {
		return "/admin/login"
	}
	return s.cfg.Admin.LoginPath
}

// gated runs h only for requests carrying a live operator session.
func (s *Server) gated(h http.HandlerFunc) http.HandlerFunc {
	return s.deps.Sessions.Gate(s.loginPath())(h).ServeHTTP
}

// Handler returns the root handler with the middleware chain:
// security headers, CORS, request id, log context, logging, metrics.
func (s *Server) Handler(logCtx context.Context) http.Handler {
	metricsHandler := promhttp.Handler()
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			metricsHandler.ServeHTTP(w, r)
			return
		}
		s.mux.ServeHTTP(w, r)
	})

	var h http.Handler = metrics.PrometheusMiddleware(root)
	h = requestLogging(h)
	h = withLogContext(logCtx)(h)
	h = middleware.PopulateRequestContext()(h)
	h = middleware.RequestID()(h)
	h = cors(&s.cfg.CORS, s.cfg.App.Debug)(h)
	return securityHeaders(s.cfg)(h)
}

func (s *Server) vars(r *http.Request) map[string]string {
	return s.mux.Vars(r)
}
