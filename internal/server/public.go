package server

import (
	"net/http"
	"strings"

	"almondsense/internal/identity"
	"almondsense/internal/services"
	apperrors "almondsense/pkg/errors"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Health.Check(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, res)
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string][]string{
		"services": s.deps.Submissions.Services(r.Context()),
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var p services.SubmitPayload
	if err := decode(r, &p); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.deps.Submissions.Submit(r.Context(), &p)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, res)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) customerSignUp(w http.ResponseWriter, r *http.Request) {
	var in identity.SignUpInput
	if err := decode(r, &in); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.deps.Customers.SignUp(r.Context(), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, res)
}

func (s *Server) customerSignIn(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decode(r, &c); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.deps.Customers.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, res)
}

func (s *Server) customerSignOut(w http.ResponseWriter, r *http.Request) {
	token, err := bearer(r)
	if err == nil {
		err = s.deps.Customers.SignOut(r.Context(), token)
	}
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) customerDashboard(w http.ResponseWriter, r *http.Request) {
	token, err := bearer(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.deps.Customers.Dashboard(r.Context(), token)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, res)
}

func bearer(r *http.Request) (string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", apperrors.New(apperrors.ErrCodeUnauthorized, "Authorization header required")
	}
	return strings.TrimSpace(token), nil
}
