package server

import (
	"net"
	"net/http"
	"strconv"

	"almondsense/internal/domain"
	"almondsense/internal/services"
	"almondsense/internal/session"
	apperrors "almondsense/pkg/errors"
)

type adminCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// remoteKey keys the login rate limiter on the client address.
func remoteKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) adminLoginRequired(w http.ResponseWriter, r *http.Request) {
	writeError(r.Context(), w, apperrors.New(apperrors.ErrCodeUnauthorized, "login required"))
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request) {
	var c adminCredentials
	if err := decode(r, &c); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.deps.Admin.Login(r.Context(), remoteKey(r), c.Username, c.Password)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrCodeRateLimited {
			w.Header().Set("Retry-After", "60")
		}
		writeError(r.Context(), w, err)
		return
	}
	session.SetCookie(w, r, res.Token, res.ExpiresAt)
	writeJSON(r.Context(), w, http.StatusOK, res)
}

func (s *Server) adminLogout(w http.ResponseWriter, r *http.Request) {
	if token := session.TokenFromRequest(r); token != "" {
		if err := s.deps.Admin.Logout(r.Context(), token); err != nil {
			writeError(r.Context(), w, err)
			return
		}
	}
	session.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	var query *string
	if q := r.URL.Query(); q.Has("q") {
		v := q.Get("q")
		query = &v
	}
	res, err := s.deps.Admin.View(r.Context(), s.vars(r)["kind"], query)
	s.respond(w, r, http.StatusOK, res, err)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Admin.Reload(r.Context(), s.vars(r)["kind"])
	s.respond(w, r, http.StatusOK, res, err)
}

func (s *Server) beginEdit(w http.ResponseWriter, r *http.Request) {
	vars := s.vars(r)
	res, err := s.deps.Admin.BeginEdit(r.Context(), vars["kind"], vars["id"])
	s.respond(w, r, http.StatusOK, res, err)
}

func (s *Server) editDraft(w http.ResponseWriter, r *http.Request) {
	var fields domain.Fields
	if err := decode(r, &fields); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.deps.Admin.EditDraft(r.Context(), s.vars(r)["kind"], fields)
	s.respond(w, r, http.StatusOK, res, err)
}

func (s *Server) commitEdit(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Admin.CommitEdit(r.Context(), s.vars(r)["kind"])
	s.respond(w, r, http.StatusOK, res, err)
}

func (s *Server) cancelEdit(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Admin.CancelEdit(r.Context(), s.vars(r)["kind"])
	s.respond(w, r, http.StatusNoContent, nil, err)
}

type statusChange struct {
	Status string `json:"status"`
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	vars := s.vars(r)
	switch vars["kind"] {
	case services.KindSubmissions:
	case services.KindProfiles:
		writeError(r.Context(), w, apperrors.New(apperrors.ErrCodeBadRequest, "profiles have no status"))
		return
	default:
		writeError(r.Context(), w, apperrors.New(apperrors.ErrCodeNotFound, "unknown record kind "+vars["kind"]))
		return
	}
	var body statusChange
	if err := decode(r, &body); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.deps.Admin.ChangeStatus(r.Context(), vars["id"], body.Status)
	s.respond(w, r, http.StatusOK, res, err)
}

// deleteRecord needs ?confirm=true; without it nothing is deleted and the
// response is 204 as well.
func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	vars := s.vars(r)
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	err := s.deps.Admin.Delete(r.Context(), vars["kind"], vars["id"], confirmed)
	s.respond(w, r, http.StatusNoContent, nil, err)
}

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Admin.Notifications(r.Context())
	s.respond(w, r, http.StatusOK, res, err)
}

func (s *Server) profilesByEmail(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Admin.ProfilesByEmail(r.Context(), r.URL.Query().Get("email"))
	s.respond(w, r, http.StatusOK, res, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(r.Context(), w, status, v)
}
