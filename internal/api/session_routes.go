package api

import (
	"errors"
	"net/http"

	"github.com/kjannette/trahn-papertrade/internal/auth"
	"github.com/kjannette/trahn-papertrade/internal/external"
	"github.com/kjannette/trahn-papertrade/internal/models"
	"github.com/kjannette/trahn-papertrade/internal/navigation"
	"github.com/kjannette/trahn-papertrade/internal/notifications"
)

const msgBadCredentials = "invalid email or password"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type sessionJSON struct {
	Authenticated bool            `json:"authenticated"`
	Profile       *models.Profile `json:"profile,omitempty"`
	View          navigation.View `json:"view"`
	Message       string          `json:"message,omitempty"`
}

func (s *Server) sessionState(r *http.Request, msg string) sessionJSON {
	out := sessionJSON{
		Authenticated: s.deps.Sessions.Authenticated(r.Context()),
		View:          s.deps.Navigator.Current(),
		Message:       msg,
	}
	if p, ok := s.deps.Sessions.Profile(); ok && out.Authenticated {
		out.Profile = &p
	}
	return out
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionState(r, ""))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := s.deps.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeLoginFailure(w, r, err)
		return
	}

	msg := auth.WelcomeMessage(*profile)
	s.deps.Inbox.Push(notifications.Success, msg)
	s.deps.Navigator.Navigate(navigation.Dashboard)
	s.warmDashboard(r)
	writeJSON(w, http.StatusOK, s.sessionState(r, msg))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := s.deps.Sessions.RegisterAndLogin(r.Context(), models.Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		s.writeLoginFailure(w, r, err)
		return
	}

	msg := auth.RegistrationMessage(*profile)
	s.deps.Inbox.Push(notifications.Success, msg)
	s.deps.Navigator.Navigate(navigation.Dashboard)
	s.warmDashboard(r)
	writeJSON(w, http.StatusCreated, s.sessionState(r, msg))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Logout(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("logout failed")
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	s.deps.Dashboard.Reset()
	s.deps.Navigator.Navigate(navigation.Login)
	writeJSON(w, http.StatusOK, s.sessionState(r, "logged out"))
}

type navigateRequest struct {
	View string `json:"view"`
}

// handleNavigate switches views. Views other than login require a session.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := navigation.ParseView(req.View)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if view != navigation.Login && !s.deps.Sessions.Authenticated(r.Context()) {
		s.deps.Navigator.Navigate(navigation.Login)
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}
	s.deps.Navigator.Navigate(view)
	writeJSON(w, http.StatusOK, s.sessionState(r, ""))
}

// writeLoginFailure reports rejected credentials with the backend's message
// instead of the expired-session text used elsewhere.
func (s *Server) writeLoginFailure(w http.ResponseWriter, r *http.Request, err error) {
	var he *external.HTTPError
	if errors.As(err, &he) && (he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden) {
		msg := he.Message
		if msg == "" {
			msg = msgBadCredentials
		}
		var step *auth.StepError
		if errors.As(err, &step) {
			msg = step.Step + " failed: " + msg
		}
		s.deps.Inbox.Push(notifications.Error, msg)
		writeError(w, http.StatusUnauthorized, msg)
		return
	}

	status, msg := statusFor(err)
	s.deps.Inbox.Push(notifications.Error, msg)
	if status >= http.StatusInternalServerError {
		s.log.Warn().Str("path", r.URL.Path).Int("status", status).Err(err).Msg("request failed")
	}
	writeError(w, status, msg)
}

// warmDashboard loads the dashboard right after login. Failures are left to
// the dashboard's own error map.
func (s *Server) warmDashboard(r *http.Request) {
	if err := s.deps.Dashboard.Refresh(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("initial dashboard load failed")
	}
}
