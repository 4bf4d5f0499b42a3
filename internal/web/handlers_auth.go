package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/csvvault/internal/auth"
	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/JonMunkholm/csvvault/internal/logging"
)

// handleLogin starts the Google login flow.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := auth.NewState()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	http.SetCookie(w, auth.StateCookie(state, s.cfg.Security.SecureCookies))
	http.Redirect(w, r, s.authn.LoginURL(state), http.StatusFound)
}

// handleCallback finishes the login flow and sets the session cookie.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	secure := s.cfg.Security.SecureCookies
	http.SetCookie(w, auth.ExpiredCookie(auth.StateCookieName, "/auth", secure))

	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		s.respondError(w, r, fmt.Errorf("%w: provider returned %q", core.ErrUnauthenticated, providerErr))
		return
	}

	var stored string
	if c, err := r.Cookie(auth.StateCookieName); err == nil {
		stored = c.Value
	}
	if !auth.StatesMatch(q.Get("state"), stored) {
		s.respondError(w, r, fmt.Errorf("%w: oauth state mismatch", core.ErrUnauthenticated))
		return
	}

	code := q.Get("code")
	if code == "" {
		s.respondError(w, r, fmt.Errorf("%w: missing authorization code", core.ErrUnauthenticated))
		return
	}

	session, err := s.authn.CompleteLogin(r.Context(), code)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(logging.WithUserID(r.Context(), session.User.ID.String())).Info("user signed in",
		"email", session.User.Email,
		"admin", session.User.Admin,
	)

	http.SetCookie(w, auth.SessionCookie(session.Token, session.ExpiresAt, secure))
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout revokes the session and clears its cookie. A revocation
// failure is logged; the cookie is cleared regardless.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.SessionToken(r); token != "" {
		if err := s.authn.Logout(r.Context(), token); err != nil {
			logging.FromContext(r.Context()).Warn("session revocation failed", "error", err)
		}
	}

	http.SetCookie(w, auth.ExpiredCookie(auth.SessionCookieName, "/", s.cfg.Security.SecureCookies))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
