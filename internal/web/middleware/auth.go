package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvvault/internal/auth"
	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/JonMunkholm/csvvault/internal/logging"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/auth/google_oauth2"

// SessionAuthenticator resolves a session token to a user.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (core.User, error)
}

// RequireAuth rejects requests without a valid session cookie. JSON clients
// get 401; browsers are redirected to the login flow. Accepted requests carry
// the principal, retrievable with auth.Principal.
func RequireAuth(authn SessionAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := auth.SessionToken(r)
			if token == "" {
				unauthenticated(w, r, core.ErrUnauthenticated)
				return
			}

			user, err := authn.Authenticate(ctx, token)
			if err != nil {
				if !errors.Is(err, core.ErrUnauthenticated) {
					logging.FromContext(ctx).Error("auth: session lookup failed",
						"path", r.URL.Path,
						"error", err,
					)
					writeJSONError(w, http.StatusInternalServerError, err)
					return
				}
				logging.FromContext(ctx).Debug("auth: rejected session",
					"path", r.URL.Path,
					"error", err,
				)
				unauthenticated(w, r, err)
				return
			}

			setRequestUser(ctx, user.ID.String())
			ctx = logging.WithUserID(ctx, user.ID.String())
			ctx = auth.WithPrincipal(ctx, user.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin allows only admin principals. It must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.Principal(r)
		if !ok {
			unauthenticated(w, r, core.ErrUnauthenticated)
			return
		}
		if !p.IsAdmin {
			logging.FromContext(r.Context()).Warn("auth: admin route denied", "path", r.URL.Path)
			writeJSONError(w, http.StatusForbidden, core.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthenticated(w http.ResponseWriter, r *http.Request, err error) {
	if WantsJSON(r) {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	msg := core.MapError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   msg.Message,
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	})
}

// WantsJSON reports whether the client prefers a JSON response over a
// browser-oriented one.
func WantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
