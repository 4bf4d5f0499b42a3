package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/csvvault/internal/core"
)

// Cookie names.
const (
	SessionCookieName = "session"
	StateCookieName   = "oauth_state"
)

// stateTTL bounds how long a login may sit on the consent page.
const stateTTL = 10 * time.Minute

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p core.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (core.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(core.Principal)
	return p, ok
}

// Principal returns the authenticated principal of r, if any.
func Principal(r *http.Request) (core.Principal, bool) {
	return PrincipalFromContext(r.Context())
}

// SessionCookie builds the cookie carrying a session token.
func SessionCookie(token string, expiresAt time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// StateCookie builds the short-lived cookie carrying the OAuth state.
func StateCookie(state string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds a cookie that deletes name from the browser.
func ExpiredCookie(name, path string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionToken returns the session token sent with r, or "".
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
