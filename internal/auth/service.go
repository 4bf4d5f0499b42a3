package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/JonMunkholm/csvvault/internal/logging"
)

// Session is a freshly issued login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      core.User
}

// Service ties the identity provider, user store, session tokens and
// revocation list together.
type Service struct {
	provider IdentityProvider
	users    core.UserRepository
	sessions *SessionManager
	revoker  Revoker
	isAdmin  func(email string) bool
}

// NewService wires the login flow. isAdmin decides which emails are created
// as admins; nil grants admin to nobody.
func NewService(provider IdentityProvider, users core.UserRepository, sessions *SessionManager, revoker Revoker, isAdmin func(string) bool) *Service {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Service{
		provider: provider,
		users:    users,
		sessions: sessions,
		revoker:  revoker,
		isAdmin:  isAdmin,
	}
}

// NewState returns a random OAuth state value.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// StatesMatch compares the state echoed by the provider with the one stored
// in the browser, in constant time.
func StatesMatch(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// LoginURL returns where to send the browser to start a login.
func (s *Service) LoginURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// CompleteLogin resolves code to a user, creating it on first login, and
// issues a session for it.
func (s *Service) CompleteLogin(ctx context.Context, code string) (Session, error) {
	if code == "" {
		return Session{}, errors.New("missing authorization code")
	}

	identity, err := s.provider.Identify(ctx, code)
	if err != nil {
		return Session{}, err
	}

	user, err := s.users.UpsertFromIdentity(ctx, identity, s.isAdmin(identity.Email))
	if err != nil {
		return Session{}, err
	}

	token, expiresAt, err := s.sessions.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}

	logging.FromContext(ctx).Info("user signed in",
		"user_id", user.ID,
		"provider", identity.Provider,
		"admin", user.Admin,
	)
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a session token to its user. Every failure wraps
// core.ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, token string) (core.User, error) {
	claims, err := s.sessions.Parse(token)
	if err != nil {
		return core.User{}, fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return core.User{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return core.User{}, fmt.Errorf("%w: session revoked", core.ErrUnauthenticated)
	}

	userID, err := claims.UserID()
	if err != nil {
		return core.User{}, fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, fmt.Errorf("%w: user no longer exists", core.ErrUnauthenticated)
		}
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Logout revokes token for the rest of its lifetime. Invalid tokens are
// ignored since they cannot authenticate anyway.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.sessions.Parse(token)
	if err != nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
