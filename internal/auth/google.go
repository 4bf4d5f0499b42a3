package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/csvvault/internal/config"
	"github.com/JonMunkholm/csvvault/internal/core"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ProviderGoogle is the provider name stored on users created through Google.
const ProviderGoogle = "google_oauth2"

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// IdentityProvider runs the external half of a login.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (core.Identity, error)
}

// GoogleProvider implements IdentityProvider with Google OAuth 2.0.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

var _ IdentityProvider = (*GoogleProvider)(nil)

// NewGoogleProvider builds the OAuth client from cfg.
func NewGoogleProvider(cfg config.AuthConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthCodeURL returns the consent page URL carrying state.
func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Identify exchanges code for a token and fetches the user's profile.
func (g *GoogleProvider) Identify(ctx context.Context, code string) (core.Identity, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return core.Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return core.Identity{}, err
	}

	resp, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return core.Identity{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.Identity{}, fmt.Errorf("google api returned status %d: %s", resp.StatusCode, body)
	}

	var data struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return core.Identity{}, fmt.Errorf("decode user info: %w", err)
	}
	if data.Email == "" || !data.VerifiedEmail {
		return core.Identity{}, errors.New("google account has no verified email")
	}

	return core.Identity{
		Provider: ProviderGoogle,
		UID:      data.ID,
		Email:    data.Email,
		Name:     data.Name,
	}, nil
}
