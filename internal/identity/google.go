package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// OAuthIdentity is what the provider vouches for after a code exchange.
type OAuthIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	FullName      string
}

type GoogleProvider struct {
	config      oauth2.Config
	userInfoURL string
}

type GoogleOption func(*GoogleProvider)

// WithGoogleEndpoints points the provider at different token and userinfo
// endpoints.
func WithGoogleEndpoints(authURL, tokenURL, userInfoURL string) GoogleOption {
	return func(g *GoogleProvider) {
		g.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}
		g.userInfoURL = userInfoURL
	}
}

func NewGoogleProvider(clientID, clientSecret string, opts ...GoogleOption) *GoogleProvider {
	g := &GoogleProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: googleAuthURL, TokenURL: googleTokenURL, AuthStyle: oauth2.AuthStyleInParams},
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AuthCodeURL returns the consent page URL. verifier is the PKCE secret the
// caller must keep until the callback.
func (g *GoogleProvider) AuthCodeURL(redirectURL, state, verifier string) string {
	cfg := g.config
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

func (g *GoogleProvider) Exchange(ctx context.Context, redirectURL, code, verifier string) (*OAuthIdentity, error) {
	cfg := g.config
	cfg.RedirectURL = redirectURL

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging google code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}
	resp, err := cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching google profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("google userinfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var profile struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding google profile: %w", err)
	}

	return &OAuthIdentity{
		Subject:       profile.Sub,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		FullName:      profile.Name,
	}, nil
}

// NewPKCEVerifier returns a fresh PKCE code verifier.
func NewPKCEVerifier() string {
	return oauth2.GenerateVerifier()
}
