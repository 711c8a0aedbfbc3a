package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// ProviderUser is the normalized profile we extract from an OAuth provider.
// Both GitHub and Google are reduced to this shape so the rest of the app
// (auth service, user upsert) never cares which provider was used.
//
// Email is the upsert key: an account is provisioned on first sign-in for an
// email the user directory hasn't seen. Providers can return an empty email
// (GitHub users may hide theirs) — the auth service rejects those sign-ins
// because an account without an email can't be keyed or signed in again.
type ProviderUser struct {
	Email     string
	Name      string
	AvatarURL string
}

// Provider wraps golang.org/x/oauth2 for one OAuth identity provider using
// the Authorization Code flow:
//
//  1. We redirect the browser to the provider's authorization page.
//  2. The provider redirects back to our callback with a short-lived code.
//  3. We exchange the code for an access token (server-to-server, using the
//     client secret — the token never touches the browser).
//  4. We call the provider's user-info API and normalize the response.
type Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
	decode      func([]byte) (*ProviderUser, error)
}

// Name returns the provider's route name ("github" or "google").
func (p *Provider) Name() string { return p.name }

// githubUser is the slice of GitHub's /user response we care about.
type githubUser struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// googleUser is the slice of Google's userinfo response we care about.
type googleUser struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewGitHubProvider creates a Provider for GitHub OAuth.
// Register the app at https://github.com/settings/developers; callbackURL
// must match the configured authorization callback URL exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		name: "github",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userInfoURL: "https://api.github.com/user",
		decode: func(body []byte) (*ProviderUser, error) {
			var gh githubUser
			if err := json.Unmarshal(body, &gh); err != nil {
				return nil, err
			}
			name := gh.Name
			if name == "" {
				name = gh.Login // GitHub's display name is optional
			}
			return &ProviderUser{Email: gh.Email, Name: name, AvatarURL: gh.AvatarURL}, nil
		},
	}
}

// NewGoogleProvider creates a Provider for Google OAuth.
// Credentials come from a Google Cloud OAuth 2.0 client ID.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		name: "google",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		decode: func(body []byte) (*ProviderUser, error) {
			var g googleUser
			if err := json.Unmarshal(body, &g); err != nil {
				return nil, err
			}
			return &ProviderUser{Email: g.Email, Name: g.Name, AvatarURL: g.Picture}, nil
		},
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// The state parameter is a random string we also store in a short-lived
// cookie; the callback handler verifies the two match before exchanging the
// code. Without it, an attacker could complete an OAuth flow in the victim's
// browser for an account the attacker controls (login CSRF).
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a normalized provider profile:
// code → access token → user-info API call → ProviderUser.
func (p *Provider) Exchange(ctx context.Context, code string) (*ProviderUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s OAuth code: %w", p.name, err)
	}

	// config.Client returns an *http.Client that attaches the bearer token
	// to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling %s user API: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: %s user API returned status %d", p.name, resp.StatusCode)
	}

	var body []byte
	if body, err = readAllLimited(resp.Body, 1<<20); err != nil {
		return nil, fmt.Errorf("auth: reading %s user response: %w", p.name, err)
	}

	user, err := p.decode(body)
	if err != nil {
		return nil, fmt.Errorf("auth: decoding %s user response: %w", p.name, err)
	}

	return user, nil
}

// readAllLimited reads at most n bytes — provider responses are small, and a
// misbehaving endpoint shouldn't be able to make us buffer arbitrarily much.
func readAllLimited(r io.Reader, n int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, n))
}
