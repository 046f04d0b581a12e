package auth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// ProviderGitHub is the only identity provider mounted under /auth/{provider}.
const ProviderGitHub = "github"

// Identity is what a completed GitHub login yields.
type Identity struct {
	ID          string // GitHub's numeric user ID, as a string
	Login       string // GitHub username, the record key
	Name        string // display name, may be empty
	AvatarURL   string
	AccessToken string // used later to raise the API rate limit for this user's scans
}

// ProviderConfig configures GitHubProvider. Endpoint and APIBaseURL are only
// overridden for GitHub Enterprise or tests.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Endpoint     *oauth2.Endpoint
	APIBaseURL   string
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. Redirect the user to GitHub's authorization endpoint with ClientID and scopes.
//  2. The user approves (or denies) on GitHub.
//  3. GitHub redirects back to CallbackURL with a short-lived "code".
//  4. The server exchanges the code for an access token (server-to-server).
//  5. The server calls the GitHub API with the token to learn who the user is.
type GitHubProvider struct {
	config     *oauth2.Config
	apiBaseURL *url.URL
}

// NewGitHubProvider creates a GitHubProvider.
//
// Scopes: "read:user" only. The stored token is used for public repository
// and commit listing, which needs nothing more.
func NewGitHubProvider(cfg ProviderConfig) (*GitHubProvider, error) {
	endpoint := github.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"read:user"},
			Endpoint:     endpoint,
		},
	}

	if cfg.APIBaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.APIBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("auth: parsing API base URL: %w", err)
		}
		p.apiBaseURL = base
	}
	return p, nil
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// STATE PARAMETER:
// state is a random value also stored in a short-lived cookie. The callback
// only proceeds when GitHub hands the same value back, which stops an
// attacker from completing a login flow inside someone else's browser.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a token and fetches the
// authenticated user's profile with it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client adds "Authorization: Bearer <token>" to every request.
	client := gh.NewClient(p.config.Client(ctx, token))
	if p.apiBaseURL != nil {
		client.BaseURL = p.apiBaseURL
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("auth: fetching GitHub user: %w", err)
	}

	if user.GetID() == 0 || user.GetLogin() == "" {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (id=%d, login=%q)", user.GetID(), user.GetLogin())
	}

	return &Identity{
		ID:          strconv.FormatInt(user.GetID(), 10),
		Login:       user.GetLogin(),
		Name:        user.GetName(),
		AvatarURL:   user.GetAvatarURL(),
		AccessToken: token.AccessToken,
	}, nil
}
