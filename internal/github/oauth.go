package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/metrics"
)

// OAuthConfig configures the GitHub OAuth app.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint // zero value uses github.com
}

// OAuth exchanges authorization codes for user tokens.
type OAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuth creates the OAuth helper. httpClient may be nil.
func NewOAuth(cfg OAuthConfig, httpClient *http.Client) *OAuth {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = githuboauth.Endpoint
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"user"},
		},
		httpClient: httpClient,
	}
}

// LoginURL is the link users follow to authorize the app.
func (o *OAuth) LoginURL() string {
	query := url.Values{
		"client_id":    {o.config.ClientID},
		"redirect_url": {o.config.RedirectURL},
		"scope":        {"user"},
		"allow_signup": {"false"},
	}
	return o.config.Endpoint.AuthURL + "?" + query.Encode()
}

// Exchange trades an authorization code for an access token.
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	const op = "oauth_exchange"
	if code == "" {
		return "", internalerrors.NewInvalidArgument(op, "The OAuth callback did not include a code.")
	}
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}

	started := time.Now()
	token, err := o.config.Exchange(ctx, code)
	metrics.ObserveUpstream(internalerrors.ServiceGitHub, op, started)
	if err != nil {
		return "", internalerrors.WrapUpstream(internalerrors.ServiceGitHub, op, fmt.Errorf("exchange code: %w", err), 0)
	}
	if token.AccessToken == "" {
		return "", internalerrors.WrapUpstream(internalerrors.ServiceGitHub, op, fmt.Errorf("token response had no access token"), 0)
	}
	return token.AccessToken, nil
}
