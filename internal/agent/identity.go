package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/rcourtman/octopilot/internal/defaults"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/github"
	"github.com/rcourtman/octopilot/internal/octopus"
)

// UserLookup identifies the GitHub user behind a token.
type UserLookup interface {
	User(ctx context.Context, token string) (github.User, error)
}

// DetailsLoader reads the platform credentials a GitHub user registered.
type DetailsLoader interface {
	UserDetails(ctx context.Context, user string) (defaults.UserDetails, error)
}

// Identity resolves who is asking and which platform credentials to use. Lookups are
// made on first use and remembered for the rest of the request.
type Identity struct {
	githubToken string
	apiKey      string
	server      string

	users   UserLookup
	details DetailsLoader

	mu        sync.Mutex
	login     string
	loginErr  error
	loginDone bool
	creds     octopus.Credentials
	credsErr  error
	credsDone bool
}

// IdentityHeaders are the request values an Identity is built from.
type IdentityHeaders struct {
	GitHubToken string // X-GitHub-Token
	APIKey      string // X-Octopus-ApiKey
	Server      string // X-Octopus-Server
}

// NewIdentity creates the identity of one request.
func NewIdentity(headers IdentityHeaders, users UserLookup, details DetailsLoader) *Identity {
	return &Identity{
		githubToken: strings.TrimSpace(headers.GitHubToken),
		apiKey:      strings.TrimSpace(headers.APIKey),
		server:      strings.TrimSpace(headers.Server),
		users:       users,
		details:     details,
	}
}

// GitHubToken returns the caller's GitHub token, which may be empty.
func (i *Identity) GitHubToken() string {
	if i == nil {
		return ""
	}
	return i.githubToken
}

// HasGitHubToken reports whether the caller sent a GitHub token.
func (i *Identity) HasGitHubToken() bool {
	return i.GitHubToken() != ""
}

// Login returns the caller's GitHub login.
func (i *Identity) Login(ctx context.Context) (string, error) {
	const op = "identify_user"
	if i == nil {
		return "", internalerrors.NewUserNotLoggedIn(op)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loginDone {
		return i.login, i.loginErr
	}
	i.loginDone = true

	if i.githubToken == "" || i.users == nil {
		i.loginErr = internalerrors.NewUserNotLoggedIn(op)
		return "", i.loginErr
	}
	user, err := i.users.User(ctx, i.githubToken)
	if err != nil {
		i.loginErr = err
		return "", err
	}
	i.login = user.Login
	return i.login, nil
}

// Credentials returns the platform credentials for this request. Explicit headers win;
// otherwise the details stored for the GitHub user are used.
func (i *Identity) Credentials(ctx context.Context) (octopus.Credentials, error) {
	const op = "load_credentials"
	if i == nil {
		return octopus.Credentials{}, internalerrors.NewUserNotLoggedIn(op)
	}
	if i.apiKey != "" && i.server != "" {
		return octopus.Credentials{URL: i.server, APIKey: i.apiKey}, nil
	}

	login, err := i.Login(ctx)
	if err != nil {
		return octopus.Credentials{}, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.credsDone {
		return i.creds, i.credsErr
	}
	i.credsDone = true

	if i.details == nil {
		i.credsErr = internalerrors.NewUserNotConfigured(op)
		return octopus.Credentials{}, i.credsErr
	}
	details, err := i.details.UserDetails(ctx, login)
	if err != nil {
		i.credsErr = err
		return octopus.Credentials{}, err
	}
	if details.Server == "" || details.APIKey == "" {
		i.credsErr = internalerrors.NewUserNotConfigured(op)
		return octopus.Credentials{}, i.credsErr
	}
	i.creds = octopus.Credentials{URL: details.Server, APIKey: details.APIKey}
	return i.creds, nil
}

// defaultsUser returns the login defaults are stored under, or "" when the caller
// authenticated with platform headers only.
func (i *Identity) defaultsUser(ctx context.Context) (string, error) {
	if !i.HasGitHubToken() {
		return "", nil
	}
	return i.Login(ctx)
}
