package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.Client(), server.URL)
}

func TestUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message": "Bad credentials"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "login": "octocat"})
	}))

	user, err := client.User(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, User{ID: 42, Login: "octocat"}, user)

	_, err = client.User(context.Background(), "bad")
	assert.ErrorIs(t, err, internalerrors.ErrUserNotLoggedIn)

	_, err = client.User(context.Background(), " ")
	assert.ErrorIs(t, err, internalerrors.ErrUserNotLoggedIn)
}

func TestUserUpstreamFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.User(context.Background(), "token")
	require.ErrorIs(t, err, internalerrors.ErrUpstreamRequestFailed)

	var copilotErr *internalerrors.CopilotError
	require.ErrorAs(t, err, &copilotErr)
	assert.Equal(t, internalerrors.ServiceGitHub, copilotErr.Service)
}

func TestSearchDocsRetriesAnonymously(t *testing.T) {
	var authenticatedSearches, anonymousSearches atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/code":
			if r.Header.Get("Authorization") != "" {
				authenticatedSearches.Add(1)
				w.WriteHeader(http.StatusForbidden)
				return
			}
			anonymousSearches.Add(1)
			assert.Equal(t, "runbook tenant repo:OctopusDeploy/docs extension:md", r.URL.Query().Get("q"))
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]string{
				{"name": "runbooks.md", "path": "docs/runbooks.md", "html_url": "https://github.com/OctopusDeploy/docs/blob/main/docs/runbooks.md"},
				{"name": "tenants.md", "path": "docs/tenants.md", "html_url": "https://github.com/OctopusDeploy/docs/blob/main/docs/tenants.md"},
				{"name": "extra.md", "path": "docs/extra.md", "html_url": "https://github.com/OctopusDeploy/docs/blob/main/docs/extra.md"},
			}})
		case "/repos/OctopusDeploy/docs/contents/docs/runbooks.md":
			assert.Empty(t, r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, "# Runbooks")
		case "/repos/OctopusDeploy/docs/contents/docs/tenants.md":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))

	docs, err := client.SearchDocs(context.Background(), "token", "OctopusDeploy/docs", []string{"runbook", " ", "tenant"}, 2)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "docs/runbooks.md", docs[0].Path)
	assert.Equal(t, "# Runbooks", docs[0].Content)
	assert.Equal(t, int32(1), authenticatedSearches.Load())
	assert.Equal(t, int32(1), anonymousSearches.Load())
}

func TestOAuthLoginURL(t *testing.T) {
	o := NewOAuth(OAuthConfig{ClientID: "abc", RedirectURL: "https://copilot.example.com/api/oauth_callback"}, nil)

	parsed, err := url.Parse(o.LoginURL())
	require.NoError(t, err)
	assert.Equal(t, "github.com", parsed.Host)
	assert.Equal(t, "/login/oauth/authorize", parsed.Path)
	assert.Equal(t, "abc", parsed.Query().Get("client_id"))
	assert.Equal(t, "https://copilot.example.com/api/oauth_callback", parsed.Query().Get("redirect_url"))
	assert.Equal(t, "user", parsed.Query().Get("scope"))
	assert.Equal(t, "false", parsed.Query().Get("allow_signup"))
}

func TestOAuthExchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": "bad_verification_code"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token": "gho_123", "token_type": "bearer", "scope": "user"}`)
	}))
	t.Cleanup(server.Close)

	o := NewOAuth(OAuthConfig{
		ClientID:     "abc",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: server.URL + "/authorize", TokenURL: server.URL + "/token"},
	}, server.Client())

	token, err := o.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "gho_123", token)

	_, err = o.Exchange(context.Background(), "bad-code")
	assert.ErrorIs(t, err, internalerrors.ErrUpstreamRequestFailed)

	_, err = o.Exchange(context.Background(), "")
	assert.ErrorIs(t, err, internalerrors.ErrInvalidArgument)
}
