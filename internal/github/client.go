// Package github identifies users by their GitHub token and searches the public
// documentation repository for how-to answers.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/logging"
	"github.com/rcourtman/octopilot/internal/metrics"
)

const (
	defaultAPIURL = "https://api.github.com"
	maxErrorBody  = 512
	maxFileBytes  = 1 << 20
)

// User is the authenticated GitHub account.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// CodeResult is one hit from the code search API.
type CodeResult struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	HTMLURL string `json:"html_url"`
}

// Document is a documentation page found for a query.
type Document struct {
	Path    string
	URL     string
	Content string
}

// Client calls the GitHub REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a GitHub client. An empty baseURL uses api.github.com.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) do(ctx context.Context, op, token, path string, query url.Values, accept string) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveUpstream(internalerrors.ServiceGitHub, op, started)
	if err != nil {
		return nil, internalerrors.WrapUpstream(internalerrors.ServiceGitHub, op, err, 0)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, internalerrors.WrapUpstream(internalerrors.ServiceGitHub, op,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, op, token, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, op, token, path, query, "application/vnd.github+json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return internalerrors.WrapUpstream(internalerrors.ServiceGitHub, op, fmt.Errorf("decode response: %w", err), resp.StatusCode)
	}
	return nil
}

// User returns the account that owns token. A missing or rejected token means the
// caller is not logged in.
func (c *Client) User(ctx context.Context, token string) (User, error) {
	const op = "get_github_user"
	if strings.TrimSpace(token) == "" {
		return User{}, internalerrors.NewUserNotLoggedIn(op)
	}

	var user User
	if err := c.getJSON(ctx, op, token, "/user", nil, &user); err != nil {
		var copilotErr *internalerrors.CopilotError
		if errors.As(err, &copilotErr) && copilotErr.StatusCode == http.StatusUnauthorized {
			return User{}, internalerrors.NewUserNotLoggedIn(op)
		}
		return User{}, err
	}
	if user.Login == "" {
		return User{}, internalerrors.NewUserNotLoggedIn(op)
	}
	return user, nil
}

// SearchCode searches a repository for files containing every keyword. An empty token
// searches anonymously.
func (c *Client) SearchCode(ctx context.Context, token, repo, extension string, keywords []string) ([]CodeResult, error) {
	terms := make([]string, 0, len(keywords)+2)
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			terms = append(terms, k)
		}
	}
	terms = append(terms, "repo:"+repo)
	if extension != "" {
		terms = append(terms, "extension:"+extension)
	}

	var result struct {
		Items []CodeResult `json:"items"`
	}
	query := url.Values{"q": {strings.Join(terms, " ")}}
	if err := c.getJSON(ctx, "search_code", token, "/search/code", query, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// FileContent returns the raw content of a file in a repository.
func (c *Client) FileContent(ctx context.Context, token, repo, path string) (string, error) {
	resp, err := c.do(ctx, "get_file_content", token, "/repos/"+repo+"/contents/"+strings.TrimLeft(path, "/"), nil, "application/vnd.github.raw+json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return "", internalerrors.WrapUpstream(internalerrors.ServiceGitHub, "get_file_content", err, resp.StatusCode)
	}
	return string(body), nil
}

// SearchDocs finds up to limit documentation pages matching the keywords and returns
// their content. When the authenticated search fails it is repeated anonymously, since
// the documentation repository is public.
func (c *Client) SearchDocs(ctx context.Context, token, repo string, keywords []string, limit int) ([]Document, error) {
	logger := logging.FromContext(ctx)

	results, err := c.SearchCode(ctx, token, repo, "md", keywords)
	if err != nil && token != "" {
		logger.Warn().Err(err).Msg("Authenticated documentation search failed, retrying anonymously")
		token = ""
		results, err = c.SearchCode(ctx, token, repo, "md", keywords)
	}
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	docs := make([]Document, 0, len(results))
	for _, result := range results {
		content, err := c.FileContent(ctx, token, repo, result.Path)
		if err != nil {
			logger.Warn().Err(err).Str("path", result.Path).Msg("Skipping documentation page")
			continue
		}
		docs = append(docs, Document{Path: result.Path, URL: result.HTMLURL, Content: content})
	}
	return docs, nil
}
