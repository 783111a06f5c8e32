// Package octopus is a small REST client for the Octopus Deploy API.
//
// Collection endpoints are exposed as lazy sequences: no request is sent until the
// caller ranges over the sequence, and pages are fetched only as far as the caller reads.
package octopus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/metrics"
)

const (
	// GuestAPIKey is the fixed key of the public guest account. It is passed through
	// without creating a limited key.
	GuestAPIKey = "API-GUEST"

	defaultPageSize = 30
	maxErrorBody    = 512
)

// Credentials identify an Octopus instance and the key used to call it.
type Credentials struct {
	URL    string
	APIKey string
}

// IsGuest reports whether the credentials use the guest key.
func (c Credentials) IsGuest() bool {
	return c.APIKey == GuestAPIKey
}

// Client talks to a single Octopus instance.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	pageSize   int
}

// NewClient creates a client for the given instance.
func NewClient(creds Credentials, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(creds.URL) == "" {
		return nil, fmt.Errorf("octopus URL is required")
	}
	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, fmt.Errorf("octopus API key is required")
	}
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(creds.URL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse octopus URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("octopus URL must be http or https, got %q", creds.URL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    base,
		apiKey:     creds.APIKey,
		httpClient: httpClient,
		pageSize:   defaultPageSize,
	}, nil
}

// SetPageSize changes the number of items requested per page.
func (c *Client) SetPageSize(size int) {
	if size > 0 {
		c.pageSize = size
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("X-Octopus-ApiKey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveUpstream(internalerrors.ServiceOctopus, op, started)
	if err != nil {
		return internalerrors.WrapUpstream(internalerrors.ServiceOctopus, op, err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return internalerrors.WrapStatus(internalerrors.ServiceOctopus, op, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return internalerrors.WrapUpstream(internalerrors.ServiceOctopus, op, fmt.Errorf("decode response: %w", err), resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, op, http.MethodGet, path, query, nil, out)
}

type collection[T any] struct {
	Items        []T `json:"Items"`
	TotalResults int `json:"TotalResults"`
}

// paginate walks a collection endpoint with skip/take, one page per pull.
func paginate[T any](ctx context.Context, c *Client, op, path string, query url.Values) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		skip := 0
		for {
			q := url.Values{}
			for k, v := range query {
				q[k] = v
			}
			q.Set("skip", strconv.Itoa(skip))
			q.Set("take", strconv.Itoa(c.pageSize))

			var page collection[T]
			if err := c.get(ctx, op, path, q, &page); err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			skip += len(page.Items)
			if len(page.Items) < c.pageSize || (page.TotalResults > 0 && skip >= page.TotalResults) {
				return
			}
		}
	}
}

// collect drains a sequence into a slice, stopping at the first error.
func collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
