// Package octolint runs checks from the octolint recommendation service against a
// space.
package octolint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/metrics"
	"github.com/rcourtman/octopilot/internal/octopus"
)

const maxReportBytes = 1 << 20

type checkRequest struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
	Space  string `json:"space"`
	Check  string `json:"check"`
}

// Client posts check requests to the octolint service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for the service at endpoint.
func NewClient(endpoint string, httpClient *http.Client) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("octolint URL is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}, nil
}

// Check runs check against the space and returns the plain text report.
func (c *Client) Check(ctx context.Context, creds octopus.Credentials, spaceID, check string) (string, error) {
	const op = "octolint_check"
	defer metrics.ObserveUpstream(internalerrors.ServiceOctolint, op, time.Now())

	body, err := json.Marshal(checkRequest{URL: creds.URL, APIKey: creds.APIKey, Space: spaceID, Check: check})
	if err != nil {
		return "", internalerrors.New(internalerrors.KindInternal, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", internalerrors.New(internalerrors.KindInternal, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", internalerrors.WrapUpstream(internalerrors.ServiceOctolint, op, err, 0)
	}
	defer resp.Body.Close()

	report, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes))
	if err != nil {
		return "", internalerrors.WrapUpstream(internalerrors.ServiceOctolint, op, err, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", internalerrors.WrapUpstream(internalerrors.ServiceOctolint, op,
			fmt.Errorf("octolint returned %s: %s", resp.Status, strings.TrimSpace(string(report))), resp.StatusCode)
	}
	return strings.TrimSpace(string(report)), nil
}
