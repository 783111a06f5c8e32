package octolint

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/octopus"
)

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient("  ", nil)
	require.Error(t, err)
}

func TestCheckPostsRequest(t *testing.T) {
	var got checkRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("Unused projects:\nWeb\n"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	require.NoError(t, err)

	creds := octopus.Credentials{URL: "https://octopus.example", APIKey: "API-KEY"}
	report, err := client.Check(context.Background(), creds, "Spaces-1", "OctoLintUnusedProjects")
	require.NoError(t, err)

	assert.Equal(t, "Unused projects:\nWeb", report)
	assert.Equal(t, checkRequest{
		URL:    "https://octopus.example",
		APIKey: "API-KEY",
		Space:  "Spaces-1",
		Check:  "OctoLintUnusedProjects",
	}, got)
}

func TestCheckReportsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	require.NoError(t, err)

	_, err = client.Check(context.Background(), octopus.Credentials{URL: "u", APIKey: "k"}, "Spaces-1", "x")
	require.Error(t, err)
	assert.Equal(t, internalerrors.KindUpstreamRequestFailed, internalerrors.KindOf(err))

	var copilotErr *internalerrors.CopilotError
	require.True(t, errors.As(err, &copilotErr))
	assert.Equal(t, internalerrors.ServiceOctolint, copilotErr.Service)
	assert.Equal(t, http.StatusBadGateway, copilotErr.StatusCode)
}
