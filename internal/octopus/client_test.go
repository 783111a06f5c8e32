package octopus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Credentials{URL: server.URL, APIKey: "API-TEST"}, server.Client())
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClientValidatesCredentials(t *testing.T) {
	_, err := NewClient(Credentials{APIKey: "API-X"}, nil)
	assert.Error(t, err)

	_, err = NewClient(Credentials{URL: "https://octopus.example.com"}, nil)
	assert.Error(t, err)

	_, err = NewClient(Credentials{URL: "ftp://octopus.example.com", APIKey: "API-X"}, nil)
	assert.Error(t, err)

	client, err := NewClient(Credentials{URL: "https://octopus.example.com/", APIKey: "API-X"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://octopus.example.com/api/spaces", client.endpoint("/api/spaces", nil))
}

func TestSpacesIsLazyAndPaginates(t *testing.T) {
	var calls atomic.Int32
	names := []string{"Default", "Staging", "Production", "Sandbox", "Legacy"}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/spaces", r.URL.Path)
		assert.Equal(t, "API-TEST", r.Header.Get("X-Octopus-ApiKey"))

		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		take, _ := strconv.Atoi(r.URL.Query().Get("take"))
		var items []Space
		for i := skip; i < len(names) && i < skip+take; i++ {
			items = append(items, Space{ID: "Spaces-" + strconv.Itoa(i+1), Name: names[i]})
		}
		writeJSON(t, w, map[string]any{"Items": items, "TotalResults": len(names)})
	}))
	client.SetPageSize(2)

	seq := client.Spaces(context.Background())
	assert.Equal(t, int32(0), calls.Load(), "no request before ranging")

	var got []string
	for space, err := range seq {
		require.NoError(t, err)
		got = append(got, space.Name)
	}
	assert.Equal(t, names, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSequenceStopsFetchingWhenCallerBreaks(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, map[string]any{
			"Items":        []map[string]string{{"Id": "Projects-1", "Name": "A"}, {"Id": "Projects-2", "Name": "B"}},
			"TotalResults": 100,
		})
	}))
	client.SetPageSize(2)

	for project, err := range client.Resources(context.Background(), "Spaces-1", KindProjects) {
		require.NoError(t, err)
		assert.Equal(t, "A", project.Name)
		break
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestResourceKeepsRawPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Spaces-1/machines", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"Items":        []map[string]any{{"Id": "Machines-1", "Name": "web01", "HealthStatus": "Healthy"}},
			"TotalResults": 1,
		})
	}))

	for machine, err := range client.Resources(context.Background(), "Spaces-1", KindMachines) {
		require.NoError(t, err)
		assert.Equal(t, "Machines-1", machine.EntityID())
		assert.Equal(t, "Healthy", machine.Field("HealthStatus"))

		encoded, err := json.Marshal(machine)
		require.NoError(t, err)
		assert.JSONEq(t, `{"Id":"Machines-1","Name":"web01","HealthStatus":"Healthy"}`, string(encoded))
	}
}

func TestSpaceByNameIgnoresCase(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "default", r.URL.Query().Get("partialName"))
		writeJSON(t, w, map[string]any{
			"Items":        []Space{{ID: "Spaces-2", Name: "Default Staging"}, {ID: "Spaces-1", Name: "Default"}},
			"TotalResults": 2,
		})
	}))

	space, err := client.SpaceByName(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "Spaces-1", space.ID)
}

func TestSpaceByNameNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"Items": []Space{}, "TotalResults": 0})
	}))

	_, err := client.SpaceByName(context.Background(), "Missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerrors.ErrSpaceNotFound)
	assert.Contains(t, err.Error(), "Missing")
}

func TestResourceByNameNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"Items": []Resource{}, "TotalResults": 0})
	}))

	_, err := client.ResourceByName(context.Background(), "Spaces-1", KindEnvironments, "Prod")
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerrors.ErrResourceNotFound)

	var copilotErr *internalerrors.CopilotError
	require.ErrorAs(t, err, &copilotErr)
	assert.Equal(t, "environment", copilotErr.ResourceType)
	assert.Equal(t, "Prod", copilotErr.Subject)
}

func TestStatusCodesMapToTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, internalerrors.ErrInvalidCredential},
		{"server error", http.StatusInternalServerError, internalerrors.ErrUpstreamRequestFailed},
		{"forbidden", http.StatusForbidden, internalerrors.ErrUpstreamRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"ErrorMessage":"nope"}`, tt.status)
			}))

			_, err := client.Dashboard(context.Background(), "Spaces-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnreachableServerIsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(Credentials{URL: url, APIKey: "API-TEST"}, nil)
	require.NoError(t, err)

	_, err = client.CurrentUser(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerrors.ErrUpstreamRequestFailed)
}

func TestProjectReleasesRequestsWindow(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Spaces-1/projects/Projects-1/releases", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("take"))
		writeJSON(t, w, map[string]any{
			"Items": []Release{{ID: "Releases-3", Version: "1.0.3"}, {ID: "Releases-2", Version: "1.0.2"}},
		})
	}))

	releases, err := client.ProjectReleases(context.Background(), "Spaces-1", "Projects-1", 2)
	require.NoError(t, err)
	require.Len(t, releases, 2)
	assert.Equal(t, "1.0.3", releases[0].Version)
}

func TestTaskLogFlattensActivityTree(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Spaces-1/tasks/ServerTasks-1/details", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("verbose"))
		writeJSON(t, w, TaskDetails{
			Task: Task{ID: "ServerTasks-1", State: "Failed"},
			ActivityLogs: []ActivityLog{{
				Name: "Deploy Web",
				Children: []ActivityLog{{
					Name:        "Step 1: Run script",
					LogElements: []LogElement{{MessageText: "hello"}, {MessageText: "exit code 1"}},
				}},
			}},
		})
	}))

	text, err := client.TaskLog(context.Background(), "Spaces-1", "ServerTasks-1")
	require.NoError(t, err)
	assert.Equal(t, "Deploy Web\nStep 1: Run script\nhello\nexit code 1\n", text)
}

func TestMemoFetchesChannelOnce(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, Channel{ID: "Channels-1", Name: "Hotfix"})
	}))
	memo := NewMemo(client)

	for range 3 {
		channel, err := memo.Channel(context.Background(), "Spaces-1", "Channels-1")
		require.NoError(t, err)
		assert.Equal(t, "Hotfix", channel.Name)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoDoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, map[string]string{"Id": "Environments-1", "Name": "Production"})
	}))
	memo := NewMemo(client)

	_, err := memo.Environment(context.Background(), "Spaces-1", "Environments-1")
	require.Error(t, err)

	environment, err := memo.Environment(context.Background(), "Spaces-1", "Environments-1")
	require.NoError(t, err)
	assert.Equal(t, "Production", environment.Name)
}

func TestLimitedAPIKey(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/users/me":
			writeJSON(t, w, User{ID: "Users-1", Username: "alice"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/users/Users-1/apikeys":
			var body apiKeyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "copilot", body.Purpose)
			expires, err := time.Parse(time.RFC3339, body.Expires)
			require.NoError(t, err)
			assert.True(t, expires.After(time.Now()))
			writeJSON(t, w, apiKeyResponse{ID: "APIKeys-1", APIKey: "API-LIMITED"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	key, err := client.LimitedAPIKey(context.Background(), "copilot", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "API-LIMITED", key)
}

func TestLimitedAPIKeyPassesGuestThrough(t *testing.T) {
	client, err := NewClient(Credentials{URL: "https://octopus.example.com", APIKey: GuestAPIKey}, nil)
	require.NoError(t, err)

	key, err := client.LimitedAPIKey(context.Background(), "copilot", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, GuestAPIKey, key)
}

func TestKindLabel(t *testing.T) {
	assert.Equal(t, "worker pool", KindWorkerPools.Label())
	assert.Equal(t, "project", KindProjects.Label())
	assert.Equal(t, "widget", Kind("widgets").Label())
}
