package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/octopilot/internal/config"
)

func TestVersionCmd(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := Version, BuildTime, GitCommit
	t.Cleanup(func() { Version, BuildTime, GitCommit = oldVersion, oldBuildTime, oldGitCommit })

	Version = "1.2.3"
	BuildTime = "2026-01-01"
	GitCommit = "abcdef"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Octopilot 1.2.3")
	assert.Contains(t, out.String(), "Built: 2026-01-01")
	assert.Contains(t, out.String(), "Commit: abcdef")
}

type fakePruner struct {
	mu     sync.Mutex
	calls  int
	maxAge time.Duration
	err    error
}

func (f *fakePruner) DeleteUserDetailsOlderThan(_ context.Context, maxAge time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.maxAge = maxAge
	return 2, f.err
}

func (f *fakePruner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunDetailsCleanupPrunesUntilCancelled(t *testing.T) {
	pruner := &fakePruner{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runDetailsCleanup(ctx, pruner, time.Hour, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return pruner.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, time.Hour, pruner.maxAge)
}

func TestPruneDetailsSurvivesErrors(t *testing.T) {
	pruner := &fakePruner{err: errors.New("locked")}
	pruneDetails(context.Background(), pruner, time.Minute)
	assert.Equal(t, 1, pruner.count())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:            t.TempDir(),
		HTTPTimeout:        time.Second,
		DNSCacheTTL:        time.Minute,
		OpenAIAPIKey:       "sk-test",
		OpenAIModel:        "gpt-4o",
		MaxPromptTokens:    1000,
		Limits:             config.DefaultLimits(),
		EncryptionPassword: "password",
		EncryptionSalt:     "salt",
		GitHubClientID:     "client",
		UserDetailsMaxAge:  time.Hour,
	}
}

func TestNewAppWiresRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.OctolintURL = "http://octolint.invalid"

	app, err := newApp(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	rec := httptest.NewRecorder()
	app.server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/form", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	removed, err := app.store.DeleteUserDetailsOlderThan(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestNewAppRequiresSecrets(t *testing.T) {
	cfg := testConfig(t)
	cfg.EncryptionPassword = ""

	_, err := newApp(cfg)
	assert.Error(t, err)
}
