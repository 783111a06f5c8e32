package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	assert.Nil(t, rl)
	for range 100 {
		assert.True(t, rl.Allow("anyone"))
	}
	rl.Stop()
}

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Stop()

	for i := range 3 {
		assert.True(t, rl.Allow("alice"), "request %d", i)
	}
	assert.False(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("bob"))
}

func TestRateLimiterCleanupDropsIdleCallers(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	rl.Allow("alice")
	rl.cleanup(time.Now())
	assert.Len(t, rl.entries, 1)

	rl.cleanup(time.Now().Add(limiterIdleTTL + time.Second))
	assert.Empty(t, rl.entries)
}

func TestCallerKey(t *testing.T) {
	withToken := httptest.NewRequest("GET", "/", nil)
	withToken.Header.Set(headerGitHubToken, "gho_alice")
	key := callerKey(withToken)
	assert.Contains(t, key, "token:")
	assert.NotContains(t, key, "gho_alice")

	anonymous := httptest.NewRequest("GET", "/", nil)
	anonymous.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "addr:10.0.0.7", callerKey(anonymous))
}
