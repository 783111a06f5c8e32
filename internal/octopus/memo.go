package octopus

import (
	"context"
	"sync"
)

// EntityGetter fetches single records by id.
type EntityGetter interface {
	Channel(ctx context.Context, spaceID, channelID string) (Channel, error)
	Environment(ctx context.Context, spaceID, environmentID string) (Resource, error)
	Tenant(ctx context.Context, spaceID, tenantID string) (Resource, error)
}

// Memo caches lookups for the lifetime of a single request. It must not be shared
// across requests; entities are always fetched fresh for a new query.
type Memo struct {
	getter EntityGetter

	mu           sync.Mutex
	channels     map[string]Channel
	environments map[string]Resource
	tenants      map[string]Resource
}

// NewMemo wraps getter with a request scoped cache.
func NewMemo(getter EntityGetter) *Memo {
	return &Memo{
		getter:       getter,
		channels:     make(map[string]Channel),
		environments: make(map[string]Resource),
		tenants:      make(map[string]Resource),
	}
}

// Channel returns a channel, fetching it at most once per space and id.
func (m *Memo) Channel(ctx context.Context, spaceID, channelID string) (Channel, error) {
	return remember(m, m.channels, spaceID+"/"+channelID, func() (Channel, error) {
		return m.getter.Channel(ctx, spaceID, channelID)
	})
}

// Environment returns an environment, fetching it at most once per space and id.
func (m *Memo) Environment(ctx context.Context, spaceID, environmentID string) (Resource, error) {
	return remember(m, m.environments, spaceID+"/"+environmentID, func() (Resource, error) {
		return m.getter.Environment(ctx, spaceID, environmentID)
	})
}

// Tenant returns a tenant, fetching it at most once per space and id.
func (m *Memo) Tenant(ctx context.Context, spaceID, tenantID string) (Resource, error) {
	return remember(m, m.tenants, spaceID+"/"+tenantID, func() (Resource, error) {
		return m.getter.Tenant(ctx, spaceID, tenantID)
	})
}

// Failures are not cached so a later lookup can retry.
func remember[T any](m *Memo, cache map[string]T, key string, fetch func() (T, error)) (T, error) {
	m.mu.Lock()
	if value, ok := cache[key]; ok {
		m.mu.Unlock()
		return value, nil
	}
	m.mu.Unlock()

	value, err := fetch()
	if err != nil {
		return value, err
	}

	m.mu.Lock()
	cache[key] = value
	m.mu.Unlock()
	return value, nil
}
