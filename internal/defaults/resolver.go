package defaults

import (
	"context"
	"strings"

	"github.com/rcourtman/octopilot/internal/logging"
)

// Getter reads a persisted default.
type Getter interface {
	Get(ctx context.Context, user string, name Name) (string, error)
}

// ArgumentResolver fills in arguments a query left out.
//
// Precedence, first non-empty wins: the explicit value, the value the name resolver
// produced, the user's stored default, then nothing. Callers apply their own final
// fallback, such as the space named Default.
type ArgumentResolver struct {
	store Getter
}

// NewArgumentResolver creates a resolver backed by store.
func NewArgumentResolver(store Getter) *ArgumentResolver {
	return &ArgumentResolver{store: store}
}

// Resolve returns the value to use for a single valued argument, or "" for none.
// The store is only read when both explicit and resolved are empty.
func (r *ArgumentResolver) Resolve(ctx context.Context, user string, name Name, explicit, resolved string) (string, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(resolved); v != "" {
		return v, nil
	}
	return r.stored(ctx, user, name)
}

// ResolveList is Resolve for list valued arguments such as environments. It returns
// nil when nothing applies; callers that filter treat nil as Wildcard, which means no
// filter rather than a filter on the empty set.
func (r *ArgumentResolver) ResolveList(ctx context.Context, user string, name Name, explicit, resolved []string) ([]string, error) {
	if v := compact(explicit); len(v) > 0 {
		return v, nil
	}
	if v := compact(resolved); len(v) > 0 {
		return v, nil
	}
	value, err := r.stored(ctx, user, name)
	if err != nil || value == "" {
		return nil, err
	}
	return []string{value}, nil
}

func (r *ArgumentResolver) stored(ctx context.Context, user string, name Name) (string, error) {
	if r.store == nil || user == "" {
		return "", nil
	}
	value, err := r.store.Get(ctx, user, name)
	if err != nil {
		return "", err
	}
	if value != "" {
		logger := logging.FromContext(ctx)
		logger.Debug().Str("default", string(name)).Str("value", value).Msg("Using stored default")
	}
	return value, nil
}

// OrWildcard returns values, or a single Wildcard entry when values is empty.
func OrWildcard(values []string) []string {
	if len(values) == 0 {
		return []string{Wildcard}
	}
	return values
}

// IsWildcard reports whether values means "no filter".
func IsWildcard(values []string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if v == Wildcard {
			return true
		}
	}
	return false
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
