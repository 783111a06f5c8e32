package agent

import (
	"context"
	"iter"
	"strings"

	"github.com/rcourtman/octopilot/internal/defaults"
	"github.com/rcourtman/octopilot/internal/octopus"
	"github.com/rcourtman/octopilot/internal/resolve"
)

// DefaultSpaceName is used when a query names no space and the user has no default.
const DefaultSpaceName = "Default"

// resolved is a name after matching and defaults. FromDefault marks values read from
// the user's stored defaults.
type resolved struct {
	Value       string
	FromDefault bool
}

type resolvedList struct {
	Values      []string
	FromDefault bool
}

// resolveName matches input against candidates and falls back to the stored default
// for name. The candidates are not read when input is empty.
func resolveName[T resolve.Named](ctx context.Context, a *Agent, req *Request, name defaults.Name, input string, candidates iter.Seq2[T, error]) (resolved, error) {
	match, err := resolve.Resolve(input, candidates)
	if err != nil {
		return resolved{}, err
	}
	if match.Found() {
		req.substitute(match)
		return resolved{Value: match.Name}, nil
	}

	user, err := req.Identity.defaultsUser(ctx)
	if err != nil {
		return resolved{}, err
	}
	value, err := a.resolver.Resolve(ctx, user, name, "", "")
	if err != nil {
		return resolved{}, err
	}
	return resolved{Value: value, FromDefault: value != ""}, nil
}

// resolveNames is resolveName for list arguments. Named values that match nothing are
// kept as typed so the lookup reports them as not found; the stored default applies
// only when the query names nothing. Nothing named and nothing stored yields an empty
// list, which filters treat as the wildcard.
func resolveNames[T resolve.Named](ctx context.Context, a *Agent, req *Request, name defaults.Name, inputs []string, candidates iter.Seq2[T, error]) (resolvedList, error) {
	if len(compactNames(inputs)) > 0 {
		names, err := matchNames(req, inputs, candidates)
		if err != nil {
			return resolvedList{}, err
		}
		return resolvedList{Values: names}, nil
	}

	user, err := req.Identity.defaultsUser(ctx)
	if err != nil {
		return resolvedList{}, err
	}
	values, err := a.resolver.ResolveList(ctx, user, name, nil, nil)
	if err != nil {
		return resolvedList{}, err
	}
	return resolvedList{Values: values, FromDefault: len(values) > 0}, nil
}

// matchNames resolves names of a type that has no stored default. Names without a
// match are kept as typed so the lookup reports them as not found.
func matchNames[T resolve.Named](req *Request, inputs []string, candidates iter.Seq2[T, error]) ([]string, error) {
	matches, err := resolve.ResolveAll(inputs, candidates)
	if err != nil {
		return nil, err
	}
	req.substitute(matches...)

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Found() {
			names = append(names, m.Name)
		} else {
			names = append(names, strings.TrimSpace(m.Input))
		}
	}
	return names, nil
}

// space resolves the space a query is about: the matched name, then the user's
// default, then DefaultSpaceName.
func (a *Agent) space(ctx context.Context, req *Request, platform Platform, input string) (octopus.Space, error) {
	name, err := resolveName(ctx, a, req, defaults.Space, input, platform.Spaces(ctx))
	if err != nil {
		return octopus.Space{}, err
	}
	if name.Value == "" {
		name.Value = DefaultSpaceName
	}
	return platform.SpaceByName(ctx, name.Value)
}

// project resolves a single project within space.
func (a *Agent) project(ctx context.Context, req *Request, platform Platform, spaceID string, inputs []string) (resolved, error) {
	input := ""
	for _, candidate := range inputs {
		if strings.TrimSpace(candidate) != "" {
			input = candidate
			break
		}
	}
	return resolveName(ctx, a, req, defaults.Project, input, platform.Projects(ctx, spaceID))
}

// filterNames resolves environment or tenant names used as deployment filters.
func (a *Agent) filterNames(ctx context.Context, req *Request, platform Platform, spaceID string, kind octopus.Kind, name defaults.Name, inputs []string) (resolvedList, error) {
	return resolveNames(ctx, a, req, name, inputs, platform.Resources(ctx, spaceID, kind))
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
