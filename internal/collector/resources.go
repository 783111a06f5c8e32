package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rcourtman/octopilot/internal/defaults"
	"github.com/rcourtman/octopilot/internal/metrics"
	"github.com/rcourtman/octopilot/internal/octopus"
)

// sensitiveMask replaces the value of sensitive variables.
const sensitiveMask = "********"

var sectionNames = map[octopus.Kind]string{
	octopus.KindProjects:            "Projects",
	octopus.KindEnvironments:        "Environments",
	octopus.KindTenants:             "Tenants",
	octopus.KindChannels:            "Channels",
	octopus.KindRunbooks:            "Runbooks",
	octopus.KindMachines:            "Targets",
	octopus.KindAccounts:            "Accounts",
	octopus.KindCertificates:        "Certificates",
	octopus.KindFeeds:               "Feeds",
	octopus.KindLifecycles:          "Lifecycles",
	octopus.KindWorkerPools:         "WorkerPools",
	octopus.KindMachinePolicies:     "MachinePolicies",
	octopus.KindTagSets:             "TagSets",
	octopus.KindProjectGroups:       "ProjectGroups",
	octopus.KindLibraryVariableSets: "LibraryVariableSets",
}

// ResourceCriteria name the resources to list per collection. A collection missing
// from Names is skipped; an empty list or defaults.Wildcard lists the collection up
// to MaxContext items.
type ResourceCriteria struct {
	SpaceID string
	Names   map[octopus.Kind][]string
}

// Resources lists the requested resources as JSON keyed by collection plus a flattened
// "path = value" export of the same data.
func (c *Collector) Resources(ctx context.Context, criteria ResourceCriteria) (Bundle, error) {
	sections := make(map[string][]octopus.Resource)
	var counts Counts

	for _, kind := range octopus.AllKinds {
		names, requested := criteria.Names[kind]
		if !requested {
			continue
		}

		var items []octopus.Resource
		if defaults.IsWildcard(names) {
			for resource, err := range c.platform.Resources(ctx, criteria.SpaceID, kind) {
				if err != nil {
					return Bundle{}, err
				}
				items = append(items, resource)
				if len(items) >= c.limits.MaxContext {
					break
				}
			}
		} else {
			for _, name := range names {
				if strings.TrimSpace(name) == "" || len(items) >= c.limits.MaxContext {
					continue
				}
				resource, err := c.platform.ResourceByName(ctx, criteria.SpaceID, kind, name)
				if err != nil {
					return Bundle{}, err
				}
				items = append(items, resource)
			}
		}

		sections[sectionNames[kind]] = items
		counts.Resources += len(items)
		metrics.RecordContextItems(string(kind), len(items))
	}

	encoded, err := marshal(sections)
	if err != nil {
		return Bundle{}, err
	}
	flattened, err := flattenSections(sections)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{JSON: encoded, Flattened: flattened, Counts: counts}, nil
}

func flattenSections(sections map[string][]octopus.Resource) (string, error) {
	keys := make([]string, 0, len(sections))
	for key := range sections {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var lines []string
	for _, key := range keys {
		for _, resource := range sections[key] {
			var value any
			if err := json.Unmarshal(resource.Raw, &value); err != nil {
				return "", fmt.Errorf("flatten %s %q: %w", key, resource.Name, err)
			}
			Flatten(fmt.Sprintf("%s[%q]", key, resource.Name), value, &lines)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// Flatten appends one "path = value" line per scalar in value. Object keys are sorted
// so the output is stable; nulls and empty strings are dropped.
func Flatten(prefix string, value any, lines *[]string) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			Flatten(prefix+"."+key, v[key], lines)
		}
	case []any:
		for i, item := range v {
			Flatten(fmt.Sprintf("%s[%d]", prefix, i), item, lines)
		}
	case nil:
	case string:
		if v != "" {
			*lines = append(*lines, fmt.Sprintf("%s = %q", prefix, v))
		}
	default:
		*lines = append(*lines, fmt.Sprintf("%s = %v", prefix, v))
	}
}

// VariableCriteria select project variables. With no projects a sample of the space's
// projects is used; an empty Variables list or defaults.Wildcard keeps every variable.
type VariableCriteria struct {
	SpaceID   string
	Projects  []string
	Variables []string
}

// ProjectVariables is the variables of one project with scopes shown by name.
type ProjectVariables struct {
	Project   string           `json:"Project"`
	Variables []ScopedVariable `json:"Variables"`
}

type ScopedVariable struct {
	Name  string              `json:"Name"`
	Value string              `json:"Value"`
	Type  string              `json:"Type"`
	Scope map[string][]string `json:"Scope,omitempty"`
}

// Variables collects project variables, at most MaxContext in total. Sensitive values
// are masked.
func (c *Collector) Variables(ctx context.Context, criteria VariableCriteria) (Bundle, error) {
	projects, err := c.variableProjects(ctx, criteria)
	if err != nil {
		return Bundle{}, err
	}

	keepAll := defaults.IsWildcard(criteria.Variables)
	var (
		result []ProjectVariables
		total  int
	)
	for _, project := range projects {
		if total >= c.limits.MaxContext {
			break
		}
		if project.VariableSetID == "" {
			continue
		}
		set, err := c.platform.VariableSet(ctx, criteria.SpaceID, project.VariableSetID)
		if err != nil {
			return Bundle{}, err
		}
		scopeNames := set.ScopeNames()

		entry := ProjectVariables{Project: project.Name}
		for _, variable := range set.Variables {
			if !keepAll && !containsFold(criteria.Variables, variable.Name) {
				continue
			}
			entry.Variables = append(entry.Variables, scoped(variable, scopeNames))
			total++
			if total >= c.limits.MaxContext {
				break
			}
		}
		result = append(result, entry)
	}

	encoded, err := marshal(map[string]any{"ProjectVariables": result})
	if err != nil {
		return Bundle{}, err
	}
	metrics.RecordContextItems("variables", total)
	return Bundle{JSON: encoded, Counts: Counts{Resources: total}}, nil
}

func (c *Collector) variableProjects(ctx context.Context, criteria VariableCriteria) ([]octopus.Project, error) {
	var projects []octopus.Project
	names := criteria.Projects
	if defaults.IsWildcard(names) {
		for resource, err := range c.platform.Resources(ctx, criteria.SpaceID, octopus.KindProjects) {
			if err != nil {
				return nil, err
			}
			projects = append(projects, octopus.Project{
				ID:            resource.ID,
				Name:          resource.Name,
				VariableSetID: resource.Field("VariableSetId"),
			})
			if len(projects) >= c.limits.MaxDeployments {
				break
			}
		}
		return projects, nil
	}

	for _, name := range names {
		project, err := c.platform.ProjectByName(ctx, criteria.SpaceID, name)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, nil
}

func scoped(variable octopus.Variable, scopeNames map[string]string) ScopedVariable {
	out := ScopedVariable{Name: variable.Name, Type: variable.Type}
	switch {
	case variable.IsSensitive:
		out.Value = sensitiveMask
	case variable.Value != nil:
		out.Value = *variable.Value
	}
	if len(variable.Scope) > 0 {
		out.Scope = make(map[string][]string, len(variable.Scope))
		for scope, ids := range variable.Scope {
			for _, id := range ids {
				name := scopeNames[id]
				if name == "" {
					name = id
				}
				out.Scope[scope] = append(out.Scope[scope], name)
			}
		}
	}
	return out
}

func containsFold(values []string, target string) bool {
	return slices.ContainsFunc(values, func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), target)
	})
}

// StepFeatures returns a project's deployment steps as JSON and as a flattened export.
func (c *Collector) StepFeatures(ctx context.Context, spaceID, projectName string) (Bundle, error) {
	project, err := c.platform.ProjectByName(ctx, spaceID, projectName)
	if err != nil {
		return Bundle{}, err
	}
	if project.DeploymentProcessID == "" {
		return Bundle{JSON: `{"Steps": []}`}, nil
	}
	process, err := c.platform.DeploymentProcess(ctx, spaceID, project.DeploymentProcessID)
	if err != nil {
		return Bundle{}, err
	}

	encoded, err := marshal(map[string]any{"Project": project.Name, "Steps": process.Steps})
	if err != nil {
		return Bundle{}, err
	}

	var generic any
	if err := json.Unmarshal([]byte(encoded), &generic); err != nil {
		return Bundle{}, err
	}
	var lines []string
	Flatten(fmt.Sprintf("Project[%q]", project.Name), generic, &lines)

	metrics.RecordContextItems("steps", len(process.Steps))
	return Bundle{JSON: encoded, Flattened: strings.Join(lines, "\n"), Counts: Counts{Resources: len(process.Steps)}}, nil
}
