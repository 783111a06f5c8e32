// Package collector gathers bounded platform data for a single answer.
//
// Every limit comes from config.Limits, fixed at startup. Nothing the model extracts
// from a query can raise them.
package collector

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/rcourtman/octopilot/internal/config"
	"github.com/rcourtman/octopilot/internal/octopus"
)

// Platform is the subset of the Octopus client the collector reads from.
type Platform interface {
	octopus.EntityGetter

	ProjectByName(ctx context.Context, spaceID, name string) (octopus.Project, error)
	ProjectReleases(ctx context.Context, spaceID, projectID string, take int) ([]octopus.Release, error)
	ReleaseDeployments(ctx context.Context, spaceID, releaseID string) ([]octopus.Deployment, error)
	Task(ctx context.Context, spaceID, taskID string) (octopus.Task, error)
	TaskLog(ctx context.Context, spaceID, taskID string) (string, error)
	ResourceByName(ctx context.Context, spaceID string, kind octopus.Kind, name string) (octopus.Resource, error)
	Resources(ctx context.Context, spaceID string, kind octopus.Kind) iter.Seq2[octopus.Resource, error]
	VariableSet(ctx context.Context, spaceID, variableSetID string) (octopus.VariableSet, error)
	DeploymentProcess(ctx context.Context, spaceID, processID string) (octopus.DeploymentProcess, error)
	Dashboard(ctx context.Context, spaceID string) (octopus.Dashboard, error)
	RunbookDashboard(ctx context.Context, spaceID, runbookID string) (octopus.RunbookDashboard, error)
}

// Counts are the running totals used to enforce the limits.
type Counts struct {
	Releases    int `json:"releases"`
	Deployments int `json:"deployments"`
	Resources   int `json:"resources"`
	LogChars    int `json:"logChars"`
}

// Bundle is the context handed to the model. A request fills only the fields its
// tool needs; each field is bounded on its own.
type Bundle struct {
	JSON      string
	Flattened string
	Logs      string
	Counts    Counts
}

// Empty reports whether nothing was collected.
func (b Bundle) Empty() bool {
	return b.JSON == "" && b.Flattened == "" && b.Logs == ""
}

// Collector reads from the platform within fixed limits.
type Collector struct {
	platform Platform
	limits   config.Limits
}

// New creates a collector. Zero limits are replaced by the defaults.
func New(platform Platform, limits config.Limits) *Collector {
	defaults := config.DefaultLimits()
	if limits.MaxContext <= 0 {
		limits.MaxContext = defaults.MaxContext
	}
	if limits.MaxChars <= 0 {
		limits.MaxChars = defaults.MaxChars
	}
	if limits.MaxDeployments <= 0 {
		limits.MaxDeployments = defaults.MaxDeployments
	}
	return &Collector{platform: platform, limits: limits}
}

// Limits returns the limits in force.
func (c *Collector) Limits() config.Limits {
	return c.limits
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
