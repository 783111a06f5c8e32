package collector

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/metrics"
	"github.com/rcourtman/octopilot/internal/octopus"
)

// LogCriteria select the deployment whose log is read. Empty fields match anything;
// without a release version the newest matching deployment is used.
type LogCriteria struct {
	SpaceID     string
	Project     string
	Environment string
	Tenant      string
	Release     string
}

// Logs returns the trailing MaxChars characters of a deployment log.
func (c *Collector) Logs(ctx context.Context, criteria LogCriteria) (Bundle, error) {
	const op = "collect_logs"
	if criteria.SpaceID == "" || criteria.Project == "" {
		return Bundle{}, internalerrors.New(internalerrors.KindInternal, op, fmt.Errorf("space and project are required"))
	}

	project, err := c.platform.ProjectByName(ctx, criteria.SpaceID, criteria.Project)
	if err != nil {
		return Bundle{}, err
	}
	environments, err := c.filterSet(ctx, criteria.SpaceID, octopus.KindEnvironments, []string{criteria.Environment})
	if err != nil {
		return Bundle{}, err
	}
	tenants, err := c.filterSet(ctx, criteria.SpaceID, octopus.KindTenants, []string{criteria.Tenant})
	if err != nil {
		return Bundle{}, err
	}

	releases, err := c.platform.ProjectReleases(ctx, criteria.SpaceID, project.ID, c.limits.MaxContext)
	if err != nil {
		return Bundle{}, err
	}

	var counts Counts
	for _, release := range releases {
		if criteria.Release != "" && !strings.EqualFold(release.Version, criteria.Release) {
			continue
		}
		deployments, err := c.platform.ReleaseDeployments(ctx, criteria.SpaceID, release.ID)
		if err != nil {
			return Bundle{}, err
		}
		counts.Releases++

		for _, deployment := range deployments {
			if deployment.TaskID == "" || !environments.keep(deployment.EnvironmentID) || !tenants.keep(deployment.TenantID) {
				continue
			}
			text, err := c.platform.TaskLog(ctx, criteria.SpaceID, deployment.TaskID)
			if err != nil {
				return Bundle{}, err
			}
			tail := Tail(text, c.limits.MaxChars)
			counts.Deployments = 1
			counts.LogChars = utf8.RuneCountInString(tail)
			metrics.RecordContextItems("log_chars", counts.LogChars)
			return Bundle{Logs: tail, Counts: counts}, nil
		}
	}

	subject := project.Name
	if criteria.Release != "" {
		subject += " " + criteria.Release
	}
	return Bundle{}, internalerrors.NewResourceNotFound(op, "deployment", subject)
}

// Tail returns the last budget characters of text. The end of a log carries the
// outcome of the deployment, so the head is dropped.
func Tail(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if len(text) <= budget {
		return text
	}
	count := utf8.RuneCountInString(text)
	if count <= budget {
		return text
	}
	skip := count - budget
	for i := range text {
		if skip == 0 {
			return text[i:]
		}
		skip--
	}
	return ""
}
