package collector

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rcourtman/octopilot/internal/defaults"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/logging"
	"github.com/rcourtman/octopilot/internal/metrics"
	"github.com/rcourtman/octopilot/internal/octopus"
)

// DeploymentCriteria select the deployments of one project. Environment and tenant
// names are canonical platform names; an empty list or one holding defaults.Wildcard
// applies no filter. Two dates form an inclusive range in either order.
type DeploymentCriteria struct {
	SpaceID      string
	Project      string
	Environments []string
	Tenants      []string
	Dates        []string
}

// DeploymentRecord is a deployment joined with its release, task and channel.
type DeploymentRecord struct {
	SpaceID         string `json:"SpaceId"`
	ProjectID       string `json:"ProjectId"`
	ProjectName     string `json:"ProjectName"`
	ReleaseVersion  string `json:"ReleaseVersion"`
	DeploymentID    string `json:"DeploymentId"`
	TaskID          string `json:"TaskId"`
	TenantID        string `json:"TenantId"`
	TenantName      string `json:"TenantName"`
	ReleaseID       string `json:"ReleaseId"`
	EnvironmentID   string `json:"EnvironmentId"`
	EnvironmentName string `json:"EnvironmentName"`
	ChannelID       string `json:"ChannelId"`
	ChannelName     string `json:"ChannelName"`
	Created         string `json:"Created"`
	TaskState       string `json:"TaskState"`
	TaskDuration    string `json:"TaskDuration"`
	ReleaseNotes    string `json:"ReleaseNotes"`
	DeployedBy      string `json:"DeployedBy"`
}

// DeploymentList is the JSON shape handed to the model.
type DeploymentList struct {
	Deployments []DeploymentRecord `json:"Deployments"`
}

// Deployments collects at most MaxDeployments deployments from the newest MaxContext
// releases of a project. The window is fixed because many releases have no deployment
// that passes the filters. Scanning stops as soon as the cap is reached, so no later
// release's deployments are fetched.
func (c *Collector) Deployments(ctx context.Context, criteria DeploymentCriteria) (DeploymentList, Counts, error) {
	const op = "collect_deployments"
	var counts Counts
	logger := logging.FromContext(ctx)

	if criteria.SpaceID == "" || criteria.Project == "" {
		return DeploymentList{}, counts, internalerrors.New(internalerrors.KindInternal, op, fmt.Errorf("space and project are required"))
	}

	dateRange, err := parseRange(criteria.Dates)
	if err != nil {
		return DeploymentList{}, counts, err
	}

	project, err := c.platform.ProjectByName(ctx, criteria.SpaceID, criteria.Project)
	if err != nil {
		return DeploymentList{}, counts, err
	}

	environments, err := c.filterSet(ctx, criteria.SpaceID, octopus.KindEnvironments, criteria.Environments)
	if err != nil {
		return DeploymentList{}, counts, err
	}
	tenants, err := c.filterSet(ctx, criteria.SpaceID, octopus.KindTenants, criteria.Tenants)
	if err != nil {
		return DeploymentList{}, counts, err
	}

	releases, err := c.platform.ProjectReleases(ctx, criteria.SpaceID, project.ID, c.limits.MaxContext)
	if err != nil {
		return DeploymentList{}, counts, err
	}

	memo := octopus.NewMemo(c.platform)
	records := make([]DeploymentRecord, 0, c.limits.MaxDeployments)

scan:
	for _, release := range releases {
		deployments, err := c.platform.ReleaseDeployments(ctx, criteria.SpaceID, release.ID)
		if err != nil {
			return DeploymentList{}, counts, err
		}
		counts.Releases++

		for _, deployment := range deployments {
			if !environments.keep(deployment.EnvironmentID) || !tenants.keep(deployment.TenantID) {
				continue
			}
			if dateRange != nil {
				created, _, err := parseDate(deployment.Created)
				if err != nil {
					logger.Debug().Str("deployment", deployment.ID).Str("created", deployment.Created).Msg("Skipping deployment with unreadable creation time")
					continue
				}
				if !dateRange.contains(created) {
					continue
				}
			}

			record, err := c.enrich(ctx, memo, criteria.SpaceID, project, release, deployment, environments, tenants)
			if err != nil {
				return DeploymentList{}, counts, err
			}
			records = append(records, record)

			if len(records) >= c.limits.MaxDeployments {
				break scan
			}
		}
	}

	counts.Deployments = len(records)
	metrics.RecordContextItems("deployments", len(records))
	logger.Debug().
		Str("project", project.Name).
		Int("releases_scanned", counts.Releases).
		Int("deployments", counts.Deployments).
		Msg("Collected deployments")

	return DeploymentList{Deployments: records}, counts, nil
}

// DeploymentBundle runs Deployments and serializes the result.
func (c *Collector) DeploymentBundle(ctx context.Context, criteria DeploymentCriteria) (Bundle, error) {
	list, counts, err := c.Deployments(ctx, criteria)
	if err != nil {
		return Bundle{}, err
	}
	encoded, err := marshal(list)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{JSON: encoded, Counts: counts}, nil
}

func (c *Collector) enrich(ctx context.Context, memo *octopus.Memo, spaceID string, project octopus.Project,
	release octopus.Release, deployment octopus.Deployment, environments, tenants filterSet) (DeploymentRecord, error) {
	record := DeploymentRecord{
		SpaceID:        spaceID,
		ProjectID:      project.ID,
		ProjectName:    project.Name,
		ReleaseVersion: release.Version,
		DeploymentID:   deployment.ID,
		TaskID:         deployment.TaskID,
		TenantID:       deployment.TenantID,
		ReleaseID:      deployment.ReleaseID,
		EnvironmentID:  deployment.EnvironmentID,
		ChannelID:      deployment.ChannelID,
		Created:        deployment.Created,
		ReleaseNotes:   StripMarkdownLinks(release.ReleaseNotes),
		DeployedBy:     deployment.DeployedBy,
	}

	if deployment.TaskID != "" {
		task, err := c.platform.Task(ctx, spaceID, deployment.TaskID)
		if err != nil {
			return DeploymentRecord{}, err
		}
		record.TaskState = task.State
		record.TaskDuration = task.Duration
	}

	if deployment.ChannelID != "" {
		channel, err := memo.Channel(ctx, spaceID, deployment.ChannelID)
		if err != nil {
			return DeploymentRecord{}, err
		}
		record.ChannelName = channel.Name
	}

	if name, ok := environments.names[deployment.EnvironmentID]; ok {
		record.EnvironmentName = name
	} else if deployment.EnvironmentID != "" {
		environment, err := memo.Environment(ctx, spaceID, deployment.EnvironmentID)
		if err != nil {
			return DeploymentRecord{}, err
		}
		record.EnvironmentName = environment.Name
	}

	if name, ok := tenants.names[deployment.TenantID]; ok {
		record.TenantName = name
	} else if deployment.TenantID != "" {
		tenant, err := memo.Tenant(ctx, spaceID, deployment.TenantID)
		if err != nil {
			return DeploymentRecord{}, err
		}
		record.TenantName = tenant.Name
	}

	return record, nil
}

// filterSet maps the ids a filter keeps to their names. A nil set keeps everything.
type filterSet struct {
	names map[string]string
}

func (f filterSet) keep(id string) bool {
	if f.names == nil {
		return true
	}
	_, ok := f.names[id]
	return ok
}

func (c *Collector) filterSet(ctx context.Context, spaceID string, kind octopus.Kind, names []string) (filterSet, error) {
	if defaults.IsWildcard(names) {
		return filterSet{}, nil
	}
	set := filterSet{names: make(map[string]string, len(names))}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		resource, err := c.platform.ResourceByName(ctx, spaceID, kind, name)
		if err != nil {
			return filterSet{}, err
		}
		set.names[resource.ID] = resource.Name
	}
	if len(set.names) == 0 {
		return filterSet{}, nil
	}
	return set, nil
}

var markdownLink = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)

// StripMarkdownLinks replaces each markdown link with its text.
func StripMarkdownLinks(text string) string {
	return markdownLink.ReplaceAllString(text, "$1")
}

type timeRange struct {
	from, to time.Time
}

func (r *timeRange) contains(t time.Time) bool {
	return !t.Before(r.from) && !t.After(r.to)
}

// parseRange returns nil unless exactly two dates are given. A date without a time
// of day spans that whole day, and the range runs from the earliest start to the
// latest end whichever order the dates arrive in.
func parseRange(dates []string) (*timeRange, error) {
	if len(dates) != 2 {
		return nil, nil
	}
	first, err := parseSpan(dates[0])
	if err != nil {
		return nil, err
	}
	second, err := parseSpan(dates[1])
	if err != nil {
		return nil, err
	}

	span := first
	if second.from.Before(span.from) {
		span.from = second.from
	}
	if second.to.After(span.to) {
		span.to = second.to
	}
	return &span, nil
}

// parseSpan reads one date as the instants it covers.
func parseSpan(value string) (timeRange, error) {
	t, dateOnly, err := parseDate(value)
	if err != nil {
		return timeRange{}, internalerrors.NewInvalidArgument("parse_dates", fmt.Sprintf("The date %q could not be understood.", value))
	}
	if dateOnly {
		return timeRange{from: t, to: t.Add(24*time.Hour - time.Nanosecond)}, nil
	}
	return timeRange{from: t, to: t}, nil
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

var dateOnlyLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// parseDate accepts the timestamps the platform returns and the date formats people
// type. Values without a zone are UTC.
func parseDate(value string) (t time.Time, dateOnly bool, err error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range dateOnlyLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date %q", value)
}
