package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcourtman/octopilot/internal/metrics"
	"github.com/rcourtman/octopilot/internal/octopus"
)

// runbookRunsPerEnvironment bounds the runbook dashboard table.
const runbookRunsPerEnvironment = 5

// DashboardDeployment is one dashboard cell with its names filled in.
type DashboardDeployment struct {
	ProjectID       string `json:"ProjectId"`
	ProjectName     string `json:"ProjectName"`
	EnvironmentID   string `json:"EnvironmentId"`
	EnvironmentName string `json:"EnvironmentName"`
	TenantID        string `json:"TenantId,omitempty"`
	TenantName      string `json:"TenantName,omitempty"`
	ReleaseVersion  string `json:"ReleaseVersion"`
	DeploymentID    string `json:"DeploymentId"`
	TaskID          string `json:"TaskId"`
	TaskState       string `json:"TaskState"`
	Created         string `json:"Created"`
	CompletedTime   string `json:"CompletedTime"`
}

// DashboardDeployments returns the latest deployment of every project as JSON. It is
// broad rather than deep and serves queries that name no project.
func (c *Collector) DashboardDeployments(ctx context.Context, spaceID string) (Bundle, error) {
	dashboard, err := c.platform.Dashboard(ctx, spaceID)
	if err != nil {
		return Bundle{}, err
	}

	projects := namesByID(dashboard.Projects)
	environments := namesByID(dashboard.Environments)
	tenants := namesByID(dashboard.Tenants)

	var deployments []DashboardDeployment
	for _, item := range dashboard.Items {
		if len(deployments) >= c.limits.MaxContext {
			break
		}
		deployments = append(deployments, DashboardDeployment{
			ProjectID:       item.ProjectID,
			ProjectName:     projects[item.ProjectID],
			EnvironmentID:   item.EnvironmentID,
			EnvironmentName: environments[item.EnvironmentID],
			TenantID:        item.TenantID,
			TenantName:      tenants[item.TenantID],
			ReleaseVersion:  item.ReleaseVersion,
			DeploymentID:    item.DeploymentID,
			TaskID:          item.TaskID,
			TaskState:       item.State,
			Created:         item.Created,
			CompletedTime:   item.CompletedTime,
		})
	}

	encoded, err := marshal(map[string]any{"Deployments": deployments})
	if err != nil {
		return Bundle{}, err
	}
	metrics.RecordContextItems("dashboard", len(deployments))
	return Bundle{JSON: encoded, Counts: Counts{Deployments: len(deployments)}}, nil
}

// DashboardMarkdown renders the deployment dashboard as a markdown table with one row
// per project and one column per environment.
func (c *Collector) DashboardMarkdown(ctx context.Context, spaceID, spaceName string) (string, error) {
	dashboard, err := c.platform.Dashboard(ctx, spaceID)
	if err != nil {
		return "", err
	}

	cells := make(map[string]map[string]octopus.DashboardItem)
	for _, item := range dashboard.Items {
		// Tenanted projects have one item per tenant; the first listed is the latest.
		row, ok := cells[item.ProjectID]
		if !ok {
			row = make(map[string]octopus.DashboardItem)
			cells[item.ProjectID] = row
		}
		if _, seen := row[item.EnvironmentID]; !seen {
			row[item.EnvironmentID] = item
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", spaceName)
	if len(dashboard.Projects) == 0 {
		b.WriteString("There are no projects in this space.")
		return b.String(), nil
	}

	b.WriteString("| Project |")
	for _, environment := range dashboard.Environments {
		fmt.Fprintf(&b, " %s |", environment.Name)
	}
	b.WriteString("\n|---|")
	for range dashboard.Environments {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, project := range dashboard.Projects {
		fmt.Fprintf(&b, "| %s |", project.Name)
		for _, environment := range dashboard.Environments {
			item, ok := cells[project.ID][environment.ID]
			if !ok {
				b.WriteString(" ⨂ |")
				continue
			}
			fmt.Fprintf(&b, " %s %s |", stateIcon(item.State, item.HasWarningsOrErrors), item.ReleaseVersion)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// RunbookDashboardMarkdown renders the recent runs of a runbook per environment.
func (c *Collector) RunbookDashboardMarkdown(ctx context.Context, spaceID, projectName string, runbook octopus.Resource) (string, error) {
	dashboard, err := c.platform.RunbookDashboard(ctx, spaceID, runbook.ID)
	if err != nil {
		return "", err
	}
	memo := octopus.NewMemo(c.platform)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s / %s\n", projectName, runbook.Name)
	for _, environment := range dashboard.Environments {
		fmt.Fprintf(&b, "\n## %s\n\n", environment.Name)
		runs := dashboard.RunbookRuns[environment.ID]
		if len(runs) == 0 {
			b.WriteString("No runs.\n")
			continue
		}
		b.WriteString("| Snapshot | Tenant | State | Created |\n|---|---|---|---|\n")
		for i, run := range runs {
			if i >= runbookRunsPerEnvironment {
				break
			}
			tenant := "Untenanted"
			if run.TenantID != "" {
				resource, err := memo.Tenant(ctx, spaceID, run.TenantID)
				if err != nil {
					return "", err
				}
				tenant = resource.Name
			}
			fmt.Fprintf(&b, "| %s | %s | %s %s | %s |\n",
				run.RunbookSnapshotName, tenant, stateIcon(run.State, run.HasWarningsOrErrors), run.State, run.Created)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func stateIcon(state string, warnings bool) string {
	switch state {
	case "Success":
		if warnings {
			return "🟡"
		}
		return "🟢"
	case "Failed", "TimedOut":
		return "🔴"
	case "Executing":
		return "🔵"
	case "Queued":
		return "🟣"
	default:
		return "⚪"
	}
}

func namesByID(resources []octopus.Resource) map[string]string {
	names := make(map[string]string, len(resources))
	for _, r := range resources {
		names[r.ID] = r.Name
	}
	return names
}
