package octopus

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
)

// Spaces lists every space visible to the API key.
func (c *Client) Spaces(ctx context.Context) iter.Seq2[Space, error] {
	return paginate[Space](ctx, c, "list_spaces", "/api/spaces", nil)
}

// Resources lists a space-level collection.
func (c *Client) Resources(ctx context.Context, spaceID string, kind Kind) iter.Seq2[Resource, error] {
	return paginate[Resource](ctx, c, "list_"+string(kind), "/api/"+url.PathEscape(spaceID)+"/"+string(kind), nil)
}

// Projects lists the projects in a space with their typed fields.
func (c *Client) Projects(ctx context.Context, spaceID string) iter.Seq2[Project, error] {
	return paginate[Project](ctx, c, "list_projects", "/api/"+url.PathEscape(spaceID)+"/projects", nil)
}

// ProjectRunbooks lists the runbooks of one project.
func (c *Client) ProjectRunbooks(ctx context.Context, spaceID, projectID string) iter.Seq2[Resource, error] {
	path := fmt.Sprintf("/api/%s/projects/%s/runbooks", url.PathEscape(spaceID), url.PathEscape(projectID))
	return paginate[Resource](ctx, c, "list_project_runbooks", path, nil)
}

// SpaceByName finds a space by its exact name, ignoring case.
func (c *Client) SpaceByName(ctx context.Context, name string) (Space, error) {
	const op = "get_space"
	query := url.Values{"partialName": []string{name}}
	for space, err := range paginate[Space](ctx, c, op, "/api/spaces", query) {
		if err != nil {
			return Space{}, err
		}
		if strings.EqualFold(space.Name, name) {
			return space, nil
		}
	}
	return Space{}, internalerrors.NewSpaceNotFound(op, name)
}

// ResourceByName finds a resource in a space collection by exact name, ignoring case.
func (c *Client) ResourceByName(ctx context.Context, spaceID string, kind Kind, name string) (Resource, error) {
	op := "get_" + kind.Label()
	query := url.Values{"partialName": []string{name}}
	path := "/api/" + url.PathEscape(spaceID) + "/" + string(kind)
	for resource, err := range paginate[Resource](ctx, c, op, path, query) {
		if err != nil {
			return Resource{}, err
		}
		if strings.EqualFold(resource.Name, name) {
			return resource, nil
		}
	}
	return Resource{}, internalerrors.NewResourceNotFound(op, kind.Label(), name)
}

// ProjectByName finds a project by exact name, ignoring case.
func (c *Client) ProjectByName(ctx context.Context, spaceID, name string) (Project, error) {
	const op = "get_project"
	query := url.Values{"partialName": []string{name}}
	for project, err := range paginate[Project](ctx, c, op, "/api/"+url.PathEscape(spaceID)+"/projects", query) {
		if err != nil {
			return Project{}, err
		}
		if strings.EqualFold(project.Name, name) {
			return project, nil
		}
	}
	return Project{}, internalerrors.NewResourceNotFound(op, KindProjects.Label(), name)
}

// ProjectReleases returns the most recent releases of a project, newest first.
func (c *Client) ProjectReleases(ctx context.Context, spaceID, projectID string, take int) ([]Release, error) {
	path := fmt.Sprintf("/api/%s/projects/%s/releases", url.PathEscape(spaceID), url.PathEscape(projectID))
	var page collection[Release]
	if err := c.get(ctx, "list_releases", path, url.Values{"take": []string{strconv.Itoa(take)}}, &page); err != nil {
		return nil, err
	}
	if len(page.Items) > take {
		page.Items = page.Items[:take]
	}
	return page.Items, nil
}

// ReleaseDeployments returns every deployment of a release.
func (c *Client) ReleaseDeployments(ctx context.Context, spaceID, releaseID string) ([]Deployment, error) {
	path := fmt.Sprintf("/api/%s/releases/%s/deployments", url.PathEscape(spaceID), url.PathEscape(releaseID))
	return collect(paginate[Deployment](ctx, c, "list_release_deployments", path, nil))
}

// Task returns a server task.
func (c *Client) Task(ctx context.Context, spaceID, taskID string) (Task, error) {
	var task Task
	path := fmt.Sprintf("/api/%s/tasks/%s", url.PathEscape(spaceID), url.PathEscape(taskID))
	err := c.get(ctx, "get_task", path, nil, &task)
	return task, err
}

// TaskDetails returns a task with its full activity log tree.
func (c *Client) TaskDetails(ctx context.Context, spaceID, taskID string) (TaskDetails, error) {
	var details TaskDetails
	path := fmt.Sprintf("/api/%s/tasks/%s/details", url.PathEscape(spaceID), url.PathEscape(taskID))
	err := c.get(ctx, "get_task_details", path, url.Values{"verbose": []string{"true"}}, &details)
	return details, err
}

// TaskLog returns the task output as plain text, one log element per line, in the
// order the activity tree records them.
func (c *Client) TaskLog(ctx context.Context, spaceID, taskID string) (string, error) {
	details, err := c.TaskDetails(ctx, spaceID, taskID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, activity := range details.ActivityLogs {
		writeActivity(&b, activity)
	}
	return b.String(), nil
}

func writeActivity(b *strings.Builder, activity ActivityLog) {
	if activity.Name != "" {
		b.WriteString(activity.Name)
		b.WriteByte('\n')
	}
	for _, element := range activity.LogElements {
		b.WriteString(element.MessageText)
		b.WriteByte('\n')
	}
	for _, child := range activity.Children {
		writeActivity(b, child)
	}
}

// Channel returns a channel by id.
func (c *Client) Channel(ctx context.Context, spaceID, channelID string) (Channel, error) {
	var channel Channel
	path := fmt.Sprintf("/api/%s/channels/%s", url.PathEscape(spaceID), url.PathEscape(channelID))
	err := c.get(ctx, "get_channel", path, nil, &channel)
	return channel, err
}

// Environment returns an environment by id.
func (c *Client) Environment(ctx context.Context, spaceID, environmentID string) (Resource, error) {
	var environment Resource
	path := fmt.Sprintf("/api/%s/environments/%s", url.PathEscape(spaceID), url.PathEscape(environmentID))
	err := c.get(ctx, "get_environment", path, nil, &environment)
	return environment, err
}

// Tenant returns a tenant by id.
func (c *Client) Tenant(ctx context.Context, spaceID, tenantID string) (Resource, error) {
	var tenant Resource
	path := fmt.Sprintf("/api/%s/tenants/%s", url.PathEscape(spaceID), url.PathEscape(tenantID))
	err := c.get(ctx, "get_tenant", path, nil, &tenant)
	return tenant, err
}

// VariableSet returns a project or library variable set.
func (c *Client) VariableSet(ctx context.Context, spaceID, variableSetID string) (VariableSet, error) {
	var set VariableSet
	path := fmt.Sprintf("/api/%s/variables/%s", url.PathEscape(spaceID), url.PathEscape(variableSetID))
	err := c.get(ctx, "get_variables", path, nil, &set)
	return set, err
}

// DeploymentProcess returns a project's deployment steps.
func (c *Client) DeploymentProcess(ctx context.Context, spaceID, processID string) (DeploymentProcess, error) {
	var process DeploymentProcess
	path := fmt.Sprintf("/api/%s/deploymentprocesses/%s", url.PathEscape(spaceID), url.PathEscape(processID))
	err := c.get(ctx, "get_deployment_process", path, nil, &process)
	return process, err
}

// Dashboard returns the latest deployment of every project in every environment.
func (c *Client) Dashboard(ctx context.Context, spaceID string) (Dashboard, error) {
	var dashboard Dashboard
	err := c.get(ctx, "get_dashboard", "/api/"+url.PathEscape(spaceID)+"/dashboard", nil, &dashboard)
	return dashboard, err
}

// RunbookDashboard returns the recent runs of a runbook grouped by environment.
func (c *Client) RunbookDashboard(ctx context.Context, spaceID, runbookID string) (RunbookDashboard, error) {
	var dashboard RunbookDashboard
	path := fmt.Sprintf("/api/%s/progression/runbooks/%s", url.PathEscape(spaceID), url.PathEscape(runbookID))
	err := c.get(ctx, "get_runbook_dashboard", path, nil, &dashboard)
	return dashboard, err
}
