package agent

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rcourtman/octopilot/internal/ai/tools"
	"github.com/rcourtman/octopilot/internal/defaults"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/octopus"
	"github.com/rcourtman/octopilot/internal/resolve"
)

const (
	noRunbookMessage = "Please specify a runbook name in the query."

	// CheckUnusedProjects is the octolint check run by the unused projects tool.
	CheckUnusedProjects = "OctoLintUnusedProjects"

	octolintWiki = "https://github.com/OctopusSolutionsEngineering/OctopusRecommendationEngine/wiki/"
)

func (a *Agent) getDashboard(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	platform, err := a.platform(ctx, req)
	if err != nil {
		return tools.Result{}, err
	}
	space, err := a.space(ctx, req, platform, call.Arguments.String("space"))
	if err != nil {
		return tools.Result{}, err
	}

	markdown, err := a.collector(platform).DashboardMarkdown(ctx, space.ID, space.Name)
	if err != nil {
		return tools.Result{}, err
	}
	return tools.NewTextResult(markdown), nil
}

// runbookSpace resolves the space for a runbook dashboard. Without a name or a stored
// default the first space is used, and assumed is set so the answer can say so.
func (a *Agent) runbookSpace(ctx context.Context, req *Request, platform Platform, input string) (space octopus.Space, assumed bool, err error) {
	name, err := resolveName(ctx, a, req, defaults.Space, input, platform.Spaces(ctx))
	if err != nil {
		return octopus.Space{}, false, err
	}
	if name.Value != "" {
		space, err = platform.SpaceByName(ctx, name.Value)
		return space, false, err
	}

	for space, err := range platform.Spaces(ctx) {
		if err != nil {
			return octopus.Space{}, false, err
		}
		return space, true, nil
	}
	return octopus.Space{}, false, internalerrors.NewSpaceNotFound("get_runbook_dashboard", DefaultSpaceName)
}

func (a *Agent) getRunbookDashboard(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	const op = "get_runbook_dashboard"
	var args struct {
		Space   string `json:"space"`
		Project string `json:"project"`
		Runbook string `json:"runbook"`
	}
	if err := decode(call, &args); err != nil {
		return tools.Result{}, err
	}
	platform, err := a.platform(ctx, req)
	if err != nil {
		return tools.Result{}, err
	}
	space, assumed, err := a.runbookSpace(ctx, req, platform, args.Space)
	if err != nil {
		return tools.Result{}, err
	}

	projectName, err := a.project(ctx, req, platform, space.ID, []string{args.Project})
	if err != nil {
		return tools.Result{}, err
	}
	if projectName.Value == "" {
		return tools.NewTextResult(noProjectMessage), nil
	}
	if strings.TrimSpace(args.Runbook) == "" {
		return tools.NewTextResult(noRunbookMessage), nil
	}

	project, err := platform.ProjectByName(ctx, space.ID, projectName.Value)
	if err != nil {
		return tools.Result{}, err
	}
	match, err := resolve.Resolve(args.Runbook, platform.ProjectRunbooks(ctx, space.ID, project.ID))
	if err != nil {
		return tools.Result{}, err
	}
	if !match.Found() {
		return tools.Result{}, internalerrors.NewResourceNotFound(op, octopus.KindRunbooks.Label(), args.Runbook)
	}
	req.substitute(match)

	markdown, err := a.collector(platform).RunbookDashboardMarkdown(ctx, space.ID, project.Name,
		octopus.Resource{ID: match.ID, Name: match.Name})
	if err != nil {
		return tools.Result{}, err
	}
	if assumed {
		markdown += fmt.Sprintf("\n\nThe query did not specify a space so the space named %s was assumed.", space.Name)
	}
	return tools.NewTextResult(markdown), nil
}

func (a *Agent) octolintUnusedProjects(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	if a.lint == nil {
		return tools.Result{}, internalerrors.New(internalerrors.KindInternal, "octolint", fmt.Errorf("octolint is not configured"))
	}
	platform, err := a.platform(ctx, req)
	if err != nil {
		return tools.Result{}, err
	}
	space, err := a.space(ctx, req, platform, call.Arguments.String("space"))
	if err != nil {
		return tools.Result{}, err
	}
	creds, err := req.Identity.Credentials(ctx)
	if err != nil {
		return tools.Result{}, err
	}

	var report string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report, err = a.lint.Check(gctx, creds, space.ID, CheckUnusedProjects)
		return err
	})
	if err := g.Wait(); err != nil {
		return tools.Result{}, err
	}

	report = strings.ReplaceAll(report, "\n", "\n\n")
	wiki := fmt.Sprintf("Read the [documentation](%s%s) for more information on these results and practical next steps.",
		octolintWiki, CheckUnusedProjects)
	return tools.NewTextResult(report + "\n\n" + wiki), nil
}
