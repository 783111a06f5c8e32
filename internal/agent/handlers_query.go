package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcourtman/octopilot/internal/ai/llm"
	"github.com/rcourtman/octopilot/internal/ai/prompts"
	"github.com/rcourtman/octopilot/internal/ai/tools"
	"github.com/rcourtman/octopilot/internal/collector"
	"github.com/rcourtman/octopilot/internal/defaults"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/octopus"
)

const (
	noProjectMessage      = "Please specify a project name in the query."
	releasesNoProjectNote = "The query did not specify a project so the response is limited to the latest deployments for all projects.\n" +
		"To see more detailed information, specify a project name in the query."
	variablesNoProjectNote = "The query did not specify a project so the response may reference a subset of all the projects in a space.\n" +
		"To see more detailed information, specify a project name in the query."
)

type generalArgs struct {
	Space               string   `json:"space"`
	Projects            []string `json:"projects"`
	Runbooks            []string `json:"runbooks"`
	Targets             []string `json:"targets"`
	Tenants             []string `json:"tenants"`
	Environments        []string `json:"environments"`
	Channels            []string `json:"channels"`
	Accounts            []string `json:"accounts"`
	Certificates        []string `json:"certificates"`
	Feeds               []string `json:"feeds"`
	Lifecycles          []string `json:"lifecycles"`
	WorkerPools         []string `json:"worker_pools"`
	MachinePolicies     []string `json:"machine_policies"`
	TagSets             []string `json:"tag_sets"`
	ProjectGroups       []string `json:"project_groups"`
	LibraryVariableSets []string `json:"library_variable_sets"`
}

func (g generalArgs) byKind() map[octopus.Kind][]string {
	return map[octopus.Kind][]string{
		octopus.KindProjects:            g.Projects,
		octopus.KindRunbooks:            g.Runbooks,
		octopus.KindMachines:            g.Targets,
		octopus.KindTenants:             g.Tenants,
		octopus.KindEnvironments:        g.Environments,
		octopus.KindChannels:            g.Channels,
		octopus.KindAccounts:            g.Accounts,
		octopus.KindCertificates:        g.Certificates,
		octopus.KindFeeds:               g.Feeds,
		octopus.KindLifecycles:          g.Lifecycles,
		octopus.KindWorkerPools:         g.WorkerPools,
		octopus.KindMachinePolicies:     g.MachinePolicies,
		octopus.KindTagSets:             g.TagSets,
		octopus.KindProjectGroups:       g.ProjectGroups,
		octopus.KindLibraryVariableSets: g.LibraryVariableSets,
	}
}

// generalKinds are listed when a general query names no resource at all.
var generalKinds = []octopus.Kind{octopus.KindProjects, octopus.KindEnvironments, octopus.KindTenants}

type projectArgs struct {
	Space    string   `json:"space"`
	Projects []string `json:"projects"`
}

type variableArgs struct {
	Space     string   `json:"space"`
	Projects  []string `json:"projects"`
	Variables []string `json:"variables"`
}

type releaseArgs struct {
	Space        string   `json:"space"`
	Projects     []string `json:"projects"`
	Environments []string `json:"environments"`
	Tenants      []string `json:"tenants"`
	Dates        []string `json:"dates"`
}

type logArgs struct {
	Space        string   `json:"space"`
	Projects     []string `json:"projects"`
	Environments []string `json:"environments"`
	Tenants      []string `json:"tenants"`
	Release      string   `json:"release"`
}

func decode(call tools.Call, target any) error {
	if err := call.Arguments.Decode(target); err != nil {
		return internalerrors.New(internalerrors.KindInternal, "decode_arguments", err)
	}
	return nil
}

func (a *Agent) answerGeneralQuery(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	var args generalArgs
	if err := decode(call, &args); err != nil {
		return tools.Result{}, err
	}
	platform, err := a.platform(ctx, req)
	if err != nil {
		return tools.Result{}, err
	}
	space, err := a.space(ctx, req, platform, args.Space)
	if err != nil {
		return tools.Result{}, err
	}

	names := make(map[octopus.Kind][]string)
	byKind := args.byKind()
	for _, kind := range octopus.AllKinds {
		inputs := byKind[kind]
		if len(compactNames(inputs)) == 0 {
			continue
		}
		matched, err := matchNames(req, inputs, platform.Resources(ctx, space.ID, kind))
		if err != nil {
			return tools.Result{}, err
		}
		names[kind] = matched
	}
	if len(names) == 0 {
		for _, kind := range generalKinds {
			names[kind] = defaults.OrWildcard(nil)
		}
	}

	bundle, err := a.collector(platform).Resources(ctx, collector.ResourceCriteria{SpaceID: space.ID, Names: names})
	if err != nil {
		return tools.Result{}, err
	}
	return a.answer(ctx, prompts.General, prompts.Vars{Input: req.Query, JSON: bundle.JSON, HCL: bundle.Flattened})
}

func (a *Agent) answerStepFeatures(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	var args projectArgs
	if err := decode(call, &args); err != nil {
		return tools.Result{}, err
	}
	platform, err := a.platform(ctx, req)
	if err != nil {
		return tools.Result{}, err
	}
	space, err := a.space(ctx, req, platform, args.Space)
	if err != nil {
		return tools.Result{}, err
	}
	project, err := a.project(ctx, req, platform, space.ID, args.Projects)
	if err != nil {
		return tools.Result{}, err
	}
	if project.Value == "" {
		return tools.NewTextResult(noProjectMessage), nil
	}

	bundle, err := a.collector(platform).StepFeatures(ctx, space.ID, project.Value)
	if err != nil {
		return tools.Result{}, err
	}
	return a.answer(ctx, prompts.StepFeatures, prompts.Vars{Input: req.Query, JSON: bundle.JSON, HCL: bundle.Flattened})
}

// variables collects the variables of the named projects, or a sample of the space's
// projects when none is named or stored as a default.
func (a *Agent) variables(ctx context.Context, req *Request, call tools.Call) (Platform, octopus.Space, resolvedList, collector.Bundle, error) {
	var args variableArgs
	if err := decode(call, &args); err != nil {
		return nil, octopus.Space{}, resolvedList{}, collector.Bundle{}, err
	}
	platform, err := a.platform(ctx, req)
	if err != nil {
		return nil, octopus.Space{}, resolvedList{}, collector.Bundle{}, err
	}
	space, err := a.space(ctx, req, platform, args.Space)
	if err != nil {
		return nil, octopus.Space{}, resolvedList{}, collector.Bundle{}, err
	}
	projects, err := resolveNames(ctx, a, req, defaults.Project, args.Projects, platform.Projects(ctx, space.ID))
	if err != nil {
		return nil, octopus.Space{}, resolvedList{}, collector.Bundle{}, err
	}

	bundle, err := a.collector(platform).Variables(ctx, collector.VariableCriteria{
		SpaceID:   space.ID,
		Projects:  projects.Values,
		Variables: compactNames(args.Variables),
	})
	if err != nil {
		return nil, octopus.Space{}, resolvedList{}, collector.Bundle{}, err
	}
	return platform, space, projects, bundle, nil
}

func (a *Agent) answerProjectVariables(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	_, _, projects, bundle, err := a.variables(ctx, req, call)
	if err != nil {
		return tools.Result{}, err
	}
	text, err := a.complete(ctx, prompts.Variables, prompts.Vars{Input: req.Query, JSON: bundle.JSON})
	if err != nil {
		return tools.Result{}, err
	}
	if len(projects.Values) == 0 {
		text += "\n\n" + variablesNoProjectNote
	}
	return tools.NewTextResult(text), nil
}

func (a *Agent) answerProjectVariablesUsage(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	platform, space, projects, bundle, err := a.variables(ctx, req, call)
	if err != nil {
		return tools.Result{}, err
	}

	vars := prompts.Vars{Input: req.Query, JSON: bundle.JSON}
	if project := firstOf(projects.Values); project != "" {
		steps, err := a.collector(platform).StepFeatures(ctx, space.ID, project)
		if err != nil {
			return tools.Result{}, err
		}
		vars.HCL = steps.Flattened
	}

	text, err := a.complete(ctx, prompts.General, vars)
	if err != nil {
		return tools.Result{}, err
	}
	if len(projects.Values) == 0 {
		text += "\n\n" + variablesNoProjectNote
	}
	return tools.NewTextResult(text), nil
}

func (a *Agent) answerReleasesAndDeployments(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	var args releaseArgs
	if err := decode(call, &args); err != nil {
		return tools.Result{}, err
	}
	platform, err := a.platform(ctx, req)
	if err != nil {
		return tools.Result{}, err
	}
	space, err := a.space(ctx, req, platform, args.Space)
	if err != nil {
		return tools.Result{}, err
	}
	project, err := a.project(ctx, req, platform, space.ID, args.Projects)
	if err != nil {
		return tools.Result{}, err
	}

	if project.Value == "" {
		bundle, err := a.collector(platform).DashboardDeployments(ctx, space.ID)
		if err != nil {
			return tools.Result{}, err
		}
		text, err := a.complete(ctx, prompts.Releases, prompts.Vars{Input: req.Query, JSON: bundle.JSON})
		if err != nil {
			return tools.Result{}, err
		}
		return tools.NewTextResult(text + "\n\n" + releasesNoProjectNote), nil
	}

	environments, err := a.filterNames(ctx, req, platform, space.ID, octopus.KindEnvironments, defaults.Environment, args.Environments)
	if err != nil {
		return tools.Result{}, err
	}
	tenants, err := a.filterNames(ctx, req, platform, space.ID, octopus.KindTenants, defaults.Tenant, args.Tenants)
	if err != nil {
		return tools.Result{}, err
	}

	bundle, err := a.collector(platform).DeploymentBundle(ctx, collector.DeploymentCriteria{
		SpaceID:      space.ID,
		Project:      project.Value,
		Environments: environments.Values,
		Tenants:      tenants.Values,
		Dates:        compactNames(args.Dates),
	})
	if err != nil {
		return tools.Result{}, err
	}

	return a.answer(ctx, prompts.Releases, prompts.Vars{Input: req.Query, JSON: bundle.JSON},
		defaultsUsedMessages(project, environments, tenants)...)
}

// defaultsUsedMessages tell the model about names the query did not mention, so the
// answer does not contradict the question.
func defaultsUsedMessages(project resolved, environments, tenants resolvedList) []llm.Message {
	var messages []llm.Message
	if project.FromDefault {
		messages = append(messages, llm.User(fmt.Sprintf("The question relates to the project %q", project.Value)))
	}
	if environments.FromDefault {
		messages = append(messages, llm.User(relatesTo("environment", environments.Values)))
	}
	if tenants.FromDefault {
		messages = append(messages, llm.User(relatesTo("tenant", tenants.Values)))
	}
	return messages
}

func relatesTo(noun string, values []string) string {
	if len(values) != 1 {
		noun += "s"
	}
	return fmt.Sprintf("The question relates to the %s %q", noun, strings.Join(values, ","))
}

func (a *Agent) answerLogs(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	var args logArgs
	if err := decode(call, &args); err != nil {
		return tools.Result{}, err
	}
	platform, err := a.platform(ctx, req)
	if err != nil {
		return tools.Result{}, err
	}
	space, err := a.space(ctx, req, platform, args.Space)
	if err != nil {
		return tools.Result{}, err
	}
	project, err := a.project(ctx, req, platform, space.ID, args.Projects)
	if err != nil {
		return tools.Result{}, err
	}
	if project.Value == "" {
		return tools.NewTextResult(noProjectMessage), nil
	}

	environments, err := a.filterNames(ctx, req, platform, space.ID, octopus.KindEnvironments, defaults.Environment, args.Environments)
	if err != nil {
		return tools.Result{}, err
	}
	tenants, err := a.filterNames(ctx, req, platform, space.ID, octopus.KindTenants, defaults.Tenant, args.Tenants)
	if err != nil {
		return tools.Result{}, err
	}

	bundle, err := a.collector(platform).Logs(ctx, collector.LogCriteria{
		SpaceID:     space.ID,
		Project:     project.Value,
		Environment: firstOf(environments.Values),
		Tenant:      firstOf(tenants.Values),
		Release:     strings.TrimSpace(args.Release),
	})
	if err != nil {
		return tools.Result{}, err
	}
	return a.answer(ctx, prompts.Logs, prompts.Vars{Input: req.Query, Context: bundle.Logs})
}

func (a *Agent) answerMachines(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	var args struct {
		Space        string   `json:"space"`
		Machines     []string `json:"machines"`
		Environments []string `json:"environments"`
	}
	if err := decode(call, &args); err != nil {
		return tools.Result{}, err
	}
	return a.answerResources(ctx, req, args.Space, map[octopus.Kind][]string{
		octopus.KindMachines:     args.Machines,
		octopus.KindEnvironments: args.Environments,
	}, octopus.KindMachines)
}

func (a *Agent) answerCertificates(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	var args struct {
		Space        string   `json:"space"`
		Certificates []string `json:"certificates"`
	}
	if err := decode(call, &args); err != nil {
		return tools.Result{}, err
	}
	return a.answerResources(ctx, req, args.Space, map[octopus.Kind][]string{
		octopus.KindCertificates: args.Certificates,
	}, octopus.KindCertificates)
}

// answerResources lists the named resources of each kind. The primary kind is listed
// in full when the query names none of it; other kinds are only listed when named.
func (a *Agent) answerResources(ctx context.Context, req *Request, spaceInput string, inputs map[octopus.Kind][]string, primary octopus.Kind) (tools.Result, error) {
	platform, err := a.platform(ctx, req)
	if err != nil {
		return tools.Result{}, err
	}
	space, err := a.space(ctx, req, platform, spaceInput)
	if err != nil {
		return tools.Result{}, err
	}

	names := map[octopus.Kind][]string{primary: defaults.OrWildcard(nil)}
	for _, kind := range octopus.AllKinds {
		values := inputs[kind]
		if len(compactNames(values)) == 0 {
			continue
		}
		matched, err := matchNames(req, values, platform.Resources(ctx, space.ID, kind))
		if err != nil {
			return tools.Result{}, err
		}
		names[kind] = matched
	}

	bundle, err := a.collector(platform).Resources(ctx, collector.ResourceCriteria{SpaceID: space.ID, Names: names})
	if err != nil {
		return tools.Result{}, err
	}
	return a.answer(ctx, prompts.General, prompts.Vars{Input: req.Query, JSON: bundle.JSON, HCL: bundle.Flattened})
}

func compactNames(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
