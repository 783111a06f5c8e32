package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/octopilot/internal/ai/llm"
	"github.com/rcourtman/octopilot/internal/ai/tools"
	"github.com/rcourtman/octopilot/internal/crypto"
	"github.com/rcourtman/octopilot/internal/defaults"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/github"
	"github.com/rcourtman/octopilot/internal/octopus"
)

type fakeModel struct {
	selection tools.Selection
	offered   []tools.Tool
	messages  [][]llm.Message
	answer    string
	err       error
}

func (m *fakeModel) SelectTool(_ context.Context, _ string, offered []tools.Tool) (tools.Selection, error) {
	m.offered = offered
	return m.selection, nil
}

func (m *fakeModel) Complete(_ context.Context, messages []llm.Message) (string, error) {
	m.messages = append(m.messages, messages)
	if m.err != nil {
		return "", m.err
	}
	if m.answer == "" {
		return "answer", nil
	}
	return m.answer, nil
}

func (m *fakeModel) selectTool(name string, args map[string]any) {
	raw, _ := json.Marshal(args)
	m.selection = tools.Selection{Name: name, Arguments: string(raw)}
}

// prompt joins the contents of the last prompt sent to the model.
func (m *fakeModel) prompt(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.messages, "model was not asked for an answer")
	var parts []string
	for _, msg := range m.messages[len(m.messages)-1] {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "\n")
}

type fakePlatform struct {
	spaces      []octopus.Space
	projects    []octopus.Project
	resources   map[octopus.Kind][]octopus.Resource
	runbooks    []octopus.Resource
	dashboard   octopus.Dashboard
	runbookDash octopus.RunbookDashboard
	variables   map[string]octopus.VariableSet

	resourceCalls []octopus.Kind
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		spaces: []octopus.Space{{ID: "Spaces-1", Name: "Default", IsDefault: true}, {ID: "Spaces-2", Name: "Operations"}},
		projects: []octopus.Project{
			{ID: "Projects-1", Name: "Web", VariableSetID: "variableset-Projects-1", DeploymentProcessID: "deploymentprocess-Projects-1"},
			{ID: "Projects-2", Name: "Api", VariableSetID: "variableset-Projects-2", DeploymentProcessID: "deploymentprocess-Projects-2"},
		},
		resources: map[octopus.Kind][]octopus.Resource{
			octopus.KindEnvironments: {resource("Environments-1", "Development"), resource("Environments-2", "Production")},
			octopus.KindTenants:      {resource("Tenants-1", "Acme")},
			octopus.KindMachines:     {resource("Machines-1", "web-01")},
			octopus.KindCertificates: {resource("Certificates-1", "Wildcard")},
		},
		runbooks:  []octopus.Resource{resource("Runbooks-1", "Backup Database")},
		variables: map[string]octopus.VariableSet{},
	}
}

func resource(id, name string) octopus.Resource {
	raw, _ := json.Marshal(map[string]string{"Id": id, "Name": name})
	return octopus.Resource{ID: id, Name: name, Raw: raw}
}

func seq[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (f *fakePlatform) Spaces(context.Context) iter.Seq2[octopus.Space, error] {
	return seq(f.spaces)
}

func (f *fakePlatform) SpaceByName(_ context.Context, name string) (octopus.Space, error) {
	for _, s := range f.spaces {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return octopus.Space{}, internalerrors.NewSpaceNotFound("get_space", name)
}

func (f *fakePlatform) Projects(context.Context, string) iter.Seq2[octopus.Project, error] {
	return seq(f.projects)
}

func (f *fakePlatform) ProjectByName(_ context.Context, _ string, name string) (octopus.Project, error) {
	for _, p := range f.projects {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return octopus.Project{}, internalerrors.NewResourceNotFound("get_project", "project", name)
}

func (f *fakePlatform) ProjectRunbooks(context.Context, string, string) iter.Seq2[octopus.Resource, error] {
	return seq(f.runbooks)
}

func (f *fakePlatform) ProjectReleases(context.Context, string, string, int) ([]octopus.Release, error) {
	return nil, nil
}

func (f *fakePlatform) ReleaseDeployments(context.Context, string, string) ([]octopus.Deployment, error) {
	return nil, nil
}

func (f *fakePlatform) Task(_ context.Context, _, taskID string) (octopus.Task, error) {
	return octopus.Task{ID: taskID}, nil
}

func (f *fakePlatform) TaskLog(context.Context, string, string) (string, error) {
	return "", nil
}

func (f *fakePlatform) Channel(_ context.Context, _, channelID string) (octopus.Channel, error) {
	return octopus.Channel{ID: channelID}, nil
}

func (f *fakePlatform) Environment(_ context.Context, _, id string) (octopus.Resource, error) {
	return f.byID(octopus.KindEnvironments, id)
}

func (f *fakePlatform) Tenant(_ context.Context, _, id string) (octopus.Resource, error) {
	return f.byID(octopus.KindTenants, id)
}

func (f *fakePlatform) byID(kind octopus.Kind, id string) (octopus.Resource, error) {
	for _, r := range f.resources[kind] {
		if r.ID == id {
			return r, nil
		}
	}
	return octopus.Resource{}, fmt.Errorf("%s %s missing", kind, id)
}

func (f *fakePlatform) ResourceByName(ctx context.Context, spaceID string, kind octopus.Kind, name string) (octopus.Resource, error) {
	for r := range f.Resources(ctx, spaceID, kind) {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return octopus.Resource{}, internalerrors.NewResourceNotFound("get_"+kind.Label(), kind.Label(), name)
}

func (f *fakePlatform) Resources(_ context.Context, _ string, kind octopus.Kind) iter.Seq2[octopus.Resource, error] {
	f.resourceCalls = append(f.resourceCalls, kind)
	if kind == octopus.KindProjects {
		var projects []octopus.Resource
		for _, p := range f.projects {
			projects = append(projects, resource(p.ID, p.Name))
		}
		return seq(projects)
	}
	return seq(f.resources[kind])
}

func (f *fakePlatform) VariableSet(_ context.Context, _, id string) (octopus.VariableSet, error) {
	return f.variables[id], nil
}

func (f *fakePlatform) DeploymentProcess(context.Context, string, string) (octopus.DeploymentProcess, error) {
	return octopus.DeploymentProcess{}, nil
}

func (f *fakePlatform) Dashboard(context.Context, string) (octopus.Dashboard, error) {
	return f.dashboard, nil
}

func (f *fakePlatform) RunbookDashboard(context.Context, string, string) (octopus.RunbookDashboard, error) {
	return f.runbookDash, nil
}

type fakeUsers struct{}

func (fakeUsers) User(_ context.Context, token string) (github.User, error) {
	if token == "" {
		return github.User{}, internalerrors.NewUserNotLoggedIn("get_user")
	}
	return github.User{ID: 1, Login: "alice"}, nil
}

type fakeDocs struct {
	keywords []string
	token    string
	docs     []github.Document
}

func (d *fakeDocs) SearchDocs(_ context.Context, token, _ string, keywords []string, _ int) ([]github.Document, error) {
	d.token = token
	d.keywords = keywords
	return d.docs, nil
}

type fakeLint struct {
	spaceID string
	check   string
	report  string
}

func (l *fakeLint) Check(_ context.Context, _ octopus.Credentials, spaceID, check string) (string, error) {
	l.spaceID = spaceID
	l.check = check
	return l.report, nil
}

type harness struct {
	agent    *Agent
	model    *fakeModel
	platform *fakePlatform
	store    *defaults.SQLiteStore
	docs     *fakeDocs
	lint     *fakeLint
	opened   []octopus.Credentials
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mgr, err := crypto.NewCryptoManager("password", "salt")
	require.NoError(t, err)
	store, err := defaults.NewSQLiteStore(filepath.Join(t.TempDir(), "octopilot.db"), mgr)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SaveUserDetails(context.Background(), defaults.UserDetails{
		User:   "alice",
		Server: "https://octopus.example",
		APIKey: "API-ALICE",
	}))

	h := &harness{
		model:    &fakeModel{},
		platform: newFakePlatform(),
		store:    store,
		docs:     &fakeDocs{},
		lint:     &fakeLint{report: "Projects-1 is unused\nProjects-2 is unused"},
	}
	h.agent, err = New(Options{
		Model: h.model,
		Store: store,
		Platforms: func(creds octopus.Credentials) (Platform, error) {
			h.opened = append(h.opened, creds)
			return h.platform, nil
		},
		Docs:    h.docs,
		Lint:    h.lint,
		IsAdmin: func(login string) bool { return login == "admin" },
	})
	require.NoError(t, err)
	return h
}

func (h *harness) request(query string) *Request {
	return NewRequest(query, NewIdentity(IdentityHeaders{GitHubToken: "gh-token"}, fakeUsers{}, h.store))
}

func (h *harness) ask(t *testing.T, query, tool string, args map[string]any) (tools.Result, error) {
	t.Helper()
	h.model.selectTool(tool, args)
	return h.agent.Answer(context.Background(), h.request(query))
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{Model: &fakeModel{}})
	require.Error(t, err)
}

func TestDefinitionsIncludeFallback(t *testing.T) {
	h := newHarness(t)
	var names []string
	for _, tool := range h.agent.Definitions() {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, ToolGeneralQuery)
	assert.Contains(t, names, ToolDashboard)
	assert.Contains(t, names, ToolHowTo)
}

func TestGeneralQueryResolvesNamesAndRewritesQuery(t *testing.T) {
	h := newHarness(t)

	result, err := h.ask(t, `What does the project "web" deploy to Prodution?`, ToolGeneralQuery, map[string]any{
		"space":        "default",
		"projects":     []string{"web"},
		"environments": []string{"Prodution"},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", result.Text)

	prompt := h.model.prompt(t)
	assert.Contains(t, prompt, `Question: What does the project "Web" deploy to Production?`)
	assert.Contains(t, prompt, "Projects-1")
	assert.Contains(t, prompt, "Environments-2")
	assert.NotContains(t, prompt, "Projects-2")

	require.Len(t, h.opened, 1)
	assert.Equal(t, octopus.Credentials{URL: "https://octopus.example", APIKey: "API-ALICE"}, h.opened[0])
}

func TestGeneralQueryResolvesKindsInFixedOrder(t *testing.T) {
	args := map[string]any{
		"tenants":      []string{"acme"},
		"targets":      []string{"web-01"},
		"environments": []string{"production"},
		"projects":     []string{"web"},
	}
	want := []octopus.Kind{octopus.KindProjects, octopus.KindEnvironments, octopus.KindTenants, octopus.KindMachines}

	for i := 0; i < 10; i++ {
		h := newHarness(t)
		_, err := h.ask(t, "What do web, production, acme and web-01 have in common?", ToolGeneralQuery, args)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(h.platform.resourceCalls), len(want))
		assert.Equal(t, want, h.platform.resourceCalls[:len(want)])
	}
}

func TestGeneralQueryWithoutEntitiesListsSummaryKinds(t *testing.T) {
	h := newHarness(t)

	_, err := h.ask(t, "What is in my instance?", ToolGeneralQuery, map[string]any{})
	require.NoError(t, err)

	prompt := h.model.prompt(t)
	assert.Contains(t, prompt, "Projects-2")
	assert.Contains(t, prompt, "Environments-1")
	assert.Contains(t, prompt, "Tenants-1")
	assert.NotContains(t, prompt, "Machines-1")
}

func TestInvalidSelectionRunsGeneralQueryWithRawQuery(t *testing.T) {
	h := newHarness(t)
	h.model.selection = tools.Selection{}

	result, err := h.agent.Answer(context.Background(), h.request("List everything"))
	require.NoError(t, err)
	assert.Equal(t, "answer", result.Text)
	assert.Contains(t, h.model.prompt(t), "Question: List everything")
}

func TestUnknownToolRunsDocumentationFallback(t *testing.T) {
	h := newHarness(t)
	h.docs.docs = []github.Document{{Path: "runbooks.md", URL: "https://docs.example/runbooks", Content: "Runbooks automate routine tasks."}}

	_, err := h.ask(t, "How do I create a runbook?", "answer_something_else", map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, []string{"create", "runbook"}, h.docs.keywords)
	assert.Equal(t, "gh-token", h.docs.token)
	prompt := h.model.prompt(t)
	assert.Contains(t, prompt, "Source: https://docs.example/runbooks")
	assert.Contains(t, prompt, "Runbooks automate routine tasks.")
	assert.Empty(t, h.opened, "documentation answers do not open the platform")
}

func TestUnmatchedMachineIsReportedNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.ask(t, "Is db-99 healthy?", ToolMachines, map[string]any{"machines": []string{"db-99"}})
	require.Error(t, err)
	assert.Equal(t, internalerrors.KindResourceNotFound, internalerrors.KindOf(err))
	assert.Empty(t, h.model.messages)
}

func TestUnknownSpaceIsReported(t *testing.T) {
	h := newHarness(t)
	h.platform.spaces = []octopus.Space{{ID: "Spaces-2", Name: "Operations"}}

	_, err := h.ask(t, "Show the dashboard", ToolDashboard, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, internalerrors.KindSpaceNotFound, internalerrors.KindOf(err))
}

func TestReleasesWithoutProjectUseDashboard(t *testing.T) {
	h := newHarness(t)
	h.platform.dashboard = octopus.Dashboard{
		Projects:     []octopus.Resource{resource("Projects-1", "Web")},
		Environments: []octopus.Resource{resource("Environments-2", "Production")},
		Items:        []octopus.DashboardItem{{ProjectID: "Projects-1", EnvironmentID: "Environments-2", ReleaseVersion: "1.2.3", State: "Success"}},
	}

	result, err := h.ask(t, "What was deployed recently?", ToolReleasesAndDeployments, map[string]any{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Text, "answer\n\n"))
	assert.True(t, strings.HasSuffix(result.Text, releasesNoProjectNote))
	assert.Contains(t, h.model.prompt(t), "1.2.3")
}

func TestReleasesTellModelAboutDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, "alice", defaults.Project, "Web"))
	require.NoError(t, h.store.Set(ctx, "alice", defaults.Environment, "Production"))

	_, err := h.ask(t, "What was the last release?", ToolReleasesAndDeployments, map[string]any{})
	require.NoError(t, err)

	messages := h.model.messages[0]
	var user []string
	for _, msg := range messages {
		if msg.Role == llm.RoleUser {
			user = append(user, msg.Content)
		}
	}
	require.GreaterOrEqual(t, len(user), 3)
	assert.Equal(t, `The question relates to the project "Web"`, user[0])
	assert.Equal(t, `The question relates to the environment "Production"`, user[1])
	assert.Equal(t, "Question: What was the last release?", user[2])
}

func TestReleasesWithNamedProjectAddNoDefaultMessages(t *testing.T) {
	h := newHarness(t)

	_, err := h.ask(t, "What was the last release of Web?", ToolReleasesAndDeployments, map[string]any{"projects": []string{"Web"}})
	require.NoError(t, err)
	assert.NotContains(t, h.model.prompt(t), "The question relates to")
}

func TestReleasesUnknownEnvironmentIgnoresStoredDefault(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(context.Background(), "alice", defaults.Environment, "Development"))

	_, err := h.ask(t, "What was the last deployment of Web to Qa-Europe?", ToolReleasesAndDeployments,
		map[string]any{"projects": []string{"Web"}, "environments": []string{"Qa-Europe"}})
	require.Error(t, err)
	assert.Equal(t, internalerrors.KindResourceNotFound, internalerrors.KindOf(err))
	assert.Contains(t, err.Error(), "Qa-Europe")
	assert.Empty(t, h.model.messages)
}

func TestRelatesToPluralizes(t *testing.T) {
	assert.Equal(t, `The question relates to the tenant "Acme"`, relatesTo("tenant", []string{"Acme"}))
	assert.Equal(t, `The question relates to the environments "Development,Production"`,
		relatesTo("environment", []string{"Development", "Production"}))
}

func TestMissingProjectAnswersWithPrompt(t *testing.T) {
	h := newHarness(t)

	for _, tool := range []string{ToolLogs, ToolStepFeatures} {
		result, err := h.ask(t, "Why did it fail?", tool, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, noProjectMessage, result.Text)
	}
	assert.Empty(t, h.model.messages)
}

func TestVariablesWithoutProjectAppendNote(t *testing.T) {
	h := newHarness(t)

	result, err := h.ask(t, "Which variables are defined?", ToolProjectVariables, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "answer\n\n"+variablesNoProjectNote, result.Text)
}

func TestDashboardReturnsMarkdownWithoutModel(t *testing.T) {
	h := newHarness(t)
	h.platform.dashboard = octopus.Dashboard{
		Projects:     []octopus.Resource{resource("Projects-1", "Web")},
		Environments: []octopus.Resource{resource("Environments-2", "Production")},
	}

	result, err := h.ask(t, "Show the dashboard", ToolDashboard, map[string]any{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Text, "# Default\n"))
	assert.Contains(t, result.Text, "| Web |")
	assert.Empty(t, h.model.messages)
}

func TestRunbookDashboardAssumesFirstSpace(t *testing.T) {
	h := newHarness(t)
	h.platform.spaces = []octopus.Space{{ID: "Spaces-9", Name: "Operations"}}

	result, err := h.ask(t, "Show the backup runbook", ToolRunbookDashboard, map[string]any{
		"project": "web",
		"runbook": "Backup Databse",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Text, "# Web / Backup Database"))
	assert.True(t, strings.HasSuffix(result.Text,
		"\n\nThe query did not specify a space so the space named Operations was assumed."))
}

func TestRunbookDashboardRequiresRunbook(t *testing.T) {
	h := newHarness(t)

	result, err := h.ask(t, "Show the runbook dashboard", ToolRunbookDashboard, map[string]any{"project": "Web"})
	require.NoError(t, err)
	assert.Equal(t, noRunbookMessage, result.Text)

	_, err = h.ask(t, "Show the runbook dashboard", ToolRunbookDashboard, map[string]any{"project": "Web", "runbook": "Deploy Everything"})
	require.Error(t, err)
	assert.Equal(t, internalerrors.KindResourceNotFound, internalerrors.KindOf(err))
}

func TestOctolintFormatsReport(t *testing.T) {
	h := newHarness(t)

	result, err := h.ask(t, "Find unused projects", ToolOctolintUnusedProjects, map[string]any{"space": "Operations"})
	require.NoError(t, err)

	assert.Equal(t, "Spaces-2", h.lint.spaceID)
	assert.Equal(t, CheckUnusedProjects, h.lint.check)
	assert.Equal(t, "Projects-1 is unused\n\nProjects-2 is unused\n\n"+
		"Read the [documentation](https://github.com/OctopusSolutionsEngineering/OctopusRecommendationEngine/wiki/OctoLintUnusedProjects) "+
		"for more information on these results and practical next steps.", result.Text)
}

func TestDefaultValueLifecycle(t *testing.T) {
	h := newHarness(t)

	result, err := h.ask(t, "Set the default space to operatons", ToolSetDefault, map[string]any{
		"default_name": "Space", "default_value": "operatons",
	})
	require.NoError(t, err)
	assert.Equal(t, `Saved default value "Operations" for "space"`, result.Text)

	result, err = h.ask(t, "What is the default space?", ToolGetDefault, map[string]any{"default_name": "space"})
	require.NoError(t, err)
	assert.Equal(t, `The default value for "space" is "Operations"`, result.Text)

	result, err = h.ask(t, "Remove my defaults", ToolRemoveDefaults, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Deleted default values", result.Text)

	result, err = h.ask(t, "What is the default space?", ToolGetDefault, map[string]any{"default_name": "space"})
	require.NoError(t, err)
	assert.Equal(t, `There is no default value for "space"`, result.Text)
}

func TestSetDefaultRejectsUnknownName(t *testing.T) {
	h := newHarness(t)

	_, err := h.ask(t, "Set the default colour to blue", ToolSetDefault, map[string]any{
		"default_name": "colour", "default_value": "blue",
	})
	require.Error(t, err)
	assert.Equal(t, internalerrors.KindInvalidArgument, internalerrors.KindOf(err))
}

func TestStoredSpaceDefaultIsUsed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(context.Background(), "alice", defaults.Space, "Operations"))

	_, err := h.ask(t, "Find unused projects", ToolOctolintUnusedProjects, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Spaces-2", h.lint.spaceID)
}

func TestLogoutForgetsUser(t *testing.T) {
	h := newHarness(t)

	result, err := h.ask(t, "Log out", ToolLogout, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Sign out successful", result.Text)

	_, err = h.store.UserDetails(context.Background(), "alice")
	assert.Equal(t, internalerrors.KindUserNotConfigured, internalerrors.KindOf(err))
}

func TestCleanUpAllRecordsRequiresAdmin(t *testing.T) {
	h := newHarness(t)

	_, err := h.ask(t, "Clean up all records", ToolCleanUpAllRecords, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, internalerrors.KindNotAuthorized, internalerrors.KindOf(err))
}

func TestUserStateToolsRequireLogin(t *testing.T) {
	h := newHarness(t)
	h.model.selectTool(ToolGetDefault, map[string]any{"default_name": "project"})

	req := NewRequest("What is the default project?", NewIdentity(IdentityHeaders{}, fakeUsers{}, h.store))
	_, err := h.agent.Answer(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, internalerrors.KindUserNotLoggedIn, internalerrors.KindOf(err))
}

func TestHeaderCredentialsSkipStoredDetails(t *testing.T) {
	h := newHarness(t)
	h.model.selectTool(ToolDashboard, map[string]any{})

	identity := NewIdentity(IdentityHeaders{APIKey: "API-HEADER", Server: "https://other.example"}, fakeUsers{}, h.store)
	_, err := h.agent.Answer(context.Background(), NewRequest("Show the dashboard", identity))
	require.NoError(t, err)
	require.Len(t, h.opened, 1)
	assert.Equal(t, "API-HEADER", h.opened[0].APIKey)
}

func TestModelErrorsPassThrough(t *testing.T) {
	h := newHarness(t)
	h.model.err = internalerrors.NewContentFiltered("complete", fmt.Errorf("filtered"))

	_, err := h.ask(t, "What are the projects?", ToolGeneralQuery, map[string]any{"projects": []string{"Web"}})
	require.Error(t, err)
	assert.Equal(t, internalerrors.KindContentFiltered, internalerrors.KindOf(err))
}

func TestHelpListsExamples(t *testing.T) {
	h := newHarness(t)

	result, err := h.ask(t, "help", ToolHelp, map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Show the dashboard.")
	assert.Empty(t, h.opened)
}

func TestParseQueryReturnsEntities(t *testing.T) {
	h := newHarness(t)
	h.model.selectTool(ToolGeneralQuery, map[string]any{"projects": []string{"Web"}, "colour": "blue"})

	result, err := h.agent.ParseQuery(context.Background(), h.request("What does Web do?"))
	require.NoError(t, err)
	require.True(t, result.Structured())
	assert.JSONEq(t, `{"projects":["Web"]}`, result.Text)
	assert.Empty(t, h.opened)
}

func TestParseQueryWithoutSelectionReturnsEmptyObject(t *testing.T) {
	h := newHarness(t)
	h.model.selection = tools.Selection{}

	result, err := h.agent.ParseQuery(context.Background(), h.request("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, result.Text)
}

func TestAnswerSuppliedUsesRequestContext(t *testing.T) {
	h := newHarness(t)
	h.model.selectTool(ToolLogs, map[string]any{})

	req := h.request("Why did the deployment fail?")
	req.Supplied = SuppliedContext{Context: "error: disk full"}
	_, err := h.agent.AnswerSupplied(context.Background(), req)
	require.NoError(t, err)

	assert.Contains(t, h.model.prompt(t), "Deployment Log: ###\nerror: disk full\n###")
	assert.Empty(t, h.opened)
}

func TestQueryKeywordsDropStopWords(t *testing.T) {
	assert.Equal(t, []string{"configure", "tenant", "tags"}, queryKeywords("How do I configure a tenant's tags?"))
}
