// Package agent answers natural language questions about an Octopus instance.
//
// A query is routed to exactly one tool by the language model. The tool resolves
// the names the query mentions, fills gaps from the user's stored defaults, collects
// bounded context from the platform and asks the model for the answer.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcourtman/octopilot/internal/ai/llm"
	"github.com/rcourtman/octopilot/internal/ai/prompts"
	"github.com/rcourtman/octopilot/internal/ai/tools"
	"github.com/rcourtman/octopilot/internal/collector"
	"github.com/rcourtman/octopilot/internal/config"
	"github.com/rcourtman/octopilot/internal/defaults"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/resolve"
)

// Request is the state of one query as it moves through the pipeline.
type Request struct {
	// Query is the user's question. Names the resolver matches are rewritten to
	// their canonical spelling as the handler runs.
	Query    string
	Identity *Identity
	Supplied SuppliedContext

	platform Platform
}

// NewRequest creates a request for query.
func NewRequest(query string, identity *Identity) *Request {
	return &Request{Query: strings.TrimSpace(query), Identity: identity}
}

func (r *Request) substitute(matches ...resolve.Match) {
	r.Query = resolve.Substitute(r.Query, matches...)
}

// SuppliedContext is context the caller sends instead of having it collected.
type SuppliedContext struct {
	JSON    string `json:"json"`
	HCL     string `json:"hcl"`
	Context string `json:"context"`
}

// Options configure an Agent.
type Options struct {
	Model     llm.Model
	Prompts   *prompts.Catalog
	Store     Store
	Platforms PlatformFactory
	Docs      DocsSearcher
	Lint      LintChecker
	Limits    config.Limits

	DocsRepo string
	IsAdmin  func(login string) bool
}

// Agent owns the tool catalogs and everything the handlers need.
type Agent struct {
	model      llm.Model
	prompts    *prompts.Catalog
	store      Store
	resolver   *defaults.ArgumentResolver
	platforms  PlatformFactory
	docs       DocsSearcher
	lint       LintChecker
	limits     config.Limits
	docsRepo   string
	isAdmin    func(login string) bool
	dispatcher *tools.Dispatcher[*Request]

	catalog  *tools.Catalog[*Request]
	supplied *tools.Catalog[*Request]
	parser   *tools.Catalog[*Request]
}

// New creates an agent.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("a language model is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("a store is required")
	}
	if opts.Platforms == nil {
		return nil, fmt.Errorf("a platform factory is required")
	}
	if opts.Prompts == nil {
		catalog, err := prompts.Load()
		if err != nil {
			return nil, err
		}
		opts.Prompts = catalog
	}
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(string) bool { return false }
	}
	if opts.DocsRepo == "" {
		opts.DocsRepo = "OctopusDeploy/docs"
	}

	a := &Agent{
		model:      opts.Model,
		prompts:    opts.Prompts,
		store:      opts.Store,
		resolver:   defaults.NewArgumentResolver(opts.Store),
		platforms:  opts.Platforms,
		docs:       opts.Docs,
		lint:       opts.Lint,
		limits:     collector.New(nil, opts.Limits).Limits(),
		docsRepo:   opts.DocsRepo,
		isAdmin:    opts.IsAdmin,
		dispatcher: tools.NewDispatcher[*Request](opts.Model, tools.NewSchemaValidator()),
	}

	var err error
	if a.catalog, err = a.buildCatalog(); err != nil {
		return nil, err
	}
	if a.supplied, err = a.buildSuppliedCatalog(); err != nil {
		return nil, err
	}
	if a.parser, err = a.buildParserCatalog(); err != nil {
		return nil, err
	}
	return a, nil
}

// Answer routes the request to a tool and returns its answer.
func (a *Agent) Answer(ctx context.Context, req *Request) (tools.Result, error) {
	return a.dispatcher.Dispatch(ctx, req, req.Query, a.catalog)
}

// AnswerSupplied answers from req.Supplied without reading the platform.
func (a *Agent) AnswerSupplied(ctx context.Context, req *Request) (tools.Result, error) {
	return a.dispatcher.Dispatch(ctx, req, req.Query, a.supplied)
}

// ParseQuery returns the entities the model extracts from the query as JSON.
func (a *Agent) ParseQuery(ctx context.Context, req *Request) (tools.Result, error) {
	return a.dispatcher.Dispatch(ctx, req, req.Query, a.parser)
}

// Definitions lists the tools offered to the model for a normal query.
func (a *Agent) Definitions() []tools.Tool {
	return a.catalog.Definitions()
}

// platform opens the platform client for the request once.
func (a *Agent) platform(ctx context.Context, req *Request) (Platform, error) {
	if req.platform != nil {
		return req.platform, nil
	}
	creds, err := req.Identity.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	platform, err := a.platforms(creds)
	if err != nil {
		return nil, internalerrors.NewInvalidCredential("open_platform", err)
	}
	req.platform = platform
	return platform, nil
}

func (a *Agent) collector(platform Platform) *collector.Collector {
	return collector.New(platform, a.limits)
}

// complete renders a prompt and asks the model for the answer.
func (a *Agent) complete(ctx context.Context, name string, vars prompts.Vars, extra ...llm.Message) (string, error) {
	messages, err := a.prompts.Render(name, vars, extra...)
	if err != nil {
		return "", internalerrors.New(internalerrors.KindInternal, "render_prompt", err)
	}
	return a.model.Complete(ctx, messages)
}

// answer is complete wrapped as a text result.
func (a *Agent) answer(ctx context.Context, name string, vars prompts.Vars, extra ...llm.Message) (tools.Result, error) {
	text, err := a.complete(ctx, name, vars, extra...)
	if err != nil {
		return tools.Result{}, err
	}
	return tools.NewTextResult(text), nil
}
