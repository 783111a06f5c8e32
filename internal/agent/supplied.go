package agent

import (
	"context"

	"github.com/rcourtman/octopilot/internal/ai/prompts"
	"github.com/rcourtman/octopilot/internal/ai/tools"
)

// buildSuppliedCatalog routes queries answered from context the caller sent with the
// request. None of its handlers read the platform.
func (a *Agent) buildSuppliedCatalog() (*tools.Catalog[*Request], error) {
	catalog := tools.NewCatalog[*Request]()
	registered := []tools.RegisteredTool[*Request]{
		{
			Definition: tools.Tool{
				Name: ToolGeneralQuery,
				Description: "Answers a general query about the Octopus resources in the supplied configuration. " +
					"Example prompts: What are the projects? Which steps does the deployment process have?",
				InputSchema: generalQuerySchema(),
			},
			Handler: a.answerSuppliedGeneral,
		},
		{
			Definition: tools.Tool{
				Name:        ToolLogs,
				Description: "Answers questions about the supplied deployment logs. Example prompts: Why did the deployment fail? Summarize the log.",
				InputSchema: logsSchema(),
			},
			Handler: a.answerSuppliedLogs,
		},
		{
			Definition: tools.Tool{
				Name:        ToolReleasesAndDeployments,
				Description: "Answers questions about the supplied releases and deployments. Example prompts: What was the last release deployed to \"Production\"?",
				InputSchema: releasesSchema(),
			},
			Handler: a.answerSuppliedReleases,
		},
	}
	for _, tool := range registered {
		if err := catalog.Register(tool); err != nil {
			return nil, err
		}
	}

	catalog.SetFallback(a.howToTool(a.howTo))
	catalog.SetInvalid(tools.RegisteredTool[*Request]{
		Definition: tools.Tool{Name: ToolGeneralQuery, InputSchema: generalQuerySchema()},
		Handler:    a.answerSuppliedGeneral,
	})
	return catalog, nil
}

func (a *Agent) answerSuppliedGeneral(ctx context.Context, req *Request, _ tools.Call) (tools.Result, error) {
	return a.answer(ctx, prompts.HCL, prompts.Vars{
		Input:   req.Query,
		JSON:    req.Supplied.JSON,
		HCL:     req.Supplied.HCL,
		Context: req.Supplied.Context,
	})
}

func (a *Agent) answerSuppliedLogs(ctx context.Context, req *Request, _ tools.Call) (tools.Result, error) {
	return a.answer(ctx, prompts.Logs, prompts.Vars{Input: req.Query, Context: req.Supplied.Context})
}

func (a *Agent) answerSuppliedReleases(ctx context.Context, req *Request, _ tools.Call) (tools.Result, error) {
	return a.answer(ctx, prompts.Releases, prompts.Vars{Input: req.Query, JSON: req.Supplied.JSON})
}

// buildParserCatalog offers only the general query schema. Its handler returns the
// extracted entities instead of an answer.
func (a *Agent) buildParserCatalog() (*tools.Catalog[*Request], error) {
	catalog := tools.NewCatalog[*Request]()
	err := catalog.Register(tools.RegisteredTool[*Request]{
		Definition: tools.Tool{
			Name:        ToolGeneralQuery,
			Description: "Extracts the names of the Octopus resources mentioned in a query.",
			InputSchema: generalQuerySchema(),
		},
		Handler: parseEntities,
	})
	if err != nil {
		return nil, err
	}
	catalog.SetInvalid(tools.RegisteredTool[*Request]{
		Definition: tools.Tool{Name: ToolGeneralQuery, InputSchema: generalQuerySchema()},
		Handler:    parseEntities,
	})
	return catalog, nil
}

func parseEntities(_ context.Context, _ *Request, call tools.Call) (tools.Result, error) {
	return tools.NewJSONResult(call.Arguments.Known())
}
