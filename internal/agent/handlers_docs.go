package agent

import (
	"context"
	"strings"
	"unicode"

	"github.com/rcourtman/octopilot/internal/ai/prompts"
	"github.com/rcourtman/octopilot/internal/ai/tools"
	"github.com/rcourtman/octopilot/internal/logging"
)

// docsLimit is the number of documentation pages passed to the model.
const docsLimit = 3

var helpText = strings.Join([]string{
	"I can answer questions about your Octopus instance. Some example queries are:",
	"* What are the projects in the space \"Default\"?",
	"* Show the dashboard.",
	"* Show the runbook dashboard for runbook \"Backup\" in project \"Web\".",
	"* What was the last release of \"Web\" deployed to \"Production\"?",
	"* Why did the last deployment of \"Web\" to \"Production\" fail?",
	"* What are the variables of the project \"Web\"?",
	"* Which targets are in the environment \"Production\"?",
	"* Check for unused projects in the space \"Default\".",
	"* How do I create a runbook?",
	"",
	"You can save defaults used when a query leaves a name out, for example:",
	"* Set the default project to \"Web\".",
	"* What is the default project?",
	"* Remove my default values.",
	"",
	"Say \"Log out\" to forget your Octopus server and API key.",
}, "\n")

func (a *Agent) provideHelp(context.Context, *Request, tools.Call) (tools.Result, error) {
	return tools.NewTextResult(helpText), nil
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "can": true, "do": true, "does": true,
	"for": true, "how": true, "i": true, "in": true, "is": true, "it": true, "me": true,
	"my": true, "of": true, "on": true, "or": true, "the": true, "to": true, "what": true,
	"when": true, "where": true, "which": true, "why": true, "with": true, "you": true,
}

// queryKeywords picks search terms from a query when the model supplied none.
func queryKeywords(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	var keywords []string
	for _, word := range words {
		if len(word) < 2 || stopWords[word] {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// howTo answers from the documentation repository.
func (a *Agent) howTo(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	keywords := compactNames(call.Arguments.Strings("keywords"))
	if len(keywords) == 0 {
		keywords = queryKeywords(req.Query)
	}

	var pages []string
	if a.docs != nil && len(keywords) > 0 {
		docs, err := a.docs.SearchDocs(ctx, req.Identity.GitHubToken(), a.docsRepo, keywords, docsLimit)
		if err != nil {
			return tools.Result{}, err
		}
		for _, doc := range docs {
			content := doc.Content
			if len(content) > a.limits.MaxChars {
				content = content[:a.limits.MaxChars]
			}
			pages = append(pages, "Source: "+doc.URL+"\n"+content)
		}
	}
	logger := logging.FromContext(ctx)
	logger.Debug().
		Strs("keywords", keywords).
		Int("pages", len(pages)).
		Msg("Answering from documentation")

	return a.answer(ctx, prompts.Docs, prompts.Vars{Input: req.Query, Context: strings.Join(pages, "\n\n")})
}
