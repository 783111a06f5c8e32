package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/rcourtman/octopilot/internal/ai/tools"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/logging"
	"github.com/rcourtman/octopilot/internal/metrics"
)

const (
	defaultModel           = "gpt-4o"
	defaultMaxPromptTokens = 100000

	finishReasonContentFilter = "content_filter"
	codeContentFilter         = "content_filter"
	codeContextLength         = "context_length_exceeded"
)

// DefaultSelectionPrompt is the system message sent with every tool selection request.
const DefaultSelectionPrompt = "You are a helpful agent that answers questions about an Octopus Deploy instance. " +
	"Select the single function that best answers the question and extract its arguments from the question. " +
	"Only use argument values that appear in the question."

// Config holds the settings for the OpenAI client
type Config struct {
	APIKey          string
	BaseURL         string // optional, for OpenAI compatible endpoints
	Model           string
	MaxPromptTokens int
	MaxRetries      int
	HTTPClient      *http.Client
	SelectionPrompt string
}

// Client implements Model against OpenAI's chat completions API
type Client struct {
	client          openai.Client
	model           string
	maxPromptTokens int
	selectionPrompt string
	tokens          *TokenCounter
}

// NewClient creates a new OpenAI API client
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxPromptTokens := cfg.MaxPromptTokens
	if maxPromptTokens <= 0 {
		maxPromptTokens = defaultMaxPromptTokens
	}
	selectionPrompt := cfg.SelectionPrompt
	if selectionPrompt == "" {
		selectionPrompt = DefaultSelectionPrompt
	}

	tokens, err := NewTokenCounter()
	if err != nil {
		// The counter degrades to a character estimate.
		log.Warn().Err(err).Msg("Falling back to character based token estimates")
	}

	return &Client{
		client:          openai.NewClient(opts...),
		model:           model,
		maxPromptTokens: maxPromptTokens,
		selectionPrompt: selectionPrompt,
		tokens:          tokens,
	}, nil
}

// Name returns the provider name
func (c *Client) Name() string {
	return "openai"
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Complete sends the conversation and returns the model's answer.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	const op = "complete"

	if err := c.checkBudget(op, messages); err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    convertMessages(messages),
		Temperature: openai.Float(0),
	}

	started := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	metrics.ObserveUpstream(internalerrors.ServiceOpenAI, op, started)
	if err != nil {
		return "", classify(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", internalerrors.WrapUpstream(internalerrors.ServiceOpenAI, op, errors.New("no response choices returned"), 0)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == finishReasonContentFilter {
		return "", internalerrors.NewContentFiltered(op, errors.New("answer stopped by the content filter"))
	}

	logger := logging.FromContext(ctx)

	logger.Debug().
		Str("model", c.model).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Completion finished")

	return choice.Message.Content, nil
}

// SelectTool offers the tools to the model as functions and returns the first call it
// makes. A reply without a tool call yields an empty selection.
func (c *Client) SelectTool(ctx context.Context, query string, available []tools.Tool) (tools.Selection, error) {
	const op = "select_tool"

	messages := []Message{System(c.selectionPrompt), User(query)}
	if err := c.checkBudget(op, messages); err != nil {
		return tools.Selection{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    convertMessages(messages),
		Temperature: openai.Float(0),
	}
	if len(available) > 0 {
		params.Tools = convertTools(available)
		params.ParallelToolCalls = openai.Bool(false)
	}

	started := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	metrics.ObserveUpstream(internalerrors.ServiceOpenAI, op, started)
	if err != nil {
		return tools.Selection{}, classify(op, err)
	}
	if len(resp.Choices) == 0 {
		return tools.Selection{}, nil
	}

	choice := resp.Choices[0]
	if choice.FinishReason == finishReasonContentFilter {
		return tools.Selection{}, internalerrors.NewContentFiltered(op, errors.New("tool selection stopped by the content filter"))
	}
	if len(choice.Message.ToolCalls) == 0 {
		logger := logging.FromContext(ctx)
		logger.Debug().Str("content", choice.Message.Content).Msg("Model answered without a tool call")
		return tools.Selection{}, nil
	}
	if len(choice.Message.ToolCalls) > 1 {
		logger := logging.FromContext(ctx)
		logger.Warn().Int("calls", len(choice.Message.ToolCalls)).Msg("Model returned several tool calls, using the first")
	}

	call := choice.Message.ToolCalls[0]
	return tools.Selection{Name: call.Function.Name, Arguments: call.Function.Arguments}, nil
}

// TestConnection validates the API key by making a minimal request
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Complete(ctx, []Message{User("Tell me a joke")})
	return err
}

func (c *Client) checkBudget(op string, messages []Message) error {
	count := c.tokens.CountMessages(messages)
	if count > c.maxPromptTokens {
		return internalerrors.NewInputTooLarge(op, fmt.Errorf("prompt has %d tokens, limit is %d", count, c.maxPromptTokens))
	}
	return nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			converted = append(converted, openai.SystemMessage(m.Content))
		case RoleAssistant:
			converted = append(converted, openai.AssistantMessage(m.Content))
		default:
			converted = append(converted, openai.UserMessage(m.Content))
		}
	}
	return converted
}

func convertTools(available []tools.Tool) []openai.ChatCompletionToolParam {
	converted := make([]openai.ChatCompletionToolParam, 0, len(available))
	for _, t := range available {
		converted = append(converted, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.InputSchema.Parameters()),
			},
		})
	}
	return converted
}

// classify maps an API failure onto the error taxonomy.
func classify(op string, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return internalerrors.WrapUpstream(internalerrors.ServiceOpenAI, op, err, 0)
	}

	switch {
	case apiErr.Code == codeContentFilter:
		return internalerrors.NewContentFiltered(op, err)
	case apiErr.Code == codeContextLength,
		apiErr.StatusCode == http.StatusRequestEntityTooLarge,
		strings.Contains(apiErr.Message, "maximum context length"):
		return internalerrors.NewInputTooLarge(op, err)
	default:
		return internalerrors.WrapUpstream(internalerrors.ServiceOpenAI, op, err, apiErr.StatusCode)
	}
}
