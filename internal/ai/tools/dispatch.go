package tools

import (
	"context"
	"fmt"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/logging"
	"github.com/rcourtman/octopilot/internal/metrics"
)

// Selection is the model's choice of tool. An empty Name means the model answered
// without choosing one.
type Selection struct {
	Name      string
	Arguments string // raw JSON object
}

// Selector asks the language model which tool answers a query.
type Selector interface {
	SelectTool(ctx context.Context, query string, tools []Tool) (Selection, error)
}

// Dispatcher routes a query to exactly one tool of a catalog. It keeps no state
// between calls.
type Dispatcher[R any] struct {
	selector  Selector
	validator *SchemaValidator
}

// NewDispatcher creates a dispatcher over the given selector.
func NewDispatcher[R any](selector Selector, validator *SchemaValidator) *Dispatcher[R] {
	if validator == nil {
		validator = NewSchemaValidator()
	}
	return &Dispatcher[R]{selector: selector, validator: validator}
}

// Dispatch selects a tool for query and runs its handler. A name the catalog does not
// know runs the fallback. No selection, undecodable arguments or arguments that break
// the schema run the invalid tool with the raw query only. Handler errors are returned
// unchanged.
func (d *Dispatcher[R]) Dispatch(ctx context.Context, req R, query string, catalog *Catalog[R]) (Result, error) {
	const op = "dispatch"
	logger := logging.FromContext(ctx)

	selection, err := d.selector.SelectTool(ctx, query, catalog.Definitions())
	if err != nil {
		return Result{}, err
	}

	if selection.Name == "" {
		logger.Info().Msg("Model did not select a tool")
		return d.runInvalid(ctx, req, query, catalog)
	}

	tool, found := catalog.Lookup(selection.Name)
	role := RoleNormal
	switch {
	case !found && catalog.fallback == nil:
		logger.Warn().Str("tool", selection.Name).Msg("Model selected an unknown tool and no fallback is registered")
		return d.runInvalid(ctx, req, query, catalog)
	case !found:
		logger.Info().Str("tool", selection.Name).Msg("Model selected an unknown tool, using fallback")
		tool = *catalog.fallback
		role = RoleFallback
	case catalog.fallback != nil && catalog.fallback.Definition.Name == selection.Name:
		if _, normal := catalog.byName[selection.Name]; !normal {
			role = RoleFallback
		}
	}

	args, err := ParseArguments(selection.Arguments, tool.Definition.InputSchema)
	if err != nil {
		logger.Warn().Err(err).Str("tool", selection.Name).Msg("Model produced arguments that are not a JSON object")
		return d.runInvalid(ctx, req, query, catalog)
	}
	if err := d.validator.Validate(tool.Definition, args); err != nil {
		logger.Warn().Err(err).Str("tool", selection.Name).Msg("Model produced arguments that do not match the schema")
		return d.runInvalid(ctx, req, query, catalog)
	}

	for _, key := range args.Unrecognized {
		logger.Warn().Str("tool", tool.Definition.Name).Str("key", key).Msg("Unexpected argument key")
	}
	metrics.RecordUnrecognizedArguments(tool.Definition.Name, len(args.Unrecognized))

	if tool.Handler == nil {
		return Result{}, internalerrors.New(internalerrors.KindInternal, op, fmt.Errorf("tool %s has no handler", tool.Definition.Name))
	}
	return d.invoke(ctx, req, tool, role, Call{Query: query, Arguments: args})
}

func (d *Dispatcher[R]) runInvalid(ctx context.Context, req R, query string, catalog *Catalog[R]) (Result, error) {
	if catalog.invalid == nil {
		return Result{}, internalerrors.New(internalerrors.KindInternal, "dispatch", fmt.Errorf("no tool was selected and no invalid tool is registered"))
	}
	return d.invoke(ctx, req, *catalog.invalid, RoleInvalid, Call{Query: query, Arguments: NewArguments(nil)})
}

func (d *Dispatcher[R]) invoke(ctx context.Context, req R, tool RegisteredTool[R], role Role, call Call) (Result, error) {
	logger := logging.FromContext(ctx)
	logger.Info().
		Str("tool", tool.Definition.Name).
		Str("role", string(role)).
		Interface("arguments", call.Arguments.Known()).
		Strs("unrecognized", call.Arguments.Unrecognized).
		Msg("Dispatching tool call")
	metrics.RecordDispatch(tool.Definition.Name, string(role))
	return tool.Handler(ctx, req, call)
}
