package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcourtman/octopilot/internal/ai/tools"
	"github.com/rcourtman/octopilot/internal/defaults"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/logging"
	"github.com/rcourtman/octopilot/internal/resolve"
)

func (a *Agent) setDefaultValue(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	login, err := req.Identity.Login(ctx)
	if err != nil {
		return tools.Result{}, err
	}
	name, err := defaults.ParseName(call.Arguments.String("default_name"))
	if err != nil {
		return tools.Result{}, err
	}
	value := strings.TrimSpace(call.Arguments.String("default_value"))
	if value == "" {
		return tools.Result{}, internalerrors.NewInvalidArgument("set_default_value", "Please specify the default value to save.")
	}

	if name == defaults.Space {
		value = a.canonicalSpace(ctx, req, value)
	}
	if err := a.store.Set(ctx, login, name, value); err != nil {
		return tools.Result{}, err
	}
	return tools.NewTextResult(fmt.Sprintf("Saved default value %q for %q", value, string(name))), nil
}

// canonicalSpace returns the platform's spelling of a space name. The name is kept as
// typed when the platform is unreachable or has no close match.
func (a *Agent) canonicalSpace(ctx context.Context, req *Request, value string) string {
	logger := logging.FromContext(ctx)
	platform, err := a.platform(ctx, req)
	if err != nil {
		logger.Debug().Err(err).Msg("Saving space default without matching")
		return value
	}
	match, err := resolve.Resolve(value, platform.Spaces(ctx))
	if err != nil {
		logger.Debug().Err(err).Msg("Saving space default without matching")
		return value
	}
	if !match.Found() {
		return value
	}
	return match.Name
}

func (a *Agent) getDefaultValue(ctx context.Context, req *Request, call tools.Call) (tools.Result, error) {
	login, err := req.Identity.Login(ctx)
	if err != nil {
		return tools.Result{}, err
	}
	name, err := defaults.ParseName(call.Arguments.String("default_name"))
	if err != nil {
		return tools.Result{}, err
	}
	value, err := a.store.Get(ctx, login, name)
	if err != nil {
		return tools.Result{}, err
	}
	if value == "" {
		return tools.NewTextResult(fmt.Sprintf("There is no default value for %q", string(name))), nil
	}
	return tools.NewTextResult(fmt.Sprintf("The default value for %q is %q", string(name), value)), nil
}

func (a *Agent) removeDefaultValues(ctx context.Context, req *Request, _ tools.Call) (tools.Result, error) {
	login, err := req.Identity.Login(ctx)
	if err != nil {
		return tools.Result{}, err
	}
	if err := a.store.DeleteAll(ctx, login); err != nil {
		return tools.Result{}, err
	}
	return tools.NewTextResult("Deleted default values"), nil
}

func (a *Agent) logout(ctx context.Context, req *Request, _ tools.Call) (tools.Result, error) {
	login, err := req.Identity.Login(ctx)
	if err != nil {
		return tools.Result{}, err
	}
	if err := a.store.DeleteUser(ctx, login); err != nil {
		return tools.Result{}, err
	}
	return tools.NewTextResult("Sign out successful"), nil
}

func (a *Agent) cleanUpAllRecords(ctx context.Context, req *Request, _ tools.Call) (tools.Result, error) {
	login, err := req.Identity.Login(ctx)
	if err != nil {
		return tools.Result{}, err
	}
	if !a.isAdmin(login) {
		return tools.Result{}, internalerrors.NewNotAuthorized("clean_up_all_records")
	}
	if err := a.store.DeleteAllRecords(ctx); err != nil {
		return tools.Result{}, err
	}
	logger := logging.FromContext(ctx)
	logger.Info().Str("admin", login).Msg("Deleted all stored records")
	return tools.NewTextResult("Deleted all records"), nil
}
