package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
)

func TestUserMessage(t *testing.T) {
	upstream := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not logged in", internalerrors.NewUserNotLoggedIn("get_user"), "Your GitHub token is invalid."},
		{"invalid credential", internalerrors.NewInvalidCredential("decrypt", upstream), loginMessage(testLoginURL)},
		{"not authorized", internalerrors.NewNotAuthorized("clean_up_all_records"), "You are not authorized."},
		{
			"resource not found",
			internalerrors.NewResourceNotFound("get_project", "project", "Web"),
			`The project "Web" was not found. Either the resource does not exist or the API key does not have permissions to access it.`,
		},
		{
			"octopus failure",
			internalerrors.WrapUpstream(internalerrors.ServiceOctopus, "list_projects", upstream, 502),
			"The request to the Octopus API failed. Either your API key is invalid, or there was an issue contacting the server.",
		},
		{
			"github failure",
			internalerrors.WrapUpstream(internalerrors.ServiceGitHub, "search_code", upstream, 500),
			"The request to the GitHub API failed. Your GitHub token is likely to be invalid.",
		},
		{
			"octolint failure",
			internalerrors.WrapUpstream(internalerrors.ServiceOctolint, "check", upstream, 502),
			"The request to Octolint failed. Check your credentials and connectivity.",
		},
		{
			"content filtered",
			internalerrors.NewContentFiltered("complete", upstream),
			"The request was blocked by the language model's content filter. Please rephrase the question.",
		},
		{
			"input too large",
			internalerrors.NewInputTooLarge("complete", upstream),
			"The query and context exceeded the context window size. This error has been logged.",
		},
		{"invalid argument", internalerrors.NewInvalidArgument("set_default_value", "Unknown default name."), "Unknown default name."},
		{"wrapped", fmt.Errorf("answer: %w", internalerrors.NewNotAuthorized("x")), "You are not authorized."},
		{"internal", internalerrors.New(internalerrors.KindInternal, "decode", upstream), unexpectedErrorMessage},
		{"untyped", upstream, unexpectedErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userMessage(tt.err, testLoginURL))
		})
	}
}
