package api

import (
	"errors"
	"fmt"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
)

const unexpectedErrorMessage = "An unexpected error was thrown. This error has been logged. I'm sorry for the inconvenience."

// userMessage turns a pipeline error into the text shown in the chat. Every kind is
// listed so a new kind fails review here rather than leaking an internal message.
func userMessage(err error, loginURL string) string {
	var copilotErr *internalerrors.CopilotError
	if !errors.As(err, &copilotErr) {
		return unexpectedErrorMessage
	}

	switch copilotErr.Kind {
	case internalerrors.KindUserNotLoggedIn:
		return "Your GitHub token is invalid."
	case internalerrors.KindUserNotConfigured, internalerrors.KindInvalidCredential:
		return loginMessage(loginURL)
	case internalerrors.KindNotAuthorized:
		return "You are not authorized."
	case internalerrors.KindSpaceNotFound:
		return fmt.Sprintf("The space %q was not found. "+
			"Either the space does not exist or the API key does not have permissions to access it.", copilotErr.Subject)
	case internalerrors.KindResourceNotFound:
		return fmt.Sprintf("The %s %q was not found. "+
			"Either the resource does not exist or the API key does not have permissions to access it.",
			copilotErr.ResourceType, copilotErr.Subject)
	case internalerrors.KindUpstreamRequestFailed:
		switch copilotErr.Service {
		case internalerrors.ServiceOctopus:
			return "The request to the Octopus API failed. " +
				"Either your API key is invalid, or there was an issue contacting the server."
		case internalerrors.ServiceGitHub:
			return "The request to the GitHub API failed. Your GitHub token is likely to be invalid."
		default:
			return fmt.Sprintf("The request to %s failed. Check your credentials and connectivity.", copilotErr.Service)
		}
	case internalerrors.KindContentFiltered:
		return "The request was blocked by the language model's content filter. Please rephrase the question."
	case internalerrors.KindInputTooLarge:
		return "The query and context exceeded the context window size. This error has been logged."
	case internalerrors.KindInvalidArgument:
		if copilotErr.Subject == "" {
			return unexpectedErrorMessage
		}
		return copilotErr.Subject
	case internalerrors.KindInternal:
		return unexpectedErrorMessage
	default:
		return unexpectedErrorMessage
	}
}

func loginMessage(loginURL string) string {
	return fmt.Sprintf("To continue chatting please [log in](%s)", loginURL)
}
