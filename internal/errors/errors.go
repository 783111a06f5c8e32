package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Base error types
var (
	ErrUserNotLoggedIn       = errors.New("user not logged in")
	ErrUserNotConfigured     = errors.New("user not configured")
	ErrInvalidCredential     = errors.New("invalid credential")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrSpaceNotFound         = errors.New("space not found")
	ErrResourceNotFound      = errors.New("resource not found")
	ErrUpstreamRequestFailed = errors.New("upstream request failed")
	ErrContentFiltered       = errors.New("content filtered")
	ErrInputTooLarge         = errors.New("input too large")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrInternal              = errors.New("internal error")
)

// Kind is the taxonomy tag carried by every CopilotError.
type Kind string

const (
	KindUserNotLoggedIn       Kind = "user_not_logged_in"
	KindUserNotConfigured     Kind = "user_not_configured"
	KindInvalidCredential     Kind = "invalid_credential"
	KindNotAuthorized         Kind = "not_authorized"
	KindSpaceNotFound         Kind = "space_not_found"
	KindResourceNotFound      Kind = "resource_not_found"
	KindUpstreamRequestFailed Kind = "upstream_request_failed"
	KindContentFiltered       Kind = "content_filtered"
	KindInputTooLarge         Kind = "input_too_large"
	KindInvalidArgument       Kind = "invalid_argument"
	KindInternal              Kind = "internal"
)

// Services named by UpstreamRequestFailed errors.
const (
	ServiceOctopus  = "Octopus"
	ServiceGitHub   = "GitHub"
	ServiceOpenAI   = "OpenAI"
	ServiceOctolint = "Octolint"
)

var kindSentinels = map[Kind]error{
	KindUserNotLoggedIn:       ErrUserNotLoggedIn,
	KindUserNotConfigured:     ErrUserNotConfigured,
	KindInvalidCredential:     ErrInvalidCredential,
	KindNotAuthorized:         ErrNotAuthorized,
	KindSpaceNotFound:         ErrSpaceNotFound,
	KindResourceNotFound:      ErrResourceNotFound,
	KindUpstreamRequestFailed: ErrUpstreamRequestFailed,
	KindContentFiltered:       ErrContentFiltered,
	KindInputTooLarge:         ErrInputTooLarge,
	KindInvalidArgument:       ErrInvalidArgument,
	KindInternal:              ErrInternal,
}

// CopilotError is a structured error raised anywhere in the query pipeline.
type CopilotError struct {
	Kind         Kind
	Op           string // Operation that failed (e.g., "get_space", "select_tool")
	ResourceType string // Entity type for not-found errors
	Subject      string // Offending name, or the message for invalid arguments
	Service      string // Upstream service for request failures
	StatusCode   int    // HTTP status code if applicable
	Err          error  // Underlying error
}

func (e *CopilotError) Error() string {
	switch {
	case e.Kind == KindSpaceNotFound:
		return fmt.Sprintf("%s failed: space %q not found", e.Op, e.Subject)
	case e.Kind == KindResourceNotFound:
		return fmt.Sprintf("%s failed: %s %q not found", e.Op, e.ResourceType, e.Subject)
	case e.Kind == KindUpstreamRequestFailed && e.StatusCode != 0:
		return fmt.Sprintf("%s failed: %s returned status %d: %v", e.Op, e.Service, e.StatusCode, e.Err)
	case e.Kind == KindUpstreamRequestFailed:
		return fmt.Sprintf("%s failed: %s request error: %v", e.Op, e.Service, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	case e.Subject != "":
		return fmt.Sprintf("%s failed: %s", e.Op, e.Subject)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Kind)
}

func (e *CopilotError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *CopilotError) Is(target error) bool {
	if target == nil {
		return false
	}
	if sentinel, ok := kindSentinels[e.Kind]; ok && sentinel == target {
		return true
	}
	return errors.Is(e.Err, target)
}

// New creates a CopilotError of the given kind.
func New(kind Kind, op string, err error) *CopilotError {
	return &CopilotError{Kind: kind, Op: op, Err: err}
}

// NewUserNotLoggedIn reports a missing or rejected GitHub identity.
func NewUserNotLoggedIn(op string) error {
	return New(KindUserNotLoggedIn, op, nil)
}

// NewUserNotConfigured reports a GitHub user without stored platform details.
func NewUserNotConfigured(op string) error {
	return New(KindUserNotConfigured, op, nil)
}

// NewInvalidCredential reports a platform credential that can no longer be used.
func NewInvalidCredential(op string, err error) error {
	return New(KindInvalidCredential, op, err)
}

// NewNotAuthorized reports an operation the caller is not allowed to perform.
func NewNotAuthorized(op string) error {
	return New(KindNotAuthorized, op, nil)
}

// NewSpaceNotFound reports a space name that did not resolve.
func NewSpaceNotFound(op, name string) error {
	return &CopilotError{Kind: KindSpaceNotFound, Op: op, Subject: name}
}

// NewResourceNotFound reports a named resource of the given type that did not resolve.
func NewResourceNotFound(op, resourceType, name string) error {
	return &CopilotError{Kind: KindResourceNotFound, Op: op, ResourceType: resourceType, Subject: name}
}

// NewInvalidArgument reports a user supplied value that cannot be used. The message is
// shown to the user as is.
func NewInvalidArgument(op, message string) error {
	return &CopilotError{Kind: KindInvalidArgument, Op: op, Subject: message}
}

// NewContentFiltered reports a prompt or answer rejected by the model's content filter.
func NewContentFiltered(op string, err error) error {
	return New(KindContentFiltered, op, err)
}

// NewInputTooLarge reports a prompt that does not fit the model's context window.
func NewInputTooLarge(op string, err error) error {
	return New(KindInputTooLarge, op, err)
}

// WrapUpstream wraps a failed call to an external service.
func WrapUpstream(service, op string, err error, statusCode int) error {
	return &CopilotError{
		Kind:       KindUpstreamRequestFailed,
		Op:         op,
		Service:    service,
		StatusCode: statusCode,
		Err:        err,
	}
}

// WrapStatus maps a non-success HTTP status from an upstream service onto the taxonomy.
// 401 becomes an invalid credential; everything else is an upstream failure.
func WrapStatus(service, op string, statusCode int, body string) error {
	err := fmt.Errorf("%s", body)
	if statusCode == http.StatusUnauthorized {
		return &CopilotError{Kind: KindInvalidCredential, Op: op, Service: service, StatusCode: statusCode, Err: err}
	}
	return WrapUpstream(service, op, err, statusCode)
}

// KindOf returns the taxonomy kind of err. Untyped errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var copilotErr *CopilotError
	if errors.As(err, &copilotErr) {
		return copilotErr.Kind
	}
	return KindInternal
}

// IsUserFacing reports whether the error is caused by user input or configuration rather
// than a system fault. These are not logged as errors.
func IsUserFacing(err error) bool {
	switch KindOf(err) {
	case KindUserNotLoggedIn, KindUserNotConfigured, KindInvalidCredential, KindNotAuthorized,
		KindSpaceNotFound, KindResourceNotFound, KindInvalidArgument:
		return true
	default:
		return false
	}
}
