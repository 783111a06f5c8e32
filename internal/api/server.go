// Package api is the HTTP surface of the copilot: the chat endpoints, the GitHub and
// Octopus login flow, and the health check.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rcourtman/octopilot/internal/agent"
	"github.com/rcourtman/octopilot/internal/ai/tools"
	"github.com/rcourtman/octopilot/internal/defaults"
	"github.com/rcourtman/octopilot/internal/logging"
	"github.com/rcourtman/octopilot/internal/octopus"
	"github.com/rcourtman/octopilot/internal/session"
	"github.com/rcourtman/octopilot/internal/sse"
)

const (
	headerGitHubToken   = "X-GitHub-Token"
	headerOctopusAPIKey = "X-Octopus-ApiKey"
	headerOctopusServer = "X-Octopus-Server"

	// limitedKeyPurpose is shown next to the keys created for users in Octopus.
	limitedKeyPurpose = "Octopus Copilot"
)

// Answerer runs queries through the tool pipeline.
type Answerer interface {
	Answer(ctx context.Context, req *agent.Request) (tools.Result, error)
	AnswerSupplied(ctx context.Context, req *agent.Request) (tools.Result, error)
	ParseQuery(ctx context.Context, req *agent.Request) (tools.Result, error)
}

// DetailsStore keeps the Octopus credentials users register through the login form.
type DetailsStore interface {
	agent.DetailsLoader
	SaveUserDetails(ctx context.Context, details defaults.UserDetails) error
	Ping(ctx context.Context) error
}

// OAuthExchanger is the GitHub side of the login flow.
type OAuthExchanger interface {
	LoginURL() string
	Exchange(ctx context.Context, code string) (string, error)
}

// HealthChecker confirms the language model answers.
type HealthChecker interface {
	TestConnection(ctx context.Context) error
}

// KeyIssuer swaps the key a user typed into the login form for the key that is stored.
type KeyIssuer func(ctx context.Context, creds octopus.Credentials) (string, error)

// OctopusKeyIssuer creates a limited API key that expires after ttl. The guest key is
// stored as is.
func OctopusKeyIssuer(httpClient *http.Client, ttl time.Duration) KeyIssuer {
	return func(ctx context.Context, creds octopus.Credentials) (string, error) {
		client, err := octopus.NewClient(creds, httpClient)
		if err != nil {
			return "", err
		}
		return client.LimitedAPIKey(ctx, limitedKeyPurpose, ttl)
	}
}

// Options configures a Server.
type Options struct {
	Agent     Answerer
	Store     DetailsStore
	Users     agent.UserLookup
	OAuth     OAuthExchanger
	Sessions  *session.Codec
	Keys      KeyIssuer
	Health    HealthChecker
	Assembler *sse.Assembler

	// RateLimitPerMinute bounds the chat endpoints per caller. Zero disables it.
	RateLimitPerMinute int
}

// Server serves the copilot endpoints.
type Server struct {
	agent     Answerer
	store     DetailsStore
	users     agent.UserLookup
	oauth     OAuthExchanger
	sessions  *session.Codec
	keys      KeyIssuer
	health    HealthChecker
	assembler *sse.Assembler
	limiter   *RateLimiter
	logger    zerolog.Logger
}

// NewServer checks opts and creates a Server.
func NewServer(opts Options) (*Server, error) {
	switch {
	case opts.Agent == nil:
		return nil, fmt.Errorf("agent is required")
	case opts.Store == nil:
		return nil, fmt.Errorf("store is required")
	case opts.Users == nil:
		return nil, fmt.Errorf("user lookup is required")
	case opts.OAuth == nil:
		return nil, fmt.Errorf("oauth is required")
	case opts.Sessions == nil:
		return nil, fmt.Errorf("session codec is required")
	case opts.Keys == nil:
		return nil, fmt.Errorf("key issuer is required")
	case opts.Health == nil:
		return nil, fmt.Errorf("health checker is required")
	}

	assembler := opts.Assembler
	if assembler == nil {
		assembler = sse.NewAssembler("")
	}

	return &Server{
		agent:     opts.Agent,
		store:     opts.Store,
		users:     opts.Users,
		oauth:     opts.OAuth,
		sessions:  opts.Sessions,
		keys:      opts.Keys,
		health:    opts.Health,
		assembler: assembler,
		limiter:   NewRateLimiter(opts.RateLimitPerMinute),
		logger:    logging.New("api"),
	}, nil
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/oauth_callback", s.handleOAuthCallback)
		r.Get("/octopus", s.handleLoginForm)
		r.Get("/form", s.handleQueryForm)
		r.Post("/login_submit", s.handleLoginSubmit)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Get("/form_handler", s.handleCopilot)
			r.Post("/form_handler", s.handleCopilot)
			r.Get("/query_parse", s.handleQueryParse)
			r.Post("/query_parse", s.handleQueryParse)
			r.Post("/submit_query", s.handleSubmitQuery)
		})
	})
	return r
}

// Close stops background work.
func (s *Server) Close() {
	s.limiter.Stop()
}

// identity builds the caller's identity from the request headers.
func (s *Server) identity(r *http.Request) *agent.Identity {
	return agent.NewIdentity(agent.IdentityHeaders{
		GitHubToken: r.Header.Get(headerGitHubToken),
		APIKey:      r.Header.Get(headerOctopusAPIKey),
		Server:      r.Header.Get(headerOctopusServer),
	}, s.users, s.store)
}

// writeAnswer sends result as an event stream.
func (s *Server) writeAnswer(w http.ResponseWriter, r *http.Request, status int, result tools.Result) {
	if err := s.assembler.Write(w, status, result); err != nil {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("Failed to write answer")
	}
}
