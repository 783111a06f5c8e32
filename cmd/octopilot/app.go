package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rcourtman/octopilot/internal/agent"
	"github.com/rcourtman/octopilot/internal/ai/llm"
	"github.com/rcourtman/octopilot/internal/api"
	"github.com/rcourtman/octopilot/internal/config"
	"github.com/rcourtman/octopilot/internal/crypto"
	"github.com/rcourtman/octopilot/internal/defaults"
	"github.com/rcourtman/octopilot/internal/github"
	"github.com/rcourtman/octopilot/internal/octolint"
	"github.com/rcourtman/octopilot/internal/session"
	"github.com/rcourtman/octopilot/internal/sse"
	"github.com/rcourtman/octopilot/pkg/tlsutil"
)

// app holds the long lived components of a running server.
type app struct {
	server *api.Server
	store  *defaults.SQLiteStore
}

func (a *app) Close() {
	a.server.Close()
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

// openStore opens the database with the configured encryption key.
func openStore(cfg *config.Config) (*defaults.SQLiteStore, *crypto.CryptoManager, error) {
	manager, err := crypto.NewCryptoManager(cfg.EncryptionPassword, cfg.EncryptionSalt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}
	store, err := defaults.NewSQLiteStore(cfg.DatabasePath(), manager)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, manager, nil
}

// newApp wires every component from cfg.
func newApp(cfg *config.Config) (*app, error) {
	tlsutil.SetDNSCacheTTL(cfg.DNSCacheTTL)
	httpClient := tlsutil.CreateHTTPClient(cfg.HTTPTimeout)

	store, manager, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	model, err := llm.NewClient(llm.Config{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		Model:           cfg.OpenAIModel,
		MaxPromptTokens: cfg.MaxPromptTokens,
		HTTPClient:      httpClient,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create language model client: %w", err)
	}

	githubClient := github.NewClient(httpClient, "")

	opts := agent.Options{
		Model:     model,
		Store:     store,
		Platforms: agent.OctopusPlatforms(httpClient),
		Docs:      githubClient,
		Limits:    cfg.Limits,
		DocsRepo:  cfg.DocsRepo,
		IsAdmin:   cfg.IsAdmin,
	}
	if cfg.OctolintURL != "" {
		lint, err := octolint.NewClient(cfg.OctolintURL, httpClient)
		if err != nil {
			store.Close()
			return nil, err
		}
		opts.Lint = lint
	} else {
		log.Info().Msg("OCTOLINT_URL is not set, lint checks are disabled")
	}

	copilot, err := agent.New(opts)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	server, err := api.NewServer(api.Options{
		Agent: copilot,
		Store: store,
		Users: githubClient,
		OAuth: github.NewOAuth(github.OAuthConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubClientRedirect,
		}, httpClient),
		Sessions:           session.NewCodec(manager, 0),
		Keys:               api.OctopusKeyIssuer(httpClient, cfg.UserDetailsMaxAge),
		Health:             model,
		Assembler:          sse.NewAssembler(cfg.OpenAIModel),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{server: server, store: store}, nil
}
