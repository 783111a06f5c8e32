// Package config loads octopilot configuration from the environment.
//
// Values are read once at startup: an optional .env file in the data directory,
// an optional .env in the working directory, then process environment overrides.
// The resulting Config is treated as immutable for the life of the process.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Limits bounds the amount of platform data collected for a single answer.
type Limits struct {
	MaxContext     int // releases scanned when collecting deployments
	MaxChars       int // trailing characters of a deployment log kept
	MaxDeployments int // deployments returned to the model
}

// DefaultLimits returns the limits used when no overrides are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxContext:     100,
		MaxChars:       10000,
		MaxDeployments: 10,
	}
}

// Config holds all application configuration
type Config struct {
	// Server settings
	DataDir     string
	BackendHost string
	Port        int
	MetricsPort int
	HTTPTimeout time.Duration
	DNSCacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Language model
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	MaxPromptTokens int

	// Context limits
	Limits Limits

	// Session and credential encryption
	EncryptionPassword string
	EncryptionSalt     string

	// GitHub OAuth app
	GitHubClientID       string
	GitHubClientSecret   string
	GitHubClientRedirect string

	// Requests per minute allowed for each caller; 0 disables limiting
	RateLimitPerMinute int

	AdminUsers        []string
	DocsRepo          string
	OctolintURL       string
	UserDetailsMaxAge time.Duration

	EnvOverrides map[string]bool
}

// DatabasePath returns the sqlite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "octopilot.db")
}

// IsAdmin reports whether the GitHub login is listed in ADMIN_USERS.
func (c *Config) IsAdmin(login string) bool {
	for _, admin := range c.AdminUsers {
		if strings.EqualFold(admin, login) {
			return true
		}
	}
	return false
}

// Load reads configuration from .env files and the environment.
func Load() (*Config, error) {
	dataDir := "/var/lib/octopilot"
	if dir := os.Getenv("OCTOPILOT_DATA_DIR"); dir != "" {
		dataDir = dir
	}

	// Load .env file if it exists (for deployment overrides)
	envFile := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		} else {
			log.Info().Str("file", envFile).Msg("Loaded .env file for deployment overrides")
		}
	}

	// Also try loading from current directory for development
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded configuration from .env in current directory")
	}

	cfg := &Config{
		DataDir:           dataDir,
		BackendHost:       "0.0.0.0",
		Port:              8080,
		MetricsPort:       9091,
		HTTPTimeout:       60 * time.Second,
		DNSCacheTTL:       5 * time.Minute,
		LogLevel:          "info",
		LogFormat:         "auto",
		OpenAIModel:       "gpt-4o",
		MaxPromptTokens:   100000,
		Limits:            DefaultLimits(),
		DocsRepo:          "OctopusDeploy/docs",
		UserDetailsMaxAge: 24 * time.Hour,
		EnvOverrides:      make(map[string]bool),

		RateLimitPerMinute: 30,
	}

	var problems []error

	cfg.overrideString("BACKEND_HOST", &cfg.BackendHost)
	cfg.overrideString("LOG_LEVEL", &cfg.LogLevel)
	cfg.overrideString("LOG_FORMAT", &cfg.LogFormat)
	cfg.overrideString("OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	cfg.overrideString("OPENAI_MODEL", &cfg.OpenAIModel)
	cfg.overrideString("DOCS_REPO", &cfg.DocsRepo)
	cfg.overrideString("OCTOLINT_URL", &cfg.OctolintURL)
	cfg.overrideString("GITHUB_CLIENT_ID", &cfg.GitHubClientID)
	cfg.overrideString("GITHUB_CLIENT_REDIRECT", &cfg.GitHubClientRedirect)

	// Secrets are recorded as overrides but never logged
	cfg.overrideSecret("OPENAI_API_KEY", &cfg.OpenAIAPIKey)
	cfg.overrideSecret("ENCRYPTION_PASSWORD", &cfg.EncryptionPassword)
	cfg.overrideSecret("ENCRYPTION_SALT", &cfg.EncryptionSalt)
	cfg.overrideSecret("GITHUB_CLIENT_SECRET", &cfg.GitHubClientSecret)

	problems = append(problems,
		cfg.overrideInt("PORT", &cfg.Port),
		cfg.overrideInt("METRICS_PORT", &cfg.MetricsPort),
		cfg.overrideInt("MAX_PROMPT_TOKENS", &cfg.MaxPromptTokens),
		cfg.overrideInt("MAX_CONTEXT", &cfg.Limits.MaxContext),
		cfg.overrideInt("MAX_CHARS", &cfg.Limits.MaxChars),
		cfg.overrideInt("MAX_DEPLOYMENTS", &cfg.Limits.MaxDeployments),
		cfg.overrideInt("RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute),
		cfg.overrideDuration("HTTP_TIMEOUT", &cfg.HTTPTimeout),
		cfg.overrideDuration("DNS_CACHE_TTL", &cfg.DNSCacheTTL),
		cfg.overrideDuration("USER_DETAILS_MAX_AGE", &cfg.UserDetailsMaxAge),
	)

	if admins := os.Getenv("ADMIN_USERS"); admins != "" {
		for _, admin := range strings.Split(admins, ",") {
			if admin = strings.TrimSpace(admin); admin != "" {
				cfg.AdminUsers = append(cfg.AdminUsers, admin)
			}
		}
		cfg.EnvOverrides["ADMIN_USERS"] = true
		log.Info().Int("count", len(cfg.AdminUsers)).Msg("Loaded admin users from ADMIN_USERS env var")
	}

	if err := errors.Join(problems...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []error
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		problems = append(problems, fmt.Errorf("METRICS_PORT must be between 0 and 65535, got %d", c.MetricsPort))
	}
	if c.Limits.MaxContext <= 0 {
		problems = append(problems, fmt.Errorf("MAX_CONTEXT must be positive, got %d", c.Limits.MaxContext))
	}
	if c.Limits.MaxChars <= 0 {
		problems = append(problems, fmt.Errorf("MAX_CHARS must be positive, got %d", c.Limits.MaxChars))
	}
	if c.Limits.MaxDeployments <= 0 {
		problems = append(problems, fmt.Errorf("MAX_DEPLOYMENTS must be positive, got %d", c.Limits.MaxDeployments))
	}
	if c.MaxPromptTokens <= 0 {
		problems = append(problems, fmt.Errorf("MAX_PROMPT_TOKENS must be positive, got %d", c.MaxPromptTokens))
	}
	if c.RateLimitPerMinute < 0 {
		problems = append(problems, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute))
	}
	if c.UserDetailsMaxAge <= 0 {
		problems = append(problems, fmt.Errorf("USER_DETAILS_MAX_AGE must be positive, got %s", c.UserDetailsMaxAge))
	}
	return errors.Join(problems...)
}

func (c *Config) overrideString(key string, target *string) {
	if value := os.Getenv(key); value != "" {
		*target = value
		c.EnvOverrides[key] = true
		log.Info().Str("key", key).Str("value", value).Msg("Overriding setting from env var")
	}
}

func (c *Config) overrideSecret(key string, target *string) {
	if value := os.Getenv(key); value != "" {
		*target = value
		c.EnvOverrides[key] = true
		log.Debug().Str("key", key).Msg("Loaded secret from env var")
	}
}

func (c *Config) overrideInt(key string, target *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*target = parsed
	c.EnvOverrides[key] = true
	log.Info().Str("key", key).Int("value", parsed).Msg("Overriding setting from env var")
	return nil
}

func (c *Config) overrideDuration(key string, target *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, value)
	}
	*target = parsed
	c.EnvOverrides[key] = true
	log.Info().Str("key", key).Dur("value", parsed).Msg("Overriding setting from env var")
	return nil
}
