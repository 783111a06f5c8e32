package agent

import (
	"context"
	"iter"
	"net/http"

	"github.com/rcourtman/octopilot/internal/collector"
	"github.com/rcourtman/octopilot/internal/defaults"
	"github.com/rcourtman/octopilot/internal/github"
	"github.com/rcourtman/octopilot/internal/octopus"
)

// Platform is everything the tool handlers read from Octopus.
type Platform interface {
	collector.Platform

	Spaces(ctx context.Context) iter.Seq2[octopus.Space, error]
	Projects(ctx context.Context, spaceID string) iter.Seq2[octopus.Project, error]
	ProjectRunbooks(ctx context.Context, spaceID, projectID string) iter.Seq2[octopus.Resource, error]
	SpaceByName(ctx context.Context, name string) (octopus.Space, error)
}

// PlatformFactory opens a platform client for a set of credentials.
type PlatformFactory func(creds octopus.Credentials) (Platform, error)

// OctopusPlatforms returns a factory creating REST clients that share httpClient.
func OctopusPlatforms(httpClient *http.Client) PlatformFactory {
	return func(creds octopus.Credentials) (Platform, error) {
		client, err := octopus.NewClient(creds, httpClient)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Store is the persisted per-user state the handlers read and write.
type Store interface {
	defaults.Getter
	DetailsLoader

	Set(ctx context.Context, user string, name defaults.Name, value string) error
	DeleteAll(ctx context.Context, user string) error
	DeleteUser(ctx context.Context, user string) error
	DeleteAllRecords(ctx context.Context) error
}

// DocsSearcher finds documentation pages for how-to questions.
type DocsSearcher interface {
	SearchDocs(ctx context.Context, token, repo string, keywords []string, limit int) ([]github.Document, error)
}

// LintChecker runs an octolint check against a space.
type LintChecker interface {
	Check(ctx context.Context, creds octopus.Credentials, spaceID, check string) (string, error)
}
