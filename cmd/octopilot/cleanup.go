package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const detailsCleanupInterval = time.Hour

// detailsPruner removes stored credentials older than a maximum age.
type detailsPruner interface {
	DeleteUserDetailsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stored Octopus credentials older than USER_DETAILS_MAX_AGE",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, _, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.DeleteUserDetailsOlderThan(cmd.Context(), cfg.UserDetailsMaxAge)
		if err != nil {
			return err
		}
		cmd.Printf("Deleted %d expired user records\n", removed)
		return nil
	},
}

// runDetailsCleanup prunes expired credentials every interval until ctx is done.
func runDetailsCleanup(ctx context.Context, store detailsPruner, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneDetails(ctx, store, maxAge)
		}
	}
}

func pruneDetails(ctx context.Context, store detailsPruner, maxAge time.Duration) {
	removed, err := store.DeleteUserDetailsOlderThan(ctx, maxAge)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete expired user details")
		return
	}
	if removed > 0 {
		log.Info().Int64("removed", removed).Msg("Deleted expired user details")
	}
}
