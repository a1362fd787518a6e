package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/config"
	"github.com/aristath/alphascan/internal/database"
)

// InitializeDatabases opens the three databases and applies their schemas.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	targets := []struct {
		path    string
		profile database.DatabaseProfile
		name    string
		dst     **database.DB
	}{
		// history.db - Daily OHLCV bars
		{cfg.HistoryDBPath(), database.ProfileStandard, database.NameHistory, &container.HistoryDB},
		// snapshots.db - Snapshot catalogue
		{cfg.SnapshotsDBPath(), database.ProfileStandard, database.NameSnapshots, &container.SnapshotsDB},
		// cache.db - Calibration results, safe to delete
		{cfg.CacheDBPath(), database.ProfileCache, database.NameCache, &container.CacheDB},
	}

	for _, t := range targets {
		db, err := database.New(database.Config{
			Path:    t.path,
			Profile: t.profile,
			Name:    t.name,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", t.name, err)
		}
		*t.dst = db

		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", t.name, err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")
	return container, nil
}
