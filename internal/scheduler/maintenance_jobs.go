package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CachePurger removes expired calibration results.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// ArchiveRotator deletes archives past their retention.
type ArchiveRotator interface {
	Rotate(ctx context.Context, retentionDays int) (int, error)
}

// CachePurgeJob drops expired backtest summaries from the calibration cache.
type CachePurgeJob struct {
	cache CachePurger
	log   zerolog.Logger
}

// NewCachePurgeJob creates a new cache purge job
func NewCachePurgeJob(cache CachePurger, log zerolog.Logger) *CachePurgeJob {
	return &CachePurgeJob{
		cache: cache,
		log:   log.With().Str("job", "cache_purge").Logger(),
	}
}

// Name returns the job name
func (j *CachePurgeJob) Name() string {
	return "cache_purge"
}

// Run executes the cache purge job
func (j *CachePurgeJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := j.cache.Purge(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge calibration cache: %w", err)
	}
	j.log.Info().Int64("removed", n).Msg("Purged expired calibration results")
	return nil
}

// ArchiveRotationJob enforces the archive retention period.
type ArchiveRotationJob struct {
	archives      ArchiveRotator
	retentionDays int
	log           zerolog.Logger
}

// NewArchiveRotationJob creates a new archive rotation job
func NewArchiveRotationJob(archives ArchiveRotator, retentionDays int, log zerolog.Logger) *ArchiveRotationJob {
	return &ArchiveRotationJob{
		archives:      archives,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "archive_rotation").Logger(),
	}
}

// Name returns the job name
func (j *ArchiveRotationJob) Name() string {
	return "archive_rotation"
}

// Run executes the archive rotation job
func (j *ArchiveRotationJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	deleted, err := j.archives.Rotate(ctx, j.retentionDays)
	if err != nil {
		return fmt.Errorf("failed to rotate archives: %w", err)
	}
	j.log.Info().
		Int("deleted", deleted).
		Int("retention_days", j.retentionDays).
		Msg("Archive rotation completed")
	return nil
}
