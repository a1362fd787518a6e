// Package di wires the databases, pipeline services and jobs shared by the
// server and the one-shot scan command.
package di

import (
	"github.com/aristath/alphascan/internal/database"
	"github.com/aristath/alphascan/internal/modules/calibration"
	"github.com/aristath/alphascan/internal/modules/scanner"
	"github.com/aristath/alphascan/internal/modules/scoring"
	"github.com/aristath/alphascan/internal/modules/snapshots"
	"github.com/aristath/alphascan/internal/modules/universe"
	"github.com/aristath/alphascan/internal/reliability"
	"github.com/aristath/alphascan/internal/scheduler"
)

// Container holds every long-lived dependency.
type Container struct {
	// Databases
	HistoryDB   *database.DB
	SnapshotsDB *database.DB
	CacheDB     *database.DB

	// Pipeline
	History     *universe.HistoryDB
	Engine      *scoring.Engine
	Backtester  *calibration.Backtester
	ResultCache *calibration.SQLiteCache // nil when the cache is disabled
	Calibrator  *calibration.Calibrator
	Snapshots   *snapshots.Store
	Scanner     *scanner.Scanner
	Archives    *reliability.ArchiveService // nil without an R2 bucket
	Candidates  []calibration.Weights
}

// JobInstances holds the jobs the scheduler runs.
type JobInstances struct {
	Scan            *scheduler.ScanJob
	CachePurge      *scheduler.CachePurgeJob      // nil when the cache is disabled
	ArchiveRotation *scheduler.ArchiveRotationJob // nil without an R2 bucket
}

// Databases lists the open databases, for health checks.
func (c *Container) Databases() []*database.DB {
	var out []*database.DB
	for _, db := range []*database.DB{c.HistoryDB, c.SnapshotsDB, c.CacheDB} {
		if db != nil {
			out = append(out, db)
		}
	}
	return out
}

// Close closes every open database.
func (c *Container) Close() {
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
