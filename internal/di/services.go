package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/config"
	"github.com/aristath/alphascan/internal/modules/calibration"
	"github.com/aristath/alphascan/internal/modules/factors"
	"github.com/aristath/alphascan/internal/modules/fundamentals"
	"github.com/aristath/alphascan/internal/modules/scanner"
	"github.com/aristath/alphascan/internal/modules/scoring"
	"github.com/aristath/alphascan/internal/modules/snapshots"
	"github.com/aristath/alphascan/internal/modules/universe"
	"github.com/aristath/alphascan/internal/reliability"
)

// InitializeServices builds the scoring pipeline on top of the open databases.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.History = universe.NewHistoryDB(container.HistoryDB.Conn(), log)

	candidates, err := config.LoadCandidates(cfg.CandidatesFile)
	if err != nil {
		return fmt.Errorf("failed to load weight candidates: %w", err)
	}
	container.Candidates = candidates

	var benchmark *factors.Benchmark
	if cfg.BenchmarkTicker != "" {
		from := time.Now().UTC().AddDate(0, 0, -cfg.LookbackDays)
		benchmark, err = container.History.LoadBenchmark(ctx, cfg.BenchmarkTicker, from, time.Time{})
		if err != nil {
			// No history yet: relative strength runs on raw returns until a scan reloads it
			log.Warn().Err(err).Str("ticker", cfg.BenchmarkTicker).Msg("Benchmark unavailable")
			benchmark = nil
		}
	}

	container.Engine, err = scoring.NewEngine(scoring.DefaultConfig(), benchmark, log)
	if err != nil {
		return fmt.Errorf("failed to create factor engine: %w", err)
	}

	btCfg := calibration.DefaultBacktestConfig()
	btCfg.TCCM = cfg.TCCM
	container.Backtester, err = calibration.NewBacktester(btCfg, container.Engine, log)
	if err != nil {
		return fmt.Errorf("failed to create backtester: %w", err)
	}

	var cache calibration.ResultCache
	if cfg.CalibrationCacheTTL > 0 {
		container.ResultCache = calibration.NewSQLiteCache(container.CacheDB.Conn(), cfg.CalibrationCacheTTL)
		cache = container.ResultCache
	}
	container.Calibrator, err = calibration.NewCalibrator(container.Backtester,
		calibration.CalibratorConfig{Workers: cfg.CalibrationWorkers}, cache, log)
	if err != nil {
		return fmt.Errorf("failed to create calibrator: %w", err)
	}

	container.Snapshots = snapshots.NewStore(cfg.SnapshotDir(), container.SnapshotsDB.Conn(), snapshots.AlgoSHA256, log)

	container.Scanner, err = scanner.New(cfg.Scan, container.Calibrator, container.Backtester,
		cfg.KillSwitch, container.Snapshots, fundamentals.NeutralProvider{}, log)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	if cfg.R2 != nil {
		client, err := reliability.NewR2Client(ctx, cfg.R2.AccountID, cfg.R2.Endpoint,
			cfg.R2.AccessKeyID, cfg.R2.SecretAccessKey, cfg.R2.Bucket, log)
		if err != nil {
			return fmt.Errorf("failed to create R2 client: %w", err)
		}
		container.Archives = reliability.NewArchiveService(client, cfg.R2.Prefix, filepath.Join(cfg.DataDir, "staging"), log)
	}

	log.Info().
		Int("candidates", len(container.Candidates)).
		Bool("benchmark", benchmark != nil).
		Bool("cache", container.ResultCache != nil).
		Bool("archive", container.Archives != nil).
		Msg("Services initialized")
	return nil
}
