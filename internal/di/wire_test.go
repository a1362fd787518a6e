package di

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alphascan/internal/config"
	"github.com/aristath/alphascan/internal/modules/risk"
	"github.com/aristath/alphascan/internal/modules/scanner"
	"github.com/aristath/alphascan/internal/modules/tccm"
	"github.com/aristath/alphascan/internal/modules/universe"
	"github.com/aristath/alphascan/internal/scheduler"
	testingpkg "github.com/aristath/alphascan/internal/testing"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	scan := scanner.DefaultConfig()
	scan.ReportDir = filepath.Join(dir, "reports")
	return &config.Config{
		DataDir:             dir,
		LogLevel:            "info",
		Port:                8001,
		TCCM:                tccm.DefaultConfig(),
		KillSwitch:          risk.DefaultKillSwitchConfig(),
		Scan:                scan,
		CalibrationWorkers:  runtime.NumCPU(),
		CalibrationCacheTTL: time.Hour,
		LookbackDays:        5000,
		ScanCron:            "@every 1h",
		CachePurgeCron:      "0 0 3 * * *",
		ArchiveRotationCron: "0 30 3 * * *",
		ArchiveRetention:    30,
	}
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.Len(t, container.Databases(), 3)
	assert.FileExists(t, cfg.HistoryDBPath())
	assert.FileExists(t, cfg.SnapshotsDBPath())
	assert.FileExists(t, cfg.CacheDBPath())
}

func TestInitializeDatabases_InvalidPath(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(cfg.DataDir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg.DataDir = blocker

	_, err := InitializeDatabases(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)
	sched := scheduler.New(zerolog.Nop())

	container, jobs, err := Wire(context.Background(), cfg, sched, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.Scanner)
	assert.NotNil(t, container.ResultCache)
	assert.Nil(t, container.Archives)
	assert.Len(t, container.Candidates, len(config.DefaultCandidates()))

	assert.NotNil(t, jobs.Scan)
	assert.NotNil(t, jobs.CachePurge)
	assert.Nil(t, jobs.ArchiveRotation)
	assert.Equal(t, 2, sched.Entries())
}

func TestWire_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.CalibrationCacheTTL = 0
	cfg.ScanCron = ""

	sched := scheduler.New(zerolog.Nop())
	container, jobs, err := Wire(context.Background(), cfg, sched, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.Nil(t, container.ResultCache)
	assert.Nil(t, jobs.CachePurge)
	assert.Equal(t, 0, sched.Entries())
}

func TestWire_BadCandidatesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.CandidatesFile = filepath.Join(cfg.DataDir, "missing.yaml")

	_, _, err := Wire(context.Background(), cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}

func seedHistory(t *testing.T, h *universe.HistoryDB) {
	var prices []universe.DailyPrice
	for i, ticker := range []string{"AAA", "BBB", "CCC", "DDD"} {
		for _, b := range testingpkg.RandomWalkBars(ticker, 260, int64(i+1), 0.0003, 0.012, 500_000) {
			volume := int64(b.Volume)
			prices = append(prices, universe.DailyPrice{
				Ticker: b.Ticker, Date: b.Date,
				Open: b.Open, High: b.High, Low: b.Low, Close: b.Close,
				Volume: &volume,
			})
		}
	}
	require.NoError(t, h.UpsertPrices(context.Background(), prices))
}

func TestWire_ScanEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scan.TopN = 2

	container, jobs, err := Wire(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()
	seedHistory(t, container.History)

	out, err := jobs.Scan.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scanner.StatusOK, out.Status)
	assert.Len(t, out.Candidates, 2)
	assert.FileExists(t, out.ReportPath)
	require.NotNil(t, out.Snapshot)
	assert.FileExists(t, out.Snapshot.Path)
	assert.Same(t, out, jobs.Scan.Latest())

	// Second run is served from the calibration cache
	again, err := jobs.Scan.Execute(context.Background())
	require.NoError(t, err)
	for _, e := range again.Calibration.Evaluations {
		assert.True(t, e.Cached)
	}
	require.NoError(t, jobs.CachePurge.Run(context.Background()))
}

func TestWire_ScanSkipsBenchmarkTicker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scan.TopN = 4
	cfg.BenchmarkTicker = "AAA"

	// The benchmark has no history at startup; the scan loads it
	container, jobs, err := Wire(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()
	assert.Equal(t, "", container.Engine.BenchmarkFingerprint())
	seedHistory(t, container.History)

	out, err := jobs.Scan.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Candidates, 3)
	for _, c := range out.Candidates {
		assert.NotEqual(t, "AAA", c.Ticker)
	}
	assert.NotEqual(t, "", container.Engine.BenchmarkFingerprint())
}
