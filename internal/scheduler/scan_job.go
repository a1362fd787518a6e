package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/modules/calibration"
	"github.com/aristath/alphascan/internal/modules/factors"
	"github.com/aristath/alphascan/internal/modules/risk"
	"github.com/aristath/alphascan/internal/modules/scanner"
	"github.com/aristath/alphascan/internal/modules/universe"
	"github.com/aristath/alphascan/internal/panel"
)

// PriceHistory is the slice of the history database the scan reads.
type PriceHistory interface {
	Tickers(ctx context.Context) ([]string, error)
	LoadPanel(ctx context.Context, tickers []string, from, to time.Time) (*panel.Panel, error)
	GetDailyPrices(ctx context.Context, tickers []string, from, to time.Time) ([]universe.DailyPrice, error)
	LoadBenchmark(ctx context.Context, ticker string, from, to time.Time) (*factors.Benchmark, error)
}

// BenchmarkSink receives the relative strength benchmark before each scan.
type BenchmarkSink interface {
	SetBenchmark(b *factors.Benchmark)
}

// ScanRunner executes one scan.
type ScanRunner interface {
	Run(ctx context.Context, in scanner.Input) (*scanner.Output, error)
}

// Archiver uploads the files a scan produced.
type Archiver interface {
	Archive(ctx context.Context, runID string, files []string) (string, error)
}

// ScanJobConfig selects what the scheduled scan runs on.
type ScanJobConfig struct {
	Candidates   []calibration.Weights
	LookbackDays int
	Tickers         []string // empty scans every ticker with history
	BenchmarkTicker string   // empty runs relative strength on raw returns
	RegimeTicker    string   // empty disables the kill switch
	Regime       risk.RegimeConfig
	Timeout      time.Duration
}

// ScanJob loads the recent history, refreshes the benchmark, derives the
// market regime and runs the scanner. The benchmark and regime tickers are
// never scanned themselves. The last successful output is kept for the API.
type ScanJob struct {
	cfg        ScanJobConfig
	history    PriceHistory
	runner     ScanRunner
	benchmarks BenchmarkSink
	archiver   Archiver
	now        func() time.Time
	log        zerolog.Logger

	mu     sync.RWMutex
	latest *scanner.Output
}

// NewScanJob creates a scan job. benchmarks and archiver may be nil.
func NewScanJob(cfg ScanJobConfig, history PriceHistory, runner ScanRunner, benchmarks BenchmarkSink, archiver Archiver, log zerolog.Logger) *ScanJob {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.Regime == (risk.RegimeConfig{}) {
		cfg.Regime = risk.DefaultRegimeConfig()
	}
	return &ScanJob{
		cfg:        cfg,
		history:    history,
		runner:     runner,
		benchmarks: benchmarks,
		archiver:   archiver,
		now:        time.Now,
		log:        log.With().Str("job", "scan").Logger(),
	}
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "scan"
}

// Run executes the scan job
func (j *ScanJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()
	_, err := j.Execute(ctx)
	return err
}

// Execute runs one scan with the caller's context.
func (j *ScanJob) Execute(ctx context.Context) (*scanner.Output, error) {
	now := j.now().UTC()
	from := now.AddDate(0, 0, -j.cfg.LookbackDays)

	tickers, err := j.universe(ctx)
	if err != nil {
		return nil, err
	}
	p, err := j.history.LoadPanel(ctx, tickers, from, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}
	if j.benchmarks != nil && j.cfg.BenchmarkTicker != "" {
		j.refreshBenchmark(ctx, from, now)
	}

	in := scanner.Input{Panel: p, Candidates: j.cfg.Candidates, RunDate: now}
	if j.cfg.RegimeTicker != "" {
		regime, err := j.regime(ctx, from, now)
		if err != nil {
			return nil, err
		}
		in.Regime = regime
	}

	out, err := j.runner.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	if j.archiver != nil {
		var files []string
		if out.ReportPath != "" {
			files = append(files, out.ReportPath)
		}
		if out.Snapshot != nil {
			files = append(files, out.Snapshot.Path)
		}
		if len(files) > 0 {
			key, err := j.archiver.Archive(ctx, out.RunID, files)
			if err != nil {
				// The scan itself succeeded
				j.log.Error().Err(err).Str("run_id", out.RunID).Msg("Failed to archive scan output")
			} else {
				j.log.Info().Str("run_id", out.RunID).Str("key", key).Msg("Archived scan output")
			}
		}
	}

	j.mu.Lock()
	j.latest = out
	j.mu.Unlock()
	return out, nil
}

// Latest returns the last successful scan, or nil.
func (j *ScanJob) Latest() *scanner.Output {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.latest
}

// universe returns the tickers to scan, without the benchmark and regime
// series.
func (j *ScanJob) universe(ctx context.Context) ([]string, error) {
	tickers := j.cfg.Tickers
	if len(tickers) == 0 {
		all, err := j.history.Tickers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tickers: %w", err)
		}
		tickers = all
	}

	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t == j.cfg.BenchmarkTicker || t == j.cfg.RegimeTicker {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no tickers to scan", panel.ErrValidation)
	}
	return out, nil
}

// refreshBenchmark reloads the benchmark over the scan window. Without
// history it is cleared and relative strength falls back to raw returns.
func (j *ScanJob) refreshBenchmark(ctx context.Context, from, to time.Time) {
	b, err := j.history.LoadBenchmark(ctx, j.cfg.BenchmarkTicker, from, to)
	if err != nil {
		j.log.Warn().Err(err).Str("ticker", j.cfg.BenchmarkTicker).Msg("Benchmark unavailable")
		j.benchmarks.SetBenchmark(nil)
		return
	}
	j.benchmarks.SetBenchmark(b)
}

func (j *ScanJob) regime(ctx context.Context, from, to time.Time) (*risk.Regime, error) {
	bars, err := j.history.GetDailyPrices(ctx, []string{j.cfg.RegimeTicker}, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load regime history: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no history for regime ticker %s", panel.ErrValidation, j.cfg.RegimeTicker)
	}

	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		high[i], low[i], closes[i] = b.High, b.Low, b.Close
	}
	r := risk.RegimeFromPrices(high, low, closes, j.cfg.Regime)

	j.log.Debug().
		Str("ticker", j.cfg.RegimeTicker).
		Float64("drop_1w", r.Drop1W).
		Float64("atr", r.ATR).
		Float64("hist_vol_std", r.HistVolStd).
		Msg("Derived market regime")
	return &r, nil
}
