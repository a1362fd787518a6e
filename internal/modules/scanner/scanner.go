// Package scanner runs the end-to-end screen: calibrate the factor weights on
// the loaded history, score the latest cross-section with the winner, size
// and cost the top names, gate on the market regime, then write the report
// and archive the input panel.
package scanner

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/metrics"
	"github.com/aristath/alphascan/internal/modules/calibration"
	"github.com/aristath/alphascan/internal/modules/fundamentals"
	"github.com/aristath/alphascan/internal/modules/reporting"
	"github.com/aristath/alphascan/internal/modules/risk"
	"github.com/aristath/alphascan/internal/modules/scoring"
	"github.com/aristath/alphascan/internal/modules/snapshots"
	"github.com/aristath/alphascan/internal/modules/tccm"
	"github.com/aristath/alphascan/internal/modules/technical"
	"github.com/aristath/alphascan/internal/panel"
)

// Scan statuses, also used as the metrics label.
const (
	StatusOK     = "ok"
	StatusKilled = "killed"
	StatusError  = "error"
)

// Config sizes the candidate list.
type Config struct {
	TopN             int     `json:"top_n" yaml:"top_n" validate:"min=1"`
	Capital          float64 `json:"capital" yaml:"capital" validate:"gt=0"`
	TargetVolatility float64 `json:"target_volatility" yaml:"target_volatility" validate:"gt=0"` // daily
	VolatilityWindow int     `json:"volatility_window" yaml:"volatility_window" validate:"min=2"`
	OverlayWeight    float64 `json:"overlay_weight" yaml:"overlay_weight" validate:"gte=0"`
	SnapshotLabel    string  `json:"snapshot_label" yaml:"snapshot_label"`
	ReportDir        string  `json:"report_dir" yaml:"report_dir"`
}

// DefaultConfig returns 20 names sized from 100k of capital at 2% daily
// volatility each, no fundamentals overlay.
func DefaultConfig() Config {
	return Config{
		TopN:             20,
		Capital:          100_000,
		TargetVolatility: 0.02,
		VolatilityWindow: 20,
		OverlayWeight:    0,
		SnapshotLabel:    "raw",
	}
}

// Input is one scan request. Regime is optional; without it the kill switch
// stays off. RunDate defaults to the last date of Panel.
type Input struct {
	Panel      *panel.Panel
	Candidates []calibration.Weights
	Regime     *risk.Regime
	RunDate    time.Time
}

// Output describes a completed scan.
type Output struct {
	RunID            string                         `json:"run_id"`
	AsOf             time.Time                      `json:"as_of"`
	Status           string                         `json:"status"`
	Calibration      *calibration.CalibrationResult `json:"-"`
	Candidates       []reporting.Candidate          `json:"candidates"`
	KillSwitchActive bool                           `json:"kill_switch_active"`
	Threshold        float64                        `json:"threshold"`
	ReportPath       string                         `json:"report_path,omitempty"`
	Snapshot         *snapshots.Snapshot            `json:"snapshot,omitempty"`
}

// Scanner wires the calibrator to its collaborators. store and provider may
// be nil.
type Scanner struct {
	cfg        Config
	calibrator *calibration.Calibrator
	engine     *scoring.Engine
	costs      *tccm.Model
	killSwitch risk.KillSwitchConfig
	store      *snapshots.Store
	provider   fundamentals.Provider
	log        zerolog.Logger
}

// New validates cfg and the kill switch configuration.
func New(
	cfg Config,
	calibrator *calibration.Calibrator,
	bt *calibration.Backtester,
	killSwitch risk.KillSwitchConfig,
	store *snapshots.Store,
	provider fundamentals.Provider,
	log zerolog.Logger,
) (*Scanner, error) {
	if err := panel.ValidateConfig("scanner", cfg); err != nil {
		return nil, err
	}
	if err := killSwitch.Validate(); err != nil {
		return nil, err
	}
	if calibrator == nil || bt == nil {
		return nil, fmt.Errorf("%w: scanner requires a calibrator and a backtester", panel.ErrValidation)
	}
	costs, err := tccm.NewModel(bt.Config().TCCM, log)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		cfg:        cfg,
		calibrator: calibrator,
		engine:     bt.Engine(),
		costs:      costs,
		killSwitch: killSwitch,
		store:      store,
		provider:   provider,
		log:        log.With().Str("component", "scanner").Logger(),
	}, nil
}

// Config returns the scanner configuration.
func (s *Scanner) Config() Config { return s.cfg }

// Run executes one scan.
func (s *Scanner) Run(ctx context.Context, in Input) (*Output, error) {
	out, err := s.run(ctx, in)
	if err != nil {
		metrics.ScansTotal.WithLabelValues(StatusError).Inc()
		return nil, err
	}
	metrics.ScansTotal.WithLabelValues(out.Status).Inc()
	return out, nil
}

func (s *Scanner) run(ctx context.Context, in Input) (*Output, error) {
	if in.Panel == nil || in.Panel.Len() == 0 {
		return nil, fmt.Errorf("%w: scan requires a non-empty panel", panel.ErrValidation)
	}
	if len(in.Candidates) == 0 {
		return nil, fmt.Errorf("%w: scan requires at least one weight candidate", panel.ErrValidation)
	}

	dates := in.Panel.Dates()
	out := &Output{
		RunID:  uuid.New().String(),
		AsOf:   dates[len(dates)-1],
		Status: StatusOK,
	}
	log := s.log.With().Str("run_id", out.RunID).Logger()
	log.Info().
		Int("rows", in.Panel.Len()).
		Int("tickers", len(in.Panel.Tickers())).
		Int("candidates", len(in.Candidates)).
		Msg("Starting scan")

	cal, err := s.calibrator.Calibrate(ctx, in.Panel, in.Candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to calibrate weights: %w", err)
	}
	out.Calibration = cal

	m, err := s.engine.ComputeMatrix(in.Panel)
	if err != nil {
		return nil, fmt.Errorf("failed to compute factor matrix: %w", err)
	}
	composite := calibration.Composite(m, cal.BestWeights)

	candidates, err := s.buildCandidates(ctx, in.Panel, composite, out.AsOf)
	if err != nil {
		return nil, err
	}

	if in.Regime != nil {
		out.KillSwitchActive, out.Threshold = in.Regime.Evaluate(s.killSwitch)
	}
	if out.KillSwitchActive {
		out.Status = StatusKilled
		log.Warn().
			Float64("drop_1w", in.Regime.Drop1W).
			Float64("threshold", out.Threshold).
			Msg("Kill switch active, suppressing new entries")
		candidates = nil
	}
	out.Candidates = candidates

	if s.cfg.ReportDir != "" {
		runDate := in.RunDate
		if runDate.IsZero() {
			runDate = out.AsOf
		}
		summary := &reporting.Summary{
			RunID:            out.RunID,
			BestWeights:      cal.BestWeights,
			BestSharpe:       cal.BestSharpe,
			Evaluated:        len(cal.Evaluations),
			KillSwitchActive: out.KillSwitchActive,
		}
		if err := os.MkdirAll(s.cfg.ReportDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
		path, err := reporting.WriteReport(s.cfg.ReportDir, candidates, runDate, summary)
		if err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
		out.ReportPath = path
	}

	if s.store != nil {
		snap, err := s.store.Save(ctx, in.Panel, s.cfg.SnapshotLabel)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot panel: %w", err)
		}
		out.Snapshot = snap
	}

	log.Info().
		Str("status", out.Status).
		Float64("best_sharpe", cal.BestSharpe).
		Int("selected", len(out.Candidates)).
		Str("report", out.ReportPath).
		Msg("Scan complete")
	return out, nil
}

// buildCandidates scores the last cross-section and sizes its top names.
func (s *Scanner) buildCandidates(ctx context.Context, p *panel.Panel, composite panel.Series, asOf time.Time) ([]reporting.Candidate, error) {
	closes, err := p.Column(panel.ColClose)
	if err != nil {
		return nil, err
	}
	volume := p.ColumnOrUndefined(panel.ColVolume)
	adv := tccm.ADV(volume, s.costs.Config().ADVWindow)
	vol := technical.RollingStdDev(technical.LogReturns(closes), s.cfg.VolatilityWindow)

	idx := p.Index()
	rows := idx.CrossSection(idx.NumDates() - 1)
	tickers := make([]string, len(rows))
	for i, r := range rows {
		tickers[i] = idx.Key(r).Ticker
	}

	var overlay map[string]fundamentals.Scores
	if s.provider != nil && s.cfg.OverlayWeight != 0 {
		overlay, err = fundamentals.FundamentalScoresBatch(ctx, s.provider, tickers, asOf)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch fundamental scores: %w", err)
		}
	}

	scores := make([]float64, composite.Len())
	copy(scores, composite.Values)
	for i, r := range rows {
		if sc, ok := overlay[tickers[i]]; ok && !math.IsNaN(scores[r]) {
			scores[r] += s.cfg.OverlayWeight * fundamentals.Overlay(sc)
		}
	}
	final := panel.NewSeries(composite.Name, idx, scores)
	significance := scoring.RankNormalize(final.Map(math.Abs), 0, 1)

	candidates := make([]reporting.Candidate, 0, len(rows))
	for _, r := range rows {
		if math.IsNaN(scores[r]) {
			continue
		}
		price := closes.Values[r]
		shares := s.volAdjustedShares(price, vol.Values[r])
		candidates = append(candidates, reporting.Candidate{
			Ticker:          idx.Key(r).Ticker,
			CompositeScore:  scores[r],
			VolAdjShares:    shares,
			EstEntryPrice:   price,
			EstSlippageCost: tccm.EntryCost(shares, price, adv.Values[r], vol.Values[r], s.costs.Config()),
			CapacityUsage:   tccm.Capacity(shares, price, adv.Values[r]),
			Significance:    significance.Values[r],
		})
	}

	ranked := reporting.Rank(candidates)
	if len(ranked) > s.cfg.TopN {
		ranked = ranked[:s.cfg.TopN]
	}
	return ranked, nil
}

// volAdjustedShares splits Capital evenly across TopN names and scales each
// slice down when the name is more volatile than TargetVolatility. Undefined
// volatility leaves the slice unscaled.
func (s *Scanner) volAdjustedShares(price, volatility float64) float64 {
	if price <= 0 || math.IsNaN(price) {
		return 0
	}
	budget := s.cfg.Capital / float64(s.cfg.TopN)
	scale := 1.0
	if volatility > 0 && !math.IsNaN(volatility) {
		scale = math.Min(1, s.cfg.TargetVolatility/volatility)
	}
	return math.Floor(budget * scale / price)
}
