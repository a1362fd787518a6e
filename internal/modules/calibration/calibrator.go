package calibration

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/alphascan/internal/metrics"
	"github.com/aristath/alphascan/internal/panel"
)

// CalibratorConfig bounds the candidate fan-out.
type CalibratorConfig struct {
	Workers int `json:"workers" yaml:"workers" validate:"min=1"`
}

// Evaluation is the score of one candidate.
type Evaluation struct {
	Weights Weights `json:"weights"`
	Sharpe  float64 `json:"sharpe"`
	Cached  bool    `json:"cached"`
}

// CalibrationResult holds the winning candidate and every evaluation in
// input order. BestIndex is -1 when no candidate was supplied, in which case
// BestWeights is empty and BestSharpe is -Inf.
type CalibrationResult struct {
	BestWeights Weights
	BestSharpe  float64
	BestIndex   int
	Evaluations []Evaluation
}

// Calibrator evaluates a finite set of weight vectors and keeps the one with
// the strictly highest Sharpe. On exact ties the earliest candidate wins.
type Calibrator struct {
	bt    *Backtester
	cfg   CalibratorConfig
	cache ResultCache
	log   zerolog.Logger
}

// NewCalibrator validates cfg. cache may be nil.
func NewCalibrator(bt *Backtester, cfg CalibratorConfig, cache ResultCache, log zerolog.Logger) (*Calibrator, error) {
	if err := panel.ValidateConfig("calibrator", cfg); err != nil {
		return nil, err
	}
	if bt == nil {
		return nil, fmt.Errorf("%w: calibrator requires a backtester", panel.ErrValidation)
	}
	return &Calibrator{
		bt:    bt,
		cfg:   cfg,
		cache: cache,
		log:   log.With().Str("component", "calibrator").Logger(),
	}, nil
}

// Calibrate backtests every candidate against p. The factor matrix and
// market data are computed once and shared read-only by all candidates.
// Candidates run concurrently; the result does not depend on the number of
// workers or on scheduling.
func (c *Calibrator) Calibrate(ctx context.Context, p *panel.Panel, candidates []Weights) (*CalibrationResult, error) {
	start := time.Now()

	fingerprint := ""
	if c.cache != nil {
		fingerprint = p.Fingerprint() + c.bt.engine.BenchmarkFingerprint()
	}

	m, err := c.bt.engine.ComputeMatrix(p)
	if err != nil {
		return nil, fmt.Errorf("failed to compute factor matrix: %w", err)
	}
	mkt, err := c.bt.prepare(p)
	if err != nil {
		return nil, err
	}

	evals := make([]Evaluation, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, w := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			var key string
			if c.cache != nil {
				k, err := CacheKey(fingerprint, c.bt.engine.Config(), c.bt.cfg, w)
				if err != nil {
					return err
				}
				key = k
				summary, ok, err := c.cache.Get(gctx, key)
				if err != nil {
					c.log.Warn().Err(err).Msg("Calibration cache read failed, recomputing")
				} else if ok {
					metrics.BacktestsTotal.WithLabelValues("cache").Inc()
					evals[i] = Evaluation{Weights: w.Clone(), Sharpe: summary.Sharpe, Cached: true}
					return nil
				}
			}

			res := c.bt.simulate(mkt, Composite(m, w))
			metrics.BacktestsTotal.WithLabelValues("computed").Inc()
			evals[i] = Evaluation{Weights: w.Clone(), Sharpe: res.Sharpe}

			if c.cache != nil {
				summary := Summary{Sharpe: res.Sharpe, TotalCost: res.TotalCost, Days: len(res.Dates)}
				if err := c.cache.Set(gctx, key, summary); err != nil {
					c.log.Warn().Err(err).Msg("Calibration cache write failed")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("calibration aborted: %w", err)
	}

	result := &CalibrationResult{
		BestWeights: Weights{},
		BestSharpe:  math.Inf(-1),
		BestIndex:   -1,
		Evaluations: evals,
	}
	for i, e := range evals {
		if e.Sharpe > result.BestSharpe {
			result.BestSharpe = e.Sharpe
			result.BestWeights = e.Weights.Clone()
			result.BestIndex = i
		}
	}

	elapsed := time.Since(start)
	metrics.CalibrationDuration.Observe(elapsed.Seconds())
	if result.BestIndex >= 0 {
		metrics.BestSharpe.Set(result.BestSharpe)
	}
	c.log.Info().
		Int("candidates", len(candidates)).
		Int("best_index", result.BestIndex).
		Float64("best_sharpe", result.BestSharpe).
		Dur("duration", elapsed).
		Msg("Calibration complete")
	return result, nil
}
