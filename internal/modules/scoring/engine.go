// Package scoring runs the factor modules over a panel and normalizes their
// raw outputs cross-sectionally into a factor matrix.
package scoring

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/metrics"
	"github.com/aristath/alphascan/internal/modules/factors"
	"github.com/aristath/alphascan/internal/panel"
)

// Config selects the enabled factors and the normalization range.
type Config struct {
	UseRS       bool `json:"use_rs" yaml:"use_rs"`
	UseTrend    bool `json:"use_trend" yaml:"use_trend"`
	UseSqueeze  bool `json:"use_squeeze" yaml:"use_squeeze"`
	UseMomentum bool `json:"use_momentum" yaml:"use_momentum"`
	UseVolume   bool `json:"use_volume" yaml:"use_volume"`

	Lower  float64 `json:"lower" yaml:"lower"`
	Upper  float64 `json:"upper" yaml:"upper" validate:"gtfield=Lower"`
	Method string  `json:"method" yaml:"method" validate:"oneof=rank zscore"`

	RS       factors.RSConfig       `json:"rs" yaml:"rs"`
	Trend    factors.TrendConfig    `json:"trend" yaml:"trend"`
	Squeeze  factors.SqueezeConfig  `json:"squeeze" yaml:"squeeze"`
	Momentum factors.MomentumConfig `json:"momentum" yaml:"momentum"`
	Volume   factors.VolumeConfig   `json:"volume" yaml:"volume"`
}

// DefaultConfig enables every factor with rank normalization onto [-1, 1].
func DefaultConfig() Config {
	return Config{
		UseRS:       true,
		UseTrend:    true,
		UseSqueeze:  true,
		UseMomentum: true,
		UseVolume:   true,
		Lower:       -1,
		Upper:       1,
		Method:      MethodRank,
		RS:          factors.DefaultRSConfig(),
		Trend:       factors.DefaultTrendConfig(),
		Squeeze:     factors.DefaultSqueezeConfig(),
		Momentum:    factors.DefaultMomentumConfig(),
		Volume:      factors.DefaultVolumeConfig(),
	}
}

// Engine computes factor matrices. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	cfg     Config
	factors []factors.Factor
	rs      *factors.RS // nil when RS is disabled
	log     zerolog.Logger
}

// NewEngine validates cfg and builds the enabled factors. benchmark may be nil.
func NewEngine(cfg Config, benchmark *factors.Benchmark, log zerolog.Logger) (*Engine, error) {
	if err := panel.ValidateConfig("factor engine", cfg); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg: cfg,
		log: log.With().Str("component", "factor_engine").Logger(),
	}

	steps := []struct {
		enabled bool
		build   func() (factors.Factor, error)
	}{
		{cfg.UseRS, func() (factors.Factor, error) {
			rs, err := factors.NewRS(cfg.RS, benchmark)
			if err != nil {
				return nil, err
			}
			e.rs = rs
			return rs, nil
		}},
		{cfg.UseTrend, func() (factors.Factor, error) { return factors.NewTrend(cfg.Trend) }},
		{cfg.UseSqueeze, func() (factors.Factor, error) { return factors.NewSqueeze(cfg.Squeeze) }},
		{cfg.UseMomentum, func() (factors.Factor, error) { return factors.NewMomentum(cfg.Momentum) }},
		{cfg.UseVolume, func() (factors.Factor, error) { return factors.NewVolume(cfg.Volume) }},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		f, err := step.build()
		if err != nil {
			return nil, err
		}
		e.factors = append(e.factors, f)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// SetBenchmark replaces the relative strength benchmark. It is a no-op when
// RS is disabled.
func (e *Engine) SetBenchmark(b *factors.Benchmark) {
	if e.rs != nil {
		e.rs.SetBenchmark(b)
	}
}

// BenchmarkFingerprint identifies the benchmark in use, "" when there is none.
func (e *Engine) BenchmarkFingerprint() string {
	if e.rs == nil {
		return ""
	}
	b := e.rs.Benchmark()
	if b == nil {
		return ""
	}
	return b.Fingerprint()
}

// Factors returns the enabled factor names in evaluation order.
func (e *Engine) Factors() []string {
	names := make([]string, len(e.factors))
	for i, f := range e.factors {
		names[i] = f.Name()
	}
	return names
}

// ScoreColumns returns the "<Factor>_score" columns ComputeMatrix produces.
func (e *Engine) ScoreColumns() []string {
	names := e.Factors()
	for i, n := range names {
		names[i] = factors.ScoreName(n)
	}
	return names
}

// ComputeRaw evaluates every enabled factor. Columns are named
// "<Factor>_raw".
func (e *Engine) ComputeRaw(p *panel.Panel) (*Matrix, error) {
	raw := make([]panel.Series, 0, len(e.factors))
	for _, f := range e.factors {
		start := time.Now()
		s, err := f.Compute(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s factor: %w", f.Name(), err)
		}
		elapsed := time.Since(start)
		metrics.FactorDuration.WithLabelValues(f.Name()).Observe(elapsed.Seconds())
		e.log.Debug().
			Str("factor", f.Name()).
			Dur("duration", elapsed).
			Int("rows", p.Len()).
			Msg("Computed raw factor")
		raw = append(raw, s)
	}
	return NewMatrix(p.Index(), raw...), nil
}

// ComputeMatrix evaluates the enabled factors and normalizes each raw column
// per date. Columns are named "<Factor>_score".
func (e *Engine) ComputeMatrix(p *panel.Panel) (*Matrix, error) {
	raw, err := e.ComputeRaw(p)
	if err != nil {
		return nil, err
	}

	scores := make([]panel.Series, 0, len(raw.names))
	for _, name := range raw.names {
		col, _ := raw.Column(name)
		var norm panel.Series
		switch e.cfg.Method {
		case MethodZScore:
			norm = ZScoreNormalize(col)
		default:
			norm = RankNormalize(col, e.cfg.Lower, e.cfg.Upper)
		}
		scores = append(scores, norm.Rename(factors.ScoreFromRaw(name)))
	}

	e.log.Info().
		Strs("factors", e.Factors()).
		Int("rows", p.Len()).
		Int("dates", p.Index().NumDates()).
		Msg("Factor matrix computed")
	return NewMatrix(p.Index(), scores...), nil
}
