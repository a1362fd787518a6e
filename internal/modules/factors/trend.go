package factors

import (
	"github.com/aristath/alphascan/internal/modules/technical"
	"github.com/aristath/alphascan/internal/panel"
	"github.com/aristath/alphascan/pkg/formulas"
)

// TrendConfig holds the moving-average windows of the trend factor.
type TrendConfig struct {
	SMAShort    int `json:"sma_short" yaml:"sma_short" validate:"min=1"`
	SMAMed      int `json:"sma_med" yaml:"sma_med" validate:"min=1"`
	SMALong     int `json:"sma_long" yaml:"sma_long" validate:"min=1"`
	SlopeWindow int `json:"slope_window" yaml:"slope_window" validate:"min=1"`
}

// DefaultTrendConfig returns SMA 20/50/200 with a 20 day slope.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{SMAShort: 20, SMAMed: 50, SMALong: 200, SlopeWindow: 20}
}

// Trend blends:
//
//	0.35 × sign(SMA50 − SMA200)        golden/death cross state
//	0.25 × (close − SMA200) / SMA200   distance from long-term trend
//	0.20 × slope(SMA50)
//	0.10 × slope(SMA200)
//	0.10 × (close − SMA20) / SMA20     short-term alignment
type Trend struct {
	cfg TrendConfig
}

// NewTrend validates cfg.
func NewTrend(cfg TrendConfig) (*Trend, error) {
	if err := panel.ValidateConfig("trend", cfg); err != nil {
		return nil, err
	}
	return &Trend{cfg: cfg}, nil
}

// Name implements Factor.
func (f *Trend) Name() string { return NameTrend }

// Required implements Factor.
func (f *Trend) Required() []string {
	return []string{panel.LevelDate, panel.LevelTicker, panel.ColClose}
}

// Compute implements Factor.
func (f *Trend) Compute(p *panel.Panel) (panel.Series, error) {
	closes, err := requireAndClose(p, f.Required())
	if err != nil {
		return panel.Series{}, err
	}

	smaShort := technical.MovingAverage(closes, f.cfg.SMAShort)
	smaMed := technical.MovingAverage(closes, f.cfg.SMAMed)
	smaLong := technical.MovingAverage(closes, f.cfg.SMALong)

	cross := make([]float64, closes.Len())
	for i := range cross {
		cross[i] = formulas.Sign(smaMed.Values[i] - smaLong.Values[i])
	}

	return blend(RawName(NameTrend), p.Index(),
		term{0.35, cross},
		term{0.25, distance(closes.Values, smaLong.Values)},
		term{0.20, technical.Slope(smaMed, f.cfg.SlopeWindow).Values},
		term{0.10, technical.Slope(smaLong, f.cfg.SlopeWindow).Values},
		term{0.10, distance(closes.Values, smaShort.Values)},
	), nil
}
