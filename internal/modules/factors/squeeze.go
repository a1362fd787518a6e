package factors

import (
	"github.com/aristath/alphascan/internal/modules/technical"
	"github.com/aristath/alphascan/internal/panel"
)

// SqueezeConfig holds the Bollinger, Keltner and ATR parameters.
type SqueezeConfig struct {
	BBWindow int     `json:"bb_window" yaml:"bb_window" validate:"min=2"`
	BBStd    float64 `json:"bb_std" yaml:"bb_std" validate:"gt=0"`
	KCWindow int     `json:"kc_window" yaml:"kc_window" validate:"min=1"`
	KCMult   float64 `json:"kc_mult" yaml:"kc_mult" validate:"gt=0"`
	ATRShort int     `json:"atr_short" yaml:"atr_short" validate:"min=1"`
	ATRLong  int     `json:"atr_long" yaml:"atr_long" validate:"min=1"`
}

// DefaultSqueezeConfig returns Bollinger(20, 2σ), Keltner(20, 1.5×ATR) and
// ATR 20 vs 252.
func DefaultSqueezeConfig() SqueezeConfig {
	return SqueezeConfig{BBWindow: 20, BBStd: 2, KCWindow: 20, KCMult: 1.5, ATRShort: 20, ATRLong: 252}
}

// Squeeze captures volatility compression:
//
//	0.4 × [Bollinger width < Keltner width]
//	0.3 × −(ATR20 / ATR252)                 prefer compressed volatility
//	0.3 × (high − low) / ATR20
type Squeeze struct {
	cfg SqueezeConfig
}

// NewSqueeze validates cfg.
func NewSqueeze(cfg SqueezeConfig) (*Squeeze, error) {
	if err := panel.ValidateConfig("squeeze", cfg); err != nil {
		return nil, err
	}
	return &Squeeze{cfg: cfg}, nil
}

// Name implements Factor.
func (f *Squeeze) Name() string { return NameSqueeze }

// Required implements Factor.
func (f *Squeeze) Required() []string {
	return []string{panel.LevelDate, panel.LevelTicker, panel.ColHigh, panel.ColLow, panel.ColClose}
}

// Compute implements Factor.
func (f *Squeeze) Compute(p *panel.Panel) (panel.Series, error) {
	closes, err := requireAndClose(p, f.Required())
	if err != nil {
		return panel.Series{}, err
	}
	high, _ := p.Column(panel.ColHigh)
	low, _ := p.Column(panel.ColLow)

	// Bollinger Bands
	midBB := technical.MovingAverage(closes, f.cfg.BBWindow)
	std := technical.RollingStdDev(closes, f.cfg.BBWindow)
	bbSpread := make([]float64, closes.Len())
	for i := range bbSpread {
		bbSpread[i] = 2 * f.cfg.BBStd * std.Values[i]
	}
	bbWidth := ratio(bbSpread, midBB.Values)

	// Keltner Channels
	midKC := technical.MovingAverage(closes, f.cfg.KCWindow)
	atrKC, err := technical.AverageTrueRange(p, f.cfg.KCWindow)
	if err != nil {
		return panel.Series{}, err
	}
	kcSpread := make([]float64, closes.Len())
	for i := range kcSpread {
		kcSpread[i] = 2 * f.cfg.KCMult * atrKC.Values[i]
	}
	kcWidth := ratio(kcSpread, midKC.Values)

	// Comparisons against NaN are false, so the flag is 0 where undefined
	flag := make([]float64, closes.Len())
	for i := range flag {
		if bbWidth[i] < kcWidth[i] {
			flag[i] = 1
		}
	}

	atrShort, err := technical.AverageTrueRange(p, f.cfg.ATRShort)
	if err != nil {
		return panel.Series{}, err
	}
	atrLong, err := technical.AverageTrueRange(p, f.cfg.ATRLong)
	if err != nil {
		return panel.Series{}, err
	}
	volRatio := ratio(atrShort.Values, atrLong.Values)
	for i := range volRatio {
		volRatio[i] = -volRatio[i]
	}

	barRange := make([]float64, closes.Len())
	for i := range barRange {
		barRange[i] = high.Values[i] - low.Values[i]
	}

	return blend(RawName(NameSqueeze), p.Index(),
		term{0.4, flag},
		term{0.3, volRatio},
		term{0.3, ratio(barRange, atrShort.Values)},
	), nil
}
