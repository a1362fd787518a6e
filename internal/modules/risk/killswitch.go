// Package risk holds the market-regime kill switch that suspends new entries
// when a sector falls faster than its own volatility explains.
package risk

import (
	"math"

	"github.com/aristath/alphascan/internal/panel"
	"github.com/aristath/alphascan/pkg/formulas"
)

// KillSwitchConfig scales the two volatility yardsticks.
type KillSwitchConfig struct {
	ATRMultiplier     float64 `json:"atr_multiplier" yaml:"atr_multiplier" validate:"gte=0"`
	HistVolMultiplier float64 `json:"hist_vol_multiplier" yaml:"hist_vol_multiplier" validate:"gte=0"`
}

// DefaultKillSwitchConfig returns 2 × ATR and 1.5 × historical volatility.
func DefaultKillSwitchConfig() KillSwitchConfig {
	return KillSwitchConfig{
		ATRMultiplier:     2.0,
		HistVolMultiplier: 1.5,
	}
}

// Validate checks multiplier ranges.
func (c KillSwitchConfig) Validate() error {
	return panel.ValidateConfig("kill switch", c)
}

// Threshold is max(ATRMultiplier × atr, HistVolMultiplier × histVolStd).
func Threshold(atr, histVolStd float64, cfg KillSwitchConfig) float64 {
	return math.Max(cfg.ATRMultiplier*atr, cfg.HistVolMultiplier*histVolStd)
}

// ShouldActivateKillSwitch reports whether the one-week sector drop strictly
// exceeds the threshold. Undefined inputs never activate the switch.
func ShouldActivateKillSwitch(sectorDrop1W, atr, histVolStd float64, cfg KillSwitchConfig) bool {
	return sectorDrop1W > Threshold(atr, histVolStd, cfg)
}

// RegimeConfig sets the lookbacks used to derive kill switch inputs from a
// sector or benchmark price history.
type RegimeConfig struct {
	DropWindow    int `json:"drop_window" yaml:"drop_window" validate:"min=1"`
	ATRWindow     int `json:"atr_window" yaml:"atr_window" validate:"min=1"`
	HistVolWindow int `json:"hist_vol_window" yaml:"hist_vol_window" validate:"min=2"`
}

// DefaultRegimeConfig uses a five session week, a 14 day ATR and one year of
// weekly moves.
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{DropWindow: 5, ATRWindow: 14, HistVolWindow: 252}
}

// Regime is the kill switch input triple, expressed as fractions of price.
type Regime struct {
	Drop1W     float64 `json:"drop_1w"`
	ATR        float64 `json:"atr"`
	HistVolStd float64 `json:"hist_vol_std"`
}

// RegimeFromPrices derives the inputs at the last bar. Drop1W is the
// fractional fall over DropWindow sessions (positive on declines), ATR is the
// trailing average true range over the last close, and HistVolStd is the
// sample deviation of overlapping DropWindow-session returns over the last
// HistVolWindow bars. Values stay NaN while history is too short.
func RegimeFromPrices(high, low, close []float64, cfg RegimeConfig) Regime {
	n := len(close)
	r := Regime{Drop1W: math.NaN(), ATR: math.NaN(), HistVolStd: math.NaN()}
	if n == 0 || len(high) != n || len(low) != n {
		return r
	}
	last := close[n-1]

	if n > cfg.DropWindow {
		r.Drop1W = -formulas.SafeDiv(last-close[n-1-cfg.DropWindow], close[n-1-cfg.DropWindow])
	}

	atr := formulas.ATR(high, low, close, cfg.ATRWindow)
	r.ATR = formulas.SafeDiv(atr[n-1], last)

	// ROC is in percent
	weekly := formulas.ROC(close, cfg.DropWindow)
	start := n - cfg.HistVolWindow
	if start < 0 {
		start = 0
	}
	defined := make([]float64, 0, n-start)
	for _, v := range weekly[start:] {
		if !math.IsNaN(v) {
			defined = append(defined, v/100)
		}
	}
	if len(defined) >= 2 {
		r.HistVolStd = formulas.SampleStdDev(defined)
	}
	return r
}

// Evaluate applies the kill switch to a derived regime.
func (r Regime) Evaluate(cfg KillSwitchConfig) (active bool, threshold float64) {
	threshold = Threshold(r.ATR, r.HistVolStd, cfg)
	return ShouldActivateKillSwitch(r.Drop1W, r.ATR, r.HistVolStd, cfg), threshold
}
