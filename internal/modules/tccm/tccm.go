// Package tccm is the transaction cost and capacity model.
//
// Costs combine a per-share commission with a market impact term:
//
//	cost = commission × |Δshares| + k × (|Δshares| × price / ADV)^α × volatility
//
// The impact term falls back to 0 whenever ADV or volatility is undefined,
// leaving commission only. Capacity usage (|shares| × price / ADV) stays
// undefined where ADV is.
package tccm

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/modules/technical"
	"github.com/aristath/alphascan/internal/panel"
)

// Config holds the cost model parameters.
type Config struct {
	CommissionPerShare  float64 `json:"commission_per_share" yaml:"commission_per_share" validate:"gte=0"`
	CalibrationConstant float64 `json:"calibration_constant" yaml:"calibration_constant" validate:"gte=0"`
	ImpactAlpha         float64 `json:"impact_alpha" yaml:"impact_alpha" validate:"gt=0"`
	ADVWindow           int     `json:"adv_window" yaml:"adv_window" validate:"min=1"`
}

// DefaultConfig returns zero commission, a 50 bps calibration constant,
// α = 0.75 and a 20 day ADV.
func DefaultConfig() Config {
	return Config{
		CommissionPerShare:  0,
		CalibrationConstant: 0.005,
		ImpactAlpha:         0.75,
		ADVWindow:           20,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	return panel.ValidateConfig("tccm", c)
}

// ADV is the per-ticker trailing mean of volume over window observations,
// undefined until the window is filled.
func ADV(volume panel.Series, window int) panel.Series {
	return technical.MovingAverage(volume, window).Rename("adv")
}

// EstimateTradeCosts returns the dollar cost of moving from prev to next
// shares. Inputs are aligned onto the union of their keys; absent values are
// undefined. ADV is computed on the volume series' own index before
// alignment.
func EstimateTradeCosts(prev, next, price, volume, volatility panel.Series, cfg Config) panel.Series {
	adv := ADV(volume, cfg.ADVWindow)
	aligned, idx := panel.Align(prev, next, price, adv, volatility)
	prevV, nextV, priceV, advV, volV := aligned[0].Values, aligned[1].Values, aligned[2].Values, aligned[3].Values, aligned[4].Values

	out := make([]float64, idx.Len())
	for i := range out {
		out[i] = tradeCost(math.Abs(nextV[i]-prevV[i]), priceV[i], advV[i], volV[i], cfg)
	}
	return panel.NewSeries("trade_cost", idx, out)
}

// tradeCost is undefined only when delta is.
func tradeCost(delta, price, adv, volatility float64, cfg Config) float64 {
	commission := delta * cfg.CommissionPerShare
	if adv == 0 || math.IsNaN(adv) {
		return commission
	}
	mic := cfg.CalibrationConstant * math.Pow(delta*price/adv, cfg.ImpactAlpha) * volatility
	if math.IsNaN(mic) || math.IsInf(mic, 0) {
		return commission
	}
	return commission + mic
}

// CapacityUsage returns |shares| × price / ADV, undefined where ADV is
// undefined or zero.
func CapacityUsage(positions, price, volume panel.Series, cfg Config) panel.Series {
	adv := ADV(volume, cfg.ADVWindow)
	aligned, idx := panel.Align(positions, price, adv)
	posV, priceV, advV := aligned[0].Values, aligned[1].Values, aligned[2].Values

	out := make([]float64, idx.Len())
	for i := range out {
		out[i] = Capacity(posV[i], priceV[i], advV[i])
	}
	return panel.NewSeries("capacity_usage", idx, out)
}

// Capacity is the capacity usage of one position: |shares| × price / ADV,
// NaN when adv is NaN or zero.
func Capacity(shares, price, adv float64) float64 {
	if adv == 0 || math.IsNaN(adv) {
		return math.NaN()
	}
	return math.Abs(shares) * price / adv
}

// Model binds a validated configuration.
type Model struct {
	cfg Config
	log zerolog.Logger
}

// NewModel validates cfg.
func NewModel(cfg Config, log zerolog.Logger) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg, log: log.With().Str("component", "tccm").Logger()}, nil
}

// Config returns the model configuration.
func (m *Model) Config() Config { return m.cfg }

// TradeCosts is EstimateTradeCosts with the model configuration.
func (m *Model) TradeCosts(prev, next, price, volume, volatility panel.Series) panel.Series {
	costs := EstimateTradeCosts(prev, next, price, volume, volatility, m.cfg)
	if !prev.Index.Equal(next.Index) || !next.Index.Equal(price.Index) {
		m.log.Debug().
			Int("rows", costs.Len()).
			Msg("Trade cost inputs were misaligned, result covers the union of keys")
	}
	return costs
}

// Capacity is CapacityUsage with the model configuration.
func (m *Model) Capacity(positions, price, volume panel.Series) panel.Series {
	return CapacityUsage(positions, price, volume, m.cfg)
}

// EntryCost is the cost of opening a position of shares at price from flat,
// given a known ADV and volatility. Used to estimate the slippage of a single
// candidate trade outside a backtest.
func EntryCost(shares, price, adv, volatility float64, cfg Config) float64 {
	return tradeCost(math.Abs(shares), price, adv, volatility, cfg)
}
