// Package calibration backtests factor weight vectors and selects the best
// one from a finite candidate set by cost-adjusted Sharpe ratio.
package calibration

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/modules/scoring"
	"github.com/aristath/alphascan/internal/modules/tccm"
	"github.com/aristath/alphascan/internal/panel"
	"github.com/aristath/alphascan/pkg/formulas"
)

// BacktestConfig holds the simulation parameters.
type BacktestConfig struct {
	Capital          float64     `json:"capital" yaml:"capital" validate:"gt=0"`                       // unit notional
	VolatilityWindow int         `json:"volatility_window" yaml:"volatility_window" validate:"min=2"` // log-return stdev window
	PeriodsPerYear   int         `json:"periods_per_year" yaml:"periods_per_year" validate:"min=1"`
	TCCM             tccm.Config `json:"tccm" yaml:"tccm"`
}

// DefaultBacktestConfig returns unit capital, a 20 day volatility proxy,
// daily annualization and the default cost model.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		Capital:          1.0,
		VolatilityWindow: 20,
		PeriodsPerYear:   formulas.TradingDaysPerYear,
		TCCM:             tccm.DefaultConfig(),
	}
}

// Weights maps factor score columns to weights. Names absent from the factor
// matrix are ignored.
type Weights map[string]float64

// Clone returns a copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Canonical is a stable encoding of w with sorted keys and shortest
// round-trip float formatting.
func (w Weights) Canonical() string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(strconv.Quote(k))
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(w[k], 'g', -1, 64))
		sb.WriteByte(';')
	}
	return sb.String()
}

// Composite is Σ weight × score over the matrix columns named in w, in
// matrix column order. A row is undefined when any contributing score is.
// With no matching column the composite is 0 everywhere.
func Composite(m *scoring.Matrix, w Weights) panel.Series {
	out := make([]float64, m.Len())
	for _, name := range m.Columns() {
		weight, ok := w[name]
		if !ok {
			continue
		}
		col, _ := m.Column(name)
		for i, v := range col.Values {
			out[i] += weight * v
		}
	}
	return panel.NewSeries("composite_score", m.Index(), out)
}

// Result is the outcome of one backtest run.
type Result struct {
	Sharpe     float64
	Dates      []time.Time
	NetReturns []float64 // per date, after costs
	Equity     []float64 // cumulative product of (1 + net)
	Positions  panel.Series
	Costs      panel.Series
	TotalCost  float64
}

// Backtester simulates a one-day-lagged portfolio over a panel.
type Backtester struct {
	cfg    BacktestConfig
	engine *scoring.Engine
	log    zerolog.Logger
}

// NewBacktester validates cfg.
func NewBacktester(cfg BacktestConfig, engine *scoring.Engine, log zerolog.Logger) (*Backtester, error) {
	if err := panel.ValidateConfig("backtest", cfg); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: backtester requires a factor engine", panel.ErrValidation)
	}
	return &Backtester{
		cfg:    cfg,
		engine: engine,
		log:    log.With().Str("component", "backtester").Logger(),
	}, nil
}

// Config returns the backtest configuration.
func (b *Backtester) Config() BacktestConfig { return b.cfg }

// Engine returns the factor engine.
func (b *Backtester) Engine() *scoring.Engine { return b.engine }

// Run computes the factor matrix of p and backtests w on it.
func (b *Backtester) Run(p *panel.Panel, w Weights) (*Result, error) {
	m, err := b.engine.ComputeMatrix(p)
	if err != nil {
		return nil, fmt.Errorf("failed to compute factor matrix: %w", err)
	}
	return b.RunMatrix(p, m, w)
}

// RunMatrix backtests w on a precomputed factor matrix of p.
func (b *Backtester) RunMatrix(p *panel.Panel, m *scoring.Matrix, w Weights) (*Result, error) {
	mkt, err := b.prepare(p)
	if err != nil {
		return nil, err
	}
	return b.simulate(mkt, Composite(m, w)), nil
}

// market is the weight-independent part of a backtest: prices, returns and
// volatility on the dense date × ticker grid. It is read-only once built.
type market struct {
	grid    *panel.Index
	dates   []time.Time
	tickers []string
	price   [][]float64 // [ticker][date]
	ret     [][]float64
	prices  panel.Series // panel index
	volume  panel.Series // panel index
	vol     panel.Series // grid index
}

func (b *Backtester) prepare(p *panel.Panel) (*market, error) {
	if err := panel.RequireColumns(p, panel.ColClose); err != nil {
		return nil, err
	}
	closes, _ := p.Column(panel.ColClose)

	mkt := &market{
		grid:    denseGrid(p.Index()),
		dates:   p.Dates(),
		tickers: p.Tickers(),
		prices:  closes,
		volume:  p.ColumnOrUndefined(panel.ColVolume),
	}

	nd := len(mkt.dates)
	mkt.price = make([][]float64, len(mkt.tickers))
	mkt.ret = make([][]float64, len(mkt.tickers))
	volValues := make([]float64, mkt.grid.Len())
	for t, ticker := range mkt.tickers {
		row := make([]float64, nd)
		for d, date := range mkt.dates {
			row[d] = closes.At(panel.Key{Date: date, Ticker: ticker})
		}
		mkt.price[t] = row
		mkt.ret[t] = formulas.LogReturns(row)

		vol := formulas.RollingStdDev(mkt.ret[t], b.cfg.VolatilityWindow)
		for d := range vol {
			volValues[d*len(mkt.tickers)+t] = vol[d]
		}
	}
	mkt.vol = panel.NewSeries("volatility", mkt.grid, volValues)
	return mkt, nil
}

// simulate runs the position, cost and return accounting for one composite.
func (b *Backtester) simulate(mkt *market, composite panel.Series) *Result {
	nd, nt := len(mkt.dates), len(mkt.tickers)

	// Target shares per date from the composite's absolute-sum weights
	target := make([]float64, nd*nt)
	prev := make([]float64, nd*nt)
	for d, date := range mkt.dates {
		scores := make([]float64, nt)
		norm := 0.0
		for t, ticker := range mkt.tickers {
			scores[t] = composite.At(panel.Key{Date: date, Ticker: ticker})
			if !math.IsNaN(scores[t]) {
				norm += math.Abs(scores[t])
			}
		}
		for t := range mkt.tickers {
			weight := 0.0
			if norm != 0 && !math.IsNaN(scores[t]) {
				weight = scores[t] / norm
			}
			dollars := weight * b.cfg.Capital
			price := mkt.price[t][d]
			shares := 0.0
			if price != 0 && !math.IsNaN(price) {
				shares = dollars / price
			}
			target[d*nt+t] = shares
			// Yesterday's target is today's holding
			if d > 0 {
				prev[d*nt+t] = target[(d-1)*nt+t]
			}
		}
	}

	targetS := panel.NewSeries("position", mkt.grid, target)
	prevS := panel.NewSeries("position_prev", mkt.grid, prev)
	costs := tccm.EstimateTradeCosts(prevS, targetS, mkt.prices, mkt.volume, mkt.vol, b.cfg.TCCM)
	costs = costs.Reindex(mkt.grid)

	net := make([]float64, nd)
	totalCost := 0.0
	for d := range mkt.dates {
		gross, dayCost := 0.0, 0.0
		for t := range mkt.tickers {
			if pnl := prev[d*nt+t] * mkt.ret[t][d]; !math.IsNaN(pnl) {
				gross += pnl
			}
			if c := costs.Values[d*nt+t]; !math.IsNaN(c) {
				dayCost += c
			}
		}
		net[d] = gross - dayCost
		totalCost += dayCost
	}

	return &Result{
		Sharpe:     formulas.AnnualizedSharpe(net, b.cfg.PeriodsPerYear),
		Dates:      mkt.dates,
		NetReturns: net,
		Equity:     formulas.EquityCurve(net),
		Positions:  targetS,
		Costs:      costs,
		TotalCost:  totalCost,
	}
}

// denseGrid returns every (date, ticker) combination of idx, in key order.
// An already balanced index is returned as is.
func denseGrid(idx *panel.Index) *panel.Index {
	dates, tickers := idx.Dates(), idx.Tickers()
	if idx.Len() == len(dates)*len(tickers) {
		return idx
	}
	keys := make([]panel.Key, 0, len(dates)*len(tickers))
	for _, d := range dates {
		for _, t := range tickers {
			keys = append(keys, panel.Key{Date: d, Ticker: t})
		}
	}
	// Keys are unique and sorted by construction
	grid, _ := panel.NewIndex(keys)
	return grid
}
