package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alphascan/internal/modules/factors"
	"github.com/aristath/alphascan/internal/panel"
	testingpkg "github.com/aristath/alphascan/internal/testing"
)

func crossSection(t *testing.T, values map[string]float64) panel.Series {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var keys []panel.Key
	for ticker := range values {
		keys = append(keys, panel.Key{Date: day, Ticker: ticker})
	}
	idx, err := panel.NewIndex(keys)
	require.NoError(t, err)

	out := make([]float64, idx.Len())
	for i := range out {
		out[i] = values[idx.Key(i).Ticker]
	}
	return panel.NewSeries("x_raw", idx, out)
}

func TestRankNormalize(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]float64
		expected map[string]float64
	}{
		{
			name:     "distinct values span the range",
			values:   map[string]float64{"A": 3, "B": 1, "C": 2},
			expected: map[string]float64{"A": 1, "B": -1, "C": 0},
		},
		{
			name:     "ties share the average rank",
			values:   map[string]float64{"A": 5, "B": 5, "C": 1, "D": 9},
			expected: map[string]float64{"A": 0, "B": 0, "C": -1, "D": 1},
		},
		{
			name:     "single member maps to zero",
			values:   map[string]float64{"A": 42},
			expected: map[string]float64{"A": 0},
		},
		{
			name:     "all equal",
			values:   map[string]float64{"A": 1, "B": 1},
			expected: map[string]float64{"A": 0, "B": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := crossSection(t, tt.values)
			got := RankNormalize(s, -1, 1)
			for i := range got.Values {
				ticker := s.Index.Key(i).Ticker
				assert.InDelta(t, tt.expected[ticker], got.Values[i], 1e-12, ticker)
			}
		})
	}
}

func TestRankNormalize_NaNStaysUndefined(t *testing.T) {
	s := crossSection(t, map[string]float64{"A": 1, "B": math.NaN(), "C": 2})
	got := RankNormalize(s, 0, 1)

	// n counts all three members, the two defined values rank 1 and 2
	assert.Equal(t, 0.0, got.Values[0])
	assert.True(t, math.IsNaN(got.Values[1]))
	assert.Equal(t, 0.5, got.Values[2])
}

func TestZScoreNormalize(t *testing.T) {
	s := crossSection(t, map[string]float64{"A": 1, "B": 3})
	got := ZScoreNormalize(s)
	assert.InDeltaSlice(t, []float64{-1, 1}, got.Values, 1e-12)

	flat := ZScoreNormalize(crossSection(t, map[string]float64{"A": 2, "B": 2}))
	assert.Equal(t, []float64{0, 0}, flat.Values)
}

func TestEngine_SurvivorshipKeepsEveryTicker(t *testing.T) {
	tickers := []string{"ALIVE", "DEL_1", "DEL_2"}
	p := testingpkg.NewPanel(t, testingpkg.FlatBars(tickers, 10, 100, 1_000_000))

	engine, err := NewEngine(DefaultConfig(), nil, zerolog.Nop())
	require.NoError(t, err)

	m, err := engine.ComputeMatrix(p)
	require.NoError(t, err)

	assert.Equal(t, tickers, m.Index().Tickers())
	assert.Equal(t, 30, m.Len())
	for _, ticker := range tickers {
		assert.Len(t, m.Index().Rows(ticker), 10)
	}
	assert.Equal(t, []string{"RS_score", "Trend_score", "Squeeze_score", "Momentum_score", "Volume_score"}, m.Columns())
}

func TestEngine_ScoresWithinBounds(t *testing.T) {
	bars := append(testingpkg.RandomWalkBars("AAA", 120, 1, 0.001, 0.01, 1e6),
		testingpkg.RandomWalkBars("BBB", 120, 2, 0, 0.015, 2e6)...)
	bars = append(bars, testingpkg.RandomWalkBars("CCC", 120, 3, -0.001, 0.02, 5e5)...)
	// A lone ticker on a date outside the others' range
	lone := testingpkg.TrendingBars("ZZZ", 1, 10, 0, 1000)
	lone[0].Date = bars[len(bars)-1].Date.AddDate(0, 0, 7)
	bars = append(bars, lone...)

	p := testingpkg.NewPanel(t, bars)

	cfg := DefaultConfig()
	cfg.Lower, cfg.Upper = -2, 3
	engine, err := NewEngine(cfg, nil, zerolog.Nop())
	require.NoError(t, err)

	m, err := engine.ComputeMatrix(p)
	require.NoError(t, err)

	idx := m.Index()
	for _, name := range m.Columns() {
		col, ok := m.Column(name)
		require.True(t, ok)
		for d := 0; d < idx.NumDates(); d++ {
			rows := idx.CrossSection(d)
			for _, r := range rows {
				v := col.Values[r]
				if len(rows) == 1 {
					assert.Equal(t, 0.0, v, "%s on lone date", name)
					continue
				}
				assert.GreaterOrEqual(t, v, -2.0)
				assert.LessOrEqual(t, v, 3.0)
			}
		}
	}
}

func TestEngine_SelectableFactors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseRS = false
	cfg.UseVolume = false
	engine, err := NewEngine(cfg, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"Trend", "Squeeze", "Momentum"}, engine.Factors())
	assert.Equal(t, []string{"Trend_score", "Squeeze_score", "Momentum_score"}, engine.ScoreColumns())

	// Volume is not required once the Volume factor is disabled
	bars := testingpkg.TrendingBars("AAA", 30, 100, 0.01, 0)
	noVolume, err := panel.Normalize(testingpkg.TableFromBars(bars, false))
	require.NoError(t, err)

	raw, err := engine.ComputeRaw(noVolume)
	require.NoError(t, err)
	assert.Equal(t, []string{"Trend_raw", "Squeeze_raw", "Momentum_raw"}, raw.Columns())
}

func TestEngine_MissingVolumeFails(t *testing.T) {
	engine, err := NewEngine(DefaultConfig(), nil, zerolog.Nop())
	require.NoError(t, err)

	bars := testingpkg.TrendingBars("AAA", 30, 100, 0.01, 0)
	noVolume, err := panel.Normalize(testingpkg.TableFromBars(bars, false))
	require.NoError(t, err)

	_, err = engine.ComputeMatrix(noVolume)
	assert.ErrorIs(t, err, panel.ErrValidation)
}

func TestEngine_SetBenchmark(t *testing.T) {
	bars := testingpkg.TrendingBars("AAA", 60, 100, 0.01, 1000)
	bars = append(bars, testingpkg.TrendingBars("BBB", 60, 50, 0.005, 1000)...)
	p := testingpkg.NewPanel(t, bars)

	engine, err := NewEngine(DefaultConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "", engine.BenchmarkFingerprint())

	plain, err := engine.ComputeRaw(p)
	require.NoError(t, err)

	dates := p.Dates()
	closes := make([]float64, len(dates))
	for i := range closes {
		closes[i] = 100 * math.Pow(1.02, float64(i))
	}
	bench, err := factors.NewBenchmark(dates, closes)
	require.NoError(t, err)
	engine.SetBenchmark(bench)
	assert.Equal(t, bench.Fingerprint(), engine.BenchmarkFingerprint())

	withBench, err := engine.ComputeRaw(p)
	require.NoError(t, err)
	before, _ := plain.Column("RS_raw")
	after, _ := withBench.Column("RS_raw")
	assert.NotEqual(t, before.Values, after.Values)

	// Without RS the benchmark has nowhere to go
	cfg := DefaultConfig()
	cfg.UseRS = false
	noRS, err := NewEngine(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	noRS.SetBenchmark(bench)
	assert.Equal(t, "", noRS.BenchmarkFingerprint())
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upper = cfg.Lower
	_, err := NewEngine(cfg, nil, zerolog.Nop())
	assert.ErrorIs(t, err, panel.ErrValidation)

	cfg = DefaultConfig()
	cfg.Trend.SMALong = 0
	_, err = NewEngine(cfg, nil, zerolog.Nop())
	assert.ErrorIs(t, err, panel.ErrValidation)

	cfg = DefaultConfig()
	cfg.Method = "minmax"
	_, err = NewEngine(cfg, nil, zerolog.Nop())
	assert.ErrorIs(t, err, panel.ErrValidation)
}

func TestMatrix_Rows(t *testing.T) {
	s := crossSection(t, map[string]float64{"A": 1, "B": math.NaN()})
	m := NewMatrix(s.Index, s)

	rows := m.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-02", rows[0].Date)
	assert.Equal(t, "A", rows[0].Ticker)
	require.NotNil(t, rows[0].Values["x_raw"])
	assert.Equal(t, 1.0, *rows[0].Values["x_raw"])
	assert.Nil(t, rows[1].Values["x_raw"])
}
