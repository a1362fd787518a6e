package testing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/aristath/alphascan/internal/panel"
)

// Bar is one synthetic OHLCV row.
type Bar struct {
	Date   time.Time
	Ticker string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// FixtureStart is the first business day used by generated fixtures.
var FixtureStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// BusinessDays returns n consecutive weekdays starting at start (or the next
// weekday when start falls on a weekend).
func BusinessDays(start time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	d := start
	for len(days) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append(days, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return days
}

// TableFromBars converts bars to an unkeyed ingestion table.
func TableFromBars(bars []Bar, withVolume bool) panel.Table {
	t := panel.Table{
		Dates:   make([]time.Time, len(bars)),
		Tickers: make([]string, len(bars)),
		Columns: map[string][]float64{
			panel.ColOpen:  make([]float64, len(bars)),
			panel.ColHigh:  make([]float64, len(bars)),
			panel.ColLow:   make([]float64, len(bars)),
			panel.ColClose: make([]float64, len(bars)),
		},
	}
	if withVolume {
		t.Columns[panel.ColVolume] = make([]float64, len(bars))
	}
	for i, b := range bars {
		t.Dates[i] = b.Date
		t.Tickers[i] = b.Ticker
		t.Columns[panel.ColOpen][i] = b.Open
		t.Columns[panel.ColHigh][i] = b.High
		t.Columns[panel.ColLow][i] = b.Low
		t.Columns[panel.ColClose][i] = b.Close
		if withVolume {
			t.Columns[panel.ColVolume][i] = b.Volume
		}
	}
	return t
}

// NewPanel normalizes bars into a panel, failing the test on error.
func NewPanel(t *testing.T, bars []Bar) *panel.Panel {
	t.Helper()
	p, err := panel.Normalize(TableFromBars(bars, true))
	if err != nil {
		t.Fatalf("Failed to build fixture panel: %v", err)
	}
	return p
}

// FlatBars returns constant-price bars for every ticker over n business days.
func FlatBars(tickers []string, days int, price, volume float64) []Bar {
	var bars []Bar
	for _, ticker := range tickers {
		for _, d := range BusinessDays(FixtureStart, days) {
			bars = append(bars, Bar{
				Date:   d,
				Ticker: ticker,
				Open:   price,
				High:   price * 1.01,
				Low:    price * 0.99,
				Close:  price,
				Volume: volume,
			})
		}
	}
	return bars
}

// TrendingBars compounds price by growth every day.
func TrendingBars(ticker string, days int, start, growth, volume float64) []Bar {
	bars := make([]Bar, 0, days)
	price := start
	for _, d := range BusinessDays(FixtureStart, days) {
		price *= 1 + growth
		bars = append(bars, Bar{
			Date:   d,
			Ticker: ticker,
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: volume,
		})
	}
	return bars
}

// RandomWalkBars is a seeded geometric random walk with Gaussian daily
// returns of the given drift and volatility.
func RandomWalkBars(ticker string, days int, seed int64, drift, vol, volume float64) []Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]Bar, 0, days)
	price := 100.0
	for _, d := range BusinessDays(FixtureStart, days) {
		price *= 1 + drift + rng.NormFloat64()*vol
		bars = append(bars, Bar{
			Date:   d,
			Ticker: ticker,
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: volume,
		})
	}
	return bars
}
