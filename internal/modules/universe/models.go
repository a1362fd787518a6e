// Package universe loads the daily OHLCV history the screening pipeline runs
// on, from the history database or from CSV files.
package universe

import (
	"math"
	"time"

	"github.com/aristath/alphascan/internal/panel"
)

// DailyPrice is one OHLCV bar.
type DailyPrice struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume *int64    `json:"volume,omitempty"`
}

// TableFromPrices builds an ingestion table. The volume column is present
// when at least one bar carries volume; bars without it are undefined.
func TableFromPrices(prices []DailyPrice) panel.Table {
	t := panel.Table{
		Dates:   make([]time.Time, len(prices)),
		Tickers: make([]string, len(prices)),
		Columns: map[string][]float64{
			panel.ColOpen:  make([]float64, len(prices)),
			panel.ColHigh:  make([]float64, len(prices)),
			panel.ColLow:   make([]float64, len(prices)),
			panel.ColClose: make([]float64, len(prices)),
		},
	}

	var volume []float64
	for i, p := range prices {
		t.Dates[i] = p.Date
		t.Tickers[i] = p.Ticker
		t.Columns[panel.ColOpen][i] = p.Open
		t.Columns[panel.ColHigh][i] = p.High
		t.Columns[panel.ColLow][i] = p.Low
		t.Columns[panel.ColClose][i] = p.Close
		if p.Volume != nil && volume == nil {
			volume = make([]float64, len(prices))
			for j := range volume {
				volume[j] = math.NaN()
			}
		}
		if p.Volume != nil {
			volume[i] = float64(*p.Volume)
		}
	}
	if volume != nil {
		t.Columns[panel.ColVolume] = volume
	}
	return t
}
