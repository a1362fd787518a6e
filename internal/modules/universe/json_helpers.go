package universe

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/alphascan/internal/panel"
)

// PriceRow is the JSON wire form of a bar, with the date as "2006-01-02".
type PriceRow struct {
	Date   string   `json:"date"`
	Ticker string   `json:"ticker"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// PricesFromRows parses wire rows into bars.
func PricesFromRows(rows []PriceRow) ([]DailyPrice, error) {
	prices := make([]DailyPrice, len(rows))
	for i, r := range rows {
		date, err := time.Parse(CSVDateLayout, strings.TrimSpace(r.Date))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: invalid date %q", panel.ErrValidation, i, r.Date)
		}
		ticker := strings.TrimSpace(r.Ticker)
		if ticker == "" {
			return nil, fmt.Errorf("%w: row %d: empty ticker", panel.ErrValidation, i)
		}
		p := DailyPrice{Ticker: ticker, Date: date, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close}
		if r.Volume != nil {
			v := int64(*r.Volume)
			p.Volume = &v
		}
		prices[i] = p
	}
	return prices, nil
}

// PanelFromRows parses and normalizes wire rows.
func PanelFromRows(rows []PriceRow) (*panel.Panel, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no price rows", panel.ErrValidation)
	}
	prices, err := PricesFromRows(rows)
	if err != nil {
		return nil, err
	}
	return panel.Normalize(TableFromPrices(prices))
}
