package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/alphascan/internal/panel"
)

// CSVDateLayout is the date format of history files.
const CSVDateLayout = "2006-01-02"

var requiredCSVColumns = []string{"date", "ticker", "open", "high", "low", "close"}

// ReadPrices parses a history file with the header
// date,ticker,open,high,low,close[,volume]. Column order is free and header
// names are case-insensitive. An empty volume cell is undefined.
func ReadPrices(r io.Reader) ([]DailyPrice, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty history file", panel.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, c := range requiredCSVColumns {
		if _, ok := pos[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &panel.ValidationError{Missing: missing}
	}
	volumeCol, hasVolume := pos["volume"]

	var prices []DailyPrice
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		date, err := time.Parse(CSVDateLayout, strings.TrimSpace(record[pos["date"]]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid date %q", panel.ErrValidation, line, record[pos["date"]])
		}
		p := DailyPrice{Ticker: strings.TrimSpace(record[pos["ticker"]]), Date: date}
		if p.Ticker == "" {
			return nil, fmt.Errorf("%w: line %d: empty ticker", panel.ErrValidation, line)
		}

		fields := []struct {
			name string
			dst  *float64
		}{
			{"open", &p.Open}, {"high", &p.High}, {"low", &p.Low}, {"close", &p.Close},
		}
		for _, f := range fields {
			v, err := parseFloat(record[pos[f.name]])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid %s: %v", panel.ErrValidation, line, f.name, err)
			}
			*f.dst = v
		}

		if hasVolume {
			if raw := strings.TrimSpace(record[volumeCol]); raw != "" {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: invalid volume: %v", panel.ErrValidation, line, err)
				}
				vol := int64(math.Round(v))
				p.Volume = &vol
			}
		}
		prices = append(prices, p)
	}
	return prices, nil
}

// ReadCSV parses a history file into an ingestion table.
func ReadCSV(r io.Reader) (panel.Table, error) {
	prices, err := ReadPrices(r)
	if err != nil {
		return panel.Table{}, err
	}
	return TableFromPrices(prices), nil
}

// parseFloat treats an empty cell as undefined.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
