package universe

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alphascan/internal/panel"
	testingpkg "github.com/aristath/alphascan/internal/testing"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1+n, 0, 0, 0, 0, time.UTC)
}

func vol(v int64) *int64 { return &v }

func bar(ticker string, n int, close float64, volume *int64) DailyPrice {
	return DailyPrice{Ticker: ticker, Date: day(n), Open: close, High: close * 1.01, Low: close * 0.99, Close: close, Volume: volume}
}

func setupHistory(t *testing.T) *HistoryDB {
	db, cleanup := testingpkg.NewTestDB(t, "history")
	t.Cleanup(cleanup)
	return NewHistoryDB(db.Conn(), zerolog.Nop())
}

func TestHistoryDB_UpsertAndLoadPanel(t *testing.T) {
	ctx := context.Background()
	h := setupHistory(t)

	require.NoError(t, h.UpsertPrices(ctx, []DailyPrice{
		bar("BBB", 1, 20, vol(500)),
		bar("AAA", 0, 10, vol(100)),
		bar("AAA", 1, 11, nil),
		bar("AAA", 2, 12, vol(300)),
	}))
	// Replace an existing bar
	require.NoError(t, h.UpsertPrices(ctx, []DailyPrice{bar("AAA", 2, 13, vol(300))}))

	p, err := h.LoadPanel(ctx, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, p.Len())
	assert.Equal(t, []string{"AAA", "BBB"}, p.Tickers())

	closes, err := p.Column(panel.ColClose)
	require.NoError(t, err)
	assert.Equal(t, 13.0, closes.At(panel.Key{Date: day(2), Ticker: "AAA"}))

	volume, err := p.Column(panel.ColVolume)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(volume.At(panel.Key{Date: day(1), Ticker: "AAA"})))
	assert.Equal(t, 500.0, volume.At(panel.Key{Date: day(1), Ticker: "BBB"}))

	windowed, err := h.LoadPanel(ctx, []string{"AAA"}, day(1), day(1))
	require.NoError(t, err)
	assert.Equal(t, 1, windowed.Len())

	tickers, err := h.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, tickers)
}

func TestHistoryDB_NoVolumeColumnWhenAbsent(t *testing.T) {
	ctx := context.Background()
	h := setupHistory(t)
	require.NoError(t, h.UpsertPrices(ctx, []DailyPrice{bar("AAA", 0, 10, nil), bar("AAA", 1, 11, nil)}))

	p, err := h.LoadPanel(ctx, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.False(t, p.Has(panel.ColVolume))
}

func TestHistoryDB_RejectsEmptyTicker(t *testing.T) {
	h := setupHistory(t)
	err := h.UpsertPrices(context.Background(), []DailyPrice{bar("", 0, 10, nil)})
	assert.ErrorIs(t, err, panel.ErrValidation)
}

func TestHistoryDB_LoadBenchmark(t *testing.T) {
	ctx := context.Background()
	h := setupHistory(t)
	require.NoError(t, h.UpsertPrices(ctx, []DailyPrice{bar("SPY", 0, 400, nil), bar("SPY", 2, 410, nil)}))

	b, err := h.LoadBenchmark(ctx, "SPY", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 400.0, b.AsOf(day(1)))

	_, err = h.LoadBenchmark(ctx, "QQQ", time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"Ticker,Date,Open,High,Low,Close,Volume",
		"BBB,2024-01-03,20,21,19,20.5,",
		"AAA,2024-01-02,10,11,9,10.5,1000",
		"AAA,2024-01-03,10.5,11.5,10,11,1200",
	}, "\n")

	table, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	p, err := panel.Normalize(table)
	require.NoError(t, err)

	assert.Equal(t, 3, p.Len())
	volume, err := p.Column(panel.ColVolume)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, volume.Values[0])
	assert.True(t, math.IsNaN(volume.At(panel.Key{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Ticker: "BBB"})))
}

func TestReadCSV_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing close", "date,ticker,open,high,low\n2024-01-02,AAA,1,1,1"},
		{"bad date", "date,ticker,open,high,low,close\n02/01/2024,AAA,1,1,1,1"},
		{"bad number", "date,ticker,open,high,low,close\n2024-01-02,AAA,one,1,1,1"},
		{"empty ticker", "date,ticker,open,high,low,close\n2024-01-02,,1,1,1,1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, panel.ErrValidation)
		})
	}
}

func TestPriceValidator_ValidatePrice(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())
	history := []DailyPrice{bar("AAA", 1, 50, nil), bar("AAA", 0, 50, nil)}

	tests := []struct {
		name    string
		price   DailyPrice
		context []DailyPrice
		want    bool
		reason  string
	}{
		{"valid OHLC", DailyPrice{Open: 50, High: 55, Low: 48, Close: 52}, nil, true, ""},
		{"high below low", DailyPrice{Open: 50, High: 45, Low: 48, Close: 52}, nil, false, "high_below_low"},
		{"high below open", DailyPrice{Open: 55, High: 50, Low: 48, Close: 52}, nil, false, "high_below_open"},
		{"low above close", DailyPrice{Open: 52, High: 55, Low: 51, Close: 50.5}, nil, false, "low_above_close"},
		{"spike", DailyPrice{Open: 600, High: 600, Low: 600, Close: 600}, history, false, "spike_detected"},
		{"crash", DailyPrice{Open: 4, High: 4, Low: 4, Close: 4}, history, false, "crash_detected"},
		{"normal move", DailyPrice{Open: 52, High: 53, Low: 51, Close: 52}, history, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := v.ValidatePrice(tt.price, tt.context)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestPriceValidator_Clean(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())
	spike := DailyPrice{Ticker: "AAA", Date: day(1), Open: 1000, High: 1000, Low: 1000, Close: 1000, Volume: vol(7)}
	prices := []DailyPrice{
		bar("BBB", 0, 5, nil),
		bar("AAA", 2, 12, nil),
		spike,
		bar("AAA", 0, 10, nil),
	}

	cleaned, logs := v.Clean(prices)
	require.Len(t, cleaned, 4)
	require.Len(t, logs, 1)

	assert.Equal(t, "spike_detected", logs[0].Reason)
	assert.Equal(t, "linear", logs[0].Method)
	assert.InDelta(t, 11.0, logs[0].InterpolatedClose, 1e-12)

	assert.Equal(t, "AAA", cleaned[1].Ticker)
	assert.InDelta(t, 11.0, cleaned[1].Close, 1e-12)
	assert.Equal(t, int64(7), *cleaned[1].Volume)
	assert.GreaterOrEqual(t, cleaned[1].High, cleaned[1].Close)
	assert.Equal(t, "BBB", cleaned[3].Ticker)
}

func TestPriceValidator_InterpolateFills(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())
	prev := bar("AAA", 0, 10, nil)
	next := bar("AAA", 2, 14, nil)
	bad := DailyPrice{Ticker: "AAA", Date: day(1), Close: -1}

	filled, method := v.InterpolatePrice(bad, &prev, nil)
	assert.Equal(t, "forward_fill", method)
	assert.Equal(t, 10.0, filled.Close)

	filled, method = v.InterpolatePrice(bad, nil, &next)
	assert.Equal(t, "backward_fill", method)
	assert.Equal(t, 14.0, filled.Close)
	assert.Equal(t, day(1), filled.Date)

	_, method = v.InterpolatePrice(bad, nil, nil)
	assert.Equal(t, "no_interpolation", method)
}
