package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alphascan/internal/modules/universe"
	testingpkg "github.com/aristath/alphascan/internal/testing"
)

func setup(t *testing.T) (*universe.HistoryDB, chi.Router) {
	db, cleanup := testingpkg.NewTestDB(t, "history")
	t.Cleanup(cleanup)

	history := universe.NewHistoryDB(db.Conn(), zerolog.Nop())
	router := chi.NewRouter()
	NewHandlers(history, universe.NewPriceValidator(zerolog.Nop()), zerolog.Nop()).RegisterRoutes(router)
	return history, router
}

func post(router chi.Router, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const spikeCSV = `date,ticker,open,high,low,close,volume
2024-01-02,AAA,10,10.5,9.5,10,100
2024-01-03,AAA,1000,1000,1000,1000,100
2024-01-04,AAA,12,12.5,11.5,12,100
2024-01-02,BBB,5,5.5,4.5,5,
`

func TestHandleIngestPrices_CSV(t *testing.T) {
	history, router := setup(t)

	rec := post(router, "/universe/prices", "text/csv; charset=utf-8", []byte(spikeCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Ingested)
	assert.Equal(t, 2, resp.Tickers)
	require.Len(t, resp.Interpolated, 1)
	assert.Equal(t, "spike_detected", resp.Interpolated[0].Reason)

	prices, err := history.GetDailyPrices(context.Background(), []string{"AAA"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.InDelta(t, 11.0, prices[1].Close, 1e-9)
}

func TestHandleIngestPrices_NoClean(t *testing.T) {
	history, router := setup(t)

	rec := post(router, "/universe/prices?clean=false", "text/csv", []byte(spikeCSV))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Interpolated)

	prices, err := history.GetDailyPrices(context.Background(), []string{"AAA"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, prices[1].Close)
}

func TestHandleIngestPrices_JSON(t *testing.T) {
	_, router := setup(t)

	volume := 250.0
	body, err := json.Marshal(IngestRequest{Rows: []universe.PriceRow{
		{Date: "2024-01-02", Ticker: "AAA", Open: 10, High: 11, Low: 9, Close: 10, Volume: &volume},
		{Date: "2024-01-03", Ticker: "AAA", Open: 10, High: 11, Low: 9, Close: 10.5},
	}})
	require.NoError(t, err)

	rec := post(router, "/universe/prices", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/universe/tickers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var tickers struct {
		Data  []string `json:"data"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickers))
	assert.Equal(t, []string{"AAA"}, tickers.Data)
	assert.Equal(t, 1, tickers.Count)
}

func TestHandleIngestPrices_Invalid(t *testing.T) {
	_, router := setup(t)

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"malformed JSON", "application/json", "{"},
		{"no rows", "application/json", `{"rows":[]}`},
		{"bad date", "application/json", `{"rows":[{"date":"03/01/2024","ticker":"AAA","close":1}]}`},
		{"CSV missing close", "text/csv", "date,ticker,open,high,low\n2024-01-02,AAA,1,1,1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(router, "/universe/prices", tt.contentType, []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), "error"))
		})
	}
}

func TestHandleGetTickers_Empty(t *testing.T) {
	_, router := setup(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/universe/tickers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[],"count":0}`, rec.Body.String())
}
