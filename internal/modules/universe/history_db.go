package universe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/database"
	"github.com/aristath/alphascan/internal/modules/factors"
	"github.com/aristath/alphascan/internal/panel"
)

// HistoryDB provides access to historical price data
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// UpsertPrices inserts or replaces bars in a single transaction. Dates are
// stored as UTC midnight.
func (h *HistoryDB) UpsertPrices(ctx context.Context, prices []DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices
			(ticker, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if p.Ticker == "" {
				return fmt.Errorf("%w: price on %s has no ticker", panel.ErrValidation, p.Date.Format("2006-01-02"))
			}
			volume := sql.NullInt64{}
			if p.Volume != nil {
				volume = sql.NullInt64{Int64: *p.Volume, Valid: true}
			}
			_, err := stmt.ExecContext(ctx,
				p.Ticker,
				panel.Day(p.Date).Unix(),
				p.Open,
				p.High,
				p.Low,
				p.Close,
				volume,
			)
			if err != nil {
				return fmt.Errorf("failed to insert daily price for %s on %s: %w", p.Ticker, p.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Info().
		Int("count", len(prices)).
		Msg("Upserted daily prices")
	return nil
}

// GetDailyPrices fetches bars for tickers between from and to inclusive,
// ordered by ticker then date. An empty ticker list selects every ticker;
// zero times leave that end open.
func (h *HistoryDB) GetDailyPrices(ctx context.Context, tickers []string, from, to time.Time) ([]DailyPrice, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(tickers) > 0 {
		where = append(where, "ticker IN (?"+strings.Repeat(",?", len(tickers)-1)+")")
		for _, t := range tickers {
			args = append(args, t)
		}
	}
	if !from.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, panel.Day(from).Unix())
	}
	if !to.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, panel.Day(to).Unix())
	}

	query := "SELECT ticker, date, open, high, low, close, volume FROM daily_prices"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ticker, date"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var dateUnix int64
		var volume sql.NullInt64
		if err := rows.Scan(&p.Ticker, &dateUnix, &p.Open, &p.High, &p.Low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()
		if volume.Valid {
			v := volume.Int64
			p.Volume = &v
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// LoadPanel reads bars into a normalized panel.
func (h *HistoryDB) LoadPanel(ctx context.Context, tickers []string, from, to time.Time) (*panel.Panel, error) {
	prices, err := h.GetDailyPrices(ctx, tickers, from, to)
	if err != nil {
		return nil, err
	}
	p, err := panel.Normalize(TableFromPrices(prices))
	if err != nil {
		return nil, fmt.Errorf("failed to normalize price history: %w", err)
	}

	h.log.Debug().
		Int("rows", p.Len()).
		Int("tickers", len(p.Tickers())).
		Msg("Loaded panel")
	return p, nil
}

// LoadBenchmark reads the close series of ticker as a benchmark.
func (h *HistoryDB) LoadBenchmark(ctx context.Context, ticker string, from, to time.Time) (*factors.Benchmark, error) {
	prices, err := h.GetDailyPrices(ctx, []string{ticker}, from, to)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no history for benchmark %s", ticker)
	}

	dates := make([]time.Time, len(prices))
	closes := make([]float64, len(prices))
	for i, p := range prices {
		dates[i] = p.Date
		closes[i] = p.Close
	}
	return factors.NewBenchmark(dates, closes)
}

// Tickers returns every ticker with history, sorted.
func (h *HistoryDB) Tickers(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT DISTINCT ticker FROM daily_prices ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return out, nil
}
