package calibration

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/alphascan/internal/modules/scoring"
)

// Summary is the cached outcome of one backtest.
type Summary struct {
	Sharpe    float64 `msgpack:"sharpe"`
	TotalCost float64 `msgpack:"total_cost"`
	Days      int     `msgpack:"days"`
}

// ResultCache stores backtest summaries by key. Implementations must be safe
// for concurrent use.
type ResultCache interface {
	Get(ctx context.Context, key string) (Summary, bool, error)
	Set(ctx context.Context, key string, s Summary) error
}

// CacheKey identifies one backtest: the panel content, both configurations
// and the weight vector.
func CacheKey(fingerprint string, engineCfg scoring.Config, btCfg BacktestConfig, w Weights) (string, error) {
	cfgJSON, err := json.Marshal(struct {
		Engine   scoring.Config `json:"engine"`
		Backtest BacktestConfig `json:"backtest"`
	}{engineCfg, btCfg})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key config: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write(cfgJSON)
	h.Write([]byte{0})
	h.Write([]byte(w.Canonical()))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SQLiteCache keeps summaries in the calibration_cache table, msgpack
// encoded.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteCache creates a cache over db. A ttl of 0 keeps entries forever.
func NewSQLiteCache(db *sql.DB, ttl time.Duration) *SQLiteCache {
	return &SQLiteCache{db: db, ttl: ttl, now: time.Now}
}

// Get returns the summary stored for key. Missing and expired entries report
// false.
func (c *SQLiteCache) Get(ctx context.Context, key string) (Summary, bool, error) {
	var value []byte
	var expiresAt sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM calibration_cache WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, fmt.Errorf("failed to read calibration cache: %w", err)
	}

	if expiresAt.Valid && c.now().Unix() >= expiresAt.Int64 {
		return Summary{}, false, nil
	}

	var s Summary
	if err := msgpack.Unmarshal(value, &s); err != nil {
		return Summary{}, false, fmt.Errorf("failed to decode calibration cache entry: %w", err)
	}
	return s, true, nil
}

// Set stores s under key, replacing any previous entry.
func (c *SQLiteCache) Set(ctx context.Context, key string, s Summary) error {
	value, err := msgpack.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to encode calibration cache entry: %w", err)
	}

	now := c.now()
	var expiresAt sql.NullInt64
	if c.ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(c.ttl).Unix(), Valid: true}
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO calibration_cache (key, value, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key, value, now.Unix(), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write calibration cache: %w", err)
	}
	return nil
}

// Purge deletes expired entries.
func (c *SQLiteCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM calibration_cache WHERE expires_at IS NOT NULL AND expires_at <= ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge calibration cache: %w", err)
	}
	return res.RowsAffected()
}
