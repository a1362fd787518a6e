package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "nested", name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *DB, table string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestNew_DefaultsProfileAndCreatesDirectory(t *testing.T) {
	db := openTestDB(t, NameHistory, "")

	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, NameHistory, db.Name())
	assert.True(t, filepath.IsAbs(db.Path()))
	assert.FileExists(t, db.Path())
}

func TestMigrate(t *testing.T) {
	tests := []struct {
		name    string
		profile DatabaseProfile
		table   string
	}{
		{NameHistory, ProfileStandard, "daily_prices"},
		{NameSnapshots, ProfileStandard, "snapshots"},
		{NameCache, ProfileCache, "calibration_cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t, tt.name, tt.profile)
			require.NoError(t, db.Migrate())
			// Schemas are idempotent
			require.NoError(t, db.Migrate())
			assert.True(t, tableExists(t, db, tt.table))
		})
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := openTestDB(t, "scratch", ProfileStandard)
	require.NoError(t, db.Migrate())
	assert.False(t, tableExists(t, db, "daily_prices"))
}

func TestWithTransaction(t *testing.T) {
	db := openTestDB(t, NameHistory, ProfileStandard)
	require.NoError(t, db.Migrate())
	ctx := context.Background()

	insert := func(tx *sql.Tx, ticker string) error {
		_, err := tx.Exec(`INSERT INTO daily_prices (ticker, date, open, high, low, close, volume)
			VALUES (?, 0, 1, 1, 1, 1, NULL)`, ticker)
		return err
	}
	count := func() int {
		var n int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_prices").Scan(&n))
		return n
	}

	require.NoError(t, WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		return insert(tx, "AAA")
	}))
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insert(tx, "BBB"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insert(tx, "CCC"))
		panic("bad row")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
	assert.Equal(t, 1, count())

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t, NameSnapshots, ProfileStandard)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.HealthCheck(context.Background()))

	require.NoError(t, db.Close())
	err := db.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), NameSnapshots)
}
