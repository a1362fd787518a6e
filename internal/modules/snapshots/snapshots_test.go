package snapshots

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alphascan/internal/panel"
	testingpkg "github.com/aristath/alphascan/internal/testing"
)

func expectedSchema() SchemaDefinition {
	return SchemaDefinition{DTypes: map[string]string{
		"date":   TypeDatetime,
		"ticker": TypeString,
		"close":  TypeFloat64,
		"volume": TypeFloat64,
	}}
}

func TestSchemaDefinition_JSONRoundTrip(t *testing.T) {
	s := expectedSchema()
	encoded, err := s.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"close":"float64","date":"datetime","ticker":"string","volume":"float64"}`, encoded)

	decoded, err := FromJSON(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)

	_, err = FromJSON("{broken")
	assert.Error(t, err)
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		columns map[string]string
		wantErr string
	}{
		{
			name:    "exact match",
			columns: expectedSchema().DTypes,
		},
		{
			name: "extra columns tolerated",
			columns: map[string]string{
				"date": TypeDatetime, "ticker": TypeString, "close": TypeFloat64, "volume": TypeFloat64, "open": TypeFloat64,
			},
		},
		{
			name:    "missing column",
			columns: map[string]string{"date": TypeDatetime, "ticker": TypeString, "close": TypeFloat64},
			wantErr: "missing columns: [volume]",
		},
		{
			name:    "wrong type",
			columns: map[string]string{"date": TypeDatetime, "ticker": TypeString, "close": "float32", "volume": TypeFloat64},
			wantErr: `column "close" has type float32, expected float64`,
		},
		{
			name:    "missing reported before mismatch",
			columns: map[string]string{"date": TypeString, "ticker": TypeString, "close": TypeFloat64},
			wantErr: "missing columns: [volume]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema(tt.columns, expectedSchema())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
			assert.ErrorIs(t, err, panel.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDetectSchemaDiff(t *testing.T) {
	columns := map[string]string{"date": TypeDatetime, "ticker": TypeString, "close": "int64", "extra": TypeFloat64}
	diff := DetectSchemaDiff(columns, expectedSchema())

	assert.Equal(t, []string{"volume"}, diff.MissingColumns)
	assert.Equal(t, []string{"extra"}, diff.ExtraColumns)
	assert.Equal(t, []TypeMismatch{{Column: "close", Expected: TypeFloat64, Actual: "int64"}}, diff.MismatchedTypes)
	assert.False(t, diff.Empty())

	assert.True(t, DetectSchemaDiff(expectedSchema().DTypes, expectedSchema()).Empty())
}

func TestInferSchema(t *testing.T) {
	p := testingpkg.NewPanel(t, testingpkg.FlatBars([]string{"AAA"}, 3, 10, 100))
	s := InferSchema(p)

	assert.Equal(t, TypeDatetime, s.DTypes["date"])
	assert.Equal(t, TypeString, s.DTypes["ticker"])
	for _, c := range []string{"open", "high", "low", "close", "volume"} {
		assert.Equal(t, TypeFloat64, s.DTypes[c], c)
	}
	assert.NoError(t, ValidatePanel(p, expectedSchema()))
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snaps")
	p := testingpkg.NewPanel(t, testingpkg.RandomWalkBars("AAA", 20, 7, 0, 0.01, 1000))
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	path, err := SaveRawSnapshot(p, dir, "raw", at)
	require.NoError(t, err)
	assert.Equal(t, "raw_snapshot_20240506_070809.msgpack", filepath.Base(path))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.True(t, p.Equal(loaded))
	assert.Equal(t, p.Fingerprint(), loaded.Fingerprint())
}

func TestCalculateChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	tests := []struct {
		algo string
		want string
	}{
		{"", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{AlgoSHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{AlgoSHA1, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{AlgoMD5, "900150983cd24fb0d6963f7d28e17f72"},
	}
	for _, tt := range tests {
		got, err := CalculateChecksum(path, tt.algo)
		require.NoError(t, err, tt.algo)
		assert.Equal(t, tt.want, got, tt.algo)
	}

	_, err := CalculateChecksum(path, "crc32")
	assert.ErrorIs(t, err, panel.ErrValidation)

	_, err = CalculateChecksum(filepath.Join(t.TempDir(), "missing"), AlgoSHA256)
	assert.Error(t, err)
}

func TestStore_CatalogueLifecycle(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "snapshots")
	defer cleanup()

	ctx := context.Background()
	store := NewStore(t.TempDir(), db.Conn(), "", zerolog.Nop())
	store.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	p := testingpkg.NewPanel(t, testingpkg.FlatBars([]string{"AAA", "BBB"}, 5, 10, 100))
	snap, err := store.Save(ctx, p, "daily")
	require.NoError(t, err)
	assert.Len(t, snap.ID, 36)
	assert.Equal(t, 10, snap.Rows)
	assert.Equal(t, AlgoSHA256, snap.Algorithm)

	got, err := store.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, snap.ID, list[0].ID)

	require.NoError(t, store.Verify(ctx, snap.ID))

	require.NoError(t, os.WriteFile(snap.Path, []byte("tampered"), 0o644))
	assert.ErrorIs(t, store.Verify(ctx, snap.ID), ErrChecksumMismatch)

	_, err = store.Get(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}
