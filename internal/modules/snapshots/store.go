package snapshots

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/alphascan/internal/panel"
)

// Supported checksum algorithms.
const (
	AlgoSHA256 = "sha256"
	AlgoSHA1   = "sha1"
	AlgoMD5    = "md5"
)

// ErrNotFound is returned when a catalogue entry does not exist.
var ErrNotFound = errors.New("snapshot not found")

// ErrChecksumMismatch is returned when a snapshot file no longer matches its
// recorded checksum.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

const snapshotVersion = 1

// snapshotFile is the on-disk msgpack layout.
type snapshotFile struct {
	Version int                  `msgpack:"version"`
	Label   string               `msgpack:"label"`
	Dates   []int64              `msgpack:"dates"`
	Tickers []string             `msgpack:"tickers"`
	Columns map[string][]float64 `msgpack:"columns"`
}

// SnapshotFilename is "<label>_snapshot_<YYYYMMDD_HHMMSS>.msgpack" in UTC.
func SnapshotFilename(label string, at time.Time) string {
	return fmt.Sprintf("%s_snapshot_%s.msgpack", label, at.UTC().Format("20060102_150405"))
}

// SaveRawSnapshot writes p to dir, creating it if needed, and returns the
// file path.
func SaveRawSnapshot(p *panel.Panel, dir, label string, at time.Time) (string, error) {
	if label == "" {
		label = "raw"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	t := p.Table()
	file := snapshotFile{
		Version: snapshotVersion,
		Label:   label,
		Dates:   make([]int64, len(t.Index)),
		Tickers: make([]string, len(t.Index)),
		Columns: t.Columns,
	}
	for i, k := range t.Index {
		file.Dates[i] = k.Date.Unix()
		file.Tickers[i] = k.Ticker
	}

	data, err := msgpack.Marshal(&file)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	path := filepath.Join(dir, SnapshotFilename(label, at))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a file written by SaveRawSnapshot.
func LoadSnapshot(path string) (*panel.Panel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var file snapshotFile
	if err := msgpack.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if file.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", file.Version)
	}

	t := panel.Table{
		Dates:   make([]time.Time, len(file.Dates)),
		Tickers: file.Tickers,
		Columns: file.Columns,
	}
	for i, d := range file.Dates {
		t.Dates[i] = time.Unix(d, 0).UTC()
	}
	if t.Columns == nil {
		t.Columns = map[string][]float64{}
	}
	return panel.Normalize(t)
}

// CalculateChecksum hashes the file at path. An empty algo means sha256.
func CalculateChecksum(path, algo string) (string, error) {
	var h hash.Hash
	switch algo {
	case "", AlgoSHA256:
		h = sha256.New()
	case AlgoSHA1:
		h = sha1.New()
	case AlgoMD5:
		h = md5.New()
	default:
		return "", fmt.Errorf("%w: unsupported checksum algorithm %q", panel.ErrValidation, algo)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Snapshot is one catalogue entry.
type Snapshot struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Algorithm string    `json:"algorithm"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Store writes snapshots to a directory and records them in the snapshots
// catalogue table.
type Store struct {
	dir       string
	db        *sql.DB
	algorithm string
	now       func() time.Time
	log       zerolog.Logger
}

// NewStore creates a store. algorithm is a checksum algorithm name; empty
// means sha256.
func NewStore(dir string, db *sql.DB, algorithm string, log zerolog.Logger) *Store {
	if algorithm == "" {
		algorithm = AlgoSHA256
	}
	return &Store{
		dir:       dir,
		db:        db,
		algorithm: algorithm,
		now:       time.Now,
		log:       log.With().Str("component", "snapshot_store").Logger(),
	}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string { return s.dir }

// Save writes p, checksums the file and records it.
func (s *Store) Save(ctx context.Context, p *panel.Panel, label string) (*Snapshot, error) {
	now := s.now().UTC()
	path, err := SaveRawSnapshot(p, s.dir, label, now)
	if err != nil {
		return nil, err
	}
	sum, err := CalculateChecksum(path, s.algorithm)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:        uuid.New().String(),
		Label:     label,
		Path:      path,
		Checksum:  sum,
		Algorithm: s.algorithm,
		Rows:      p.Len(),
		CreatedAt: time.Unix(now.Unix(), 0).UTC(),
	}
	if snap.Label == "" {
		snap.Label = "raw"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, label, path, checksum, algorithm, rows, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.Label, snap.Path, snap.Checksum, snap.Algorithm, snap.Rows, snap.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to record snapshot: %w", err)
	}

	s.log.Info().
		Str("id", snap.ID).
		Str("path", snap.Path).
		Int("rows", snap.Rows).
		Msg("Snapshot saved")
	return snap, nil
}

// List returns catalogue entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, path, checksum, algorithm, rows, created_at
		FROM snapshots
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return out, nil
}

// Get returns one catalogue entry.
func (s *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, path, checksum, algorithm, rows, created_at
		FROM snapshots WHERE id = ?
	`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return snap, err
}

// Verify recomputes the checksum of a recorded snapshot.
func (s *Store) Verify(ctx context.Context, id string) error {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sum, err := CalculateChecksum(snap.Path, snap.Algorithm)
	if err != nil {
		return err
	}
	if sum != snap.Checksum {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, snap.Path)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var snap Snapshot
	var createdAt int64
	err := row.Scan(&snap.ID, &snap.Label, &snap.Path, &snap.Checksum, &snap.Algorithm, &snap.Rows, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snap.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &snap, nil
}
