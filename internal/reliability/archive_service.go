package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/modules/snapshots"
)

const (
	archiveNamePrefix = "alphascan-run-"
	archiveNameSuffix = ".tar.gz"
	archiveTimeLayout = "2006-01-02-150405"
	manifestName      = "manifest.json"
	minArchivesToKeep = 3
)

// Manifest is written into every archive next to the artifacts.
type Manifest struct {
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Files     []ManifestEntry `json:"files"`
}

// ManifestEntry describes one archived file.
type ManifestEntry struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// ArchiveInfo represents one archive stored in the bucket
type ArchiveInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// ArchiveService bundles scan artifacts and uploads them
type ArchiveService struct {
	store      ObjectStore
	prefix     string
	stagingDir string
	now        func() time.Time
	log        zerolog.Logger
}

// NewArchiveService creates an archive service. Archives are staged under
// stagingDir and stored under prefix in the bucket.
func NewArchiveService(store ObjectStore, prefix, stagingDir string, log zerolog.Logger) *ArchiveService {
	return &ArchiveService{
		store:      store,
		prefix:     prefix,
		stagingDir: stagingDir,
		now:        time.Now,
		log:        log.With().Str("service", "archive").Logger(),
	}
}

// ArchiveName is "alphascan-run-<YYYY-MM-DD-HHMMSS>.tar.gz" in UTC.
func ArchiveName(at time.Time) string {
	return archiveNamePrefix + at.UTC().Format(archiveTimeLayout) + archiveNameSuffix
}

// Archive packs files with a checksum manifest and uploads the bundle.
// Returns the object key.
func (s *ArchiveService) Archive(ctx context.Context, runID string, files []string) (string, error) {
	startTime := time.Now()
	if len(files) == 0 {
		return "", fmt.Errorf("nothing to archive for run %s", runID)
	}

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	staging, err := os.MkdirTemp(s.stagingDir, "archive-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	manifest := Manifest{RunID: runID, Timestamp: s.now().UTC()}
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
		checksum, err := snapshots.CalculateChecksum(path, snapshots.AlgoSHA256)
		if err != nil {
			return "", fmt.Errorf("failed to calculate checksum for %s: %w", path, err)
		}
		manifest.Files = append(manifest.Files, ManifestEntry{
			Filename:  filepath.Base(path),
			SizeBytes: info.Size(),
			Checksum:  snapshots.AlgoSHA256 + ":" + checksum,
		})
	}

	manifestPath := filepath.Join(staging, manifestName)
	if err := writeManifest(manifestPath, manifest); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	name := ArchiveName(manifest.Timestamp)
	archivePath := filepath.Join(staging, name)
	if err := createArchive(archivePath, append([]string{manifestPath}, files...)); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	key := s.prefix + name
	if err := s.store.Upload(ctx, key, archiveFile, archiveInfo.Size()); err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	s.log.Info().
		Str("run_id", runID).
		Str("key", key).
		Int("files", len(files)).
		Int64("size_bytes", archiveInfo.Size()).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Archive uploaded")
	return key, nil
}

// List returns the stored archives, newest first. Objects that do not follow
// the archive naming are skipped.
func (s *ArchiveService) List(ctx context.Context) ([]ArchiveInfo, error) {
	objects, err := s.store.List(ctx, s.prefix+archiveNamePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	now := s.now()
	archives := make([]ArchiveInfo, 0, len(objects))
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, s.prefix)
		if !strings.HasPrefix(name, archiveNamePrefix) || !strings.HasSuffix(name, archiveNameSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, archiveNamePrefix), archiveNameSuffix)
		ts, err := time.Parse(archiveTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Failed to parse timestamp from archive name")
			continue
		}
		archives = append(archives, ArchiveInfo{
			Key:       obj.Key,
			Timestamp: ts,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Timestamp.After(archives[j].Timestamp)
	})
	return archives, nil
}

// Rotate deletes archives older than retentionDays, always keeping the three
// newest. retentionDays 0 keeps everything. Returns the number deleted.
func (s *ArchiveService) Rotate(ctx context.Context, retentionDays int) (int, error) {
	archives, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if retentionDays <= 0 || len(archives) <= minArchivesToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, a := range archives[minArchivesToKeep:] {
		if !a.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, a.Key); err != nil {
			s.log.Error().Err(err).Str("key", a.Key).Msg("Failed to delete old archive")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Archive rotation completed")
	return deleted, nil
}

func writeManifest(path string, m Manifest) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(m)
}

// createArchive writes a tar.gz holding each path under its base name.
func createArchive(archivePath string, paths []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, path := range paths {
		if err := addFileToArchive(tarWriter, path, filepath.Base(path)); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", path, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}
