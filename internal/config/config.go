// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/alphascan/internal/modules/risk"
	"github.com/aristath/alphascan/internal/modules/scanner"
	"github.com/aristath/alphascan/internal/modules/tccm"
	"github.com/aristath/alphascan/internal/panel"
)

// Config holds application configuration
type Config struct {
	DataDir   string `validate:"required"` // Base directory for databases, snapshots and reports (always absolute)
	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogPretty bool
	Port      int `validate:"min=1,max=65535"`
	DevMode   bool

	TCCM       tccm.Config
	KillSwitch risk.KillSwitchConfig
	Scan       scanner.Config

	CalibrationWorkers  int           `validate:"min=1"`
	CalibrationCacheTTL time.Duration `validate:"gte=0"` // 0 disables the cache
	CandidatesFile      string        // YAML weight candidates; empty uses DefaultCandidates
	BenchmarkTicker     string        // Relative strength benchmark; empty disables excess returns
	RegimeTicker        string        // Kill switch input series; empty disables the gate
	LookbackDays        int           `validate:"min=1"`
	ScanCron            string        // Empty disables scheduled scans
	CachePurgeCron      string
	ArchiveRotationCron string
	ArchiveRetention    int           `validate:"gte=0"` // days, 0 keeps every archive

	R2 *R2Config
}

// R2Config holds the snapshot archive bucket. Nil when R2_BUCKET is unset.
type R2Config struct {
	AccountID       string `validate:"required_without=Endpoint"`
	Endpoint        string
	AccessKeyID     string `validate:"required"`
	SecretAccessKey string `validate:"required"`
	Bucket          string `validate:"required"`
	Prefix          string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ALPHASCAN_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path %q: %w", dataDir, err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %q: %w", absDataDir, err)
	}

	defaultCosts := tccm.DefaultConfig()
	defaultKill := risk.DefaultKillSwitchConfig()
	scan := scanner.DefaultConfig()
	scan.TopN = getEnvAsInt("SCAN_TOP_N", scan.TopN)
	scan.Capital = getEnvAsFloat("SCAN_CAPITAL", scan.Capital)
	scan.TargetVolatility = getEnvAsFloat("SCAN_TARGET_VOLATILITY", scan.TargetVolatility)
	scan.OverlayWeight = getEnvAsFloat("SCAN_OVERLAY_WEIGHT", scan.OverlayWeight)
	scan.ReportDir = getEnv("SCAN_REPORT_DIR", filepath.Join(absDataDir, "reports"))

	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		Port:      getEnvAsInt("PORT", 8001),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		TCCM: tccm.Config{
			CommissionPerShare:  getEnvAsFloat("TCCM_COMMISSION_PER_SHARE", defaultCosts.CommissionPerShare),
			CalibrationConstant: getEnvAsFloat("TCCM_CALIBRATION_CONSTANT", defaultCosts.CalibrationConstant),
			ImpactAlpha:         getEnvAsFloat("TCCM_IMPACT_ALPHA", defaultCosts.ImpactAlpha),
			ADVWindow:           getEnvAsInt("TCCM_ADV_WINDOW", defaultCosts.ADVWindow),
		},
		KillSwitch: risk.KillSwitchConfig{
			ATRMultiplier:     getEnvAsFloat("KILL_SWITCH_ATR_MULTIPLIER", defaultKill.ATRMultiplier),
			HistVolMultiplier: getEnvAsFloat("KILL_SWITCH_HIST_VOL_MULTIPLIER", defaultKill.HistVolMultiplier),
		},
		Scan:                scan,
		CalibrationWorkers:  getEnvAsInt("CALIBRATION_WORKERS", runtime.NumCPU()),
		CalibrationCacheTTL: getEnvAsDuration("CALIBRATION_CACHE_TTL", 24*time.Hour),
		CandidatesFile:      getEnv("CANDIDATES_FILE", ""),
		BenchmarkTicker:     getEnv("BENCHMARK_TICKER", ""),
		RegimeTicker:        getEnv("REGIME_TICKER", ""),
		LookbackDays:        getEnvAsInt("SCAN_LOOKBACK_DAYS", 400),
		ScanCron:            getEnv("SCAN_CRON", ""),
		CachePurgeCron:      getEnv("CACHE_PURGE_CRON", "0 0 3 * * *"),
		ArchiveRotationCron: getEnv("ARCHIVE_ROTATION_CRON", "0 30 3 * * *"),
		ArchiveRetention:    getEnvAsInt("ARCHIVE_RETENTION_DAYS", 30),
		R2:                  loadR2Config(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges, including the nested model configs.
func (c *Config) Validate() error {
	if err := panel.ValidateConfig("application", c); err != nil {
		return err
	}
	if c.R2 != nil {
		if err := panel.ValidateConfig("r2", c.R2); err != nil {
			return err
		}
	}
	return nil
}

// HistoryDBPath is the price history database file.
func (c *Config) HistoryDBPath() string { return filepath.Join(c.DataDir, "history.db") }

// SnapshotsDBPath is the snapshot catalogue file.
func (c *Config) SnapshotsDBPath() string { return filepath.Join(c.DataDir, "snapshots.db") }

// CacheDBPath is the calibration result cache file.
func (c *Config) CacheDBPath() string { return filepath.Join(c.DataDir, "cache.db") }

// SnapshotDir is where raw panel snapshots are written.
func (c *Config) SnapshotDir() string { return filepath.Join(c.DataDir, "snapshots") }

func loadR2Config() *R2Config {
	bucket := getEnv("R2_BUCKET", "")
	if bucket == "" {
		return nil
	}
	return &R2Config{
		AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		Endpoint:        getEnv("R2_ENDPOINT", ""),
		AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		Bucket:          bucket,
		Prefix:          getEnv("R2_PREFIX", "snapshots/"),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
