// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// UniverseSeed bootstraps the stocks table on first start when the
	// universe is still empty. Comma-separated symbols, rank by position.
	UniverseSeed []string

	Market   MarketConfig
	Provider ProviderConfig
	Pipeline PipelineConfig
	Backup   BackupConfig
}

// MarketConfig holds market session parameters.
type MarketConfig struct {
	Timezone    string    // Market local timezone (default Asia/Ho_Chi_Minh)
	CloseHour   int       // Local hour after which today's session is complete
	GenesisDate time.Time // Earliest date any symbol is backfilled from
}

// ProviderConfig holds upstream data provider parameters.
type ProviderConfig struct {
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int           // Attempts per window before giving up
	RetryBaseDelay    time.Duration // First backoff step, doubles per attempt
	RequestsPerSecond float64       // Client-side rate limit
	EmptyWindowStride int           // Days to walk back per empty window
	MaxEmptyWindows   int           // Consecutive empty windows before concluding no history
}

// PipelineConfig holds orchestrator pacing and analysis parameters.
type PipelineConfig struct {
	BatchSize          int
	SymbolDelay        time.Duration // Pause between symbols within a batch
	BatchDelay         time.Duration // Pause between batches
	Parallel           bool          // Process a batch's symbols concurrently (bounded by BatchSize)
	AnalysisWindowDays int           // Trailing window the analysis stage runs over
	MinScoreThreshold  float64       // Scores below this magnitude emit no signal
	DailySchedule      string        // Cron spec for the scheduled daily run
}

// BackupConfig holds S3-compatible backup storage settings.
type BackupConfig struct {
	Enabled       bool
	Endpoint      string // S3-compatible endpoint (e.g. Cloudflare R2)
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	RetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("VNSTOCK_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	genesis, err := time.Parse("2006-01-02", getEnv("MARKET_GENESIS_DATE", "2010-01-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid MARKET_GENESIS_DATE: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnvAsInt("PORT", 8080),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		UniverseSeed: splitSymbols(getEnv("UNIVERSE_SEED_SYMBOLS", "")),
		Market: MarketConfig{
			Timezone:    getEnv("MARKET_TIMEZONE", "Asia/Ho_Chi_Minh"),
			CloseHour:   getEnvAsInt("MARKET_CLOSE_HOUR", 16),
			GenesisDate: genesis,
		},
		Provider: ProviderConfig{
			BaseURL:           getEnv("PROVIDER_BASE_URL", "https://dchart-api.vndirect.com.vn"),
			Timeout:           getEnvAsDuration("PROVIDER_TIMEOUT", 30*time.Second),
			MaxRetries:        getEnvAsInt("PROVIDER_MAX_RETRIES", 3),
			RetryBaseDelay:    getEnvAsDuration("PROVIDER_RETRY_BASE_DELAY", 2*time.Second),
			RequestsPerSecond: getEnvAsFloat("PROVIDER_REQUESTS_PER_SECOND", 2.0),
			EmptyWindowStride: getEnvAsInt("PROVIDER_EMPTY_WINDOW_STRIDE", 365),
			MaxEmptyWindows:   getEnvAsInt("PROVIDER_MAX_EMPTY_WINDOWS", 3),
		},
		Pipeline: PipelineConfig{
			BatchSize:          getEnvAsInt("PIPELINE_BATCH_SIZE", 4),
			SymbolDelay:        getEnvAsDuration("PIPELINE_SYMBOL_DELAY", 2*time.Second),
			BatchDelay:         getEnvAsDuration("PIPELINE_BATCH_DELAY", 5*time.Second),
			Parallel:           getEnvAsBool("PIPELINE_PARALLEL", false),
			AnalysisWindowDays: getEnvAsInt("PIPELINE_ANALYSIS_WINDOW_DAYS", 120),
			MinScoreThreshold:  getEnvAsFloat("PIPELINE_MIN_SCORE_THRESHOLD", 10.0),
			DailySchedule:      getEnv("PIPELINE_DAILY_SCHEDULE", "45 16 * * 1-5"),
		},
		Backup: BackupConfig{
			Enabled:       getEnvAsBool("BACKUP_ENABLED", false),
			Endpoint:      getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:        getEnv("BACKUP_S3_REGION", "auto"),
			Bucket:        getEnv("BACKUP_S3_BUCKET", ""),
			AccessKey:     getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("BACKUP_S3_SECRET_KEY", ""),
			RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and consistent
func (c *Config) Validate() error {
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline batch size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Provider.MaxRetries < 1 {
		return fmt.Errorf("provider max retries must be at least 1, got %d", c.Provider.MaxRetries)
	}
	if c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backup enabled but BACKUP_S3_BUCKET is empty")
		}
		if c.Backup.AccessKey == "" || c.Backup.SecretKey == "" {
			return fmt.Errorf("backup enabled but S3 credentials are missing")
		}
	}
	return nil
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
