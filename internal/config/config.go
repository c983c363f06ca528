// Package config provides application configuration management.
// It loads settings from DKU_* environment variables (optionally from a
// .env file) and validates them per run mode.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ValidationMode selects which settings are required.
type ValidationMode int

const (
	// ServerMode validates everything the HTTP server needs.
	ServerMode ValidationMode = iota
	// WarmupMode validates only storage and upstream settings.
	WarmupMode
)

// String returns the mode name.
func (m ValidationMode) String() string {
	switch m {
	case ServerMode:
		return "server"
	case WarmupMode:
		return "warmup"
	default:
		return "unknown"
	}
}

// DefaultUpstreamBaseURL is the public timetable site.
const DefaultUpstreamBaseURL = "https://timetable.dku.kz"

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	ServerName      string
	InstanceID      string

	// Data Configuration
	DataDir  string        // Data directory for SQLite database
	CacheTTL time.Duration // Absolute expiration of cached pages in SQLite

	// Edge cache (empty URL disables the Redis tier)
	RedisURL     string
	EdgeCacheTTL time.Duration

	// Upstream Configuration
	UpstreamBaseURLs  []string // Origin first, then mirrors
	ScraperTimeout    time.Duration
	ScraperMaxRetries int
	ScraperWorkers    int

	// Calendar subscriptions
	CalendarSecret   string // HMAC key for subscription tokens (empty disables /api/token)
	CalendarTokenTTL time.Duration
	CalendarWeeks    int // Rolling window of an ICS feed

	// Per-client API rate limit (token bucket)
	APIRateBurst  float64
	APIRateRefill float64 // Tokens per second
	TokenDailyCap int     // Calendar tokens a client may mint per rolling day (0 = unlimited)

	// Background Tasks
	WaitForWarmup       bool
	WarmupGracePeriod   time.Duration
	WarmupWeeks         int // Weeks per group refreshed by warmup
	DataRefreshInterval time.Duration
	DataCleanupInterval time.Duration

	// R2 Snapshot Feature
	R2Enabled      bool
	R2AccountID    string
	R2AccessKeyID  string
	R2SecretKey    string
	R2BucketName   string
	R2SnapshotKey  string
	R2LockKey      string
	R2LockTTL      time.Duration
	R2PollInterval time.Duration

	// Sentry Feature
	SentryEnabled     bool
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
	SentrySampleRate  float64

	// Better Stack Feature
	BetterStackEnabled  bool
	BetterStackToken    string
	BetterStackEndpoint string
	BetterStackLevel    string // Minimum shipped level; empty follows LogLevel
	BetterStackQueue    int    // Records buffered before shipping drops them

	// Metrics Auth Feature
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string
}

// Load reads configuration for the server.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from environment variables and validates
// it for the given mode. A .env file in the working directory is loaded
// first when present.
func LoadForMode(mode ValidationMode) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		ServerName:      getEnv(EnvServerName, ""),
		InstanceID:      getEnv(EnvInstanceID, ""),

		DataDir:  getEnv(EnvDataDir, getDefaultDataDir()),
		CacheTTL: getDurationEnv(EnvCacheTTL, 6*time.Hour),

		RedisURL:     getEnv(EnvRedisURL, ""),
		EdgeCacheTTL: getDurationEnv(EnvEdgeCacheTTL, time.Hour),

		UpstreamBaseURLs: append(
			[]string{getEnv(EnvUpstreamBaseURL, DefaultUpstreamBaseURL)},
			getListEnv(EnvUpstreamMirrorURLs)...,
		),
		ScraperTimeout:    getDurationEnv(EnvScraperTimeout, ScraperRequest),
		ScraperMaxRetries: getIntEnv(EnvScraperMaxRetries, 3),
		ScraperWorkers:    getIntEnv(EnvScraperWorkers, 4),

		CalendarSecret:   getEnv(EnvCalendarSecret, ""),
		CalendarTokenTTL: getDurationEnv(EnvCalendarTokenTTL, 180*24*time.Hour),
		CalendarWeeks:    getIntEnv(EnvCalendarWeeks, 4),

		APIRateBurst:  getFloatEnv(EnvAPIRateBurst, 30),
		APIRateRefill: getFloatEnv(EnvAPIRateRefill, 1),
		TokenDailyCap: getIntEnv(EnvTokenDailyCap, 50),

		WaitForWarmup:       getBoolEnv(EnvWarmupWait, false),
		WarmupGracePeriod:   getDurationEnv(EnvWarmupGracePeriod, 10*time.Minute),
		WarmupWeeks:         getIntEnv(EnvWarmupWeeks, 2),
		DataRefreshInterval: getDurationEnv(EnvDataRefreshInterval, 6*time.Hour),
		DataCleanupInterval: getDurationEnv(EnvDataCleanupInterval, 12*time.Hour),

		R2Enabled:      getBoolEnv(EnvR2Enabled, false),
		R2AccountID:    getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:  getEnv(EnvR2AccessKeyID, ""),
		R2SecretKey:    getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:   getEnv(EnvR2BucketName, ""),
		R2SnapshotKey:  getEnv(EnvR2SnapshotKey, "snapshots/timetable.json.zst"),
		R2LockKey:      getEnv(EnvR2LockKey, "locks/warmup.lock"),
		R2LockTTL:      getDurationEnv(EnvR2LockTTL, 10*time.Minute),
		R2PollInterval: getDurationEnv(EnvR2PollInterval, 15*time.Minute),

		SentryEnabled:     getBoolEnv(EnvSentryEnabled, false),
		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentryRelease:     getEnv(EnvSentryRelease, ""),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackEnabled:  getBoolEnv(EnvBetterStackEnabled, false),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),
		BetterStackLevel:    getEnv(EnvBetterStackLevel, ""),
		BetterStackQueue:    getIntEnv(EnvBetterStackQueue, 1024),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for server mode.
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode checks that the settings required by mode are present
// and in range. All problems are reported together.
func (c *Config) ValidateForMode(mode ValidationMode) error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvCacheTTL, c.CacheTTL))
	}
	if len(c.UpstreamBaseURLs) == 0 {
		errs = append(errs, fmt.Errorf("%s is required", EnvUpstreamBaseURL))
	}
	for _, raw := range c.UpstreamBaseURLs {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid upstream URL %q", raw))
		}
	}
	if c.ScraperTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvScraperTimeout, c.ScraperTimeout))
	}
	if c.ScraperMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvScraperMaxRetries, c.ScraperMaxRetries))
	}
	if c.ScraperWorkers <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvScraperWorkers, c.ScraperWorkers))
	}
	if c.WarmupWeeks <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvWarmupWeeks, c.WarmupWeeks))
	}
	if c.R2Enabled {
		if c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2SecretKey == "" || c.R2BucketName == "" {
			errs = append(errs, fmt.Errorf("%s requires account ID, access key, secret key and bucket", EnvR2Enabled))
		}
		if c.R2LockTTL <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvR2LockTTL, c.R2LockTTL))
		}
	}

	if mode == ServerMode {
		if c.Port == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvPort))
		}
		if c.APIRateBurst <= 0 || c.APIRateRefill <= 0 {
			errs = append(errs, fmt.Errorf("%s and %s must be positive", EnvAPIRateBurst, EnvAPIRateRefill))
		}
		if c.TokenDailyCap < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", EnvTokenDailyCap, c.TokenDailyCap))
		}
		if c.CalendarWeeks <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvCalendarWeeks, c.CalendarWeeks))
		}
		if c.CalendarTokenTTL <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvCalendarTokenTTL, c.CalendarTokenTTL))
		}
		if c.SentryEnabled && c.SentryDSN == "" {
			errs = append(errs, fmt.Errorf("%s is required when Sentry is enabled", EnvSentryDSN))
		}
		if c.BetterStackEnabled && c.BetterStackToken == "" {
			errs = append(errs, fmt.Errorf("%s is required when Better Stack is enabled", EnvBetterStackToken))
		}
		if c.BetterStackEnabled && c.BetterStackQueue <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvBetterStackQueue, c.BetterStackQueue))
		}
		if c.MetricsAuthEnabled && c.MetricsPassword == "" {
			errs = append(errs, fmt.Errorf("%s is required when metrics auth is enabled", EnvMetricsPassword))
		}
	}

	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping empty items.
func getListEnv(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// R2Endpoint returns the S3-compatible endpoint of the configured account.
func (c *Config) R2Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

// MetricsCredentials returns the Basic Auth pair for /metrics, or empty
// strings when metrics auth is disabled.
func (c *Config) MetricsCredentials() (string, string) {
	if !c.MetricsAuthEnabled {
		return "", ""
	}
	return c.MetricsUsername, c.MetricsPassword
}
