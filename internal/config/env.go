package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "DKU_PORT"
	EnvLogLevel        = "DKU_LOG_LEVEL"
	EnvShutdownTimeout = "DKU_SHUTDOWN_TIMEOUT"
	EnvServerName      = "DKU_SERVER_NAME"
	EnvInstanceID      = "DKU_INSTANCE_ID"

	// Data
	EnvDataDir  = "DKU_DATA_DIR"
	EnvCacheTTL = "DKU_CACHE_TTL"

	// Edge cache
	EnvRedisURL     = "DKU_REDIS_URL"
	EnvEdgeCacheTTL = "DKU_EDGE_CACHE_TTL"

	// Upstream
	EnvUpstreamBaseURL    = "DKU_UPSTREAM_BASE_URL"
	EnvUpstreamMirrorURLs = "DKU_UPSTREAM_MIRROR_URLS"
	EnvScraperTimeout     = "DKU_SCRAPER_TIMEOUT"
	EnvScraperMaxRetries  = "DKU_SCRAPER_MAX_RETRIES"
	EnvScraperWorkers     = "DKU_SCRAPER_WORKERS"

	// Calendar
	EnvCalendarSecret   = "DKU_CALENDAR_SECRET"
	EnvCalendarTokenTTL = "DKU_CALENDAR_TOKEN_TTL"
	EnvCalendarWeeks    = "DKU_CALENDAR_WEEKS"

	// Rate Limits
	EnvAPIRateBurst  = "DKU_API_RATE_BURST"
	EnvAPIRateRefill = "DKU_API_RATE_REFILL"
	EnvTokenDailyCap = "DKU_TOKEN_DAILY_LIMIT"

	// Background Tasks
	EnvWarmupWait          = "DKU_WARMUP_WAIT"
	EnvWarmupGracePeriod   = "DKU_WARMUP_GRACE_PERIOD"
	EnvWarmupWeeks         = "DKU_WARMUP_WEEKS"
	EnvDataRefreshInterval = "DKU_DATA_REFRESH_INTERVAL"
	EnvDataCleanupInterval = "DKU_DATA_CLEANUP_INTERVAL"

	// R2 Snapshot Feature
	EnvR2Enabled         = "DKU_R2_ENABLED"
	EnvR2AccountID       = "DKU_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "DKU_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "DKU_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "DKU_R2_BUCKET_NAME"
	EnvR2SnapshotKey     = "DKU_R2_SNAPSHOT_KEY"
	EnvR2LockKey         = "DKU_R2_LOCK_KEY"
	EnvR2LockTTL         = "DKU_R2_LOCK_TTL"
	EnvR2PollInterval    = "DKU_R2_SNAPSHOT_POLL_INTERVAL"

	// Sentry Feature
	EnvSentryEnabled     = "DKU_SENTRY_ENABLED"
	EnvSentryDSN         = "DKU_SENTRY_DSN"
	EnvSentryEnvironment = "DKU_SENTRY_ENVIRONMENT"
	EnvSentryRelease     = "DKU_SENTRY_RELEASE"
	EnvSentrySampleRate  = "DKU_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackEnabled  = "DKU_BETTERSTACK_ENABLED"
	EnvBetterStackToken    = "DKU_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "DKU_BETTERSTACK_ENDPOINT"
	EnvBetterStackLevel    = "DKU_BETTERSTACK_LEVEL"
	EnvBetterStackQueue    = "DKU_BETTERSTACK_QUEUE"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "DKU_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "DKU_METRICS_USERNAME"
	EnvMetricsPassword    = "DKU_METRICS_PASSWORD"
)
