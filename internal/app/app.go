// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/dku-timetable-go/internal/buildinfo"
	"github.com/garyellow/dku-timetable-go/internal/calendartoken"
	"github.com/garyellow/dku-timetable-go/internal/config"
	"github.com/garyellow/dku-timetable-go/internal/edgecache"
	"github.com/garyellow/dku-timetable-go/internal/logger"
	"github.com/garyellow/dku-timetable-go/internal/metrics"
	"github.com/garyellow/dku-timetable-go/internal/r2client"
	"github.com/garyellow/dku-timetable-go/internal/ratelimit"
	"github.com/garyellow/dku-timetable-go/internal/schedule"
	"github.com/garyellow/dku-timetable-go/internal/scraper"
	"github.com/garyellow/dku-timetable-go/internal/scraper/dku"
	"github.com/garyellow/dku-timetable-go/internal/sentry"
	"github.com/garyellow/dku-timetable-go/internal/snapshot"
	"github.com/garyellow/dku-timetable-go/internal/storage"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
	"github.com/garyellow/dku-timetable-go/internal/warmup"
)

const repositoryURL = "https://github.com/garyellow/dku-timetable-go"

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	edge           *edgecache.Cache
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	service        *schedule.Service
	tokens         *calendartoken.Manager
	apiLimiter     *ratelimit.KeyedLimiter
	tokenLimiter   *ratelimit.KeyedLimiter
	snapshots      *snapshot.Manager      // nil when R2 is disabled
	readinessState *warmup.ReadinessState // Tracks the first refresh for readiness
	router         *gin.Engine
	server         *http.Server
	now            func() time.Time
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	logOpts := logger.Options{
		Ship: logger.ShipOptions{
			QueueSize:    cfg.BetterStackQueue,
			DrainTimeout: config.LogShipDrain,
		},
	}
	if cfg.BetterStackEnabled {
		logOpts.BetterStackToken = cfg.BetterStackToken
		logOpts.BetterStackEndpoint = cfg.BetterStackEndpoint
		logOpts.BetterStackLevel = cfg.BetterStackLevel
	}
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logOpts)

	log = log.WithField("service", "dku-timetable-go")
	instance := instanceName(cfg)
	if instance != "" {
		log = log.WithField("instance_id", instance)
	}

	// Package-level slog calls (storage slow-query warnings) go through the
	// same handler.
	slog.SetDefault(log.Logger)

	log.WithFields(map[string]any{
		"version":    buildinfo.Version,
		"commit":     buildinfo.Commit,
		"build_date": buildinfo.BuildDate,
	}).Info("Initializing application...")
	if logOpts.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	if cfg.SentryEnabled {
		release := cfg.SentryRelease
		if release == "" {
			release = buildinfo.Version
		}
		if err := sentry.Initialize(sentry.Config{
			DSN:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			Release:     release,
			ServerName:  instance,
			SampleRate:  cfg.SentrySampleRate,
		}); err != nil {
			log.WithError(err).Warn("Sentry initialization failed")
		} else {
			log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error reporting enabled")
		}
	}

	db, err := storage.New(ctx, cfg.SQLitePath(), cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).WithField("cache_ttl", cfg.CacheTTL).Info("Database connected")

	edge, err := edgecache.New(ctx, edgecache.Options{URL: cfg.RedisURL, TTL: cfg.EdgeCacheTTL})
	if err != nil {
		// The edge tier is an optimization; run without it.
		log.WithError(err).Warn("Edge cache unavailable, continuing without Redis")
		edge = edgecache.NewWithClient(nil, cfg.EdgeCacheTTL)
	} else if edge.Enabled() {
		log.WithField("ttl", cfg.EdgeCacheTTL).Info("Edge cache connected")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)
	m.TrackDroppedLogs(registry, log.DroppedRecords)

	scraperClient := scraper.NewClient(scraper.Config{
		BaseURLs:       cfg.UpstreamBaseURLs,
		Timeout:        cfg.ScraperTimeout,
		Workers:        cfg.ScraperWorkers,
		MinDelay:       config.ScraperMinDelay,
		MaxDelay:       config.ScraperMaxDelay,
		MaxRetries:     cfg.ScraperMaxRetries,
		InitialBackoff: config.ScraperRetryInitial,
		Metrics:        m,
	})
	fetcher := dku.NewFetcher(scraperClient, timetable.NewParser(timetable.Options{}), m)

	gin.SetMode(gin.ReleaseMode)
	app := newApplication(cfg, log, db, edge, fetcher, registry, m)

	if cfg.R2Enabled {
		objects, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint(),
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("r2: %w", err)
		}
		app.snapshots = snapshot.New(objects, db, log, snapshot.Config{
			SnapshotKey:  cfg.R2SnapshotKey,
			LockKey:      cfg.R2LockKey,
			LockTTL:      cfg.R2LockTTL,
			PollInterval: cfg.R2PollInterval,
			Source:       instance,
		})
		log.WithField("bucket", cfg.R2BucketName).
			WithField("snapshot_key", cfg.R2SnapshotKey).
			Info("R2 snapshot sharing enabled")
	}

	if !app.tokens.Enabled() {
		log.Warn("Calendar secret not set, calendar subscriptions disabled")
	}

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: config.APIHTTPRead,
		ReadTimeout:       config.APIHTTPRead,
		WriteTimeout:      config.APIHTTPWrite,
		IdleTimeout:       config.APIHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// newApplication wires the request path around already opened resources.
// edge and m may be nil.
func newApplication(
	cfg *config.Config,
	log *logger.Logger,
	db *storage.DB,
	edge *edgecache.Cache,
	fetcher schedule.Fetcher,
	registry *prometheus.Registry,
	m *metrics.Metrics,
) *Application {
	app := &Application{
		cfg:      cfg,
		logger:   log,
		db:       db,
		edge:     edge,
		metrics:  m,
		registry: registry,
		service:  schedule.NewService(fetcher, db, edge, m, log),
		tokens:   calendartoken.NewManager(cfg.CalendarSecret, cfg.CalendarTokenTTL),
		apiLimiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "api",
			Burst:         cfg.APIRateBurst,
			RefillRate:    cfg.APIRateRefill,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		}),
		tokenLimiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "token",
			Burst:         ratelimit.TokenMintBurst,
			RefillRate:    ratelimit.TokenMintRefillRate,
			DailyLimit:    cfg.TokenDailyCap,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		}),
		readinessState: warmup.NewReadinessState(cfg.WarmupGracePeriod),
		now:            time.Now,
	}
	app.router = app.routes()
	return app
}

// routes builds the HTTP router.
func (a *Application) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sentry.Middleware())
	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger, a.metrics))

	router.GET("/", a.redirectToGitHub)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	if a.registry != nil {
		router.GET("/metrics",
			metricsAuthMiddleware(a.cfg.MetricsCredentials()),
			gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api",
		a.readinessMiddleware(),
		rateLimitMiddleware(a.apiLimiter),
		requestTimeoutMiddleware(config.APIRequest),
	)
	api.GET("/meta", a.handleMeta)
	api.GET("/schedule", a.handleSchedule)
	api.POST("/token", a.handleToken)
	api.GET("/calendar", a.handleCalendar)

	return router
}

func (a *Application) redirectToGitHub(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, repositoryURL)
}

// instanceName identifies this process in logs, Sentry and snapshots.
func instanceName(cfg *config.Config) string {
	if cfg.InstanceID != "" {
		return cfg.InstanceID
	}
	if cfg.ServerName != "" {
		return cfg.ServerName
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return ""
}

// Run starts the HTTP server and background jobs.
//
// Shutdown order matters: background jobs are stopped and awaited before
// the database is closed, so an in-flight refresh never writes to a closed
// handle.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops the HTTP server, waits for in-flight requests and closes
// resources. Call it only after background jobs have returned.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")
	a.closeResources()

	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}
	if dropped := a.logger.DroppedRecords(); dropped > 0 {
		a.logger.WithField("dropped", dropped).Warn("Some log records never reached Better Stack")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

func (a *Application) closeResources() {
	if err := a.edge.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "edge_cache").Error("Component close error")
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}
	a.apiLimiter.Stop()
	a.tokenLimiter.Stop()
}
