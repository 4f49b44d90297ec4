package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	syncapp "github.com/storefront/backend/internal/application/sync"
	"github.com/storefront/backend/internal/domain/supplier"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/cj"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Storefront Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize Redis-backed sync cache
	syncCache, err := cache.NewRedisSyncCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := syncCache.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	log.Info("Redis connected successfully")

	// Initialize OpenTelemetry metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider)
	if err != nil {
		log.Fatal("Failed to initialize sync metrics", zap.Error(err))
	}

	// Initialize supplier API client
	apiClient, err := cj.NewClient(&cj.Config{
		BaseURL:      cfg.Supplier.BaseURL,
		AccessToken:  cfg.Supplier.AccessToken,
		RefreshToken: cfg.Supplier.RefreshToken,
		FallbackRPS:  cfg.Supplier.FallbackRPS,
		Timeout:      cfg.Supplier.CallTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to create supplier API client", zap.Error(err))
	}
	apiClient.SetRateLimitCallback(func() {
		syncMetrics.RateLimitHits.Inc(context.Background())
	})

	// Initialize repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	referenceRepo := persistence.NewGormReferenceRepository(db.DB)
	snapshotRepo := persistence.NewGormSnapshotRepository(db.DB)

	// Initialize sync application service
	enricher := syncapp.NewEnricher(apiClient, snapshotRepo, log)
	syncService := syncapp.NewService(
		apiClient,
		enricher,
		productRepo,
		referenceRepo,
		syncCache,
		syncMetrics,
		syncapp.Options{
			ExchangeRate: decimal.NewFromFloat(cfg.Supplier.ExchangeRate),
		},
		log,
	)

	// Initialize job scheduler and executor
	schedulerConfig := scheduler.SchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: cfg.Sync.MaxConcurrentJobs,
		JobTimeout:        cfg.Sync.JobTimeout,
		RetryAttempts:     cfg.Sync.RetryAttempts,
		RetryDelay:        cfg.Sync.RetryDelay,
	}
	syncExecutor := scheduler.NewSyncExecutor(syncService, log)
	syncScheduler := scheduler.NewScheduler(schedulerConfig, syncExecutor, log)
	if err := syncScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncScheduler.Stop(ctx); err != nil {
			log.Error("Error stopping sync scheduler", zap.Error(err))
		}
	}()
	log.Info("Sync scheduler started",
		zap.Int("max_concurrent_jobs", schedulerConfig.MaxConcurrentJobs),
		zap.Duration("job_timeout", schedulerConfig.JobTimeout),
	)

	// Daily cron trigger; manual syncs go through the same trigger so
	// every run is queued as a scheduler job.
	triggerConfig := scheduler.DefaultCronTriggerConfig()
	if cfg.Sync.DailyCronSchedule != "" {
		hour, minute, err := scheduler.ParseDailySchedule(cfg.Sync.DailyCronSchedule)
		if err != nil {
			log.Warn("Invalid daily cron schedule, using default",
				zap.String("schedule", cfg.Sync.DailyCronSchedule),
				zap.Error(err),
			)
		} else {
			triggerConfig.DailySyncHour = hour
			triggerConfig.DailySyncMinute = minute
		}
	}
	triggerConfig.SyncConfig = supplier.Config{
		PageSize:                cfg.Sync.PageSize,
		MaxPages:                cfg.Sync.MaxPages,
		CountryCodes:            cfg.Sync.CountryCodes,
		ExcludeCategoryIDs:      cfg.Sync.ExcludeCategoryIDs,
		StartInventoryThreshold: cfg.Sync.StartInventoryThreshold,
	}
	cronTrigger := scheduler.NewCronTrigger(triggerConfig, syncScheduler, log)
	if cfg.Sync.Enabled {
		if err := cronTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start cron trigger", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := cronTrigger.Stop(ctx); err != nil {
				log.Error("Error stopping cron trigger", zap.Error(err))
			}
		}()
		log.Info("Daily sync schedule active",
			zap.Int("hour", triggerConfig.DailySyncHour),
			zap.Int("minute", triggerConfig.DailySyncMinute),
		)
	}

	// Initialize HTTP handlers
	syncHandler := handler.NewSyncHandler(cronTrigger, syncService, log)
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"database": handler.PingerFunc(func(ctx context.Context) error {
			return db.Ping()
		}),
		"redis": syncCache,
	})

	mode := ""
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}

	middleware.SetupValidator()

	engine := router.New(router.Config{
		Sync:   syncHandler,
		Health: healthHandler,
		Logger: log,
		Mode:   mode,
	})

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
