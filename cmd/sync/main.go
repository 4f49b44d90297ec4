package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	syncapp "github.com/storefront/backend/internal/application/sync"
	"github.com/storefront/backend/internal/domain/supplier"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/cj"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// One-shot catalog sync. Runs a single pull against the supplier API
// and exits, printing the run summary. Intended for cron jobs and
// manual backfills outside the long-running server.
func main() {
	var (
		pageSize     int
		maxPages     int
		countryCodes string
		excludeIDs   string
		minInventory int
		logLevel     string
	)

	flag.IntVar(&pageSize, "page-size", 0, "Listing page size (default from config)")
	flag.IntVar(&maxPages, "max-pages", 0, "Global page cap across all countries (0 = no cap)")
	flag.StringVar(&countryCodes, "countries", "", "Comma-separated country codes (default from config)")
	flag.StringVar(&excludeIDs, "exclude-categories", "", "Comma-separated category ids to skip")
	flag.IntVar(&minInventory, "min-inventory", 0, "Skip listings below this total inventory")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	syncCache, err := cache.NewRedisSyncCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer syncCache.Close()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer meterProvider.Shutdown(context.Background())

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider)
	if err != nil {
		log.Fatal("Failed to initialize sync metrics", zap.Error(err))
	}

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

	enricher := syncapp.NewEnricher(apiClient, persistence.NewGormSnapshotRepository(db.DB), log)
	service := syncapp.NewService(
		apiClient,
		enricher,
		persistence.NewGormProductRepository(db.DB),
		persistence.NewGormReferenceRepository(db.DB),
		syncCache,
		syncMetrics,
		syncapp.Options{
			ExchangeRate: decimal.NewFromFloat(cfg.Supplier.ExchangeRate),
		},
		log,
	)

	runCfg := supplier.Config{
		PageSize:                cfg.Sync.PageSize,
		MaxPages:                cfg.Sync.MaxPages,
		CountryCodes:            cfg.Sync.CountryCodes,
		ExcludeCategoryIDs:      cfg.Sync.ExcludeCategoryIDs,
		StartInventoryThreshold: cfg.Sync.StartInventoryThreshold,
	}
	if pageSize > 0 {
		runCfg.PageSize = pageSize
	}
	if maxPages > 0 {
		runCfg.MaxPages = maxPages
	}
	if countryCodes != "" {
		runCfg.CountryCodes = splitList(countryCodes)
	}
	if excludeIDs != "" {
		runCfg.ExcludeCategoryIDs = splitList(excludeIDs)
	}
	if minInventory > 0 {
		runCfg.StartInventoryThreshold = minInventory
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := service.Run(ctx, runCfg)
	if err != nil {
		log.Fatal("Sync run failed", zap.Error(err))
	}

	log.Info("Sync run finished",
		zap.Int("pages_processed", summary.PagesProcessed),
		zap.Int("raw_products", summary.RawProducts),
		zap.Int("raw_variants", summary.RawVariants),
		zap.Int("raw_stocks", summary.RawStocks),
		zap.Int("raw_comments", summary.RawComments),
		zap.Int("product_upserts", summary.ProductUpserts),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
