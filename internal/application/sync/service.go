package syncapp

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/supplier"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// CatalogAPI is the supplier surface the sync consumes. The concrete
// client enforces the shared rate gate underneath every call.
type CatalogAPI interface {
	RefreshAccessToken(ctx context.Context) error
	FetchQuota(ctx context.Context) (float64, error)
	ApplyQuota(rps float64)
	ListProducts(ctx context.Context, page, pageSize int, countryCode string) (*supplier.ProductPage, error)
	GetProductDetail(ctx context.Context, externalID string) (*supplier.DetailRecord, error)
	ListVariants(ctx context.Context, externalID string) ([]supplier.Variant, error)
	GetProductStock(ctx context.Context, externalID string) ([]supplier.AreaStock, error)
	ListReviews(ctx context.Context, externalID string, pageSize int) ([]supplier.Review, error)
	ListCategories(ctx context.Context) ([]supplier.CategoryNode, error)
	ListWarehouses(ctx context.Context) ([]supplier.Warehouse, error)
}

// SyncCache stores cross-run state: the supplier quota and the last
// completed summary. A nil cache disables both without changing run
// behavior.
type SyncCache interface {
	GetQuota(ctx context.Context) (float64, bool, error)
	SetQuota(ctx context.Context, rps float64) error
	SetLastSummary(ctx context.Context, summary *supplier.Summary) error
	GetLastSummary(ctx context.Context) (*supplier.Summary, error)
}

// Options carries process-level normalization settings sourced from
// configuration rather than per-run input.
type Options struct {
	// ExchangeRate converts supplier-currency cost into the target
	// currency. Zero disables conversion.
	ExchangeRate decimal.Decimal
	// TargetCurrency defaults to USD.
	TargetCurrency string
	// TitleTemplate formats the fallback title from the external id.
	TitleTemplate string
}

// Service drives a full catalog sync: credential refresh, quota and
// reference loading, then the per-country page walk with per-item
// enrichment, normalization and upsert. Only one run may be active at
// a time.
type Service struct {
	api      CatalogAPI
	enricher *Enricher
	products catalog.ProductRepository
	refs     supplier.ReferenceRepository
	cache    SyncCache
	metrics  *telemetry.SyncMetrics
	policy   catalog.UpdatePolicy
	options  Options
	logger   *zap.Logger

	mu          sync.Mutex
	running     bool
	lastSummary *supplier.Summary
}

// NewService creates a sync service. cache and metrics may be nil.
func NewService(
	api CatalogAPI,
	enricher *Enricher,
	products catalog.ProductRepository,
	refs supplier.ReferenceRepository,
	cache SyncCache,
	metrics *telemetry.SyncMetrics,
	options Options,
	logger *zap.Logger,
) *Service {
	return &Service{
		api:      api,
		enricher: enricher,
		products: products,
		refs:     refs,
		cache:    cache,
		metrics:  metrics,
		policy:   catalog.DefaultUpdatePolicy(),
		options:  options,
		logger:   logger.Named("sync"),
	}
}

// Run executes one complete sync pass and returns its summary. A run
// already in flight yields shared.ErrSyncInProgress. Item and page
// level failures are logged and skipped; only context cancellation
// aborts the run early.
func (s *Service) Run(ctx context.Context, cfg supplier.Config) (*supplier.Summary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, shared.ErrSyncInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	cfg.ApplyDefaults()
	summary := &supplier.Summary{StartedAt: time.Now()}
	dropped := 0

	s.logger.Info("sync run starting",
		zap.Int("page_size", cfg.PageSize),
		zap.Int("max_pages", cfg.MaxPages),
		zap.Strings("country_codes", cfg.CountryCodes),
	)

	s.refreshCredential(ctx)
	s.applyQuota(ctx)
	s.loadReferenceData(ctx)

	for _, country := range cfg.CountryCodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.syncCountry(ctx, country, &cfg, summary, &dropped); err != nil {
			return nil, err
		}
	}

	summary.FinishedAt = time.Now()

	s.mu.Lock()
	s.lastSummary = summary
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordRun(ctx,
			summary.PagesProcessed,
			summary.RawProducts,
			summary.ProductUpserts,
			dropped,
			summary.FinishedAt.Sub(summary.StartedAt),
		)
	}
	if s.cache != nil {
		if err := s.cache.SetLastSummary(ctx, summary); err != nil {
			s.logger.Warn("failed to cache run summary", zap.Error(err))
		}
	}

	s.logger.Info("sync run finished",
		zap.Int("pages_processed", summary.PagesProcessed),
		zap.Int("raw_products", summary.RawProducts),
		zap.Int("product_upserts", summary.ProductUpserts),
		zap.Int("items_dropped", dropped),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// Status reports whether a run is active and the last completed
// summary. When memory has none yet, the cache is consulted so status
// survives restarts.
func (s *Service) Status(ctx context.Context) (bool, *supplier.Summary) {
	s.mu.Lock()
	running := s.running
	last := s.lastSummary
	s.mu.Unlock()

	if last == nil && s.cache != nil {
		cached, err := s.cache.GetLastSummary(ctx)
		if err != nil {
			s.logger.Warn("failed to read cached summary", zap.Error(err))
		} else {
			last = cached
		}
	}
	return running, last
}

// refreshCredential exchanges the refresh token once per run. Failure
// is non-fatal; the run proceeds on the configured credential.
func (s *Service) refreshCredential(ctx context.Context) {
	if err := s.api.RefreshAccessToken(ctx); err != nil {
		s.logger.Warn("credential refresh failed, continuing with configured token", zap.Error(err))
	}
}

// applyQuota installs the supplier's advertised request quota on the
// rate gate, preferring the cached value over a settings call. Any
// failure leaves the conservative fallback rate in place.
func (s *Service) applyQuota(ctx context.Context) {
	if s.cache != nil {
		if rps, ok, err := s.cache.GetQuota(ctx); err == nil && ok {
			s.api.ApplyQuota(rps)
			return
		} else if err != nil {
			s.logger.Warn("quota cache read failed", zap.Error(err))
		}
	}

	rps, err := s.api.FetchQuota(ctx)
	if err != nil {
		s.logger.Warn("quota fetch failed, keeping fallback rate", zap.Error(err))
		return
	}
	s.api.ApplyQuota(rps)
	if s.cache != nil {
		if err := s.cache.SetQuota(ctx, rps); err != nil {
			s.logger.Warn("quota cache write failed", zap.Error(err))
		}
	}
}

// loadReferenceData pulls the category tree and warehouse list and
// upserts them. Reference data only labels products, so failures are
// warnings, never fatal.
func (s *Service) loadReferenceData(ctx context.Context) {
	now := time.Now()

	nodes, err := s.api.ListCategories(ctx)
	if err != nil {
		s.logger.Warn("category fetch failed", zap.Error(err))
	} else {
		refs := supplier.FlattenCategories(nodes)
		for i := range refs {
			refs[i].SeenAt = now
		}
		if err := s.refs.SaveCategories(ctx, refs); err != nil {
			s.logger.Warn("category save failed", zap.Error(err))
		}
	}

	warehouses, err := s.api.ListWarehouses(ctx)
	if err != nil {
		s.logger.Warn("warehouse fetch failed", zap.Error(err))
		return
	}
	refs := make([]supplier.WarehouseRef, 0, len(warehouses))
	for _, w := range warehouses {
		if w.WarehouseID == "" {
			continue
		}
		refs = append(refs, supplier.WarehouseRef{
			WarehouseID: w.WarehouseID,
			Code:        w.Code,
			CountryCode: w.CountryCode,
			Name:        w.Name,
			SeenAt:      now,
		})
	}
	if err := s.refs.SaveWarehouses(ctx, refs); err != nil {
		s.logger.Warn("warehouse save failed", zap.Error(err))
	}
}

// syncCountry walks the paginated catalog of one country code. The
// page cap is shared across all countries of the run. A page fetch
// failure ends this country's pass and moves on to the next country
// rather than skipping to the next page: page numbers are positional,
// so after a failed fetch the supplier may reshuffle items across the
// boundary and a blind page+1 could re-pull or miss listings. The next
// daily run picks up whatever this pass missed.
func (s *Service) syncCountry(ctx context.Context, country string, cfg *supplier.Config, summary *supplier.Summary, dropped *int) error {
	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if cfg.MaxPages > 0 && summary.PagesProcessed >= cfg.MaxPages {
			return nil
		}

		result, err := s.api.ListProducts(ctx, page, cfg.PageSize, country)
		if err != nil {
			s.logger.Warn("page fetch failed, skipping remainder of country",
				zap.String("country_code", country),
				zap.Int("page", page),
				zap.Error(err),
			)
			return nil
		}
		if result.TotalPages > 0 {
			totalPages = result.TotalPages
		}
		summary.PagesProcessed++

		for i := range result.List {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.syncItem(ctx, &result.List[i], cfg, summary, dropped)
		}
	}
	return nil
}

// syncItem runs one listing through enrichment, normalization and
// upsert. Every failure path logs and returns; one bad item never
// stops the run.
func (s *Service) syncItem(ctx context.Context, listing *supplier.RawListing, cfg *supplier.Config, summary *supplier.Summary, dropped *int) {
	if cfg.Excluded(listing.CategoryID) {
		return
	}
	if cfg.StartInventoryThreshold > 0 && listing.TotalInventory < cfg.StartInventoryThreshold {
		return
	}
	summary.RawProducts++

	enrichment, err := s.enricher.Enrich(ctx, listing)
	if err != nil {
		s.logger.Warn("enrichment failed, item skipped",
			zap.String("external_id", listing.ExternalID), zap.Error(err))
		*dropped++
		return
	}
	summary.RawVariants += len(enrichment.Variants)
	summary.RawComments += len(enrichment.Reviews)
	summary.RawStocks += len(enrichment.Stocks)
	for _, v := range enrichment.Variants {
		summary.RawStocks += len(v.Stocks)
	}

	product, ok := Normalize(NormalizeInput{
		Listing:   listing,
		Detail:    enrichment.Detail,
		Variants:  enrichment.Variants,
		Stocks:    enrichment.Stocks,
		Category:  s.lookupCategory(ctx, listing, enrichment.Detail),
		Warehouse: s.lookupWarehouse(ctx, enrichment.Stocks),
	}, NormalizeOptions{
		TitleTemplate:  s.options.TitleTemplate,
		TargetCurrency: s.options.TargetCurrency,
		ExchangeRate:   s.options.ExchangeRate,
	})
	if !ok {
		s.logger.Debug("item rejected by normalization",
			zap.String("external_id", listing.ExternalID))
		*dropped++
		return
	}

	if err := s.products.Upsert(ctx, product, s.policy); err != nil {
		s.logger.Warn("product upsert failed",
			zap.String("external_id", listing.ExternalID), zap.Error(err))
		*dropped++
		return
	}
	summary.ProductUpserts++
}

// lookupCategory resolves the listing's category id against the
// reference table. Misses and errors just mean no resolved name.
func (s *Service) lookupCategory(ctx context.Context, listing *supplier.RawListing, detail *supplier.DetailRecord) *supplier.CategoryRef {
	categoryID := listing.CategoryID
	if detail != nil && detail.CategoryID != "" {
		categoryID = detail.CategoryID
	}
	if categoryID == "" {
		return nil
	}
	ref, err := s.refs.FindCategory(ctx, categoryID)
	if err != nil {
		return nil
	}
	return ref
}

// lookupWarehouse resolves the first stock area against the warehouse
// reference table.
func (s *Service) lookupWarehouse(ctx context.Context, stocks []supplier.AreaStock) *supplier.WarehouseRef {
	if len(stocks) == 0 {
		return nil
	}
	ref, err := s.refs.FindWarehouse(ctx, stocks[0].AreaID)
	if err != nil {
		return nil
	}
	return ref
}
