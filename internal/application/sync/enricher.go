package syncapp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/supplier"
)

// reviewPageSize bounds how many recent reviews are pulled per product.
const reviewPageSize = 20

// Enrichment is the result of one product's fan-out: the detail record
// plus the three sub-resources, any of which may be missing when its
// fetch failed.
type Enrichment struct {
	Detail   *supplier.DetailRecord
	Variants []supplier.Variant
	Stocks   []supplier.AreaStock
	Reviews  []supplier.Review
}

// Enricher fetches the per-product sub-resources and persists their
// raw snapshots. Each of the four calls fails independently; a failed
// call logs a warning and leaves its slot empty so normalization can
// proceed on partial data.
type Enricher struct {
	api       CatalogAPI
	snapshots supplier.SnapshotRepository
	logger    *zap.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(api CatalogAPI, snapshots supplier.SnapshotRepository, logger *zap.Logger) *Enricher {
	return &Enricher{
		api:       api,
		snapshots: snapshots,
		logger:    logger.Named("enricher"),
	}
}

// Enrich fans out the detail, variant, stock and review fetches for
// one listing and snapshots whatever came back. The listing itself is
// snapshotted first so even a fully failed fan-out leaves a trace.
func (e *Enricher) Enrich(ctx context.Context, listing *supplier.RawListing) (*Enrichment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.snapshotListing(ctx, listing); err != nil {
		return nil, err
	}

	result := &Enrichment{}
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		detail, err := e.api.GetProductDetail(ctx, listing.ExternalID)
		if err != nil {
			e.logger.Warn("detail fetch failed",
				zap.String("external_id", listing.ExternalID), zap.Error(err))
			return
		}
		result.Detail = detail
	}()

	go func() {
		defer wg.Done()
		variants, err := e.api.ListVariants(ctx, listing.ExternalID)
		if err != nil {
			e.logger.Warn("variant fetch failed",
				zap.String("external_id", listing.ExternalID), zap.Error(err))
			return
		}
		result.Variants = variants
	}()

	go func() {
		defer wg.Done()
		stocks, err := e.api.GetProductStock(ctx, listing.ExternalID)
		if err != nil {
			e.logger.Warn("stock fetch failed",
				zap.String("external_id", listing.ExternalID), zap.Error(err))
			return
		}
		result.Stocks = stocks
	}()

	go func() {
		defer wg.Done()
		reviews, err := e.api.ListReviews(ctx, listing.ExternalID, reviewPageSize)
		if err != nil {
			e.logger.Warn("review fetch failed",
				zap.String("external_id", listing.ExternalID), zap.Error(err))
			return
		}
		result.Reviews = reviews
	}()

	wg.Wait()

	e.snapshotEnrichment(ctx, listing.ExternalID, result)
	return result, nil
}

// snapshotListing stores the verbatim catalog-page entry.
func (e *Enricher) snapshotListing(ctx context.Context, listing *supplier.RawListing) error {
	payload, err := json.Marshal(listing)
	if err != nil {
		return err
	}
	return e.snapshots.SaveListing(ctx, &supplier.ListingSnapshot{
		ExternalID: listing.ExternalID,
		Payload:    supplier.RawJSON(payload),
		SeenAt:     time.Now(),
	})
}

// snapshotEnrichment persists the fetched sub-resources. Snapshot
// write failures are logged and swallowed so normalization still runs.
func (e *Enricher) snapshotEnrichment(ctx context.Context, externalID string, result *Enrichment) {
	now := time.Now()

	if len(result.Variants) > 0 {
		snaps := make([]supplier.VariantSnapshot, 0, len(result.Variants))
		for _, v := range result.Variants {
			if v.VariantID == "" {
				continue
			}
			payload, err := json.Marshal(v)
			if err != nil {
				continue
			}
			snaps = append(snaps, supplier.VariantSnapshot{
				VariantID:  v.VariantID,
				ExternalID: externalID,
				Payload:    supplier.RawJSON(payload),
				SeenAt:     now,
			})
		}
		if err := e.snapshots.SaveVariants(ctx, snaps); err != nil {
			e.logger.Warn("variant snapshot failed",
				zap.String("external_id", externalID), zap.Error(err))
		}
	}

	var stockSnaps []supplier.StockSnapshot
	for _, s := range result.Stocks {
		payload, err := json.Marshal(s)
		if err != nil {
			continue
		}
		stockSnaps = append(stockSnaps, supplier.StockSnapshot{
			OwnerID:        externalID,
			AreaID:         s.AreaID,
			TotalInventory: s.TotalInventory,
			Payload:        supplier.RawJSON(payload),
			SeenAt:         now,
		})
	}
	// Variant-level country stock shares the same table, keyed by the
	// owning variant id plus country code.
	for _, v := range result.Variants {
		for _, s := range v.Stocks {
			payload, err := json.Marshal(s)
			if err != nil {
				continue
			}
			stockSnaps = append(stockSnaps, supplier.StockSnapshot{
				OwnerID:        v.VariantID,
				AreaID:         s.CountryCode,
				TotalInventory: s.TotalInventory,
				Payload:        supplier.RawJSON(payload),
				SeenAt:         now,
			})
		}
	}
	if len(stockSnaps) > 0 {
		if err := e.snapshots.SaveStocks(ctx, stockSnaps); err != nil {
			e.logger.Warn("stock snapshot failed",
				zap.String("external_id", externalID), zap.Error(err))
		}
	}

	if len(result.Reviews) > 0 {
		snaps := make([]supplier.ReviewSnapshot, 0, len(result.Reviews))
		for _, r := range result.Reviews {
			if r.ReviewID == "" {
				continue
			}
			payload, err := json.Marshal(r)
			if err != nil {
				continue
			}
			snaps = append(snaps, supplier.ReviewSnapshot{
				ReviewID:   r.ReviewID,
				ExternalID: externalID,
				Payload:    supplier.RawJSON(payload),
				SeenAt:     now,
			})
		}
		if err := e.snapshots.SaveReviews(ctx, snaps); err != nil {
			e.logger.Warn("review snapshot failed",
				zap.String("external_id", externalID), zap.Error(err))
		}
	}
}
