package telemetry

import (
	"context"
	"time"
)

// SyncMetrics groups the counters emitted by the catalog sync pipeline.
type SyncMetrics struct {
	PagesFetched  *Counter
	ProductsSeen  *Counter
	Upserts       *Counter
	ItemsDropped  *Counter
	RateLimitHits *Counter
	RunDuration   *Histogram
}

// NewSyncMetrics creates the sync metric instruments on the given provider.
func NewSyncMetrics(mp *MeterProvider) (*SyncMetrics, error) {
	meter := mp.Meter("catalog_sync")

	pages, err := NewCounter(meter, "sync.pages_fetched", "Catalog pages fetched from the supplier", "{page}")
	if err != nil {
		return nil, err
	}
	products, err := NewCounter(meter, "sync.products_seen", "Raw product listings seen", "{product}")
	if err != nil {
		return nil, err
	}
	upserts, err := NewCounter(meter, "sync.product_upserts", "Canonical product upserts performed", "{product}")
	if err != nil {
		return nil, err
	}
	dropped, err := NewCounter(meter, "sync.items_dropped", "Listings dropped by normalization or enrichment failure", "{product}")
	if err != nil {
		return nil, err
	}
	rateLimited, err := NewCounter(meter, "sync.rate_limit_hits", "Requests answered with HTTP 429 by the supplier", "{request}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, "sync.run_duration", "Wall-clock duration of complete sync runs", "s")
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		PagesFetched:  pages,
		ProductsSeen:  products,
		Upserts:       upserts,
		ItemsDropped:  dropped,
		RateLimitHits: rateLimited,
		RunDuration:   duration,
	}, nil
}

// RecordRun records the aggregate counters of one completed run.
func (m *SyncMetrics) RecordRun(ctx context.Context, pages, products, upserts, dropped int, elapsed time.Duration) {
	m.PagesFetched.Add(ctx, int64(pages))
	m.ProductsSeen.Add(ctx, int64(products))
	m.Upserts.Add(ctx, int64(upserts))
	m.ItemsDropped.Add(ctx, int64(dropped))
	m.RunDuration.RecordDuration(ctx, elapsed)
}
