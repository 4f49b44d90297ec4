package dto

import (
	"time"

	"github.com/storefront/backend/internal/domain/supplier"
)

// TriggerSyncRequest is the body of a manual sync trigger. All fields
// are optional; omitted values fall back to the configured defaults.
type TriggerSyncRequest struct {
	PageSize                int      `json:"page_size" binding:"omitempty,min=1,max=200"`
	MaxPages                int      `json:"max_pages" binding:"omitempty,min=1"`
	CountryCodes            []string `json:"country_codes" binding:"omitempty,dive,country_code"`
	ExcludeCategoryIDs      []string `json:"exclude_category_ids" binding:"omitempty,dive,min=1"`
	StartInventoryThreshold int      `json:"start_inventory_threshold" binding:"omitempty,min=0"`
}

// ToConfig converts the request into a run configuration
func (r *TriggerSyncRequest) ToConfig() supplier.Config {
	return supplier.Config{
		PageSize:                r.PageSize,
		MaxPages:                r.MaxPages,
		CountryCodes:            r.CountryCodes,
		ExcludeCategoryIDs:      r.ExcludeCategoryIDs,
		StartInventoryThreshold: r.StartInventoryThreshold,
	}
}

// TriggerSyncResponse acknowledges an accepted sync job.
type TriggerSyncResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at,omitempty"`
}

// SyncSummaryResponse mirrors the run counters of one sync pass.
type SyncSummaryResponse struct {
	PagesProcessed int    `json:"pages_processed"`
	RawProducts    int    `json:"raw_products"`
	RawVariants    int    `json:"raw_variants"`
	RawStocks      int    `json:"raw_stocks"`
	RawComments    int    `json:"raw_comments"`
	ProductUpserts int    `json:"product_upserts"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at,omitempty"`
	DurationMs     int64  `json:"duration_ms,omitempty"`
}

// SyncStatusResponse reports whether a run is active plus the latest
// completed summary, if any.
type SyncStatusResponse struct {
	Running     bool                 `json:"running"`
	LastSummary *SyncSummaryResponse `json:"last_summary,omitempty"`
}

// NewSyncSummaryResponse converts a domain summary to its API shape
func NewSyncSummaryResponse(s *supplier.Summary) *SyncSummaryResponse {
	if s == nil {
		return nil
	}
	resp := &SyncSummaryResponse{
		PagesProcessed: s.PagesProcessed,
		RawProducts:    s.RawProducts,
		RawVariants:    s.RawVariants,
		RawStocks:      s.RawStocks,
		RawComments:    s.RawComments,
		ProductUpserts: s.ProductUpserts,
		StartedAt:      s.StartedAt.Format(time.RFC3339),
	}
	if !s.FinishedAt.IsZero() {
		resp.FinishedAt = s.FinishedAt.Format(time.RFC3339)
		resp.DurationMs = s.FinishedAt.Sub(s.StartedAt).Milliseconds()
	}
	return resp
}
