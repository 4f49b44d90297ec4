package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront/backend/internal/domain/supplier"
)

// GormSnapshotRepository implements supplier.SnapshotRepository using
// GORM. Every save overwrites the previously seen row with the same
// key; snapshots keep no history.
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository creates a new GormSnapshotRepository
func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	return &GormSnapshotRepository{db: db}
}

// SaveListing upserts one raw catalog-page entry
func (r *GormSnapshotRepository) SaveListing(ctx context.Context, snap *supplier.ListingSnapshot) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		UpdateAll: true,
	}).Create(snap).Error
}

// SaveVariants upserts a batch of raw variant payloads
func (r *GormSnapshotRepository) SaveVariants(ctx context.Context, snaps []supplier.VariantSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "variant_id"}},
		UpdateAll: true,
	}).Create(&snaps).Error
}

// SaveStocks upserts a batch of stock entries keyed by owner plus area
func (r *GormSnapshotRepository) SaveStocks(ctx context.Context, snaps []supplier.StockSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "area_id"}},
		UpdateAll: true,
	}).Create(&snaps).Error
}

// SaveReviews upserts a batch of raw review payloads
func (r *GormSnapshotRepository) SaveReviews(ctx context.Context, snaps []supplier.ReviewSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "review_id"}},
		UpdateAll: true,
	}).Create(&snaps).Error
}

// Ensure GormSnapshotRepository implements SnapshotRepository
var _ supplier.SnapshotRepository = (*GormSnapshotRepository)(nil)
