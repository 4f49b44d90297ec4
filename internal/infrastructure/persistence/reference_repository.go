package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/supplier"
)

// GormReferenceRepository implements supplier.ReferenceRepository using GORM
type GormReferenceRepository struct {
	db *gorm.DB
}

// NewGormReferenceRepository creates a new GormReferenceRepository
func NewGormReferenceRepository(db *gorm.DB) *GormReferenceRepository {
	return &GormReferenceRepository{db: db}
}

// SaveCategories upserts the flattened category tree
func (r *GormReferenceRepository) SaveCategories(ctx context.Context, refs []supplier.CategoryRef) error {
	if len(refs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category_id"}},
		UpdateAll: true,
	}).Create(&refs).Error
}

// SaveWarehouses upserts the warehouse/region list
func (r *GormReferenceRepository) SaveWarehouses(ctx context.Context, refs []supplier.WarehouseRef) error {
	if len(refs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "warehouse_id"}},
		UpdateAll: true,
	}).Create(&refs).Error
}

// FindCategory finds one category reference by its supplier id
func (r *GormReferenceRepository) FindCategory(ctx context.Context, categoryID string) (*supplier.CategoryRef, error) {
	var ref supplier.CategoryRef
	if err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ref, nil
}

// FindWarehouse finds one warehouse reference by its supplier id
func (r *GormReferenceRepository) FindWarehouse(ctx context.Context, warehouseID string) (*supplier.WarehouseRef, error) {
	var ref supplier.WarehouseRef
	if err := r.db.WithContext(ctx).
		Where("warehouse_id = ?", warehouseID).
		First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ref, nil
}

// Ensure GormReferenceRepository implements ReferenceRepository
var _ supplier.ReferenceRepository = (*GormReferenceRepository)(nil)
