package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// Upsert creates the product or updates an existing row with the same
// (supplier, external_id). The conflict branch only assigns the columns
// the policy refreshes, so merchant-edited fields survive a resync.
func (r *GormProductRepository) Upsert(ctx context.Context, product *catalog.Product, policy catalog.UpdatePolicy) error {
	if err := product.Validate(); err != nil {
		return err
	}
	if product.ID == uuid.Nil {
		product.BaseEntity = shared.NewBaseEntity()
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "supplier"},
			{Name: "external_id"},
		},
		DoUpdates: clause.AssignmentColumns(policy.RefreshColumns()),
	}).Create(product).Error
}

// FindBySupplierExternalID finds a product by its supplier identity
func (r *GormProductRepository) FindBySupplierExternalID(ctx context.Context, supplier, externalID string) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).
		Where("supplier = ? AND external_id = ?", supplier, externalID).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// CountBySupplier counts products imported from one supplier
func (r *GormProductRepository) CountBySupplier(ctx context.Context, supplier string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&catalog.Product{}).
		Where("supplier = ?", supplier).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
