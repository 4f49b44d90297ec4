package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/supplier"
)

// newTestDB opens an in-memory sqlite database with the sync schema.
// It exercises the same upsert clauses the postgres repositories use.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&catalog.Product{},
		&supplier.ListingSnapshot{},
		&supplier.VariantSnapshot{},
		&supplier.StockSnapshot{},
		&supplier.ReviewSnapshot{},
		&supplier.CategoryRef{},
		&supplier.WarehouseRef{},
	))

	return db
}
