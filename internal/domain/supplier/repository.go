package supplier

import "context"

// SnapshotRepository stores verbatim supplier payloads, overwriting any
// previously seen row with the same key.
type SnapshotRepository interface {
	SaveListing(ctx context.Context, snap *ListingSnapshot) error
	SaveVariants(ctx context.Context, snaps []VariantSnapshot) error
	SaveStocks(ctx context.Context, snaps []StockSnapshot) error
	SaveReviews(ctx context.Context, snaps []ReviewSnapshot) error
}

// ReferenceRepository stores the flattened category tree and warehouse
// list used to resolve ids to display names.
type ReferenceRepository interface {
	SaveCategories(ctx context.Context, refs []CategoryRef) error
	SaveWarehouses(ctx context.Context, refs []WarehouseRef) error
	FindCategory(ctx context.Context, categoryID string) (*CategoryRef, error)
	FindWarehouse(ctx context.Context, warehouseID string) (*WarehouseRef, error)
}
