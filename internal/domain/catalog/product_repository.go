package catalog

import "context"

// ProductRepository persists canonical products.
type ProductRepository interface {
	// Upsert creates the product or, when (supplier, external_id)
	// already exists, updates only the columns the policy refreshes.
	Upsert(ctx context.Context, product *Product, policy UpdatePolicy) error
	FindBySupplierExternalID(ctx context.Context, supplier, externalID string) (*Product, error)
	CountBySupplier(ctx context.Context, supplier string) (int64, error)
}
