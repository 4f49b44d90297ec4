package syncapp

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/supplier"
)

// PlaceholderImage is used as the primary image when no supplier image
// survives collection.
const PlaceholderImage = "/images/placeholder-product.png"

// DefaultTitleTemplate names a product by external id when neither the
// detail record nor the listing carries a usable title.
const DefaultTitleTemplate = "Product %s"

// NormalizeInput bundles the partial views fetched for one product.
// Any field beyond Listing may be nil or empty when its fetch failed.
type NormalizeInput struct {
	Listing   *supplier.RawListing
	Detail    *supplier.DetailRecord
	Variants  []supplier.Variant
	Stocks    []supplier.AreaStock
	Category  *supplier.CategoryRef
	Warehouse *supplier.WarehouseRef
}

// NormalizeOptions carries the caller-tunable knobs of normalization.
type NormalizeOptions struct {
	// TitleTemplate formats the fallback title from the external id.
	TitleTemplate string
	// Slug overrides slug derivation when non-empty.
	Slug string
	// DefaultPrice is used when no price resolves from the payloads.
	// Nil means priceless items are dropped.
	DefaultPrice *decimal.Decimal
	// TargetCurrency is the storefront currency, default USD.
	TargetCurrency string
	// ExchangeRate converts cost from the supplier currency into the
	// target currency. Zero means no conversion, values pass through.
	ExchangeRate decimal.Decimal
	// Now stamps LastSyncedAt; zero means time.Now.
	Now time.Time
}

// Normalize maps the merged raw payloads onto the canonical product.
// ok is false when the item must be dropped: blank identity, or no
// positive price resolves and no default is supplied. Dropping is
// routine, not an error.
func Normalize(in NormalizeInput, opts NormalizeOptions) (*catalog.Product, bool) {
	if in.Listing == nil {
		return nil, false
	}
	externalID := strings.TrimSpace(in.Listing.ExternalID)
	if externalID == "" {
		return nil, false
	}

	price, ok := supplier.ResolvePrice(supplier.PriceInput{Listing: in.Listing, Detail: in.Detail})
	if !ok {
		if opts.DefaultPrice == nil || !opts.DefaultPrice.IsPositive() {
			return nil, false
		}
		price = *opts.DefaultPrice
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	title := normalizeTitle(in, externalID, opts.TitleTemplate)
	slug := opts.Slug
	if slug == "" {
		slug = catalog.Slugify(title)
	}
	if slug == "" {
		slug = catalog.Slugify(supplier.Name + "-" + externalID)
	}

	gallery := CollectImages(in.Listing, in.Detail, in.Variants)
	image := PlaceholderImage
	if len(gallery) > 0 {
		image = gallery[0]
		gallery = gallery[1:]
	}

	p := &catalog.Product{
		Supplier:   supplier.Name,
		ExternalID: externalID,
		Slug:       slug,
		Title:      title,
		Image:      image,
		ImageAlt:   title,
		Gallery:    catalog.StringList(gallery),
		Price:      price,
		StockCount: aggregateStock(in),
		SKU:        strings.TrimSpace(in.Listing.SKU),
		// Refreshed imports always start hidden until an operator
		// promotes them.
		VisiblePrimary:   false,
		VisibleSecondary: false,
		LastSyncedAt:     now,
	}

	if in.Detail != nil {
		p.Description = in.Detail.Description
	}

	if cost, ok := supplier.ResolveCost(supplier.PriceInput{Listing: in.Listing, Detail: in.Detail}); ok {
		converted := convertCurrency(cost, sourceCurrency(in), opts)
		p.CostPrice = &converted
	}

	if compare, ok := in.Listing.SellPrice.Decimal(); ok && compare.GreaterThan(price) {
		p.CompareAtPrice = &compare
	}

	p.CategoryExternalID = strings.TrimSpace(in.Listing.CategoryID)
	p.CategoryName = strings.TrimSpace(in.Listing.CategoryName)
	if in.Detail != nil && in.Detail.CategoryID != "" {
		p.CategoryExternalID = in.Detail.CategoryID
	}
	if in.Category != nil && in.Category.Name != "" {
		p.CategoryName = in.Category.Name
	}

	p.SourceURL = in.Listing.SourceURL
	if in.Detail != nil && in.Detail.SourceURL != "" {
		p.SourceURL = in.Detail.SourceURL
	}

	if len(in.Stocks) > 0 {
		p.WarehouseID = in.Stocks[0].AreaID
		p.WarehouseName = in.Stocks[0].AreaName
	}
	if in.Warehouse != nil {
		p.WarehouseID = in.Warehouse.WarehouseID
		p.WarehouseCode = in.Warehouse.Code
		if in.Warehouse.Name != "" {
			p.WarehouseName = in.Warehouse.Name
		}
	}

	p.Tags = normalizeTags(
		p.CategoryName,
		detailField(in, func(d *supplier.DetailRecord) string { return d.Material }),
		detailField(in, func(d *supplier.DetailRecord) string { return d.ProductType }),
	)
	p.Variants = normalizeVariants(in.Variants)
	p.SupplierAttributes = normalizeAttributes(in)

	return p, true
}

// normalizeTitle prefers the detail name, then the listing name, then
// the fallback template applied to the external id.
func normalizeTitle(in NormalizeInput, externalID, template string) string {
	if in.Detail != nil {
		if t := strings.TrimSpace(in.Detail.Name); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(in.Listing.Name); t != "" {
		return t
	}
	if template == "" {
		template = DefaultTitleTemplate
	}
	return fmt.Sprintf(template, externalID)
}

// aggregateStock sums per-region inventory. Product-level area stock
// wins when present, then per-variant country stock, then the
// listing's own counter.
func aggregateStock(in NormalizeInput) int {
	if len(in.Stocks) > 0 {
		total := 0
		for _, s := range in.Stocks {
			total += s.TotalInventory
		}
		return total
	}

	total := 0
	found := false
	for _, v := range in.Variants {
		for _, s := range v.Stocks {
			total += s.TotalInventory
			found = true
		}
	}
	if found {
		return total
	}

	return in.Listing.TotalInventory
}

// normalizeTags trims, drops empties and deduplicates, keeping order.
func normalizeTags(candidates ...string) catalog.StringList {
	seen := make(map[string]struct{}, len(candidates))
	out := make(catalog.StringList, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// normalizeVariants folds supplier variants into the inline canonical
// shape. Variants without a positive price keep zero and are left to
// the storefront to price off the product.
func normalizeVariants(variants []supplier.Variant) catalog.VariantList {
	out := make(catalog.VariantList, 0, len(variants))
	for _, v := range variants {
		if v.VariantID == "" {
			continue
		}
		price, ok := v.SellPrice.Decimal()
		if !ok || !price.IsPositive() {
			if alt, altOK := v.SuggestPrice.Decimal(); altOK && alt.IsPositive() {
				price = alt
			} else {
				price = decimal.Zero
			}
		}
		stock := 0
		for _, s := range v.Stocks {
			stock += s.TotalInventory
		}
		out = append(out, catalog.Variant{
			ExternalID: v.VariantID,
			SKU:        v.SKU,
			Key:        v.Key,
			Image:      v.Image,
			Price:      price,
			Stock:      stock,
		})
	}
	return out
}

// normalizeAttributes carries supplier fields with no canonical column
// into the passthrough bag.
func normalizeAttributes(in NormalizeInput) catalog.AttributeMap {
	attrs := catalog.AttributeMap{}
	put := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			attrs[key] = value
		}
	}
	put("currency", sourceCurrency(in))
	if in.Detail != nil {
		put("weight", string(in.Detail.Weight))
		put("packing_weight", string(in.Detail.PackWeight))
		put("material", in.Detail.Material)
		put("product_type", in.Detail.ProductType)
	}
	return attrs
}

// sourceCurrency prefers the detail's currency over the listing's.
func sourceCurrency(in NormalizeInput) string {
	if in.Detail != nil && in.Detail.Currency != "" {
		return in.Detail.Currency
	}
	return in.Listing.Currency
}

// convertCurrency converts a supplier-currency amount into the target
// currency using the fixed configured rate. Without a rate, or when
// the currencies already match, the value passes through unchanged.
func convertCurrency(amount decimal.Decimal, currency string, opts NormalizeOptions) decimal.Decimal {
	target := opts.TargetCurrency
	if target == "" {
		target = "USD"
	}
	if currency == "" || strings.EqualFold(currency, target) {
		return amount
	}
	if !opts.ExchangeRate.IsPositive() {
		return amount
	}
	return amount.Mul(opts.ExchangeRate).Round(2)
}

// detailField reads one string off the detail record, tolerating nil.
func detailField(in NormalizeInput, get func(*supplier.DetailRecord) string) string {
	if in.Detail == nil {
		return ""
	}
	return get(in.Detail)
}
