package syncapp

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/supplier"
)

func baseListing() *supplier.RawListing {
	return &supplier.RawListing{
		ExternalID:     "P-100",
		Name:           "Santa Hat! Deluxe",
		SKU:            "SKU-100",
		Image:          "https://cdn.example.com/hat.jpg",
		SellPrice:      "12.50",
		Currency:       "USD",
		TotalInventory: 15,
		CategoryID:     "C-1",
		CategoryName:   "Hats",
	}
}

func TestNormalize(t *testing.T) {
	t.Run("should reject listing without any resolvable price", func(t *testing.T) {
		listing := baseListing()
		listing.SellPrice = ""
		listing.NowPrice = ""
		listing.DiscountPrice = ""

		p, ok := Normalize(NormalizeInput{Listing: listing}, NormalizeOptions{})

		assert.False(t, ok)
		assert.Nil(t, p)
	})

	t.Run("should use caller default when no price resolves", func(t *testing.T) {
		listing := baseListing()
		listing.SellPrice = "0"
		fallback := decimal.NewFromFloat(4.99)

		p, ok := Normalize(NormalizeInput{Listing: listing}, NormalizeOptions{DefaultPrice: &fallback})

		require.True(t, ok)
		assert.True(t, p.Price.Equal(fallback))
	})

	t.Run("should reject blank external id", func(t *testing.T) {
		listing := baseListing()
		listing.ExternalID = "  "

		_, ok := Normalize(NormalizeInput{Listing: listing}, NormalizeOptions{})

		assert.False(t, ok)
	})

	t.Run("should prefer discount price over plain sell price", func(t *testing.T) {
		listing := baseListing()
		listing.DiscountPrice = "9.99"

		p, ok := Normalize(NormalizeInput{Listing: listing}, NormalizeOptions{})

		require.True(t, ok)
		assert.True(t, p.Price.Equal(decimal.RequireFromString("9.99")))
	})

	t.Run("should treat detail price as authoritative", func(t *testing.T) {
		listing := baseListing()
		listing.DiscountPrice = "9.99"
		detail := &supplier.DetailRecord{ExternalID: "P-100", SellPrice: "11.25"}

		p, ok := Normalize(NormalizeInput{Listing: listing, Detail: detail}, NormalizeOptions{})

		require.True(t, ok)
		assert.True(t, p.Price.Equal(decimal.RequireFromString("11.25")))
	})

	t.Run("should set compare-at only when strictly above resolved price", func(t *testing.T) {
		discounted := baseListing()
		discounted.DiscountPrice = "9.99"

		p, ok := Normalize(NormalizeInput{Listing: discounted}, NormalizeOptions{})
		require.True(t, ok)
		require.NotNil(t, p.CompareAtPrice)
		assert.True(t, p.CompareAtPrice.Equal(decimal.RequireFromString("12.50")))

		plain := baseListing()
		p, ok = Normalize(NormalizeInput{Listing: plain}, NormalizeOptions{})
		require.True(t, ok)
		assert.Nil(t, p.CompareAtPrice)
	})

	t.Run("should slugify the title", func(t *testing.T) {
		p, ok := Normalize(NormalizeInput{Listing: baseListing()}, NormalizeOptions{})

		require.True(t, ok)
		assert.Equal(t, "santa-hat-deluxe", p.Slug)
	})

	t.Run("should honor explicit slug override", func(t *testing.T) {
		p, ok := Normalize(NormalizeInput{Listing: baseListing()}, NormalizeOptions{Slug: "custom-slug"})

		require.True(t, ok)
		assert.Equal(t, "custom-slug", p.Slug)
	})

	t.Run("should fall back to templated title from external id", func(t *testing.T) {
		listing := baseListing()
		listing.Name = ""

		p, ok := Normalize(NormalizeInput{Listing: listing}, NormalizeOptions{TitleTemplate: "Imported item %s"})

		require.True(t, ok)
		assert.Equal(t, "Imported item P-100", p.Title)
		assert.Equal(t, "imported-item-p-100", p.Slug)
	})

	t.Run("should sum area stock entries", func(t *testing.T) {
		stocks := []supplier.AreaStock{
			{AreaID: "A1", TotalInventory: 5},
			{AreaID: "A2", TotalInventory: 3},
		}

		p, ok := Normalize(NormalizeInput{Listing: baseListing(), Stocks: stocks}, NormalizeOptions{})

		require.True(t, ok)
		assert.Equal(t, 8, p.StockCount)
	})

	t.Run("should sum variant country stock when area stock is absent", func(t *testing.T) {
		variants := []supplier.Variant{
			{VariantID: "V1", Stocks: []supplier.CountryStock{{CountryCode: "US", TotalInventory: 4}}},
			{VariantID: "V2", Stocks: []supplier.CountryStock{{CountryCode: "US", TotalInventory: 6}}},
		}

		p, ok := Normalize(NormalizeInput{Listing: baseListing(), Variants: variants}, NormalizeOptions{})

		require.True(t, ok)
		assert.Equal(t, 10, p.StockCount)
	})

	t.Run("should fall back to listing inventory when no stock shape has data", func(t *testing.T) {
		p, ok := Normalize(NormalizeInput{Listing: baseListing()}, NormalizeOptions{})

		require.True(t, ok)
		assert.Equal(t, 15, p.StockCount)
	})

	t.Run("should exclude the primary image from the gallery", func(t *testing.T) {
		listing := baseListing()
		detail := &supplier.DetailRecord{
			ImageSet: []byte(`["https://cdn.example.com/hat.jpg","https://cdn.example.com/hat-side.jpg"]`),
		}

		p, ok := Normalize(NormalizeInput{Listing: listing, Detail: detail}, NormalizeOptions{})

		require.True(t, ok)
		assert.Equal(t, "https://cdn.example.com/hat.jpg", p.Image)
		assert.Equal(t, []string{"https://cdn.example.com/hat-side.jpg"}, []string(p.Gallery))
		assert.NotContains(t, p.Gallery, p.Image)
	})

	t.Run("should use placeholder when no image survives collection", func(t *testing.T) {
		listing := baseListing()
		listing.Image = ""

		p, ok := Normalize(NormalizeInput{Listing: listing}, NormalizeOptions{})

		require.True(t, ok)
		assert.Equal(t, PlaceholderImage, p.Image)
		assert.Empty(t, p.Gallery)
	})

	t.Run("should convert cost into target currency with fixed rate", func(t *testing.T) {
		listing := baseListing()
		listing.Currency = "CNY"
		detail := &supplier.DetailRecord{ExternalID: "P-100", CostPrice: "10", Currency: "CNY"}

		p, ok := Normalize(NormalizeInput{Listing: listing, Detail: detail}, NormalizeOptions{
			TargetCurrency: "USD",
			ExchangeRate:   decimal.RequireFromString("0.14"),
		})

		require.True(t, ok)
		require.NotNil(t, p.CostPrice)
		assert.True(t, p.CostPrice.Equal(decimal.RequireFromString("1.40")), "got %s", p.CostPrice)
	})

	t.Run("should pass cost through when no rate is configured", func(t *testing.T) {
		listing := baseListing()
		listing.Currency = "CNY"
		detail := &supplier.DetailRecord{ExternalID: "P-100", CostPrice: "10", Currency: "CNY"}

		p, ok := Normalize(NormalizeInput{Listing: listing, Detail: detail}, NormalizeOptions{})

		require.True(t, ok)
		require.NotNil(t, p.CostPrice)
		assert.True(t, p.CostPrice.Equal(decimal.NewFromInt(10)))
	})

	t.Run("should not convert when currencies already match", func(t *testing.T) {
		detail := &supplier.DetailRecord{ExternalID: "P-100", CostPrice: "10", Currency: "USD"}

		p, ok := Normalize(NormalizeInput{Listing: baseListing(), Detail: detail}, NormalizeOptions{
			TargetCurrency: "USD",
			ExchangeRate:   decimal.RequireFromString("0.14"),
		})

		require.True(t, ok)
		require.NotNil(t, p.CostPrice)
		assert.True(t, p.CostPrice.Equal(decimal.NewFromInt(10)))
	})

	t.Run("should always reset region visibility", func(t *testing.T) {
		p, ok := Normalize(NormalizeInput{Listing: baseListing()}, NormalizeOptions{})

		require.True(t, ok)
		assert.False(t, p.VisiblePrimary)
		assert.False(t, p.VisibleSecondary)
	})

	t.Run("should shape variants with summed stock and fallback price", func(t *testing.T) {
		variants := []supplier.Variant{
			{
				VariantID: "V1",
				SKU:       "SKU-V1",
				Key:       "Red-L",
				SellPrice: "13.00",
				Stocks: []supplier.CountryStock{
					{CountryCode: "US", TotalInventory: 2},
					{CountryCode: "DE", TotalInventory: 1},
				},
			},
			{VariantID: "V2", SKU: "SKU-V2", SellPrice: "", SuggestPrice: "15.50"},
			{VariantID: "", SKU: "ignored"},
		}

		p, ok := Normalize(NormalizeInput{Listing: baseListing(), Variants: variants}, NormalizeOptions{})

		require.True(t, ok)
		require.Len(t, p.Variants, 2)
		assert.Equal(t, "V1", p.Variants[0].ExternalID)
		assert.Equal(t, 3, p.Variants[0].Stock)
		assert.True(t, p.Variants[1].Price.Equal(decimal.RequireFromString("15.50")))
	})

	t.Run("should clean and deduplicate tags", func(t *testing.T) {
		listing := baseListing()
		detail := &supplier.DetailRecord{
			ExternalID:  "P-100",
			Material:    " Cotton ",
			ProductType: "Hats",
		}

		p, ok := Normalize(NormalizeInput{Listing: listing, Detail: detail}, NormalizeOptions{})

		require.True(t, ok)
		assert.Equal(t, []string{"Hats", "Cotton"}, []string(p.Tags))
	})

	t.Run("should resolve category and warehouse names from references", func(t *testing.T) {
		p, ok := Normalize(NormalizeInput{
			Listing:   baseListing(),
			Stocks:    []supplier.AreaStock{{AreaID: "W-1", AreaName: "US East", TotalInventory: 9}},
			Category:  &supplier.CategoryRef{CategoryID: "C-1", Name: "Festive Hats"},
			Warehouse: &supplier.WarehouseRef{WarehouseID: "W-1", Code: "USE", CountryCode: "US", Name: "US Eastern"},
		}, NormalizeOptions{})

		require.True(t, ok)
		assert.Equal(t, "Festive Hats", p.CategoryName)
		assert.Equal(t, "W-1", p.WarehouseID)
		assert.Equal(t, "USE", p.WarehouseCode)
		assert.Equal(t, "US Eastern", p.WarehouseName)
	})

	t.Run("should stamp identity and sync time", func(t *testing.T) {
		now := time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)

		p, ok := Normalize(NormalizeInput{Listing: baseListing()}, NormalizeOptions{Now: now})

		require.True(t, ok)
		assert.Equal(t, supplier.Name, p.Supplier)
		assert.Equal(t, "P-100", p.ExternalID)
		assert.Equal(t, now, p.LastSyncedAt)
		assert.NoError(t, p.Validate())
	})
}
