package supplier

import "github.com/shopspring/decimal"

// PriceInput bundles the partial views a price can be read from. Either
// field may be nil when the corresponding fetch failed.
type PriceInput struct {
	Listing *RawListing
	Detail  *DetailRecord
}

// PriceExtractor is one named step of the price precedence chain. Each
// extractor either yields a value or passes to the next.
type PriceExtractor struct {
	Name    string
	Extract func(in PriceInput) (decimal.Decimal, bool)
}

// priceExtractors is the selling-price precedence: the detail record is
// authoritative, then the listing's promotional fields, then its base
// sell price.
var priceExtractors = []PriceExtractor{
	{"detail_sell", func(in PriceInput) (decimal.Decimal, bool) {
		if in.Detail == nil {
			return decimal.Decimal{}, false
		}
		return in.Detail.SellPrice.Decimal()
	}},
	{"listing_now", func(in PriceInput) (decimal.Decimal, bool) {
		if in.Listing == nil {
			return decimal.Decimal{}, false
		}
		return in.Listing.NowPrice.Decimal()
	}},
	{"listing_discount", func(in PriceInput) (decimal.Decimal, bool) {
		if in.Listing == nil {
			return decimal.Decimal{}, false
		}
		return in.Listing.DiscountPrice.Decimal()
	}},
	{"listing_sell", func(in PriceInput) (decimal.Decimal, bool) {
		if in.Listing == nil {
			return decimal.Decimal{}, false
		}
		return in.Listing.SellPrice.Decimal()
	}},
}

// ResolvePrice walks the extractor chain and returns the first positive
// value. ok is false when no extractor yields one.
func ResolvePrice(in PriceInput) (decimal.Decimal, bool) {
	for _, ex := range priceExtractors {
		if v, ok := ex.Extract(in); ok && v.IsPositive() {
			return v, true
		}
	}
	return decimal.Decimal{}, false
}

// ResolveCost returns the authoritative cost field when present,
// otherwise falls back to the selling-price precedence. Currency
// conversion is the normalizer's concern, not this function's.
func ResolveCost(in PriceInput) (decimal.Decimal, bool) {
	if in.Detail != nil {
		if v, ok := in.Detail.CostPrice.Decimal(); ok && v.IsPositive() {
			return v, true
		}
	}
	return ResolvePrice(in)
}
