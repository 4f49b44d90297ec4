package supplier

import "time"

// Sync defaults.
const (
	DefaultPageSize    = 40
	DefaultCountryCode = "US"
)

// Config is the caller-supplied configuration of one sync run.
type Config struct {
	PageSize int `json:"page_size"`
	// MaxPages caps pages across the whole run, shared by all country
	// codes: a cap of 5 can be exhausted entirely by the first country.
	// Zero means no cap.
	MaxPages                int      `json:"max_pages"`
	CountryCodes            []string `json:"country_codes"`
	ExcludeCategoryIDs      []string `json:"exclude_category_ids"`
	StartInventoryThreshold int      `json:"start_inventory_threshold"`
}

// ApplyDefaults fills the zero values a caller may omit.
func (c *Config) ApplyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if len(c.CountryCodes) == 0 {
		c.CountryCodes = []string{DefaultCountryCode}
	}
}

// Excluded reports whether a category id is filtered out of this run.
func (c *Config) Excluded(categoryID string) bool {
	for _, id := range c.ExcludeCategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Summary accumulates the counters of one sync run. Item-level failures
// do not appear here; they only show as absent upserts.
type Summary struct {
	PagesProcessed int       `json:"pages_processed"`
	RawProducts    int       `json:"raw_products"`
	RawVariants    int       `json:"raw_variants"`
	RawStocks      int       `json:"raw_stocks"`
	RawComments    int       `json:"raw_comments"`
	ProductUpserts int       `json:"product_upserts"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}
