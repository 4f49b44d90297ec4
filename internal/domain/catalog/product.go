package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/shared"
)

// Product is the canonical product record the storefront reads from.
// It is assembled by the normalizer from supplier payloads and is the
// aggregate root for catalog persistence. Sync never deletes products;
// items missing from a later supplier pull simply stop being refreshed.
type Product struct {
	shared.BaseEntity
	Supplier   string `gorm:"type:varchar(50);not null;uniqueIndex:idx_products_supplier_external,priority:1"`
	ExternalID string `gorm:"type:varchar(100);not null;uniqueIndex:idx_products_supplier_external,priority:2"`

	Slug        string `gorm:"type:varchar(300);not null;index"`
	Title       string `gorm:"type:varchar(500);not null"`
	Description string `gorm:"type:text"`

	Image    string     `gorm:"type:text"`
	ImageAlt string     `gorm:"type:varchar(500)"`
	Gallery  StringList `gorm:"type:jsonb"`

	Price          decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	CompareAtPrice *decimal.Decimal `gorm:"type:decimal(18,4)"`
	CostPrice      *decimal.Decimal `gorm:"type:decimal(18,4)"`

	StockCount int    `gorm:"not null;default:0"`
	SKU        string `gorm:"type:varchar(100)"`

	WarehouseID   string `gorm:"type:varchar(100)"`
	WarehouseCode string `gorm:"type:varchar(100)"`
	WarehouseName string `gorm:"type:varchar(200)"`

	SourceURL          string `gorm:"type:text"`
	CategoryExternalID string `gorm:"type:varchar(100);index"`
	CategoryName       string `gorm:"type:varchar(200)"`

	Tags               StringList   `gorm:"type:jsonb"`
	Variants           VariantList  `gorm:"type:jsonb"`
	SupplierAttributes AttributeMap `gorm:"type:jsonb"`

	// Region visibility flags. A resync always resets both to false so
	// refreshed data is reviewed before it goes live again.
	VisiblePrimary   bool `gorm:"not null;default:false"`
	VisibleSecondary bool `gorm:"not null;default:false"`

	LastSyncedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// Validate checks the invariants every persisted product must hold.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Supplier) == "" {
		return shared.NewDomainError("INVALID_PRODUCT", "supplier is required")
	}
	if strings.TrimSpace(p.ExternalID) == "" {
		return shared.NewDomainError("INVALID_PRODUCT", "external id is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return shared.NewDomainError("INVALID_PRODUCT", "title is required")
	}
	if !p.Price.IsPositive() {
		return shared.NewDomainError("INVALID_PRODUCT", "price must be positive")
	}
	return nil
}

// Variant is a purchasable variation of a product, stored inline as
// part of the product row rather than as its own aggregate.
type Variant struct {
	ExternalID string          `json:"external_id"`
	SKU        string          `json:"sku"`
	Key        string          `json:"key,omitempty"`
	Image      string          `json:"image,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
}

// StringList is a jsonb-backed string slice.
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// VariantList is a jsonb-backed variant slice.
type VariantList []Variant

// Value implements driver.Valuer
func (l VariantList) Value() (driver.Value, error) {
	if l == nil {
		l = VariantList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *VariantList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// AttributeMap is a jsonb-backed free-form attribute bag carrying the
// supplier fields that have no canonical column of their own.
type AttributeMap map[string]string

// Value implements driver.Valuer
func (m AttributeMap) Value() (driver.Value, error) {
	if m == nil {
		m = AttributeMap{}
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *AttributeMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}
