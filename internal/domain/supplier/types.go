package supplier

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Name is the supplier identity stamped onto every canonical product
// produced by this pipeline.
const Name = "cj"

// FlexString absorbs supplier fields that arrive as a JSON string,
// number or null depending on the endpoint and product age.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Decimal parses the value as a decimal; ok is false for blank or
// unparsable input.
func (f FlexString) Decimal() (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(f))
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// RawListing is one entry of a paginated catalog page. Several price
// fields overlap; precedence is resolved by the price extractors.
type RawListing struct {
	ExternalID     string     `json:"pid"`
	Name           string     `json:"productNameEn"`
	SKU            string     `json:"productSku"`
	Image          string     `json:"productImage"`
	SellPrice      FlexString `json:"sellPrice"`
	NowPrice       FlexString `json:"nowPrice"`
	DiscountPrice  FlexString `json:"discountPrice"`
	Currency       string     `json:"currency"`
	TotalInventory int        `json:"totalInventoryNum"`
	ListedCount    int        `json:"listedNum"`
	CategoryID     string     `json:"categoryId"`
	CategoryName   string     `json:"categoryName"`
	SourceURL      string     `json:"sourceFrom"`
}

// ProductPage is one page of the catalog list endpoint.
type ProductPage struct {
	PageNum    int          `json:"pageNum"`
	PageSize   int          `json:"pageSize"`
	Total      int          `json:"total"`
	TotalPages int          `json:"totalPages"`
	List       []RawListing `json:"list"`
}

// DetailRecord is the fuller per-product payload. Images may be a plain
// string, a delimited string or a JSON array, so the raw message is kept
// for the image collector to untangle.
type DetailRecord struct {
	ExternalID  string          `json:"pid"`
	Name        string          `json:"productNameEn"`
	Description string          `json:"description"`
	SellPrice   FlexString      `json:"sellPrice"`
	CostPrice   FlexString      `json:"costPrice"`
	Currency    string          `json:"currency"`
	ImageSet    json.RawMessage `json:"productImageSet"`
	Image       string          `json:"productImage"`
	Weight      FlexString      `json:"productWeight"`
	PackWeight  FlexString      `json:"packingWeight"`
	Material    string          `json:"materialNameEn"`
	ProductType string          `json:"productType"`
	CategoryID  string          `json:"categoryId"`
	SourceURL   string          `json:"sourceFrom"`
}

// Variant is a purchasable SKU under a product, with optional
// per-country stock entries inlined by the variant endpoint.
type Variant struct {
	VariantID    string         `json:"vid"`
	ProductID    string         `json:"pid"`
	Name         string         `json:"variantNameEn"`
	Key          string         `json:"variantKey"`
	SKU          string         `json:"variantSku"`
	Image        string         `json:"variantImage"`
	SellPrice    FlexString     `json:"variantSellPrice"`
	SuggestPrice FlexString     `json:"variantSugSellPrice"`
	Weight       FlexString     `json:"variantWeight"`
	Stocks       []CountryStock `json:"stockList"`
}

// AreaStock is the product-level stock shape, keyed by warehouse area.
type AreaStock struct {
	AreaID         string `json:"areaId"`
	AreaName       string `json:"areaEn"`
	CountryCode    string `json:"countryCode"`
	TotalInventory int    `json:"totalInventoryNum"`
}

// CountryStock is the variant-level stock shape, keyed by country.
type CountryStock struct {
	VariantID      string `json:"vid"`
	CountryCode    string `json:"countryCode"`
	TotalInventory int    `json:"totalInventoryNum"`
	VerifiedCount  int    `json:"verifiedNum"`
	FactoryCount   int    `json:"factoryNum"`
}

// Review is a third-party customer comment. Reviews are snapshotted but
// never folded into the canonical product.
type Review struct {
	ReviewID  string   `json:"commentId"`
	ProductID string   `json:"pid"`
	Score     int      `json:"score"`
	Comment   string   `json:"comment"`
	Author    string   `json:"commentUser"`
	Country   string   `json:"countryCode"`
	Date      string   `json:"commentDate"`
	Images    []string `json:"commentUrls"`
}

// CategoryNode is one node of the supplier's nested category tree.
type CategoryNode struct {
	ID       string         `json:"categoryId"`
	Name     string         `json:"categoryName"`
	Children []CategoryNode `json:"children"`
}

// Warehouse describes one fulfillment region.
type Warehouse struct {
	WarehouseID string `json:"areaId"`
	Code        string `json:"areaEn"`
	CountryCode string `json:"countryCode"`
	Name        string `json:"areaName"`
}

// FlattenCategories walks the nested tree depth-first and returns one
// reference row per node, recording parent linkage and depth.
func FlattenCategories(nodes []CategoryNode) []CategoryRef {
	var out []CategoryRef
	var walk func(nodes []CategoryNode, parentID string, level int)
	walk = func(nodes []CategoryNode, parentID string, level int) {
		for _, n := range nodes {
			if n.ID == "" {
				continue
			}
			out = append(out, CategoryRef{
				CategoryID: n.ID,
				Name:       n.Name,
				ParentID:   parentID,
				Level:      level,
			})
			walk(n.Children, n.ID, level+1)
		}
	}
	walk(nodes, "", 1)
	return out
}

// RawJSON is a jsonb payload column for raw snapshots.
type RawJSON json.RawMessage

// Value implements driver.Valuer
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner
func (j *RawJSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
		return nil
	case string:
		*j = RawJSON(v)
		return nil
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}

// MarshalJSON implements json.Marshaler
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// Raw snapshot rows. Each is keyed by the payload's own id and
// overwritten every sync pass ("last seen" semantics, no history).

// ListingSnapshot stores the verbatim catalog-page entry.
type ListingSnapshot struct {
	ExternalID string    `gorm:"primaryKey;type:varchar(100)"`
	Payload    RawJSON   `gorm:"type:jsonb"`
	SeenAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ListingSnapshot) TableName() string { return "listing_snapshots" }

// VariantSnapshot stores one verbatim variant payload.
type VariantSnapshot struct {
	VariantID  string    `gorm:"primaryKey;type:varchar(100)"`
	ExternalID string    `gorm:"type:varchar(100);not null;index"`
	Payload    RawJSON   `gorm:"type:jsonb"`
	SeenAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (VariantSnapshot) TableName() string { return "variant_snapshots" }

// StockSnapshot stores one stock entry keyed by owning id plus area,
// covering both the product-level and variant-level shapes.
type StockSnapshot struct {
	OwnerID        string    `gorm:"primaryKey;type:varchar(100)"`
	AreaID         string    `gorm:"primaryKey;type:varchar(100)"`
	TotalInventory int       `gorm:"not null;default:0"`
	Payload        RawJSON   `gorm:"type:jsonb"`
	SeenAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockSnapshot) TableName() string { return "stock_snapshots" }

// ReviewSnapshot stores one verbatim review payload.
type ReviewSnapshot struct {
	ReviewID   string    `gorm:"primaryKey;type:varchar(100)"`
	ExternalID string    `gorm:"type:varchar(100);not null;index"`
	Payload    RawJSON   `gorm:"type:jsonb"`
	SeenAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReviewSnapshot) TableName() string { return "review_snapshots" }

// CategoryRef is one flattened category tree node.
type CategoryRef struct {
	CategoryID string    `gorm:"primaryKey;type:varchar(100)"`
	Name       string    `gorm:"type:varchar(200);not null"`
	ParentID   string    `gorm:"type:varchar(100);index"`
	Level      int       `gorm:"not null;default:1"`
	SeenAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CategoryRef) TableName() string { return "category_refs" }

// WarehouseRef is one warehouse/region reference row.
type WarehouseRef struct {
	WarehouseID string    `gorm:"primaryKey;type:varchar(100)"`
	Code        string    `gorm:"type:varchar(100)"`
	CountryCode string    `gorm:"type:varchar(10);index"`
	Name        string    `gorm:"type:varchar(200)"`
	SeenAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WarehouseRef) TableName() string { return "warehouse_refs" }
