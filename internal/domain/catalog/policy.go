package catalog

// FieldAction says what an update does to a column when a product that
// already exists is synced again.
type FieldAction int

const (
	// ActionRefresh overwrites the stored value with the freshly
	// normalized one.
	ActionRefresh FieldAction = iota
	// ActionPreserve keeps the stored value. Used for fields merchants
	// edit by hand after the first import.
	ActionPreserve
)

// fieldRule binds one products column to its update action.
type fieldRule struct {
	Column string
	Action FieldAction
}

// UpdatePolicy is the per-column update table applied on upsert. Create
// always writes the full record; the policy only governs conflicts.
type UpdatePolicy struct {
	rules []fieldRule
}

// DefaultUpdatePolicy preserves the merchant-editable presentation
// fields and refreshes everything operational.
func DefaultUpdatePolicy() UpdatePolicy {
	return UpdatePolicy{rules: []fieldRule{
		{"title", ActionPreserve},
		{"slug", ActionPreserve},
		{"description", ActionPreserve},
		{"image", ActionPreserve},
		{"image_alt", ActionPreserve},
		{"gallery", ActionPreserve},
		{"price", ActionPreserve},
		{"sku", ActionPreserve},

		{"compare_at_price", ActionRefresh},
		{"cost_price", ActionRefresh},
		{"stock_count", ActionRefresh},
		{"warehouse_id", ActionRefresh},
		{"warehouse_code", ActionRefresh},
		{"warehouse_name", ActionRefresh},
		{"source_url", ActionRefresh},
		{"category_external_id", ActionRefresh},
		{"category_name", ActionRefresh},
		{"tags", ActionRefresh},
		{"variants", ActionRefresh},
		{"supplier_attributes", ActionRefresh},
		{"visible_primary", ActionRefresh},
		{"visible_secondary", ActionRefresh},
		{"last_synced_at", ActionRefresh},
		{"updated_at", ActionRefresh},
	}}
}

// RefreshColumns returns the columns an update is allowed to touch, in
// declaration order.
func (p UpdatePolicy) RefreshColumns() []string {
	cols := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		if r.Action == ActionRefresh {
			cols = append(cols, r.Column)
		}
	}
	return cols
}

// Preserves reports whether the policy keeps the stored value of column
// on update.
func (p UpdatePolicy) Preserves(column string) bool {
	for _, r := range p.rules {
		if r.Column == column {
			return r.Action == ActionPreserve
		}
	}
	return false
}
