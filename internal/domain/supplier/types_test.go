package supplier

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FlexString
	}{
		{"quoted string", `{"v":"12.50"}`, "12.50"},
		{"number", `{"v":9.99}`, "9.99"},
		{"integer", `{"v":7}`, "7"},
		{"null", `{"v":null}`, ""},
		{"missing", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst struct {
				V FlexString `json:"v"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &dst))
			assert.Equal(t, tt.want, dst.V)
		})
	}

	t.Run("decimal conversion", func(t *testing.T) {
		d, ok := FlexString(" 3.25 ").Decimal()
		require.True(t, ok)
		assert.True(t, d.Equal(decimal.RequireFromString("3.25")))

		_, ok = FlexString("free").Decimal()
		assert.False(t, ok)

		_, ok = FlexString("").Decimal()
		assert.False(t, ok)
	})
}

func TestFlattenCategories(t *testing.T) {
	tree := []CategoryNode{
		{ID: "1", Name: "Apparel", Children: []CategoryNode{
			{ID: "11", Name: "Hats", Children: []CategoryNode{
				{ID: "111", Name: "Holiday Hats"},
			}},
			{ID: "12", Name: "Socks"},
		}},
		{ID: "2", Name: "Home"},
		{Name: "no id, skipped"},
	}

	refs := FlattenCategories(tree)
	require.Len(t, refs, 5)

	byID := map[string]CategoryRef{}
	for _, r := range refs {
		byID[r.CategoryID] = r
	}

	assert.Equal(t, "", byID["1"].ParentID)
	assert.Equal(t, 1, byID["1"].Level)
	assert.Equal(t, "1", byID["11"].ParentID)
	assert.Equal(t, 2, byID["11"].Level)
	assert.Equal(t, "11", byID["111"].ParentID)
	assert.Equal(t, 3, byID["111"].Level)
	assert.Equal(t, "Socks", byID["12"].Name)
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, []string{DefaultCountryCode}, cfg.CountryCodes)
	assert.Zero(t, cfg.MaxPages)

	cfg = Config{ExcludeCategoryIDs: []string{"9"}}
	assert.True(t, cfg.Excluded("9"))
	assert.False(t, cfg.Excluded("8"))
}
