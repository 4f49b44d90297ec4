package syncapp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storefront/backend/internal/domain/supplier"
)

func TestCollectImages(t *testing.T) {
	t.Run("should deduplicate preserving first-seen order", func(t *testing.T) {
		listing := &supplier.RawListing{Image: "https://cdn.example.com/a.jpg"}
		detail := &supplier.DetailRecord{
			ImageSet: json.RawMessage(`["https://cdn.example.com/b.jpg","https://cdn.example.com/a.jpg"]`),
		}
		variants := []supplier.Variant{
			{Image: "https://cdn.example.com/c.jpg"},
			{Image: "https://cdn.example.com/b.jpg"},
		}

		got := CollectImages(listing, detail, variants)

		assert.Equal(t, []string{
			"https://cdn.example.com/a.jpg",
			"https://cdn.example.com/b.jpg",
			"https://cdn.example.com/c.jpg",
		}, got)
	})

	t.Run("should parse bracket-delimited string field as JSON", func(t *testing.T) {
		listing := &supplier.RawListing{Image: `["https://x/1.jpg","https://x/2.jpg"]`}

		got := CollectImages(listing, nil, nil)

		assert.Equal(t, []string{"https://x/1.jpg", "https://x/2.jpg"}, got)
	})

	t.Run("should flatten nested arrays", func(t *testing.T) {
		detail := &supplier.DetailRecord{
			ImageSet: json.RawMessage(`[["https://x/1.jpg"],["https://x/2.jpg","https://x/3.jpg"]]`),
		}

		got := CollectImages(nil, detail, nil)

		assert.Equal(t, []string{"https://x/1.jpg", "https://x/2.jpg", "https://x/3.jpg"}, got)
	})

	t.Run("should split delimited strings", func(t *testing.T) {
		tests := []struct {
			name  string
			field string
		}{
			{"comma", "https://x/1.jpg,https://x/2.jpg"},
			{"pipe", "https://x/1.jpg|https://x/2.jpg"},
			{"semicolon", "https://x/1.jpg;https://x/2.jpg"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := CollectImages(&supplier.RawListing{Image: tt.field}, nil, nil)
				assert.Equal(t, []string{"https://x/1.jpg", "https://x/2.jpg"}, got)
			})
		}
	})

	t.Run("should treat plain string as single URL", func(t *testing.T) {
		got := CollectImages(&supplier.RawListing{Image: "https://x/only.jpg"}, nil, nil)
		assert.Equal(t, []string{"https://x/only.jpg"}, got)
	})

	t.Run("should skip blanks and unparsable image sets", func(t *testing.T) {
		detail := &supplier.DetailRecord{
			ImageSet: json.RawMessage(`{not json`),
			Image:    "  ",
		}

		got := CollectImages(&supplier.RawListing{Image: ""}, detail, nil)

		assert.Empty(t, got)
	})

	t.Run("should handle quoted JSON string image set", func(t *testing.T) {
		detail := &supplier.DetailRecord{
			ImageSet: json.RawMessage(`"https://x/solo.jpg"`),
		}

		got := CollectImages(nil, detail, nil)

		assert.Equal(t, []string{"https://x/solo.jpg"}, got)
	})
}
