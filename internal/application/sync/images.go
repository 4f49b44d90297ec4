package syncapp

import (
	"encoding/json"
	"strings"

	"github.com/storefront/backend/internal/domain/supplier"
)

// CollectImages merges the image references scattered across the
// listing, the detail record and the variants into one deduplicated
// gallery, preserving first-seen order. The detail's image set arrives
// in several shapes (plain URL, delimited string, JSON array, nested
// arrays) and all of them are flattened here.
func CollectImages(listing *supplier.RawListing, detail *supplier.DetailRecord, variants []supplier.Variant) []string {
	var candidates []string

	if listing != nil {
		candidates = append(candidates, expandImageField(listing.Image)...)
	}
	if detail != nil {
		candidates = append(candidates, flattenImageJSON(detail.ImageSet)...)
		candidates = append(candidates, expandImageField(detail.Image)...)
	}
	for _, v := range variants {
		candidates = append(candidates, expandImageField(v.Image)...)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// expandImageField turns one raw image field into a list of URLs. A
// bracket-delimited string is tried as JSON first, a delimited string
// is split, anything else is taken as a single URL.
func expandImageField(field string) []string {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}

	if strings.HasPrefix(field, "[") {
		var parsed interface{}
		if err := json.Unmarshal([]byte(field), &parsed); err == nil {
			return flattenImageValue(parsed)
		}
	}

	for _, sep := range []string{",", "|", ";"} {
		if strings.Contains(field, sep) {
			parts := strings.Split(field, sep)
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		}
	}

	return []string{field}
}

// flattenImageJSON decodes a raw image-set payload, tolerating a JSON
// array, a quoted string or garbage. Unparsable input yields nothing.
func flattenImageJSON(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	return flattenImageValue(parsed)
}

// flattenImageValue walks arbitrarily nested arrays of strings. A
// string leaf may itself be delimited or bracket-wrapped, so it goes
// back through expandImageField.
func flattenImageValue(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return expandImageField(val)
	case []interface{}:
		var out []string
		for _, item := range val {
			out = append(out, flattenImageValue(item)...)
		}
		return out
	default:
		return nil
	}
}
