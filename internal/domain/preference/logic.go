package preference

import (
	"cmp"
	"slices"
	"strings"
)

// Merge resolves every item for a user against their stored values.
func Merge(items []Item, stored map[string]StoredValue) []UserPreference {
	out := make([]UserPreference, 0, len(items))
	for _, item := range items {
		p := UserPreference{
			ItemID:     item.ID,
			CategoryID: item.CategoryID,
			Key:        item.Key,
			Label:      item.Label,
			Channel:    item.Channel,
			Value:      item.DefaultValue,
			IsDefault:  true,
		}
		if v, ok := stored[item.ID]; ok {
			ts := v.UpdatedAt
			p.Value = v.Value
			p.IsDefault = false
			p.UpdatedAt = &ts
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b UserPreference) int {
		return cmp.Or(strings.Compare(a.CategoryID, b.CategoryID), strings.Compare(a.Key, b.Key))
	})
	return out
}
