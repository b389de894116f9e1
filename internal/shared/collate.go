package shared

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortByName orders items by a display name using Brazilian Portuguese collation,
// ignoring case and accents at the primary level. The sort is stable.
func SortByName[T any](items []T, name func(T) string) {
	// Collators keep internal buffers and are not safe for concurrent use.
	c := collate.New(language.BrazilianPortuguese, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(name(items[i]), name(items[j])) < 0
	})
}
