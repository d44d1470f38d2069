// Package merge combines per-page extraction results into documents and manifests.
package merge

import (
	"sort"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

// LineItems groups the drafts of all pages by manifest number. With preserveOrder the items of a
// group are ordered by their original sequence; otherwise they are renumbered 0..n-1 in arrival
// order. Groups come out sorted by manifest number.
func LineItems(pages []entity.PageResult, preserveOrder bool) entity.PageResult {
	index := make(map[string]int)
	var merged entity.PageResult

	for _, page := range pages {
		for _, g := range page {
			i, ok := index[g.ManifestNumber]
			if !ok {
				i = len(merged)
				index[g.ManifestNumber] = i
				merged = append(merged, entity.ManifestGroup{ManifestNumber: g.ManifestNumber})
			}
			merged[i].Items = append(merged[i].Items, g.Items...)
		}
	}

	for i := range merged {
		items := merged[i].Items
		if preserveOrder {
			sort.SliceStable(items, func(a, b int) bool { return items[a].Sequence < items[b].Sequence })
			continue
		}
		for n := range items {
			items[n].Sequence = n
		}
	}

	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].ManifestNumber < merged[b].ManifestNumber
	})
	return merged
}
