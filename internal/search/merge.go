package search

import (
	"sort"

	"github.com/hyperjump/kiji/internal/models"
)

// Merge appends the incoming articles whose ids are not already present and sorts the
// result by published date, newest first. The first article seen for an id wins.
// It returns the merged slice and how many articles were added.
func Merge(existing, incoming []*models.Article) ([]*models.Article, int) {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]*models.Article, 0, len(existing)+len(incoming))
	for _, a := range existing {
		if a == nil {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		merged = append(merged, a)
	}
	added := 0
	for _, a := range incoming {
		if a == nil {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		merged = append(merged, a)
		added++
	}
	SortByPublished(merged)
	return merged, added
}

// SortByPublished sorts articles newest first. Equal dates keep their relative order.
func SortByPublished(articles []*models.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}
