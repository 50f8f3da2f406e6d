package feed

import (
	"github.com/hyperjump/kiji/internal/models"
	"github.com/mmcdole/gofeed"
)

// MatchFunc decides whether an item's text matches the current query.
type MatchFunc func(text ItemText) bool

// ScanResult is the outcome of scanning one parsed feed.
type ScanResult struct {
	Articles []*models.Article
	// LimitHit is true when the feed held more items than the scan was allowed to look at.
	LimitHit bool
}

// Scan looks at the first maxItems items of f in order and converts the ones accepted by
// match. Items past maxItems are never examined. maxItems <= 0 means no limit.
func Scan(f *gofeed.Feed, source models.FeedSource, maxItems int, match MatchFunc) ScanResult {
	var res ScanResult
	if f == nil {
		return res
	}
	for i, item := range f.Items {
		if maxItems > 0 && i >= maxItems {
			res.LimitHit = true
			break
		}
		if item == nil {
			continue
		}
		text := TextOf(item)
		if !match(text) {
			continue
		}
		res.Articles = append(res.Articles, toArticle(item, f.Link, source, text))
	}
	return res
}
