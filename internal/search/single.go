package search

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/internal/feed"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// errorDetailRunes bounds how much of an error message goes into a log line.
const errorDetailRunes = 150

// FeedFetcher downloads and parses one feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*gofeed.Feed, error)
}

// SearchSingleFeed fetches one feed and returns the items matching groups, plus one log
// line describing the outcome. index is 1-based and total is the number of feeds in the
// enclosing search; both only appear in the log line.
//
// A failed fetch yields no articles. When auto-removal is enabled the failing feed is
// deleted from the feed store and the log line says whether that worked.
func (o *Orchestrator) SearchSingleFeed(ctx context.Context, groups [][]string, source models.FeedSource, index, total int) *models.FeedSearchResult {
	return o.searchFeed(ctx, o.settings(), groups, source, index, total)
}

func (o *Orchestrator) searchFeed(ctx context.Context, settings config.FeedsConfig, groups [][]string, source models.FeedSource, index, total int) *models.FeedSearchResult {
	prefix := fmt.Sprintf("(%d/%d)", index, total)
	result := &models.FeedSearchResult{Feed: source, Articles: []*models.Article{}}

	parsed, err := o.fetcher.Fetch(ctx, source.URL, settings.Timeout())
	if err != nil && ctx.Err() != nil {
		// the caller went away; the feed itself is not at fault
		result.Error = ctx.Err().Error()
		result.Cancelled = true
		result.LogEntry = fmt.Sprintf("%s Search of %s cancelled.", prefix, source.Name)
		o.logger.Debug("feed search cancelled", zap.String("feed", source.Name), zap.Error(err))
		return result
	}
	if err != nil {
		kind := feed.KindOf(err)
		result.Error = err.Error()
		result.ErrorKind = string(kind)
		result.LogEntry = failureLine(prefix, source.Name, kind, settings.TimeoutSeconds, err)
		o.logger.Warn("feed search failed",
			zap.String("feed", source.Name),
			zap.String("url", source.URL),
			zap.String("kind", string(kind)),
			zap.Error(err))

		if settings.AutoRemoveBadFeeds {
			if derr := o.feeds.DeleteFeed(ctx, source.URL); derr != nil {
				o.logger.Error("failed to auto-remove feed", zap.String("url", source.URL), zap.Error(derr))
				result.LogEntry += " | Failed to auto-remove."
			} else {
				o.logger.Info("auto-removed feed", zap.String("feed", source.Name), zap.String("url", source.URL))
				result.LogEntry += " | Feed automatically removed."
				result.FeedRemoved = true
			}
		}
		return result
	}

	scan := feed.Scan(parsed, source, settings.MaxArticlesPerFeed, func(t feed.ItemText) bool {
		return Matches(SearchableText(t.Title, t.Snippet, t.Content), groups)
	})
	result.Articles = append(result.Articles, scan.Articles...)
	result.LimitHit = scan.LimitHit

	found := len(scan.Articles)
	switch {
	case found > 0:
		result.LogEntry = fmt.Sprintf("%s Searched %s with expanded terms: Found %d article(s).", prefix, source.Name, found)
	case scan.LimitHit:
		result.LogEntry = fmt.Sprintf("%s Searched %s with expanded terms: Reached article limit (%d). Found %d prior.", prefix, source.Name, settings.MaxArticlesPerFeed, found)
	default:
		result.LogEntry = fmt.Sprintf("%s Searched %s with expanded terms: No matches found.", prefix, source.Name)
	}
	o.logger.Debug("feed searched",
		zap.String("feed", source.Name),
		zap.Int("items", len(parsed.Items)),
		zap.Int("matches", found),
		zap.Bool("limit_hit", scan.LimitHit))
	return result
}

func failureLine(prefix, name string, kind feed.ErrorKind, timeoutSeconds int, err error) string {
	switch kind {
	case feed.KindTimeout:
		return fmt.Sprintf("%s Error searching %s: Request timed out after %ds.", prefix, name, timeoutSeconds)
	case feed.KindUnreachable:
		return fmt.Sprintf("%s Error searching %s: URL not found or connection refused.", prefix, name)
	case feed.KindMalformed:
		return fmt.Sprintf("%s Error with %s: Feed content (XML) parsing error - %s", prefix, name, clip(cause(err).Error(), errorDetailRunes))
	default:
		return fmt.Sprintf("%s Error searching %s: %s", prefix, name, clip(cause(err).Error(), errorDetailRunes))
	}
}

// cause unwraps a FetchError so the log shows the underlying message only.
func cause(err error) error {
	var fe *feed.FetchError
	if errors.As(err, &fe) && fe.Err != nil {
		return fe.Err
	}
	return err
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
