package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/internal/feed"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/storage"
	"github.com/hyperjump/kiji/internal/workers"
	"go.uber.org/zap"
)

func matchAll(feed.ItemText) bool { return true }

// Latest lists the newest items of the configured feeds without a query. Each item whose
// link has a saved analysis carries that analysis: summary, bias, neutral summary and
// similar-article links.
//
// Feed failures only show up in the log and never remove a feed. A failure to read the
// feed list is returned together with the partial response.
func (o *Orchestrator) Latest(ctx context.Context) (*models.GlobalSearchResponse, error) {
	start := time.Now()
	settings := o.settings()
	resp := &models.GlobalSearchResponse{Articles: []*models.Article{}, Log: []string{}}
	defer func() { resp.QueryTime = time.Since(start).Milliseconds() }()

	configured, err := o.feeds.ListFeeds(ctx)
	if err != nil {
		resp.AddLog("Error loading live feeds: " + err.Error())
		return resp, fmt.Errorf("failed to load feeds: %w", err)
	}
	if len(configured) == 0 {
		resp.AddLog("No live RSS feeds configured.")
		return resp, nil
	}
	feeds := configured
	if limit := settings.MaxFeedsPerSearch; limit > 0 && len(feeds) > limit {
		feeds = feeds[:limit]
	}
	resp.AddLog(fmt.Sprintf("Fetching up to %d article(s) from each of %d live feed(s).", settings.MaxArticlesPerFeed, len(feeds)))

	pool, err := workers.New(settings.Concurrency)
	if err != nil {
		return resp, err
	}
	defer pool.Release()

	results := make([]*models.FeedSearchResult, len(feeds))
	if err := pool.Run(len(feeds), func(i int) {
		if ctx.Err() != nil {
			return
		}
		results[i] = o.latestFromFeed(ctx, settings, feeds[i], i+1, len(feeds))
	}); err != nil {
		o.logger.Warn("feed worker pool", zap.Error(err))
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		resp.AddLog(r.LogEntry)
		resp.Articles, _ = Merge(resp.Articles, r.Articles)
	}
	if ctx.Err() != nil {
		resp.AddLog("Listing cancelled.")
		return resp, nil
	}

	enriched := o.annotate(ctx, resp.Articles)
	if enriched > 0 {
		resp.AddLog(fmt.Sprintf("Used saved analyses for %d article(s).", enriched))
	}
	resp.AddLog(fmt.Sprintf("Listed %d live article(s).", len(resp.Articles)))
	o.logger.Info("latest articles listed",
		zap.Int("feeds", len(feeds)),
		zap.Int("articles", len(resp.Articles)),
		zap.Int("enriched", enriched),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

func (o *Orchestrator) latestFromFeed(ctx context.Context, settings config.FeedsConfig, source models.FeedSource, index, total int) *models.FeedSearchResult {
	prefix := fmt.Sprintf("(%d/%d)", index, total)
	result := &models.FeedSearchResult{Feed: source, Articles: []*models.Article{}}

	parsed, err := o.fetcher.Fetch(ctx, source.URL, settings.Timeout())
	if err != nil {
		kind := feed.KindOf(err)
		result.Error = err.Error()
		result.ErrorKind = string(kind)
		result.Cancelled = ctx.Err() != nil
		result.LogEntry = failureLine(prefix, source.Name, kind, settings.TimeoutSeconds, err)
		o.logger.Warn("feed fetch failed",
			zap.String("feed", source.Name),
			zap.String("url", source.URL),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return result
	}

	scan := feed.Scan(parsed, source, settings.MaxArticlesPerFeed, matchAll)
	result.Articles = append(result.Articles, scan.Articles...)
	result.LimitHit = scan.LimitHit
	result.LogEntry = fmt.Sprintf("%s Fetched %d article(s) from %s.", prefix, len(scan.Articles), source.Name)
	return result
}

// annotate copies the saved analysis found by link onto each article and returns how many
// articles changed. A store error skips the article.
func (o *Orchestrator) annotate(ctx context.Context, articles []*models.Article) int {
	n := 0
	for _, a := range articles {
		if a.Link == "" {
			continue
		}
		saved, err := o.saved.store.FindByLink(ctx, a.Link)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				o.logger.Warn("saved analysis lookup failed", zap.String("link", a.Link), zap.Error(err))
			}
			continue
		}
		a.Summary = saved.Summary
		a.Bias = saved.Bias
		a.BiasExplanation = saved.BiasExplanation
		a.NeutralSummary = saved.NeutralSummary
		if saved.OriginalContent != "" {
			a.Content = saved.OriginalContent
		}
		a.SimilarArticles = append([]models.SimilarityLink(nil), saved.SimilarArticles...)
		n++
	}
	return n
}
