package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/storage"
	"github.com/hyperjump/kiji/internal/workers"
	"github.com/hyperjump/kiji/pkg/utils"
	"go.uber.org/zap"
)

// Orchestrator runs global searches: saved analyses first, then every configured feed.
type Orchestrator struct {
	expander QueryExpander
	saved    *SavedSearcher
	feeds    storage.FeedStore
	fetcher  FeedFetcher
	settings func() config.FeedsConfig
	logger   *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = utils.OrNop(l) }
}

// WithSettings supplies feed settings per search, so a config reload applies to the next
// search without touching the ones already running.
func WithSettings(fn func() config.FeedsConfig) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.settings = fn
		}
	}
}

// NewOrchestrator creates an Orchestrator. Without WithSettings it uses config defaults.
func NewOrchestrator(expander QueryExpander, saved *SavedSearcher, feeds storage.FeedStore, fetcher FeedFetcher, opts ...Option) *Orchestrator {
	defaults := config.Default().Feeds
	o := &Orchestrator{
		expander: expander,
		saved:    saved,
		feeds:    feeds,
		fetcher:  fetcher,
		settings: func() config.FeedsConfig { return defaults },
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExpandQuery exposes the orchestrator's expansion for progressive clients that call
// SearchSingleFeed themselves.
func (o *Orchestrator) ExpandQuery(ctx context.Context, query string) [][]string {
	return o.expander.ExpandQuery(ctx, query)
}

// GlobalSearch searches saved analyses and live feeds for query and returns the merged,
// deduplicated, newest-first articles with an ordered progress log.
//
// Failures of single feeds only show up in the log. A failure to read saved articles or
// the feed list stops the search and is returned together with the partial response.
func (o *Orchestrator) GlobalSearch(ctx context.Context, query string) (*models.GlobalSearchResponse, error) {
	start := time.Now()
	settings := o.settings()
	resp := &models.GlobalSearchResponse{Query: query, Articles: []*models.Article{}, Log: []string{}}
	defer func() { resp.QueryTime = time.Since(start).Milliseconds() }()

	if strings.TrimSpace(query) == "" {
		resp.AddLog("Search term is empty. Nothing to search.")
		return resp, nil
	}

	resp.AddLog(fmt.Sprintf("Global Search for %q:", query))
	resp.AddLog(fmt.Sprintf("Timeout per live feed: %ds. Max live feeds to search: %d.", settings.TimeoutSeconds, settings.MaxFeedsPerSearch))
	if settings.AutoRemoveBadFeeds {
		resp.AddLog("Auto-remove of failing feeds is enabled.")
	}

	resp.AddLog(fmt.Sprintf("Phase 1a: Fetching synonyms for search term %q...", query))
	groups := o.expander.ExpandQuery(ctx, query)
	if len(groups) == 0 {
		resp.AddLog("No searchable words in search term. Search aborted.")
		return resp, nil
	}
	resp.AddLog("Synonym fetching complete for live search. Proceeding.")

	resp.AddLog("Phase 1b: Searching previously saved articles...")
	saved, err := o.saved.Search(ctx, query)
	if err != nil {
		resp.AddLog("Error searching saved articles: " + err.Error())
		o.finish(resp)
		return resp, err
	}
	mapped := make([]*models.Article, 0, len(saved))
	for _, a := range saved {
		mapped = append(mapped, a.ToArticle())
	}
	var added int
	resp.Articles, added = Merge(resp.Articles, mapped)
	if added > 0 {
		resp.AddLog(fmt.Sprintf("Found %d unique matching article(s) in saved analyses.", added))
	} else {
		resp.AddLog("No matching articles found in saved analyses.")
	}

	resp.AddLog("Phase 2: Proceeding to search live RSS feeds...")
	if err := o.searchFeeds(ctx, settings, groups, resp); err != nil {
		resp.AddLog("Error during live feed search setup: " + err.Error())
		o.finish(resp)
		return resp, err
	}

	o.finish(resp)
	o.logger.Info("global search complete",
		zap.String("query", query),
		zap.Int("groups", len(groups)),
		zap.Int("articles", len(resp.Articles)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

func (o *Orchestrator) searchFeeds(ctx context.Context, settings config.FeedsConfig, groups [][]string, resp *models.GlobalSearchResponse) error {
	configured, err := o.feeds.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to load feeds: %w", err)
	}
	if len(configured) == 0 {
		resp.AddLog("No live RSS feeds configured to search.")
		return nil
	}

	feeds := configured
	if limit := settings.MaxFeedsPerSearch; limit > 0 && len(configured) > limit {
		feeds = configured[:limit]
		resp.AddLog(fmt.Sprintf("Limiting live feed search to first %d of %d feeds.", limit, len(configured)))
	} else {
		resp.AddLog(fmt.Sprintf("Found %d live feeds to search.", len(feeds)))
	}

	pool, err := workers.New(settings.Concurrency)
	if err != nil {
		return err
	}
	defer pool.Release()

	results := make([]*models.FeedSearchResult, len(feeds))
	if err := pool.Run(len(feeds), func(i int) {
		if ctx.Err() != nil {
			return
		}
		results[i] = o.searchFeed(ctx, settings, groups, feeds[i], i+1, len(feeds))
	}); err != nil {
		o.logger.Warn("feed worker pool", zap.Error(err))
	}

	total, skipped := 0, 0
	for i, r := range results {
		if r == nil {
			skipped++
			continue
		}
		resp.AddLog(fmt.Sprintf("(%d/%d) Searching live feed: %s...", i+1, len(feeds), feeds[i].Name))
		resp.AddLog(r.LogEntry)
		var added int
		resp.Articles, added = Merge(resp.Articles, r.Articles)
		total += added
	}
	if total > 0 {
		resp.AddLog(fmt.Sprintf("Added %d unique article(s) from live feeds.", total))
	} else {
		resp.AddLog("No additional unique articles found in live feeds.")
	}
	if ctx.Err() != nil {
		resp.AddLog(fmt.Sprintf("Search cancelled: %d of %d live feed(s) not searched.", skipped, len(feeds)))
		o.logger.Info("global search cancelled", zap.Int("skipped_feeds", skipped), zap.Error(ctx.Err()))
	}
	return nil
}

func (o *Orchestrator) finish(resp *models.GlobalSearchResponse) {
	if len(resp.Articles) == 0 {
		resp.AddLog("Global search complete: No articles found overall.")
		return
	}
	resp.AddLog(fmt.Sprintf("Global search complete: Found %d unique article(s) in total.", len(resp.Articles)))
}
