package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/kiji/internal/ai"
	"github.com/hyperjump/kiji/internal/ai/openai"
	"github.com/hyperjump/kiji/internal/analysis"
	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/internal/feed"
	"github.com/hyperjump/kiji/internal/search"
	"github.com/hyperjump/kiji/internal/similarity"
	"github.com/hyperjump/kiji/internal/storage"
	"github.com/hyperjump/kiji/internal/synonym"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Live         *config.Live
	Storage      storage.Storage
	AI           ai.Provider
	Expander     *synonym.Expander
	Engine       *similarity.Engine
	Orchestrator *search.Orchestrator
	Analyzer     *analysis.Analyzer
	Library      *analysis.Library
}

// Close releases the similarity workers and the database.
func (c *Components) Close() {
	if c.Engine != nil {
		c.Engine.Release()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents wires storage, the AI client and the search and analysis services.
// provider replaces the OpenAI-compatible client when non-nil.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, provider ai.Provider) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Live: config.NewLive(cfg), Storage: store}

	if n, err := store.SeedFeeds(ctx, cfg.Feeds.Seed); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to seed feeds: %w", err)
	} else if n > 0 {
		logger.Info("seeded feed list", zap.Int("feeds", n))
	}

	if provider == nil {
		client, err := openai.New(cfg.AI, openai.WithLogger(logger))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize AI client: %w", err)
		}
		provider = client
	}
	c.AI = provider
	logger.Info("AI client initialized", zap.String("host", cfg.AI.Host), zap.String("model", cfg.AI.Model))

	c.Expander = synonym.NewExpander(provider,
		synonym.WithLogger(logger),
		synonym.WithTimeout(cfg.AI.Timeout()))

	c.Engine, err = similarity.NewEngine(ai.NewGuard(provider, cfg.AI.MinCompareLength),
		similarity.WithLogger(logger),
		similarity.WithMinContentLength(cfg.Similarity.MinContentLength),
		similarity.WithConcurrency(cfg.Similarity.Concurrency))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize similarity engine: %w", err)
	}

	fetcher := feed.NewFetcher(feed.WithUserAgent(cfg.Feeds.UserAgent), feed.WithLogger(logger))
	c.Orchestrator = search.NewOrchestrator(c.Expander, search.NewSavedSearcher(store, c.Expander), store, fetcher,
		search.WithLogger(logger),
		search.WithSettings(c.Live.Feeds))

	c.Analyzer = analysis.NewAnalyzer(provider, store,
		analysis.WithAnalyzerLogger(logger),
		analysis.WithTimeout(cfg.AI.Timeout()))
	c.Library = analysis.NewLibrary(store, c.Engine,
		analysis.WithLibraryLogger(logger),
		analysis.WithSimilaritySettings(c.Live.Similarity))
	return c, nil
}

// reloadConfig re-reads path into live. Feed settings and the similarity threshold and
// candidate count take effect on the next request; the settings listed by
// restartOnlyChanges are fixed at startup.
func reloadConfig(live *config.Live, path string, logger *zap.Logger) error {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("config reload failed, keeping previous config", zap.String("path", path), zap.Error(err))
		return err
	}
	if changed := restartOnlyChanges(live.Get(), cfg); len(changed) > 0 {
		logger.Warn("changed settings need a restart", zap.Strings("settings", changed))
	}
	live.Set(cfg)
	logger.Info("config reloaded", zap.String("path", path))
	return nil
}

// restartOnlyChanges names the settings that differ between prev and next but are only read
// when components are built.
func restartOnlyChanges(prev, next *config.Config) []string {
	var changed []string
	add := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}
	add("storage.database_path", prev.Storage.DatabasePath != next.Storage.DatabasePath)
	add("ai.host", prev.AI.Host != next.AI.Host)
	add("ai.model", prev.AI.Model != next.AI.Model)
	add("ai.timeout_seconds", prev.AI.TimeoutSeconds != next.AI.TimeoutSeconds)
	add("ai.min_compare_length", prev.AI.MinCompareLength != next.AI.MinCompareLength)
	add("feeds.user_agent", prev.Feeds.UserAgent != next.Feeds.UserAgent)
	add("similarity.min_content_length", prev.Similarity.MinContentLength != next.Similarity.MinContentLength)
	add("similarity.concurrency", prev.Similarity.Concurrency != next.Similarity.Concurrency)
	return changed
}
