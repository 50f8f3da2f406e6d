package config

import "github.com/hyperjump/kiji/internal/models"

// DefaultSeedFeeds is written to an empty feed table on first start.
var DefaultSeedFeeds = []models.FeedSource{
	{Name: "Associated Press", URL: "https://feeds.apnews.com/APTopNews.xml", Category: "World News"},
	{Name: "Reuters - World News", URL: "https://feeds.reuters.com/reuters/worldNews", Category: "World News"},
	{Name: "BBC News - World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml", Category: "World News"},
	{Name: "NPR News", URL: "https://feeds.npr.org/1001/rss.xml", Category: "US News"},
	{Name: "The Guardian - World News", URL: "https://www.theguardian.com/world/rss", Category: "World News"},
}

// ApplyDefaults sets default values for any zero (or invalid) values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kiji/data/kiji.db"
	}
	if cfg.Feeds.TimeoutSeconds <= 0 {
		cfg.Feeds.TimeoutSeconds = 7
	}
	if cfg.Feeds.MaxFeedsPerSearch <= 0 {
		cfg.Feeds.MaxFeedsPerSearch = 20
	}
	if cfg.Feeds.MaxArticlesPerFeed <= 0 {
		cfg.Feeds.MaxArticlesPerFeed = 10
	}
	if cfg.Feeds.Concurrency <= 0 {
		cfg.Feeds.Concurrency = 1
	}
	if cfg.Feeds.UserAgent == "" {
		cfg.Feeds.UserAgent = "kiji/1.0"
	}
	if cfg.Feeds.Seed == nil {
		cfg.Feeds.Seed = append([]models.FeedSource(nil), DefaultSeedFeeds...)
	}
	if cfg.Similarity.MaxCandidates <= 0 {
		cfg.Similarity.MaxCandidates = 10
	}
	if cfg.Similarity.ConfidenceThreshold <= 0 || cfg.Similarity.ConfidenceThreshold > 1 {
		cfg.Similarity.ConfidenceThreshold = 0.7
	}
	if cfg.Similarity.MinContentLength <= 0 {
		cfg.Similarity.MinContentLength = 50
	}
	if cfg.Similarity.Concurrency <= 0 {
		cfg.Similarity.Concurrency = 1
	}
	if cfg.AI.Host == "" {
		cfg.AI.Host = "http://localhost:11434/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "qwen2.5:3b"
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.AI.MinCompareLength <= 0 {
		cfg.AI.MinCompareLength = 100
	}
	if cfg.AI.MaxJSONAttempts <= 0 {
		cfg.AI.MaxJSONAttempts = 3
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
