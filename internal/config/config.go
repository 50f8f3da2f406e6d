// Package config provides configuration loading and structs for the kiji server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/kiji/internal/models"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Feeds      FeedsConfig      `yaml:"feeds"`
	Similarity SimilarityConfig `yaml:"similarity"`
	AI         AIConfig         `yaml:"ai"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the path of the SQLite database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// FeedsConfig holds live-feed search limits and policies.
type FeedsConfig struct {
	TimeoutSeconds     int  `yaml:"timeout_seconds"`
	MaxFeedsPerSearch  int  `yaml:"max_feeds_per_search"`
	MaxArticlesPerFeed int  `yaml:"max_articles_per_feed"`
	AutoRemoveBadFeeds bool `yaml:"auto_remove_bad_feeds"`
	// Concurrency is the number of feeds fetched at once. 1 keeps the sequential behaviour.
	Concurrency int                 `yaml:"concurrency"`
	UserAgent   string              `yaml:"user_agent"`
	Seed        []models.FeedSource `yaml:"seed"`
}

// Timeout returns the per-feed fetch timeout.
func (f *FeedsConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// SimilarityConfig tunes the near-duplicate detection run on every save.
type SimilarityConfig struct {
	MaxCandidates       int     `yaml:"max_candidates"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MinContentLength    int     `yaml:"min_content_length"`
	// Concurrency is the number of classifier calls in flight per save. 1 compares in order.
	Concurrency int `yaml:"concurrency"`
}

// AIConfig points at an OpenAI-compatible chat completion endpoint.
// Token is never read from the YAML file; see LoadEnv.
type AIConfig struct {
	Host             string `yaml:"host"`
	Model            string `yaml:"model"`
	Token            string `yaml:"-"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	MinCompareLength int    `yaml:"min_compare_length"`
	MaxJSONAttempts  int    `yaml:"max_json_attempts"`
}

// Timeout returns the per-call AI timeout.
func (a *AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Load reads and parses the config file at path, expands paths, applies defaults and
// environment secrets.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if cfg.Storage.DatabasePath != ":memory:" {
		cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	}
	LoadEnv(&cfg, filepath.Join(configDir, ".env"))

	return &cfg, nil
}

// Save writes the config to path. Used for persisting feed setting changes.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
