package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kiji/internal/models"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
feeds:
  timeout_seconds: 3
  auto_remove_bad_feeds: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Feeds.TimeoutSeconds != 3 || !cfg.Feeds.AutoRemoveBadFeeds {
		t.Errorf("unexpected feeds config: %+v", cfg.Feeds)
	}
	if cfg.Feeds.MaxFeedsPerSearch != 20 || cfg.Feeds.MaxArticlesPerFeed != 10 {
		t.Errorf("feed limits should default: %+v", cfg.Feeds)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/kiji.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "kiji.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path: got %q, want %q", cfg.Storage.DatabasePath, wantDB)
	}
}

func TestLoad_memoryDatabaseNotExpanded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  database_path: \":memory:\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != ":memory:" {
		t.Errorf("database_path: got %q", cfg.Storage.DatabasePath)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_tokenFromDotEnv(t *testing.T) {
	t.Setenv("KIJI_AI_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("KIJI_AI_TOKEN")
	os.Unsetenv("OPENAI_API_KEY")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: false\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("KIJI_AI_TOKEN=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.Token != "from-file" {
		t.Errorf("token: got %q, want from-file", cfg.AI.Token)
	}
}

func TestLoadEnv_precedence(t *testing.T) {
	t.Setenv("KIJI_AI_TOKEN", "kiji")
	t.Setenv("OPENAI_API_KEY", "openai")
	cfg := Default()
	LoadEnv(cfg, "")
	if cfg.AI.Token != "kiji" {
		t.Errorf("token: got %q, want kiji", cfg.AI.Token)
	}
	t.Setenv("KIJI_AI_TOKEN", "")
	LoadEnv(cfg, "")
	if cfg.AI.Token != "openai" {
		t.Errorf("token: got %q, want openai", cfg.AI.Token)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Port != 8080 {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if cfg.Feeds.TimeoutSeconds != 7 || cfg.Feeds.Concurrency != 1 || cfg.Feeds.AutoRemoveBadFeeds {
		t.Errorf("feeds: %+v", cfg.Feeds)
	}
	if len(cfg.Feeds.Seed) != len(DefaultSeedFeeds) {
		t.Errorf("seed: got %d feeds", len(cfg.Feeds.Seed))
	}
	if cfg.Similarity.MaxCandidates != 10 || cfg.Similarity.ConfidenceThreshold != 0.7 || cfg.Similarity.MinContentLength != 50 ||
		cfg.Similarity.Concurrency != 1 {
		t.Errorf("similarity: %+v", cfg.Similarity)
	}
	if cfg.AI.MinCompareLength != 100 || cfg.AI.MaxJSONAttempts != 3 {
		t.Errorf("ai: %+v", cfg.AI)
	}
}

func TestApplyDefaults_invalidThreshold(t *testing.T) {
	cfg := &Config{Similarity: SimilarityConfig{ConfidenceThreshold: 1.5}}
	ApplyDefaults(cfg)
	if cfg.Similarity.ConfidenceThreshold != 0.7 {
		t.Errorf("threshold: got %v", cfg.Similarity.ConfidenceThreshold)
	}
}

func TestApplyDefaults_emptySeedKept(t *testing.T) {
	cfg := &Config{Feeds: FeedsConfig{Seed: []models.FeedSource{}}}
	ApplyDefaults(cfg)
	if len(cfg.Feeds.Seed) != 0 {
		t.Errorf("explicit empty seed should stay empty, got %d", len(cfg.Feeds.Seed))
	}
}

func TestSave_roundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Feeds.AutoRemoveBadFeeds = true
	cfg.AI.Token = "secret"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("token must not be written to the config file")
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Feeds.AutoRemoveBadFeeds {
		t.Error("auto_remove_bad_feeds should survive save/load")
	}
}

func TestLive(t *testing.T) {
	first := Default()
	first.AI.Token = "tok"
	live := NewLive(first)
	next := Default()
	next.Feeds.TimeoutSeconds = 2
	live.Set(next)
	if live.Feeds().TimeoutSeconds != 2 {
		t.Errorf("timeout: got %d", live.Feeds().TimeoutSeconds)
	}
	if live.Get().AI.Token != "tok" {
		t.Error("token should carry over on reload")
	}
}
