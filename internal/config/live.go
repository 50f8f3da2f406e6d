package config

import "sync"

// Live holds the current configuration so that a reload can swap it while searches
// are running. Readers get a snapshot; a search keeps the snapshot it started with.
type Live struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewLive wraps cfg.
func NewLive(cfg *Config) *Live {
	return &Live{cfg: cfg}
}

// Get returns the current config.
func (l *Live) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Set replaces the current config. The new config keeps the previous AI token when the
// reloaded one has none.
func (l *Live) Set(cfg *Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cfg.AI.Token == "" && l.cfg != nil {
		cfg.AI.Token = l.cfg.AI.Token
	}
	l.cfg = cfg
}

// Feeds returns a copy of the current feed settings.
func (l *Live) Feeds() FeedsConfig {
	return l.Get().Feeds
}

// Similarity returns a copy of the current similarity settings.
func (l *Live) Similarity() SimilarityConfig {
	return l.Get().Similarity
}
