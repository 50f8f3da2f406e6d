// Package synonym expands search words into synonym groups.
package synonym

import (
	"context"
	"strings"
	"time"

	"github.com/hyperjump/kiji/internal/ai"
	"github.com/hyperjump/kiji/pkg/utils"
	"go.uber.org/zap"
)

// DefaultCacheSize is the number of words kept by the expansion cache.
const DefaultCacheSize = 1024

// Expander turns words into synonym groups using an ai.SynonymService.
// Expand never fails: when the service errors the group is just the word itself.
type Expander struct {
	svc     ai.SynonymService
	cache   *Cache
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Expander) { e.logger = utils.OrNop(l) }
}

// WithTimeout bounds each service call.
func WithTimeout(d time.Duration) Option {
	return func(e *Expander) { e.timeout = d }
}

// WithCacheSize sets the cache capacity. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(e *Expander) {
		if n <= 0 {
			e.cache = nil
			return
		}
		e.cache = NewCache(n)
	}
}

// NewExpander creates an Expander. svc may be nil, in which case every group is the word alone.
func NewExpander(svc ai.SynonymService, opts ...Option) *Expander {
	e := &Expander{
		svc:    svc,
		cache:  NewCache(DefaultCacheSize),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns the synonym group for word: lower-cased, unique, the word itself first.
// An empty or blank word yields an empty group.
func (e *Expander) Expand(ctx context.Context, word string) []string {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return []string{}
	}
	if e.cache != nil {
		if group, ok := e.cache.Get(word); ok {
			return group
		}
	}
	if e.svc == nil {
		return []string{word}
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	synonyms, err := e.svc.Synonyms(callCtx, word)
	if err != nil {
		e.logger.Warn("synonym lookup failed", zap.String("word", word), zap.Error(err))
		return []string{word}
	}

	group := normalize(word, synonyms)
	if e.cache != nil {
		e.cache.Set(word, group)
	}
	return group
}

// ExpandQuery splits query on whitespace and expands each token into its own group.
func (e *Expander) ExpandQuery(ctx context.Context, query string) [][]string {
	tokens := strings.Fields(query)
	groups := make([][]string, 0, len(tokens))
	for _, tok := range tokens {
		if group := e.Expand(ctx, tok); len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

func normalize(word string, synonyms []string) []string {
	group := make([]string, 0, len(synonyms)+1)
	seen := map[string]struct{}{word: {}}
	group = append(group, word)
	for _, s := range synonyms {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		group = append(group, s)
	}
	return group
}
