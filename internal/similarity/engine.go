// Package similarity links a newly saved article to recent saved articles that cover the
// same story.
package similarity

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/kiji/internal/ai"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/workers"
	"github.com/hyperjump/kiji/pkg/utils"
	"go.uber.org/zap"
)

const (
	DefaultMaxCandidates    = 10
	DefaultThreshold        = 0.7
	DefaultMinContentLength = 50
)

// Candidate is a previously saved article that may be compared against a new one.
type Candidate struct {
	ID      string
	Content string
	SavedAt time.Time
}

// Query describes one similarity search.
type Query struct {
	// Text is the new article's content.
	Text string
	// ExcludeID is never compared; it is the new article's own id.
	ExcludeID     string
	Pool          []Candidate
	MaxCandidates int
	Threshold     float64
}

// Engine compares a new article against a bounded, recency-ordered candidate pool.
type Engine struct {
	classifier ai.SimilarityClassifier
	minContent int
	workers    *workers.Pool
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) error {
		e.logger = utils.OrNop(l)
		return nil
	}
}

// WithMinContentLength sets the floor: texts whose trimmed length is at or below n
// characters are never compared.
func WithMinContentLength(n int) Option {
	return func(e *Engine) error {
		if n > 0 {
			e.minContent = n
		}
		return nil
	}
}

// WithConcurrency compares up to n candidates at once. Output order is unaffected.
func WithConcurrency(n int) Option {
	return func(e *Engine) error {
		p, err := workers.New(n)
		if err != nil {
			return err
		}
		if e.workers != nil {
			e.workers.Release()
		}
		e.workers = p
		return nil
	}
}

// NewEngine creates an Engine. Comparisons run one at a time unless WithConcurrency is given.
func NewEngine(classifier ai.SimilarityClassifier, opts ...Option) (*Engine, error) {
	seq, err := workers.New(1)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		classifier: classifier,
		minContent: DefaultMinContentLength,
		workers:    seq,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Release()
			return nil, err
		}
	}
	return e, nil
}

// Release frees the worker pool.
func (e *Engine) Release() {
	if e.workers != nil {
		e.workers.Release()
	}
}

// Candidates returns what FindSimilar would compare against, in comparison
// order: newest first, self and short texts removed, at most max entries.
func (e *Engine) Candidates(pool []Candidate, excludeID string, max int) []Candidate {
	if max <= 0 {
		max = DefaultMaxCandidates
	}
	sorted := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if c.ID == excludeID || !e.substantial(c.Content) {
			continue
		}
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SavedAt.After(sorted[j].SavedAt)
	})
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

// FindSimilar returns a link for every candidate the classifier judges similar with
// confidence at or above the threshold, in comparison order. It issues at most
// MaxCandidates classifier calls. A failed comparison is logged and skipped.
// No comparison happens when the new text is at or below the content floor.
func (e *Engine) FindSimilar(ctx context.Context, q Query) []models.SimilarityLink {
	links := []models.SimilarityLink{}
	if !e.substantial(q.Text) {
		e.logger.Debug("skipping similarity check: content too short", zap.String("id", q.ExcludeID))
		return links
	}
	threshold := q.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	candidates := e.Candidates(q.Pool, q.ExcludeID, q.MaxCandidates)
	if len(candidates) == 0 {
		e.logger.Debug("no candidate articles for similarity check", zap.String("id", q.ExcludeID))
		return links
	}
	e.logger.Debug("comparing against candidates", zap.String("id", q.ExcludeID), zap.Int("candidates", len(candidates)))

	verdicts := make([]*ai.Similarity, len(candidates))
	err := e.workers.Run(len(candidates), func(i int) {
		c := candidates[i]
		if ctx.Err() != nil {
			return
		}
		v, err := e.classifier.Compare(ctx, q.Text, c.Content)
		if err != nil {
			e.logger.Warn("similarity check failed", zap.String("candidate", c.ID), zap.Error(err))
			return
		}
		e.logger.Debug("similarity check",
			zap.String("candidate", c.ID),
			zap.Bool("similar", v.IsSimilar),
			zap.Float64("confidence", v.Confidence))
		verdicts[i] = &v
	})
	if err != nil {
		e.logger.Warn("similarity worker pool", zap.Error(err))
	}

	for i, v := range verdicts {
		if v == nil || !v.IsSimilar || v.Confidence < threshold {
			continue
		}
		links = append(links, models.SimilarityLink{
			ID:         candidates[i].ID,
			Confidence: utils.Clamp01(v.Confidence),
			Reasoning:  v.Reasoning,
		})
	}
	e.logger.Debug("similarity check done", zap.String("id", q.ExcludeID), zap.Int("links", len(links)))
	return links
}

func (e *Engine) substantial(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > e.minContent
}
