// Package analysis runs the AI analysis of an article and persists the result with
// similarity links to earlier analyses.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/kiji/internal/ai"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/storage"
	"github.com/hyperjump/kiji/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// MinContentLength is the shortest article text accepted for analysis.
	MinContentLength = 50
	DefaultTimeout   = 30 * time.Second
)

var (
	// ErrInvalidInput is wrapped by every validation failure.
	ErrInvalidInput = errors.New("invalid analysis input")
	// ErrForbidden is returned when the caller may not manage saved analyses.
	ErrForbidden = errors.New("caller is not allowed to manage saved analyses")
)

// AnalyzeInput is one request for analysis.
type AnalyzeInput struct {
	Content    string `json:"content"`
	SourceName string `json:"source_name,omitempty"`
	Category   string `json:"category,omitempty"`
	// Link keys the cache of previous analyses.
	Link            string `json:"link,omitempty"`
	GenerateNeutral bool   `json:"generate_neutral,omitempty"`
	// OriginalContentForSave replaces Content as the stored original text when set.
	OriginalContentForSave string `json:"original_content_for_save,omitempty"`
	ForceRefresh           bool   `json:"force_refresh,omitempty"`
	Instructions           string `json:"instructions,omitempty"`
}

// Validate checks content length and, when present, that the link is an absolute URL.
func (in *AnalyzeInput) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(in.Content)) < MinContentLength {
		return fmt.Errorf("%w: article content must be at least %d characters", ErrInvalidInput, MinContentLength)
	}
	in.Link = strings.TrimSpace(in.Link)
	if in.Link != "" {
		u, err := url.Parse(in.Link)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: invalid article link %q", ErrInvalidInput, in.Link)
		}
	}
	return nil
}

// Result is the outcome of an analysis, ready to be saved.
type Result struct {
	Summary         string      `json:"summary"`
	Bias            models.Bias `json:"bias"`
	BiasExplanation string      `json:"bias_explanation"`
	NeutralSummary  string      `json:"neutral_summary,omitempty"`
	SourceName      string      `json:"source_name,omitempty"`
	Category        string      `json:"category,omitempty"`
	ArticleLink     string      `json:"article_link,omitempty"`
	OriginalContent string      `json:"original_content,omitempty"`
	// Cached is set when the result came from a saved analysis.
	Cached bool `json:"cached"`
}

// Analyzer produces summaries, bias assessments and neutral summaries.
type Analyzer struct {
	summarizer ai.Summarizer
	assessor   ai.BiasAssessor
	neutral    ai.NeutralSummarizer
	store      storage.ArticleStore
	timeout    time.Duration
	logger     *zap.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithAnalyzerLogger sets the logger.
func WithAnalyzerLogger(l *zap.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = utils.OrNop(l)
	}
}

// WithTimeout bounds every analysis.
func WithTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAnalyzer creates an Analyzer. store may be nil, which disables the cache.
func NewAnalyzer(p ai.Provider, store storage.ArticleStore, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		summarizer: p,
		assessor:   p,
		neutral:    p,
		store:      store,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns the saved analysis for in.Link unless ForceRefresh is set, generating
// only the neutral summary when it is requested and missing. Otherwise it runs the
// summarizer and bias assessor (and the neutral summarizer when requested) concurrently.
func (a *Analyzer) Analyze(ctx context.Context, in AnalyzeInput) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.analyze(ctx, in)
	if err != nil {
		a.logger.Warn("article analysis failed", zap.String("link", in.Link), zap.Error(err))
		return nil, fmt.Errorf("failed to analyze article content via AI: %w", err)
	}
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, in AnalyzeInput) (*Result, error) {
	if in.Link != "" && !in.ForceRefresh && a.store != nil {
		cached, err := a.cached(ctx, in)
		if err != nil || cached != nil {
			return cached, err
		}
		a.logger.Debug("no cached analysis", zap.String("link", in.Link))
	} else if in.ForceRefresh {
		a.logger.Debug("force refresh, bypassing cache", zap.String("link", in.Link))
	}

	res := &Result{
		SourceName:      in.SourceName,
		Category:        in.Category,
		ArticleLink:     in.Link,
		OriginalContent: in.OriginalContentForSave,
	}
	if res.OriginalContent == "" {
		res.OriginalContent = in.Content
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.summarizer.Summarize(gctx, in.Content, in.Instructions)
		if err != nil {
			return fmt.Errorf("summarize: %w", err)
		}
		res.Summary = s
		return nil
	})
	g.Go(func() error {
		b, err := a.assessor.AssessBias(gctx, in.Content, in.Instructions)
		if err != nil {
			return fmt.Errorf("assess bias: %w", err)
		}
		res.Bias, res.BiasExplanation = b.Bias, b.Explanation
		return nil
	})
	if in.GenerateNeutral {
		g.Go(func() error {
			n, err := a.neutral.NeutralSummary(gctx, in.Content, in.Instructions)
			if err != nil {
				return fmt.Errorf("neutral summary: %w", err)
			}
			res.NeutralSummary = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if res.Bias == "" {
		res.Bias = models.BiasUnknown
	}
	return res, nil
}

// cached returns nil, nil when no analysis is saved for the link.
func (a *Analyzer) cached(ctx context.Context, in AnalyzeInput) (*Result, error) {
	saved, err := a.store.FindByLink(ctx, in.Link)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up cached analysis: %w", err)
	}

	res := &Result{
		Summary:         saved.Summary,
		Bias:            saved.Bias,
		BiasExplanation: saved.BiasExplanation,
		NeutralSummary:  saved.NeutralSummary,
		SourceName:      saved.SourceName,
		Category:        saved.Category,
		ArticleLink:     saved.ArticleLink,
		OriginalContent: saved.OriginalContent,
		Cached:          true,
	}
	if in.GenerateNeutral && saved.NeutralSummary == "" {
		a.logger.Debug("cached analysis lacks neutral summary, generating", zap.String("link", in.Link))
		content := saved.OriginalContent
		if content == "" {
			content = in.Content
		}
		n, err := a.neutral.NeutralSummary(ctx, content, in.Instructions)
		if err != nil {
			return nil, fmt.Errorf("neutral summary: %w", err)
		}
		res.NeutralSummary = n
	} else {
		a.logger.Debug("returning cached analysis", zap.String("link", in.Link))
	}
	return res, nil
}
