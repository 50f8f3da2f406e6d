package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/similarity"
	"github.com/hyperjump/kiji/internal/storage"
	"github.com/hyperjump/kiji/pkg/utils"
	"go.uber.org/zap"
)

// linkTitleRunes is how much of a summary is shown as the title of a linked article.
const linkTitleRunes = 70

// SaveInput is an analysis to persist.
type SaveInput struct {
	SourceName      string      `json:"source_name,omitempty"`
	ArticleLink     string      `json:"article_link,omitempty"`
	Category        string      `json:"category,omitempty"`
	Summary         string      `json:"summary"`
	Bias            models.Bias `json:"bias"`
	BiasExplanation string      `json:"bias_explanation"`
	NeutralSummary  string      `json:"neutral_summary,omitempty"`
	OriginalContent string      `json:"original_content,omitempty"`
	// SimilarArticles replaces the links of an updated record when non-empty.
	SimilarArticles []models.SimilarityLink `json:"similar_articles,omitempty"`
}

// FromResult builds a SaveInput from an analysis result.
func FromResult(r *Result) SaveInput {
	return SaveInput{
		SourceName:      r.SourceName,
		ArticleLink:     r.ArticleLink,
		Category:        r.Category,
		Summary:         r.Summary,
		Bias:            r.Bias,
		BiasExplanation: r.BiasExplanation,
		NeutralSummary:  r.NeutralSummary,
		OriginalContent: r.OriginalContent,
	}
}

// SaveResult is the stored record and whether it was created or updated.
type SaveResult struct {
	Article   *models.SavedArticle `json:"article"`
	Operation models.SaveOperation `json:"operation"`
}

// LinkDetail is a short description of a linked article.
type LinkDetail struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceName string `json:"source_name,omitempty"`
	Category   string `json:"category,omitempty"`
	Link       string `json:"link,omitempty"`
}

// Library saves and deletes analyses on behalf of a caller.
//
// Save reads the whole store and writes one record without locking. Two concurrent saves
// both see the pre-save state and the later write wins.
type Library struct {
	store    storage.ArticleStore
	engine   *similarity.Engine
	settings func() config.SimilarityConfig
	logger   *zap.Logger
}

// LibraryOption configures a Library.
type LibraryOption func(*Library)

// WithLibraryLogger sets the logger.
func WithLibraryLogger(l *zap.Logger) LibraryOption {
	return func(lib *Library) {
		lib.logger = utils.OrNop(l)
	}
}

// WithSimilaritySettings supplies the candidate cap and threshold, read on every save.
func WithSimilaritySettings(fn func() config.SimilarityConfig) LibraryOption {
	return func(lib *Library) {
		if fn != nil {
			lib.settings = fn
		}
	}
}

// NewLibrary creates a Library. engine may be nil, which saves without similarity links.
func NewLibrary(store storage.ArticleStore, engine *similarity.Engine, opts ...LibraryOption) *Library {
	lib := &Library{
		store:  store,
		engine: engine,
		settings: func() config.SimilarityConfig {
			return config.SimilarityConfig{
				MaxCandidates:       similarity.DefaultMaxCandidates,
				ConfidenceThreshold: similarity.DefaultThreshold,
			}
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

// Save stores an analysis. A record with the same article link is updated in place,
// keeping its id, saved time and links unless new links are given. Anything else is
// stored under a fresh id with links to similar recent analyses.
func (l *Library) Save(ctx context.Context, caller models.Caller, in SaveInput) (*SaveResult, error) {
	if !caller.CanManage() {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Summary) == "" {
		return nil, fmt.Errorf("%w: summary cannot be empty", ErrInvalidInput)
	}
	if in.Bias == "" {
		in.Bias = models.BiasUnknown
	}
	in.ArticleLink = strings.TrimSpace(in.ArticleLink)

	if in.ArticleLink != "" {
		existing, err := l.store.FindByLink(ctx, in.ArticleLink)
		switch {
		case err == nil:
			return l.update(ctx, existing, in)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("look up article by link: %w", err)
		}
	}
	return l.insert(ctx, in)
}

func (l *Library) update(ctx context.Context, existing *models.SavedArticle, in SaveInput) (*SaveResult, error) {
	rec := *existing
	rec.Summary = in.Summary
	rec.Bias = in.Bias
	rec.BiasExplanation = in.BiasExplanation
	rec.NeutralSummary = firstNonEmpty(in.NeutralSummary, existing.NeutralSummary)
	rec.SourceName = firstNonEmpty(in.SourceName, existing.SourceName)
	rec.Category = firstNonEmpty(in.Category, existing.Category)
	rec.OriginalContent = firstNonEmpty(in.OriginalContent, existing.OriginalContent)
	if len(in.SimilarArticles) > 0 {
		rec.SimilarArticles = in.SimilarArticles
	}

	saved, _, err := l.store.Save(ctx, &rec)
	if err != nil {
		return nil, fmt.Errorf("update analysis: %w", err)
	}
	l.logger.Info("updated saved analysis", zap.String("id", saved.ID), zap.String("link", saved.ArticleLink))
	return &SaveResult{Article: saved, Operation: models.SaveUpdated}, nil
}

func (l *Library) insert(ctx context.Context, in SaveInput) (*SaveResult, error) {
	rec := &models.SavedArticle{
		ID:              uuid.New().String(),
		SavedAt:         time.Now().UTC(),
		SourceName:      in.SourceName,
		ArticleLink:     in.ArticleLink,
		Category:        in.Category,
		Summary:         in.Summary,
		Bias:            in.Bias,
		BiasExplanation: in.BiasExplanation,
		NeutralSummary:  in.NeutralSummary,
		OriginalContent: in.OriginalContent,
		SimilarArticles: []models.SimilarityLink{},
	}

	if l.engine != nil {
		links, err := l.findSimilar(ctx, rec)
		if err != nil {
			return nil, err
		}
		rec.SimilarArticles = links
	}

	saved, _, err := l.store.Save(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	l.logger.Info("saved new analysis",
		zap.String("id", saved.ID),
		zap.String("link", saved.ArticleLink),
		zap.Int("similar", len(saved.SimilarArticles)))
	return &SaveResult{Article: saved, Operation: models.SaveNew}, nil
}

func (l *Library) findSimilar(ctx context.Context, rec *models.SavedArticle) ([]models.SimilarityLink, error) {
	all, err := l.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list saved analyses: %w", err)
	}
	pool := make([]similarity.Candidate, 0, len(all))
	for _, a := range all {
		pool = append(pool, similarity.Candidate{ID: a.ID, Content: a.OriginalContent, SavedAt: a.SavedAt})
	}
	s := l.settings()
	return l.engine.FindSimilar(ctx, similarity.Query{
		Text:          rec.OriginalContent,
		ExcludeID:     rec.ID,
		Pool:          pool,
		MaxCandidates: s.MaxCandidates,
		Threshold:     s.ConfidenceThreshold,
	}), nil
}

// Delete removes a saved analysis and every link pointing at it. Deleting a missing id
// succeeds.
func (l *Library) Delete(ctx context.Context, caller models.Caller, id string) error {
	if !caller.CanManage() {
		return ErrForbidden
	}
	removed, err := l.store.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	if !removed {
		l.logger.Warn("saved analysis not found for deletion", zap.String("id", id))
	}
	return nil
}

// LinkDetails describes the given ids in order, skipping ids that are not saved.
func (l *Library) LinkDetails(ctx context.Context, ids []string) ([]LinkDetail, error) {
	details := []LinkDetail{}
	for _, id := range ids {
		a, err := l.store.GetByID(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get analysis %s: %w", id, err)
		}
		details = append(details, LinkDetail{
			ID:         a.ID,
			Title:      utils.Excerpt(a.Summary, linkTitleRunes),
			SourceName: a.SourceName,
			Category:   a.Category,
			Link:       a.ArticleLink,
		})
	}
	return details, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
