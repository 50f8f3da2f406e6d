package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/storage"
)

// QueryExpander turns a query into synonym groups, one per word.
type QueryExpander interface {
	ExpandQuery(ctx context.Context, query string) [][]string
}

// SavedSearcher searches saved analyses. It expands the query itself, so its groups may
// differ from the ones a caller computed for the same query.
type SavedSearcher struct {
	store    storage.ArticleStore
	expander QueryExpander
}

// NewSavedSearcher creates a SavedSearcher.
func NewSavedSearcher(store storage.ArticleStore, expander QueryExpander) *SavedSearcher {
	return &SavedSearcher{store: store, expander: expander}
}

// Search returns saved articles matching every word of query (or one of its synonyms) in
// the summary, original content, source, category, bias explanation, neutral summary or
// any similarity reasoning. Store errors are returned.
func (s *SavedSearcher) Search(ctx context.Context, query string) ([]*models.SavedArticle, error) {
	if strings.TrimSpace(query) == "" {
		return []*models.SavedArticle{}, nil
	}
	groups := s.expander.ExpandQuery(ctx, query)
	if len(groups) == 0 {
		return []*models.SavedArticle{}, nil
	}

	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read saved articles: %w", err)
	}

	hits := []*models.SavedArticle{}
	for _, a := range all {
		if MatchesFields(savedFields(a), groups) {
			hits = append(hits, a)
		}
	}
	return hits, nil
}

func savedFields(a *models.SavedArticle) []string {
	fields := []string{
		a.Summary,
		a.OriginalContent,
		a.SourceName,
		a.Category,
		a.BiasExplanation,
		a.NeutralSummary,
	}
	for _, l := range a.SimilarArticles {
		fields = append(fields, l.Reasoning)
	}
	return fields
}
