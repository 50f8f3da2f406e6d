// Package models defines core data structures for articles, feeds, callers, and search results.
package models

import (
	"strings"
	"time"
)

// Bias is the political leaning assigned to an article.
type Bias string

const (
	BiasLeft    Bias = "Left"
	BiasCenter  Bias = "Center"
	BiasRight   Bias = "Right"
	BiasUnknown Bias = "Unknown"
)

// ParseBias maps s case-insensitively onto a Bias; anything unrecognised is BiasUnknown.
func ParseBias(s string) Bias {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return BiasLeft
	case "center", "centre":
		return BiasCenter
	case "right":
		return BiasRight
	default:
		return BiasUnknown
	}
}

// SimilarityLink points from one saved article to another describing the same event.
type SimilarityLink struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Article is a normalized news item, either fetched live from a feed or mapped from a
// saved analysis.
type Article struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Link            string           `json:"link"`
	Source          string           `json:"source"`
	SourceURL       string           `json:"source_url,omitempty"`
	PublishedAt     time.Time        `json:"published_at"`
	Content         string           `json:"content,omitempty"`
	Summary         string           `json:"summary,omitempty"`
	Bias            Bias             `json:"bias"`
	BiasExplanation string           `json:"bias_explanation,omitempty"`
	NeutralSummary  string           `json:"neutral_summary,omitempty"`
	ImageURL        string           `json:"image_url,omitempty"`
	ImageHint       string           `json:"image_hint,omitempty"`
	Category        string           `json:"category,omitempty"`
	SimilarArticles []SimilarityLink `json:"similar_articles,omitempty"`
}

// SavedArticle is a persisted, AI-enriched analysis of an article.
// Updates match on ArticleLink, never on ID.
type SavedArticle struct {
	ID              string           `json:"id"`
	SavedAt         time.Time        `json:"saved_at"`
	SourceName      string           `json:"source_name,omitempty"`
	ArticleLink     string           `json:"article_link,omitempty"`
	Category        string           `json:"category,omitempty"`
	Summary         string           `json:"summary"`
	Bias            Bias             `json:"bias"`
	BiasExplanation string           `json:"bias_explanation"`
	NeutralSummary  string           `json:"neutral_summary,omitempty"`
	OriginalContent string           `json:"original_content,omitempty"`
	SimilarArticles []SimilarityLink `json:"similar_articles,omitempty"`
}

const (
	savedSourceName = "Saved Analysis"
	savedImageURL   = "https://placehold.co/600x400.png?text=Saved+Analysis"
	savedImageHint  = "saved analysis document"
)

// ToArticle maps a saved analysis into the common Article shape used by search results.
func (s *SavedArticle) ToArticle() *Article {
	source := s.SourceName
	if source == "" {
		source = savedSourceName
	}
	links := make([]SimilarityLink, len(s.SimilarArticles))
	copy(links, s.SimilarArticles)
	return &Article{
		ID:              s.ID,
		Title:           s.Summary,
		Link:            s.ArticleLink,
		Source:          source,
		SourceURL:       s.ArticleLink,
		PublishedAt:     s.SavedAt,
		Content:         s.OriginalContent,
		Summary:         s.Summary,
		Bias:            s.Bias,
		BiasExplanation: s.BiasExplanation,
		NeutralSummary:  s.NeutralSummary,
		ImageURL:        savedImageURL,
		ImageHint:       savedImageHint,
		Category:        s.Category,
		SimilarArticles: links,
	}
}

// RemoveLink drops every similarity link pointing at id. Reports whether anything changed.
func (s *SavedArticle) RemoveLink(id string) bool {
	kept := s.SimilarArticles[:0]
	removed := false
	for _, l := range s.SimilarArticles {
		if l.ID == id {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	s.SimilarArticles = kept
	return removed
}
