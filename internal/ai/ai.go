// Package ai defines the language-model services used by search and analysis.
// Implementations live in subpackages (openai for OpenAI-compatible endpoints, mock for tests).
package ai

import (
	"context"

	"github.com/hyperjump/kiji/internal/models"
)

// Similarity is a classifier verdict for a pair of texts.
type Similarity struct {
	IsSimilar  bool    `json:"is_similar"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// SimilarityClassifier decides whether two texts discuss the same event or topic.
type SimilarityClassifier interface {
	Compare(ctx context.Context, textA, textB string) (Similarity, error)
}

// SynonymService returns related terms for a single word.
type SynonymService interface {
	Synonyms(ctx context.Context, word string) ([]string, error)
}

// Summarizer produces a concise summary of an article.
type Summarizer interface {
	Summarize(ctx context.Context, content, instructions string) (string, error)
}

// BiasAssessment is the political lean of an article and why.
type BiasAssessment struct {
	Bias        models.Bias
	Explanation string
}

// BiasAssessor rates the political bias of an article.
type BiasAssessor interface {
	AssessBias(ctx context.Context, content, instructions string) (BiasAssessment, error)
}

// NeutralSummarizer rewrites an article as a neutral summary.
type NeutralSummarizer interface {
	NeutralSummary(ctx context.Context, content, instructions string) (string, error)
}

// Provider bundles every service. The openai and mock packages both implement it.
type Provider interface {
	SimilarityClassifier
	SynonymService
	Summarizer
	BiasAssessor
	NeutralSummarizer
}
