package ai

import (
	"context"
	"unicode/utf8"
)

// ShortTextReasoning is returned by Guard when a text is below the minimum length.
const ShortTextReasoning = "One or both texts are too short for reliable similarity assessment."

// Guard wraps a SimilarityClassifier and answers "not similar" without calling it when
// either text is shorter than MinLength characters.
type Guard struct {
	Next      SimilarityClassifier
	MinLength int
}

// NewGuard returns a Guard around next.
func NewGuard(next SimilarityClassifier, minLength int) *Guard {
	return &Guard{Next: next, MinLength: minLength}
}

// Compare implements SimilarityClassifier.
func (g *Guard) Compare(ctx context.Context, textA, textB string) (Similarity, error) {
	if utf8.RuneCountInString(textA) < g.MinLength || utf8.RuneCountInString(textB) < g.MinLength {
		return Similarity{IsSimilar: false, Confidence: 0, Reasoning: ShortTextReasoning}, nil
	}
	return g.Next.Compare(ctx, textA, textB)
}
