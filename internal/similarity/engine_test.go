package similarity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kiji/internal/ai"
	"github.com/hyperjump/kiji/internal/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func longText(tag string) string {
	return tag + " " + strings.Repeat("substantial article content ", 5)
}

// pool returns n candidates; candidate i was saved i hours before base, so c0 is newest.
func pool(n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		id := fmt.Sprintf("c%d", i)
		out[i] = Candidate{ID: id, Content: longText(id), SavedAt: base.Add(-time.Duration(i) * time.Hour)}
	}
	return out
}

func newEngine(t *testing.T, m *mock.Provider, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(m, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e
}

func alwaysSimilar(conf float64) func(ctx context.Context, a, b string) (ai.Similarity, error) {
	return func(ctx context.Context, a, b string) (ai.Similarity, error) {
		return ai.Similarity{IsSimilar: true, Confidence: conf, Reasoning: "same story"}, nil
	}
}

func TestFindSimilar_neverExceedsMaxCandidates(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = alwaysSimilar(0.9)
	e := newEngine(t, m)

	links := e.FindSimilar(context.Background(), Query{Text: longText("new"), ExcludeID: "new", Pool: pool(25), MaxCandidates: 10, Threshold: 0.7})
	assert.Equal(t, 10, m.CompareCalls())
	assert.Len(t, links, 10)
}

func TestFindSimilar_shortNewTextSkipsClassifier(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = alwaysSimilar(1)
	e := newEngine(t, m)

	text := strings.Repeat("x", 40)
	links := e.FindSimilar(context.Background(), Query{Text: text, ExcludeID: "new", Pool: pool(5), MaxCandidates: 10, Threshold: 0.7})
	assert.Empty(t, links)
	assert.NotNil(t, links)
	assert.Equal(t, 0, m.CompareCalls())
}

func TestFindSimilar_floorIsExclusive(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = alwaysSimilar(1)
	e := newEngine(t, m)

	atFloor := "  " + strings.Repeat("y", 50) + "  "
	assert.Empty(t, e.FindSimilar(context.Background(), Query{Text: atFloor, Pool: pool(1)}))
	assert.Len(t, e.FindSimilar(context.Background(), Query{Text: strings.Repeat("y", 51), Pool: pool(1)}), 1)
}

func TestFindSimilar_shortCandidatesExcluded(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = alwaysSimilar(1)
	e := newEngine(t, m)

	p := pool(3)
	p[1].Content = "tiny"
	links := e.FindSimilar(context.Background(), Query{Text: longText("new"), Pool: p, MaxCandidates: 10})
	require.Len(t, links, 2)
	assert.Equal(t, "c0", links[0].ID)
	assert.Equal(t, "c2", links[1].ID)
}

func TestFindSimilar_failureDoesNotStopNextCandidate(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = func(ctx context.Context, a, b string) (ai.Similarity, error) {
		if strings.HasPrefix(b, "c1 ") {
			return ai.Similarity{}, errors.New("model timeout")
		}
		return ai.Similarity{IsSimilar: true, Confidence: 0.8}, nil
	}
	e := newEngine(t, m)

	links := e.FindSimilar(context.Background(), Query{Text: longText("new"), Pool: pool(3), MaxCandidates: 10})
	assert.Equal(t, 3, m.CompareCalls())
	require.Len(t, links, 2)
	assert.Equal(t, "c0", links[0].ID)
	assert.Equal(t, "c2", links[1].ID)
}

func TestFindSimilar_threshold(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = func(ctx context.Context, a, b string) (ai.Similarity, error) {
		switch {
		case strings.HasPrefix(b, "c0 "):
			return ai.Similarity{IsSimilar: true, Confidence: 0.69}, nil
		case strings.HasPrefix(b, "c1 "):
			return ai.Similarity{IsSimilar: true, Confidence: 0.7}, nil
		default:
			return ai.Similarity{IsSimilar: false, Confidence: 0.99}, nil
		}
	}
	e := newEngine(t, m)

	links := e.FindSimilar(context.Background(), Query{Text: longText("new"), Pool: pool(3), MaxCandidates: 10, Threshold: 0.7})
	require.Len(t, links, 1)
	assert.Equal(t, "c1", links[0].ID)
	assert.Equal(t, 0.7, links[0].Confidence)
}

func TestFindSimilar_excludesSelfAndOrdersByRecency(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = alwaysSimilar(0.9)
	e := newEngine(t, m)

	p := pool(4)
	// shuffle so input order differs from recency order
	p[0], p[3] = p[3], p[0]
	links := e.FindSimilar(context.Background(), Query{Text: longText("c2"), ExcludeID: "c2", Pool: p, MaxCandidates: 2})

	require.Len(t, links, 2)
	assert.Equal(t, "c0", links[0].ID)
	assert.Equal(t, "c1", links[1].ID)
	for _, in := range m.CompareInputs() {
		assert.False(t, strings.HasPrefix(in[1], "c2 "))
	}
}

func TestFindSimilar_concurrentPreservesOrder(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = func(ctx context.Context, a, b string) (ai.Similarity, error) {
		if strings.HasPrefix(b, "c0 ") {
			time.Sleep(20 * time.Millisecond)
		}
		return ai.Similarity{IsSimilar: true, Confidence: 0.9}, nil
	}
	e := newEngine(t, m, WithConcurrency(4))

	links := e.FindSimilar(context.Background(), Query{Text: longText("new"), Pool: pool(6), MaxCandidates: 6})
	require.Len(t, links, 6)
	for i, l := range links {
		assert.Equal(t, fmt.Sprintf("c%d", i), l.ID)
	}
	assert.Equal(t, 6, m.CompareCalls())
}

func TestFindSimilar_defaultsApplied(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = alwaysSimilar(0.75)
	e := newEngine(t, m)

	links := e.FindSimilar(context.Background(), Query{Text: longText("new"), Pool: pool(12)})
	assert.Equal(t, DefaultMaxCandidates, m.CompareCalls())
	assert.Len(t, links, DefaultMaxCandidates)
}

func TestFindSimilar_guardedClassifier(t *testing.T) {
	m := mock.NewProvider()
	m.CompareFunc = alwaysSimilar(1)
	e := newEngine(t, m)
	e.classifier = ai.NewGuard(m, 100)

	// both texts pass the engine floor but not the classifier guard
	links := e.FindSimilar(context.Background(), Query{Text: strings.Repeat("z", 60), Pool: pool(2)})
	assert.Empty(t, links)
	assert.Equal(t, 0, m.CompareCalls())
}
