// Package mock provides in-memory ai service doubles for tests.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/hyperjump/kiji/internal/ai"
	"github.com/hyperjump/kiji/internal/models"
)

// Provider implements ai.Provider. Each method uses its Func field when set, otherwise a
// deterministic default. Calls are counted and safe for concurrent use.
type Provider struct {
	CompareFunc        func(ctx context.Context, a, b string) (ai.Similarity, error)
	SynonymsFunc       func(ctx context.Context, word string) ([]string, error)
	SummarizeFunc      func(ctx context.Context, content, instructions string) (string, error)
	AssessBiasFunc     func(ctx context.Context, content, instructions string) (ai.BiasAssessment, error)
	NeutralSummaryFunc func(ctx context.Context, content, instructions string) (string, error)

	mu            sync.Mutex
	compareCalls  int
	synonymCalls  int
	summaryCalls  int
	biasCalls     int
	neutralCalls  int
	compareInputs [][2]string
}

// NewProvider creates a mock provider with default behavior.
func NewProvider() *Provider {
	return &Provider{}
}

var _ ai.Provider = (*Provider)(nil)

// Compare defaults to "not similar".
func (p *Provider) Compare(ctx context.Context, a, b string) (ai.Similarity, error) {
	p.mu.Lock()
	p.compareCalls++
	p.compareInputs = append(p.compareInputs, [2]string{a, b})
	p.mu.Unlock()
	if p.CompareFunc != nil {
		return p.CompareFunc(ctx, a, b)
	}
	return ai.Similarity{IsSimilar: false, Confidence: 0, Reasoning: "mock"}, nil
}

// Synonyms defaults to no synonyms.
func (p *Provider) Synonyms(ctx context.Context, word string) ([]string, error) {
	p.mu.Lock()
	p.synonymCalls++
	p.mu.Unlock()
	if p.SynonymsFunc != nil {
		return p.SynonymsFunc(ctx, word)
	}
	return []string{}, nil
}

// Summarize defaults to the first sentence of content.
func (p *Provider) Summarize(ctx context.Context, content, instructions string) (string, error) {
	p.mu.Lock()
	p.summaryCalls++
	p.mu.Unlock()
	if p.SummarizeFunc != nil {
		return p.SummarizeFunc(ctx, content, instructions)
	}
	if i := strings.Index(content, "."); i > 0 {
		return content[:i+1], nil
	}
	return content, nil
}

// AssessBias defaults to Center.
func (p *Provider) AssessBias(ctx context.Context, content, instructions string) (ai.BiasAssessment, error) {
	p.mu.Lock()
	p.biasCalls++
	p.mu.Unlock()
	if p.AssessBiasFunc != nil {
		return p.AssessBiasFunc(ctx, content, instructions)
	}
	return ai.BiasAssessment{Bias: models.BiasCenter, Explanation: "mock assessment"}, nil
}

// NeutralSummary defaults to a prefixed copy of the content.
func (p *Provider) NeutralSummary(ctx context.Context, content, instructions string) (string, error) {
	p.mu.Lock()
	p.neutralCalls++
	p.mu.Unlock()
	if p.NeutralSummaryFunc != nil {
		return p.NeutralSummaryFunc(ctx, content, instructions)
	}
	return "Neutral: " + content, nil
}

// CompareCalls returns the number of Compare calls.
func (p *Provider) CompareCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.compareCalls
}

// CompareInputs returns the text pairs passed to Compare, in call order.
func (p *Provider) CompareInputs() [][2]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]string(nil), p.compareInputs...)
}

// SynonymCalls returns the number of Synonyms calls.
func (p *Provider) SynonymCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synonymCalls
}

// SummaryCalls returns the number of Summarize calls.
func (p *Provider) SummaryCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summaryCalls
}

// BiasCalls returns the number of AssessBias calls.
func (p *Provider) BiasCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.biasCalls
}

// NeutralCalls returns the number of NeutralSummary calls.
func (p *Provider) NeutralCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.neutralCalls
}

// Reset clears call counts and custom functions.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.compareCalls, p.synonymCalls, p.summaryCalls, p.biasCalls, p.neutralCalls = 0, 0, 0, 0, 0
	p.compareInputs = nil
	p.CompareFunc = nil
	p.SynonymsFunc = nil
	p.SummarizeFunc = nil
	p.AssessBiasFunc = nil
	p.NeutralSummaryFunc = nil
}
