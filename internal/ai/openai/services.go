package openai

import (
	"context"
	"strings"

	"github.com/hyperjump/kiji/internal/ai"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/pkg/utils"
)

type similarityReply struct {
	IsSimilar  bool    `json:"is_similar"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type synonymsReply struct {
	Synonyms []string `json:"synonyms"`
}

type summaryReply struct {
	Summary string `json:"summary"`
}

type biasReply struct {
	Bias        string `json:"bias"`
	Explanation string `json:"explanation"`
}

type neutralReply struct {
	NeutralSummary string `json:"neutral_summary"`
}

// Compare implements ai.SimilarityClassifier. Confidence is clamped to [0,1].
func (c *Client) Compare(ctx context.Context, textA, textB string) (ai.Similarity, error) {
	var r similarityReply
	if err := c.generateJSON(ctx, "compare", similaritySystemPrompt, similarityUserPrompt(textA, textB), &r); err != nil {
		return ai.Similarity{}, err
	}
	return ai.Similarity{
		IsSimilar:  r.IsSimilar,
		Confidence: utils.Clamp01(r.Confidence),
		Reasoning:  strings.TrimSpace(r.Reasoning),
	}, nil
}

// Synonyms implements ai.SynonymService.
func (c *Client) Synonyms(ctx context.Context, word string) ([]string, error) {
	var r synonymsReply
	if err := c.generateJSON(ctx, "synonyms", synonymsSystemPrompt, synonymsUserPrompt(word), &r); err != nil {
		return nil, err
	}
	if r.Synonyms == nil {
		return []string{}, nil
	}
	return r.Synonyms, nil
}

// Summarize implements ai.Summarizer.
func (c *Client) Summarize(ctx context.Context, content, instructions string) (string, error) {
	var r summaryReply
	if err := c.generateJSON(ctx, "summarize", summarySystemPrompt, articleUserPrompt(content, instructions), &r); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.Summary), nil
}

// AssessBias implements ai.BiasAssessor. Unrecognised labels become Unknown.
func (c *Client) AssessBias(ctx context.Context, content, instructions string) (ai.BiasAssessment, error) {
	var r biasReply
	if err := c.generateJSON(ctx, "bias", biasSystemPrompt, articleUserPrompt(content, instructions), &r); err != nil {
		return ai.BiasAssessment{}, err
	}
	return ai.BiasAssessment{
		Bias:        models.ParseBias(r.Bias),
		Explanation: strings.TrimSpace(r.Explanation),
	}, nil
}

// NeutralSummary implements ai.NeutralSummarizer.
func (c *Client) NeutralSummary(ctx context.Context, content, instructions string) (string, error) {
	var r neutralReply
	if err := c.generateJSON(ctx, "neutral", neutralSystemPrompt, articleUserPrompt(content, instructions), &r); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.NeutralSummary), nil
}
