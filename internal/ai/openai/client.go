// Package openai implements the ai services against any OpenAI-compatible chat completion
// endpoint (OpenAI, Ollama, vLLM, llama.cpp server) via langchaingo.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kiji/internal/ai"
	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/pkg/utils"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when the model returns no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Client implements ai.Provider.
type Client struct {
	llm         llms.Model
	timeout     time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Nil means no-op.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = utils.OrNop(l)
	}
}

// WithModel replaces the langchaingo model, mainly for tests.
func WithModel(m llms.Model) Option {
	return func(c *Client) {
		c.llm = m
	}
}

var _ ai.Provider = (*Client)(nil)

// New creates a Client for cfg. An empty token is sent as "none" so that local servers
// without authentication accept the request.
func New(cfg config.AIConfig, opts ...Option) (*Client, error) {
	c := &Client{
		timeout:     cfg.Timeout(),
		maxAttempts: cfg.MaxJSONAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 3
	}
	if c.llm == nil {
		token := cfg.Token
		if token == "" {
			token = "none"
		}
		llm, err := openai.New(
			openai.WithBaseURL(cfg.Host),
			openai.WithToken(token),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create llm client: %w", err)
		}
		c.llm = llm
	}
	return c, nil
}

// generateJSON sends the prompts and decodes the JSON reply into out, retrying up to
// maxAttempts times when the reply does not parse. Transport errors are not retried.
func (c *Client) generateJSON(ctx context.Context, op, system, user string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	content := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(user)}},
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.llm.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			c.logger.Warn("generate content failed", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
			return fmt.Errorf("%s: %w", op, err)
		}
		if len(resp.Choices) < 1 {
			return fmt.Errorf("%s: %w", op, ErrEmptyResponse)
		}
		text := repairJSON(stripFences(resp.Choices[0].Content))
		if err := json.Unmarshal([]byte(text), out); err != nil {
			lastErr = err
			c.logger.Warn("malformed model response",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.String("response", utils.Truncate(text, 200)),
				zap.Error(err))
			continue
		}
		return nil
	}
	return fmt.Errorf("%s: parse response after %d attempts: %w", op, c.maxAttempts, lastErr)
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
