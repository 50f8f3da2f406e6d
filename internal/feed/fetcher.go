// Package feed fetches RSS/Atom feeds and turns their items into articles.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/kiji/pkg/utils"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a fetch when the caller passes zero.
	DefaultTimeout   = 7 * time.Second
	DefaultUserAgent = "kiji/1.0"

	maxBodyBytes = 10 << 20
)

// Fetcher performs one HTTP GET per feed and parses the body with gofeed. It never retries.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = utils.OrNop(l) }
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{},
		userAgent: DefaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads and parses the feed at url within timeout. Every error is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*gofeed.Feed, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindUnreachable, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.fail(url, classifyTransport(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, f.fail(url, KindUnreachable, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, f.fail(url, classifyTransport(err), err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, f.fail(url, KindMalformed, err)
	}

	f.logger.Debug("fetched feed",
		zap.String("url", url),
		zap.Int("items", len(parsed.Items)),
		zap.Duration("elapsed", time.Since(start)))
	return parsed, nil
}

func (f *Fetcher) fail(url string, kind ErrorKind, err error) error {
	f.logger.Debug("feed fetch failed", zap.String("url", url), zap.String("kind", string(kind)), zap.Error(err))
	return &FetchError{Kind: kind, URL: url, Err: err}
}
