package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hyperjump/kiji/internal/feed"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/storage"
	"github.com/mmcdole/gofeed"
)

// fakeFetcher serves canned feeds by URL. Unknown URLs are unreachable.
type fakeFetcher struct {
	mu       sync.Mutex
	feeds    map[string]*gofeed.Feed
	errs     map[string]error
	delays   map[string]time.Duration
	timeouts []time.Duration
	calls    []string
	// onFetch runs after a fetch is recorded, before it answers.
	onFetch func(url string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		feeds:  map[string]*gofeed.Feed{},
		errs:   map[string]error{},
		delays: map[string]time.Duration{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*gofeed.Feed, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.timeouts = append(f.timeouts, timeout)
	delay := f.delays[url]
	parsed, ok := f.feeds[url]
	err := f.errs[url]
	onFetch := f.onFetch
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if onFetch != nil {
		onFetch(url)
	}
	if ctx.Err() != nil {
		return nil, &feed.FetchError{Kind: feed.KindOther, URL: url, Err: ctx.Err()}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &feed.FetchError{Kind: feed.KindUnreachable, URL: url, Err: errors.New("no such host")}
	}
	return parsed, nil
}

// memFeeds is an in-memory FeedStore.
type memFeeds struct {
	mu        sync.Mutex
	feeds     []models.FeedSource
	listErr   error
	deleteErr error
}

func (m *memFeeds) ListFeeds(ctx context.Context) ([]models.FeedSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]models.FeedSource(nil), m.feeds...), nil
}

func (m *memFeeds) AddFeed(ctx context.Context, f models.FeedSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.feeds {
		if existing.URL == f.URL {
			return storage.ErrFeedExists
		}
	}
	m.feeds = append(m.feeds, f)
	return nil
}

func (m *memFeeds) UpdateFeed(ctx context.Context, originalURL string, f models.FeedSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.feeds {
		if existing.URL == originalURL {
			m.feeds[i] = f
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memFeeds) DeleteFeed(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	kept := m.feeds[:0]
	for _, f := range m.feeds {
		if f.URL != url {
			kept = append(kept, f)
		}
	}
	m.feeds = kept
	return nil
}

func (m *memFeeds) SeedFeeds(ctx context.Context, feeds []models.FeedSource) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.feeds) > 0 {
		return 0, nil
	}
	m.feeds = append(m.feeds, feeds...)
	return len(feeds), nil
}

// memArticles is an in-memory ArticleStore.
type memArticles struct {
	articles []*models.SavedArticle
	listErr  error
}

func (m *memArticles) ListAll(ctx context.Context) ([]*models.SavedArticle, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.articles, nil
}

func (m *memArticles) GetByID(ctx context.Context, id string) (*models.SavedArticle, error) {
	for _, a := range m.articles {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memArticles) FindByLink(ctx context.Context, link string) (*models.SavedArticle, error) {
	for _, a := range m.articles {
		if a.ArticleLink == link && link != "" {
			return a, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memArticles) Save(ctx context.Context, a *models.SavedArticle) (*models.SavedArticle, models.SaveOperation, error) {
	for i, existing := range m.articles {
		if existing.ID == a.ID {
			m.articles[i] = a
			return a, models.SaveUpdated, nil
		}
	}
	m.articles = append(m.articles, a)
	return a, models.SaveNew, nil
}

func (m *memArticles) DeleteByID(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *memArticles) CountArticles(ctx context.Context) (int64, error) {
	return int64(len(m.articles)), nil
}

// staticExpander returns fixed groups regardless of the query.
type staticExpander [][]string

func (s staticExpander) ExpandQuery(ctx context.Context, query string) [][]string {
	return s
}
