// Package storage defines persistence for saved analyses and configured feeds.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kiji/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrFeedExists is returned when adding or renaming a feed onto a URL already configured.
	ErrFeedExists = errors.New("feed already exists")
)

// ArticleStore persists saved analyses.
//
// Writes are last-writer-wins: there is no versioning, and a read followed by a Save can
// overwrite a concurrent change to the same record.
type ArticleStore interface {
	// ListAll returns every saved article, newest first.
	ListAll(ctx context.Context) ([]*models.SavedArticle, error)
	GetByID(ctx context.Context, id string) (*models.SavedArticle, error)
	// FindByLink returns the saved article for link, or ErrNotFound.
	FindByLink(ctx context.Context, link string) (*models.SavedArticle, error)
	// Save inserts the record, or replaces the record with the same id.
	Save(ctx context.Context, a *models.SavedArticle) (*models.SavedArticle, models.SaveOperation, error)
	// DeleteByID removes the record and strips links to it from every other record.
	// Deleting a missing id is not an error; the bool reports whether a row was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)
	CountArticles(ctx context.Context) (int64, error)
}

// FeedStore persists the configured feed list, in insertion order.
type FeedStore interface {
	ListFeeds(ctx context.Context) ([]models.FeedSource, error)
	// AddFeed returns ErrFeedExists when the URL is already configured.
	AddFeed(ctx context.Context, f models.FeedSource) error
	// UpdateFeed replaces the feed at originalURL, keeping its position.
	UpdateFeed(ctx context.Context, originalURL string, f models.FeedSource) error
	// DeleteFeed removes the feed at url. Removing a missing feed is not an error.
	DeleteFeed(ctx context.Context, url string) error
	// SeedFeeds inserts feeds only when the list is empty, returning how many were added.
	SeedFeeds(ctx context.Context, feeds []models.FeedSource) (int, error)
}

// Storage is the full persistence layer.
type Storage interface {
	ArticleStore
	FeedStore
	Close() error
}
