package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/kiji/internal/models"
)

// ListFeeds returns the configured feeds in insertion order.
func (s *SQLiteStorage) ListFeeds(ctx context.Context) ([]models.FeedSource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, url, category FROM feeds ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feeds := []models.FeedSource{}
	for rows.Next() {
		var f models.FeedSource
		if err := rows.Scan(&f.Name, &f.URL, &f.Category); err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// AddFeed appends a feed.
func (s *SQLiteStorage) AddFeed(ctx context.Context, f models.FeedSource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feeds (url, name, category, position)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM feeds))`,
		f.URL, f.Name, f.Category)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", f.URL, ErrFeedExists)
	}
	return err
}

// UpdateFeed replaces the feed stored under originalURL.
func (s *SQLiteStorage) UpdateFeed(ctx context.Context, originalURL string, f models.FeedSource) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feeds SET url = ?, name = ?, category = ? WHERE url = ?`,
		f.URL, f.Name, f.Category, originalURL)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", f.URL, ErrFeedExists)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("feed %s: %w", originalURL, ErrNotFound)
	}
	return nil
}

// DeleteFeed removes the feed with url, if present.
func (s *SQLiteStorage) DeleteFeed(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM feeds WHERE url = ?`, url)
	return err
}

// SeedFeeds adds feeds when none are configured. Duplicate URLs within feeds are skipped.
func (s *SQLiteStorage) SeedFeeds(ctx context.Context, feeds []models.FeedSource) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM feeds`).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	added := 0
	for i, f := range feeds {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO feeds (url, name, category, position) VALUES (?, ?, ?, ?)`,
			f.URL, f.Name, f.Category, i+1)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, tx.Commit()
}
