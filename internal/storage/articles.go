package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kiji/internal/models"
	"go.uber.org/zap"
)

const articleColumns = `id, saved_at, source_name, article_link, category, summary, bias,
	bias_explanation, neutral_summary, original_content, similar_articles`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.SavedArticle, error) {
	var a models.SavedArticle
	var bias, links string
	if err := row.Scan(&a.ID, &a.SavedAt, &a.SourceName, &a.ArticleLink, &a.Category, &a.Summary,
		&bias, &a.BiasExplanation, &a.NeutralSummary, &a.OriginalContent, &links); err != nil {
		return nil, err
	}
	a.Bias = models.ParseBias(bias)
	a.SimilarArticles = unmarshalLinks(links)
	return &a, nil
}

// ListAll returns every saved article, newest first.
func (s *SQLiteStorage) ListAll(ctx context.Context) ([]*models.SavedArticle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM saved_articles ORDER BY saved_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := []*models.SavedArticle{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// GetByID returns a saved article by id.
func (s *SQLiteStorage) GetByID(ctx context.Context, id string) (*models.SavedArticle, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM saved_articles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return a, err
}

// FindByLink returns the saved article with the given link.
func (s *SQLiteStorage) FindByLink(ctx context.Context, link string) (*models.SavedArticle, error) {
	if link == "" {
		return nil, fmt.Errorf("empty link: %w", ErrNotFound)
	}
	a, err := scanArticle(s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM saved_articles WHERE article_link = ? ORDER BY saved_at LIMIT 1`, link))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article with link %s: %w", link, ErrNotFound)
	}
	return a, err
}

// Save inserts a or replaces the stored record with the same id. A zero SavedAt is set to now.
func (s *SQLiteStorage) Save(ctx context.Context, a *models.SavedArticle) (*models.SavedArticle, models.SaveOperation, error) {
	if a.ID == "" {
		return nil, "", errors.New("article id is required")
	}
	if a.SavedAt.IsZero() {
		a.SavedAt = time.Now()
	}
	a.SavedAt = a.SavedAt.UTC()
	if a.Bias == "" {
		a.Bias = models.BiasUnknown
	}
	links, err := marshalLinks(a.SimilarArticles)
	if err != nil {
		return nil, "", err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE saved_articles SET saved_at = ?, source_name = ?, article_link = ?, category = ?,
			summary = ?, bias = ?, bias_explanation = ?, neutral_summary = ?, original_content = ?,
			similar_articles = ?
		 WHERE id = ?`,
		a.SavedAt, a.SourceName, a.ArticleLink, a.Category, a.Summary, string(a.Bias),
		a.BiasExplanation, a.NeutralSummary, a.OriginalContent, links, a.ID,
	)
	if err != nil {
		return nil, "", err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return a, models.SaveUpdated, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saved_articles (`+articleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SavedAt, a.SourceName, a.ArticleLink, a.Category, a.Summary, string(a.Bias),
		a.BiasExplanation, a.NeutralSummary, a.OriginalContent, links,
	)
	if err != nil {
		return nil, "", err
	}
	return a, models.SaveNew, nil
}

// DeleteByID removes the article and every link pointing at it, in one transaction.
func (s *SQLiteStorage) DeleteByID(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM saved_articles WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()

	rows, err := tx.QueryContext(ctx, `SELECT id, similar_articles FROM saved_articles WHERE similar_articles LIKE ?`,
		"%"+id+"%")
	if err != nil {
		return false, err
	}
	type update struct {
		id    string
		links string
	}
	var updates []update
	for rows.Next() {
		var otherID, raw string
		if err := rows.Scan(&otherID, &raw); err != nil {
			rows.Close()
			return false, err
		}
		a := models.SavedArticle{ID: otherID, SimilarArticles: unmarshalLinks(raw)}
		if !a.RemoveLink(id) {
			continue
		}
		links, err := marshalLinks(a.SimilarArticles)
		if err != nil {
			rows.Close()
			return false, err
		}
		updates = append(updates, update{id: otherID, links: links})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, err
	}
	rows.Close()

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, `UPDATE saved_articles SET similar_articles = ? WHERE id = ?`, u.links, u.id); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	if n == 0 {
		s.logger.Debug("delete of missing article", zap.String("id", id))
	}
	s.logger.Debug("deleted article", zap.String("id", id), zap.Int("links_stripped", len(updates)))
	return n > 0, nil
}

// CountArticles returns the number of saved articles.
func (s *SQLiteStorage) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saved_articles`).Scan(&count)
	return count, err
}
