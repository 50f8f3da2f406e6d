package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/pkg/utils"
	"go.uber.org/zap"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Option configures SQLiteStorage.
type Option func(*SQLiteStorage)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = utils.OrNop(l) }
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. A file that is not a usable database
// is moved aside to dbPath.corrupt-<unix> and replaced by an empty one.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	s := &SQLiteStorage{path: dbPath, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if dbPath != MemoryPath {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := openDB(dbPath)
	if err != nil && dbPath != MemoryPath {
		s.logger.Warn("database unusable, reinitializing", zap.String("path", dbPath), zap.Error(err))
		aside := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
		if rerr := os.Rename(dbPath, aside); rerr != nil {
			return nil, fmt.Errorf("failed to move corrupt database aside: %w", rerr)
		}
		for _, suffix := range []string{"-wal", "-shm"} {
			_ = os.Remove(dbPath + suffix)
		}
		db, err = openDB(dbPath)
	}
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == MemoryPath {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil || check != "ok" {
		_ = db.Close()
		if err == nil {
			err = errors.New(check)
		}
		return nil, fmt.Errorf("database integrity check failed: %w", err)
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS saved_articles (
		id TEXT PRIMARY KEY,
		saved_at TIMESTAMP NOT NULL,
		source_name TEXT NOT NULL DEFAULT '',
		article_link TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL,
		bias TEXT NOT NULL DEFAULT 'Unknown',
		bias_explanation TEXT NOT NULL DEFAULT '',
		neutral_summary TEXT NOT NULL DEFAULT '',
		original_content TEXT NOT NULL DEFAULT '',
		similar_articles TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_saved_articles_saved_at ON saved_articles(saved_at);
	CREATE INDEX IF NOT EXISTS idx_saved_articles_link ON saved_articles(article_link);

	CREATE TABLE IF NOT EXISTS feeds (
		url TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_feeds_position ON feeds(position);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func marshalLinks(links []models.SimilarityLink) (string, error) {
	if links == nil {
		links = []models.SimilarityLink{}
	}
	b, err := json.Marshal(links)
	if err != nil {
		return "", fmt.Errorf("failed to marshal similar articles: %w", err)
	}
	return string(b), nil
}

func unmarshalLinks(raw string) []models.SimilarityLink {
	var links []models.SimilarityLink
	if raw == "" {
		return links
	}
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		return nil
	}
	return links
}
