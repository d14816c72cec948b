// Package store is a local SQLite cache behind the front-end: article
// snapshots for best-effort rendering when the backend is unreachable,
// resolved image URLs, and the history of submitted analysis jobs. Chat
// transcripts are deliberately not persisted.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite cache database.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the cache database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func migrate(conn *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT,
			category TEXT,
			created_at TEXT,
			image_url TEXT,
			resolved_image TEXT,
			position INTEGER NOT NULL DEFAULT 0,
			cached_at TEXT DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			topic TEXT NOT NULL,
			category TEXT,
			state TEXT NOT NULL DEFAULT 'submitting',
			matched_article_id TEXT,
			advisory TEXT,
			created_at TEXT DEFAULT (datetime('now')),
			finished_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at)`,
	}

	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Stats contains aggregate cache statistics.
type Stats struct {
	CachedArticles int
	ResolvedImages int
	TotalJobs      int
	MatchedJobs    int
	ExhaustedJobs  int
}

// GetStats returns aggregate statistics for the status command.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	row := s.conn.QueryRow(`SELECT COUNT(*),
		COUNT(CASE WHEN resolved_image IS NOT NULL AND resolved_image != '' THEN 1 END)
		FROM articles`)
	if err := row.Scan(&stats.CachedArticles, &stats.ResolvedImages); err != nil {
		return nil, err
	}

	row = s.conn.QueryRow(`SELECT COUNT(*),
		COUNT(CASE WHEN state = 'matched' THEN 1 END),
		COUNT(CASE WHEN state = 'exhausted' THEN 1 END)
		FROM jobs`)
	if err := row.Scan(&stats.TotalJobs, &stats.MatchedJobs, &stats.ExhaustedJobs); err != nil {
		return nil, err
	}

	return stats, nil
}
