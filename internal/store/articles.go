package store

import (
	"database/sql"
	"strings"

	"github.com/trendsage/trendsage/internal/api"
)

// CachedArticle is an article snapshot plus locally resolved image data.
type CachedArticle struct {
	api.Article
	ResolvedImage string
}

// CacheArticles upserts a fetched article list, preserving the backend's
// ordering via the position column. Re-caching an existing id updates it.
func (s *Store) CacheArticles(articles []api.Article) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, a := range articles {
		_, err := tx.Exec(
			`INSERT INTO articles (id, title, content, category, created_at, image_url, position, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				content = excluded.content,
				category = excluded.category,
				created_at = excluded.created_at,
				image_url = excluded.image_url,
				position = excluded.position,
				cached_at = excluded.cached_at`,
			a.ID, a.Title, a.Content, a.Category, a.CreatedAt, a.ImageURL, i,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CachedArticles returns cached articles in backend order. An empty
// category or "All" returns the whole cache; otherwise the filter matches
// the category case-insensitively.
func (s *Store) CachedArticles(category string) ([]CachedArticle, error) {
	query := `SELECT id, title, content, category, created_at, image_url, resolved_image
		FROM articles`
	var args []any
	if category != "" && category != api.CategoryAll {
		query += ` WHERE LOWER(category) = ?`
		args = append(args, strings.ToLower(category))
	}
	query += ` ORDER BY position`

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []CachedArticle
	for rows.Next() {
		a, err := scanCachedArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// CachedArticle returns a single cached article by id, or nil when absent.
func (s *Store) CachedArticle(id string) (*CachedArticle, error) {
	row := s.conn.QueryRow(
		`SELECT id, title, content, category, created_at, image_url, resolved_image
		FROM articles WHERE id = ?`, id,
	)
	a, err := scanCachedArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetResolvedImage records the image URL the resolver picked for an article.
func (s *Store) SetResolvedImage(id, imageURL string) error {
	_, err := s.conn.Exec(
		"UPDATE articles SET resolved_image = ? WHERE id = ?", imageURL, id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCachedArticle(r rowScanner) (*CachedArticle, error) {
	var a CachedArticle
	var content, category, createdAt, imageURL, resolved sql.NullString
	if err := r.Scan(&a.ID, &a.Title, &content, &category, &createdAt, &imageURL, &resolved); err != nil {
		return nil, err
	}
	a.Content = content.String
	a.Category = category.String
	a.CreatedAt = createdAt.String
	a.ImageURL = imageURL.String
	a.ResolvedImage = resolved.String
	return &a, nil
}
