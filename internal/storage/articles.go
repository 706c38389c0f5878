package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ArticleInput carries the fields needed to store a fetched article.
type ArticleInput struct {
	SourceID     int64
	CanonicalURL string
	Title        string
	PublishedAt  *time.Time
	Outlet       string
	ContentHash  string
}

// Article is a stored article row joined with its source, as returned for a
// run's candidate set.
type Article struct {
	ID             int64
	SourceID       int64
	CanonicalURL   string
	Title          string
	PublishedAt    *time.Time
	Outlet         string
	ContentHash    string
	ExtractedPath  string
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
	SourceName     string
	SourceWeight   float64
	SourceCategory string
	IncludedInRank bool
	ScoreJSON      []byte
}

// RecentArticle is the slim article row used for novelty comparison.
type RecentArticle struct {
	ID           int64
	CanonicalURL string
	ContentHash  string
	Title        string
	PublishedAt  *time.Time
	FirstSeenAt  time.Time
}

// UpsertArticle stores an article, deduplicating by canonical URL or
// non-empty content hash. Existing articles get their last_seen_at bumped.
// Returns the article ID and whether the row is new; new rows start with an
// empty extracted_path until the text file is written.
func (s *Store) UpsertArticle(ctx context.Context, in ArticleInput) (int64, bool, error) {
	var existing int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM articles
		WHERE canonical_url = $1 OR ($2 <> '' AND content_hash = $2)
		LIMIT 1
	`, in.CanonicalURL, in.ContentHash).Scan(&existing)

	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE articles
			SET last_seen_at = NOW(), updated_at = NOW()
			WHERE id = $1
		`, existing)
		if err != nil {
			return 0, false, fmt.Errorf("failed to bump article %d: %w", existing, err)
		}
		return existing, false, nil

	case errors.Is(err, sql.ErrNoRows):
		var id int64
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO articles (
				source_id, canonical_url, title, published_at,
				outlet, content_hash, extracted_path,
				first_seen_at, last_seen_at
			) VALUES ($1, $2, $3, $4, $5, $6, '', NOW(), NOW())
			RETURNING id
		`, in.SourceID, in.CanonicalURL, in.Title, in.PublishedAt, in.Outlet, in.ContentHash).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert article: %w", err)
		}
		return id, true, nil

	default:
		return 0, false, fmt.Errorf("failed to look up article: %w", err)
	}
}

// SetExtractedPath records where an article's extracted text was written.
func (s *Store) SetExtractedPath(ctx context.Context, articleID int64, path string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET extracted_path = $2, updated_at = NOW()
		WHERE id = $1
	`, articleID, path)
	if err != nil {
		return fmt.Errorf("failed to set extracted path for article %d: %w", articleID, err)
	}
	return nil
}

// LinkRunArticle associates an article with a run. Articles enter the link
// table marked as rank candidates; ranking later attaches the score breakdown
// to the rows it selects.
func (s *Store) LinkRunArticle(ctx context.Context, runID, articleID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_articles (run_id, article_id, included_in_rank)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (run_id, article_id) DO NOTHING
	`, runID, articleID)
	if err != nil {
		return fmt.Errorf("failed to link article %d to run %d: %w", articleID, runID, err)
	}
	return nil
}

// RecentArticles returns articles first seen within the last N days, newest
// first, for novelty comparison.
func (s *Store) RecentArticles(ctx context.Context, limit, days int) ([]RecentArticle, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, canonical_url, content_hash, title, published_at, first_seen_at
		FROM articles
		WHERE first_seen_at >= $1
		ORDER BY first_seen_at DESC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent articles: %w", err)
	}
	defer rows.Close()

	var articles []RecentArticle
	for rows.Next() {
		var (
			a         RecentArticle
			published sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.CanonicalURL, &a.ContentHash, &a.Title, &published, &a.FirstSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent article: %w", err)
		}
		if published.Valid {
			a.PublishedAt = &published.Time
		}
		articles = append(articles, a)
	}

	return articles, rows.Err()
}

// RunArticles returns the articles linked to a run joined with their source,
// newest first. With onlyRanked set, only articles that survived ranking are
// returned.
func (s *Store) RunArticles(ctx context.Context, runID int64, onlyRanked bool) ([]Article, error) {
	query := `
		SELECT
			a.id, a.source_id, a.canonical_url, a.title, a.published_at,
			a.outlet, a.content_hash, a.extracted_path, a.first_seen_at, a.last_seen_at,
			s.name, s.weight, s.category,
			ra.included_in_rank, ra.score_json
		FROM articles a
		JOIN run_articles ra ON a.id = ra.article_id
		JOIN sources s ON a.source_id = s.id
		WHERE ra.run_id = $1
	`
	if onlyRanked {
		query += " AND ra.included_in_rank = TRUE"
	}
	query += " ORDER BY a.published_at DESC"

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var (
			a         Article
			published sql.NullTime
			outlet    sql.NullString
		)
		err := rows.Scan(
			&a.ID, &a.SourceID, &a.CanonicalURL, &a.Title, &published,
			&outlet, &a.ContentHash, &a.ExtractedPath, &a.FirstSeenAt, &a.LastSeenAt,
			&a.SourceName, &a.SourceWeight, &a.SourceCategory,
			&a.IncludedInRank, &a.ScoreJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run article: %w", err)
		}
		if published.Valid {
			a.PublishedAt = &published.Time
		}
		a.Outlet = outlet.String
		articles = append(articles, a)
	}

	return articles, rows.Err()
}

// SaveRunScore persists an article's ranking outcome for a run.
func (s *Store) SaveRunScore(ctx context.Context, runID, articleID int64, included bool, scoreJSON []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE run_articles
		SET included_in_rank = $3, score_json = $4, updated_at = NOW()
		WHERE run_id = $1 AND article_id = $2
	`, runID, articleID, included, scoreJSON)
	if err != nil {
		return fmt.Errorf("failed to save score for article %d in run %d: %w", articleID, runID, err)
	}
	return nil
}
