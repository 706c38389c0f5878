package storage

import (
	"context"
	"fmt"

	"github.com/briefcast/briefcast/internal/config"
)

// Source is a feed source row.
type Source struct {
	ID       int64
	Name     string
	URL      string
	Category string
	Weight   float64
	Enabled  bool
}

// SyncSources upserts the configured sources into the database and returns a
// mapping from source name to database ID.
func (s *Store) SyncSources(ctx context.Context, sources []config.SourceEntry) (map[string]int64, error) {
	sourceMap := make(map[string]int64, len(sources))

	query := `
		INSERT INTO sources (name, url, category, weight, enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			url = EXCLUDED.url,
			category = EXCLUDED.category,
			weight = EXCLUDED.weight,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
		RETURNING id
	`

	for _, src := range sources {
		var id int64
		err := s.db.QueryRowContext(ctx, query, src.Name, src.URL, src.Category, src.Weight, src.Enabled).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to sync source %q: %w", src.Name, err)
		}
		sourceMap[src.Name] = id
	}

	return sourceMap, nil
}

// ListSources returns all sources ordered by name.
func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	return s.querySources(ctx, `
		SELECT id, name, url, category, weight, enabled
		FROM sources
		ORDER BY name
	`)
}

// EnabledSources returns only the sources enabled for fetching.
func (s *Store) EnabledSources(ctx context.Context) ([]Source, error) {
	return s.querySources(ctx, `
		SELECT id, name, url, category, weight, enabled
		FROM sources
		WHERE enabled = TRUE
		ORDER BY name
	`)
}

func (s *Store) querySources(ctx context.Context, query string) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Category, &src.Weight, &src.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}

	return sources, rows.Err()
}

// SetSourceEnabled toggles a source by name.
func (s *Store) SetSourceEnabled(ctx context.Context, name string, enabled bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sources
		SET enabled = $2, updated_at = NOW()
		WHERE name = $1
	`, name, enabled)
	if err != nil {
		return fmt.Errorf("failed to update source %q: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("source %q not found", name)
	}

	return nil
}
