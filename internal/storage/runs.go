package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run statuses as stored in the runs table.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// Run is a pipeline run row keyed by its logical date.
type Run struct {
	ID         int64
	RunDate    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Stats      []byte
}

// StartRun records the beginning of a run for the given logical date
// (YYYY-MM-DD). If a run already exists for that date it is reset and reused,
// so re-running a date overwrites the previous attempt instead of stacking a
// second record.
func (s *Store) StartRun(ctx context.Context, runDate string) (int64, error) {
	var existing int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs
		WHERE run_date = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, runDate).Scan(&existing)

	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE runs
			SET started_at = NOW(),
				finished_at = NULL,
				status = 'running',
				stats_json = NULL,
				updated_at = NOW()
			WHERE id = $1
		`, existing)
		if err != nil {
			return 0, fmt.Errorf("failed to reset run for %s: %w", runDate, err)
		}
		return existing, nil

	case errors.Is(err, sql.ErrNoRows):
		var id int64
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO runs (run_date, started_at, status)
			VALUES ($1, NOW(), 'running')
			RETURNING id
		`, runDate).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to create run for %s: %w", runDate, err)
		}
		return id, nil

	default:
		return 0, fmt.Errorf("failed to look up run for %s: %w", runDate, err)
	}
}

// FinishRun marks a run as finished with the given status and stats JSON.
func (s *Store) FinishRun(ctx context.Context, runID int64, status string, stats []byte) error {
	var statsArg interface{}
	if len(stats) > 0 {
		statsArg = stats
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = $2,
			finished_at = NOW(),
			stats_json = $3,
			updated_at = NOW()
		WHERE id = $1
	`, runID, status, statsArg)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}

	return nil
}

// RunByDate returns the most recent run for a logical date, or nil if no run
// exists for that date.
func (s *Store) RunByDate(ctx context.Context, runDate string) (*Run, error) {
	var (
		run      Run
		date     time.Time
		finished sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_date, started_at, finished_at, status, stats_json
		FROM runs
		WHERE run_date = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, runDate).Scan(&run.ID, &date, &run.StartedAt, &finished, &run.Status, &run.Stats)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run for %s: %w", runDate, err)
	}

	run.RunDate = date.Format("2006-01-02")
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}

	return &run, nil
}
