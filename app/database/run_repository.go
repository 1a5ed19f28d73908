package database

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultRunLimit = 20
	maxRunLimit     = 200

	// Fixed width keeps lexical order equal to time order.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// RunRepository handles database operations for run history
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Insert stores a finished run. Re-inserting the same ID replaces the row.
func (r *RunRepository) Insert(ctx context.Context, run Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, checked_at, window_hours, status, items, degraded,
			messages_rendered, messages_sent, stale_identifiers, error, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CheckedAt.UTC().Format(timestampLayout), run.WindowHours, run.Status,
		run.Items, run.Degraded, run.MessagesRendered, run.MessagesSent,
		boolToInt(run.StaleIdentifiers), run.Error, run.Summary)

	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// ListRecent returns up to limit runs, newest first
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, checked_at, window_hours, status, items, degraded,
			messages_rendered, messages_sent, stale_identifiers, error, summary, created_at
		FROM runs
		ORDER BY checked_at DESC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run                  Run
			checkedAt, createdAt string
			stale                int
		)
		if err := rows.Scan(&run.ID, &checkedAt, &run.WindowHours, &run.Status, &run.Items,
			&run.Degraded, &run.MessagesRendered, &run.MessagesSent, &stale, &run.Error,
			&run.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.CheckedAt, err = time.Parse(timestampLayout, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse checked_at: %w", err)
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		run.StaleIdentifiers = stale != 0

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
