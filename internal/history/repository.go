// Package history records executed actions in the agent's SQLite store.
//
// This is operational history for debugging and audit: what the server
// asked for, whether it worked, and how long it took. Entries are pruned
// after the configured retention period.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/droid-agent/internal/infrastructure/database"
)

// Entry is one recorded action execution.
type Entry struct {
	ID         int64
	RequestID  string
	ActionType string
	Success    bool
	Message    string
	Duration   time.Duration
	ExecutedAt time.Time
}

// Repository persists action history.
type Repository struct {
	db *database.DB
}

// NewRepository creates a repository over an open database. The schema is
// expected to be migrated already.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts one executed action.
func (r *Repository) Record(ctx context.Context, e Entry) error {
	executedAt := e.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO action_history (request_id, action_type, success, message, duration_ms, executed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		e.RequestID,
		e.ActionType,
		boolToInt(e.Success),
		e.Message,
		e.Duration.Milliseconds(),
		executedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording action: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return r.query(ctx, `
		SELECT id, request_id, action_type, success, message, duration_ms, executed_at
		FROM action_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
}

// RecentByAction returns the most recent entries for one action type,
// newest first.
func (r *Repository) RecentByAction(ctx context.Context, actionType string, limit int) ([]Entry, error) {
	return r.query(ctx, `
		SELECT id, request_id, action_type, success, message, duration_ms, executed_at
		FROM action_history
		WHERE action_type = ?
		ORDER BY id DESC
		LIMIT ?
	`, actionType, limit)
}

// Prune deletes entries executed before the cutoff and returns how many
// were removed.
func (r *Repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM action_history WHERE executed_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning action history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return n, nil
}

// Count returns the total number of recorded entries.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM action_history").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting action history: %w", err)
	}
	return n, nil
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying action history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			success    int
			durationMS int64
			executedAt string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.ActionType, &success, &e.Message, &durationMS, &executedAt); err != nil {
			return nil, fmt.Errorf("scanning action history row: %w", err)
		}
		e.Success = success != 0
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.ExecutedAt, _ = time.Parse(time.RFC3339Nano, executedAt) //nolint:errcheck // format is ours
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action history: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
