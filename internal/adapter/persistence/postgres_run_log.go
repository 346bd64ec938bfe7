package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fixora/triage/internal/domain"
	"github.com/fixora/triage/internal/ports"
)

const createRunsTable = `
	CREATE TABLE IF NOT EXISTS triage_cycle_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		ticket_rows INTEGER NOT NULL DEFAULT 0,
		dropped_rows INTEGER NOT NULL DEFAULT 0,
		open_tickets INTEGER NOT NULL DEFAULT 0
	)
`

// PostgresRunLogRepository implements RunLogRepository using PostgreSQL
type PostgresRunLogRepository struct {
	db *sql.DB
}

// NewPostgresRunLogRepository creates a new PostgreSQL run log repository
func NewPostgresRunLogRepository(db *sql.DB) ports.RunLogRepository {
	return &PostgresRunLogRepository{db: db}
}

// EnsureSchema creates the run log table if it does not exist
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createRunsTable); err != nil {
		return fmt.Errorf("failed to create triage_cycle_runs: %w", err)
	}
	return nil
}

// Record saves a finished cycle
func (r *PostgresRunLogRepository) Record(ctx context.Context, run *domain.CycleRun) error {
	query := `
		INSERT INTO triage_cycle_runs (id, started_at, finished_at, outcome, error, ticket_rows, dropped_rows, open_tickets)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		string(run.Outcome),
		errText,
		run.TicketRows,
		run.DroppedRows,
		run.OpenTickets,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle run: %w", err)
	}

	return nil
}

// Recent returns the latest runs, newest first
func (r *PostgresRunLogRepository) Recent(ctx context.Context, limit int) ([]*domain.CycleRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, started_at, finished_at, outcome, error, ticket_rows, dropped_rows, open_tickets
		FROM triage_cycle_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycle runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.CycleRun
	for rows.Next() {
		var run domain.CycleRun
		var outcome string
		var errText sql.NullString

		if err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&outcome,
			&errText,
			&run.TicketRows,
			&run.DroppedRows,
			&run.OpenTickets,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cycle run: %w", err)
		}

		run.Outcome = domain.CycleOutcome(outcome)
		if errText.Valid {
			run.Error = errText.String
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle runs: %w", err)
	}

	return runs, nil
}
