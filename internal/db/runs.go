package db

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-publisher/internal/types"
)

var runColumns = []string{
	"id", "started_at", "item_count", "skipped_count", "deferred_count",
	"is_dry_run", "status", "completed_at",
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.StartedAt, &run.ItemCount, &run.SkippedCount,
		&run.DeferredCount, &run.IsDryRun, &run.Status, &run.CompletedAt)
	return run, err
}

// CreateRun records the metadata of a freshly started publish run
func (db *DB) CreateRun(ctx context.Context, meta types.PublishRunMetadata) error {
	id, err := uuid.Parse(meta.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", meta.RunID, err)
	}

	query, args, err := psql.Insert("publish_runs").
		Columns("id", "started_at", "item_count", "skipped_count", "deferred_count", "is_dry_run", "status").
		Values(id, meta.StartTime, meta.ItemCount, meta.SkippedCount, meta.DeferredCount, meta.IsDryRun, string(meta.Status)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build run insert: %w", err)
	}

	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun marks a publish run with its final status
func (db *DB) CompleteRun(ctx context.Context, runID string, status types.RunStatus) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	query, args, err := psql.Update("publish_runs").
		Set("status", string(status)).
		Set("completed_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build run update: %w", err)
	}

	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a publish run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	query, args, err := psql.Select(runColumns...).From("publish_runs").
		Where(sq.Eq{"id": runID.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run query: %w", err)
	}

	run, err := scanRun(db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

func buildRunListQuery(filters RunFilters) sq.SelectBuilder {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	q := psql.Select(runColumns...).From("publish_runs")
	if filters.Status != "" {
		q = q.Where(sq.Eq{"status": filters.Status})
	}
	return q.OrderBy("started_at DESC").Limit(uint64(filters.Limit))
}

// ListRunsFiltered retrieves recent runs with optional filters
func (db *DB) ListRunsFiltered(ctx context.Context, filters RunFilters) ([]Run, error) {
	query, args, err := buildRunListQuery(filters).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run list query: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
