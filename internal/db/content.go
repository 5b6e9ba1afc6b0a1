package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-publisher/internal/types"
)

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// buildContentQuery translates a ContentFilter into a SELECT over the content table
func buildContentQuery(f ContentFilter) sq.SelectBuilder {
	q := psql.Select(contentColumns...).From("content")

	var statusPred sq.Sqlizer
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		statusPred = sq.Eq{"status": statuses}
	}
	if f.IncludeRetryEligible {
		retryPred := sq.And{
			sq.Eq{"status": string(types.StatusFailed)},
			sq.Eq{"retry": true},
		}
		if statusPred != nil {
			statusPred = sq.Or{statusPred, retryPred}
		} else {
			statusPred = retryPred
		}
	}
	if statusPred != nil {
		q = q.Where(statusPred)
	}

	if f.ID != "" {
		q = q.Where(sq.Eq{"id": f.ID})
	}
	if f.Section != "" {
		q = q.Where(sq.Eq{"section": f.Section})
	}
	if len(f.Platforms) > 0 {
		q = q.Where(sq.Expr("platforms @> ?", f.Platforms))
	}
	if f.Retry != nil {
		q = q.Where(sq.Eq{"retry": *f.Retry})
	}

	return q.OrderBy("created_at ASC", "id ASC")
}

// scanContent reads one content row in contentColumns order
func scanContent(row rowScanner) (types.ContentItem, error) {
	var item types.ContentItem
	var status string
	var metadataJSON []byte

	err := row.Scan(&item.ID, &item.Section, &item.Title, &item.Content, &status,
		&item.Platforms, &item.Tags, &item.Retry, &metadataJSON, &item.UserID,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return item, err
	}
	item.Status = types.ContentStatus(status)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &item.PublishMetadata); err != nil {
			return item, fmt.Errorf("failed to decode publish_metadata for %s: %w", item.ID, err)
		}
	}
	return item, nil
}

// QueryContent retrieves content records matching the filter, oldest first
func (db *DB) QueryContent(ctx context.Context, filter ContentFilter) ([]types.ContentItem, error) {
	query, args, err := buildContentQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build content query: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}
	defer rows.Close()

	var items []types.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read content rows: %w", err)
	}
	return items, nil
}

// ListRetryCandidates retrieves failed records whose retry flag is set
func (db *DB) ListRetryCandidates(ctx context.Context) ([]types.ContentItem, error) {
	retry := true
	return db.QueryContent(ctx, ContentFilter{
		Statuses: []types.ContentStatus{types.StatusFailed},
		Retry:    &retry,
	})
}

// GetContent retrieves a single content record by ID
func (db *DB) GetContent(ctx context.Context, id string) (*types.ContentItem, error) {
	query, args, err := buildContentQuery(ContentFilter{ID: id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build content query: %w", err)
	}

	item, err := scanContent(db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get content %s: %w", id, err)
	}
	return &item, nil
}

// GetPublishMetadata retrieves the publish metadata of one record
func (db *DB) GetPublishMetadata(ctx context.Context, id string) (*types.PublishMetadata, error) {
	query, args, err := psql.Select("publish_metadata").From("content").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}

	var metadataJSON []byte
	if err := db.pool.QueryRow(ctx, query, args...).Scan(&metadataJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get publish metadata for %s: %w", id, err)
	}

	var meta types.PublishMetadata
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &meta); err != nil {
			return nil, fmt.Errorf("failed to decode publish metadata for %s: %w", id, err)
		}
	}
	return &meta, nil
}

// buildStatusUpdate builds the UPDATE that writes status, retry flag and metadata
func buildStatusUpdate(id string, status types.ContentStatus, retry bool, metadataJSON []byte) sq.UpdateBuilder {
	return psql.Update("content").
		Set("status", string(status)).
		Set("retry", retry).
		Set("publish_metadata", metadataJSON).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})
}

// UpdateContentStatus writes a new status, retry flag and metadata for one record
func (db *DB) UpdateContentStatus(ctx context.Context, id string, status types.ContentStatus, retry bool, meta types.PublishMetadata) error {
	metadataJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal publish metadata: %w", err)
	}

	query, args, err := buildStatusUpdate(id, status, retry, metadataJSON).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build status update: %w", err)
	}

	result, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update content status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("content not found: %s", id)
	}
	return nil
}

// UpdatePublishMetadata replaces the publish metadata of one record
func (db *DB) UpdatePublishMetadata(ctx context.Context, id string, meta types.PublishMetadata) error {
	metadataJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal publish metadata: %w", err)
	}

	query, args, err := psql.Update("content").
		Set("publish_metadata", metadataJSON).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build metadata update: %w", err)
	}

	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update publish metadata: %w", err)
	}
	return nil
}

// buildRunLogAppend builds the UPDATE that stamps a run id and appends a log entry
// to every record with the given status
func buildRunLogAppend(status types.ContentStatus, runID string, entryJSON []byte) sq.UpdateBuilder {
	return psql.Update("content").
		Set("publish_metadata", sq.Expr(
			`jsonb_set(jsonb_set(COALESCE(publish_metadata, '{}'::jsonb), '{lastRunId}', to_jsonb(?::text)), `+
				`'{log}', COALESCE(publish_metadata->'log', '[]'::jsonb) || jsonb_build_array(?::jsonb))`,
			runID, string(entryJSON))).
		Where(sq.Eq{"status": string(status)})
}

// AppendRunLog appends a log entry to every record with the given status and
// returns the number of records touched
func (db *DB) AppendRunLog(ctx context.Context, status types.ContentStatus, runID string, entry types.LogEntry) (int64, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal log entry: %w", err)
	}

	query, args, err := buildRunLogAppend(status, runID, entryJSON).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build run log update: %w", err)
	}

	result, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to append run log: %w", err)
	}
	return result.RowsAffected(), nil
}

// InsertPublishingLog records one publishing result in the audit table
func (db *DB) InsertPublishingLog(ctx context.Context, entry PublishingLog) error {
	var platformJSON []byte
	if entry.PlatformResults != nil {
		var err error
		platformJSON, err = json.Marshal(entry.PlatformResults)
		if err != nil {
			return fmt.Errorf("failed to marshal platform results: %w", err)
		}
	}

	var errMsg *string
	if entry.Error != "" {
		errMsg = &entry.Error
	}

	query, args, err := psql.Insert("publishing_logs").
		Columns("content_id", "run_id", "timestamp", "success", "error", "platform_results").
		Values(entry.ContentID, entry.RunID, entry.Timestamp, entry.Success, errMsg, platformJSON).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build publishing log insert: %w", err)
	}

	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert publishing log: %w", err)
	}
	return nil
}

// UpsertContent inserts or replaces a content record
func (db *DB) UpsertContent(ctx context.Context, item types.ContentItem) error {
	metadataJSON, err := json.Marshal(item.PublishMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal publish metadata: %w", err)
	}
	platforms := item.Platforms
	if platforms == nil {
		platforms = []string{}
	}
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}

	query, args, err := psql.Insert("content").
		Columns("id", "section", "title", "content", "status", "platforms", "tags", "retry", "publish_metadata", "user_id").
		Values(item.ID, item.Section, item.Title, item.Content, string(item.Status), platforms, tags, item.Retry, metadataJSON, item.UserID).
		Suffix(`ON CONFLICT (id) DO UPDATE SET section = EXCLUDED.section, title = EXCLUDED.title,
			content = EXCLUDED.content, status = EXCLUDED.status, platforms = EXCLUDED.platforms,
			tags = EXCLUDED.tags, retry = EXCLUDED.retry, publish_metadata = EXCLUDED.publish_metadata,
			user_id = EXCLUDED.user_id, updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build content upsert: %w", err)
	}

	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert content %s: %w", item.ID, err)
	}
	return nil
}
