package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-publisher/internal/blob"
)

var _ blob.Store = (*DB)(nil)

// likeEscaper escapes LIKE wildcards in a literal prefix
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildObjectUpload(path string, content []byte, contentType string, upsert bool) sq.InsertBuilder {
	q := psql.Insert("content_objects").
		Columns("path", "content", "content_type", "size").
		Values(path, content, contentType, len(content))
	if upsert {
		return q.Suffix(`ON CONFLICT (path) DO UPDATE SET content = EXCLUDED.content,
			content_type = EXCLUDED.content_type, size = EXCLUDED.size, updated_at = NOW()`)
	}
	return q.Suffix("ON CONFLICT (path) DO NOTHING")
}

// Upload stores an object in the content_objects table
func (db *DB) Upload(ctx context.Context, path string, content []byte, contentType string, upsert bool) (string, error) {
	path = blob.CleanPath(path)
	if path == "" {
		return "", fmt.Errorf("upload: empty object path")
	}

	query, args, err := buildObjectUpload(path, content, contentType, upsert).ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build object upload: %w", err)
	}

	result, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", path, err)
	}
	if !upsert && result.RowsAffected() == 0 {
		return "", fmt.Errorf("upload %s: %w", path, blob.ErrExists)
	}
	return path, nil
}

// Download retrieves an object's content
func (db *DB) Download(ctx context.Context, path string) ([]byte, error) {
	path = blob.CleanPath(path)
	query, args, err := psql.Select("content").From("content_objects").
		Where(sq.Eq{"path": path}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build object download: %w", err)
	}

	var content []byte
	if err := db.pool.QueryRow(ctx, query, args...).Scan(&content); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("download %s: %w", path, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download object %s: %w", path, err)
	}
	return content, nil
}

func buildObjectList(prefix string) sq.SelectBuilder {
	q := psql.Select("path", "size", "content_type", "created_at", "updated_at").
		From("content_objects")
	if match := blob.PrefixMatch(prefix); match != "" {
		q = q.Where(sq.Expr(`path LIKE ? ESCAPE '\'`, likeEscaper.Replace(match)+"%"))
	}
	return q.OrderBy("path ASC")
}

// List returns metadata for every object under prefix
func (db *DB) List(ctx context.Context, prefix string) ([]blob.ObjectInfo, error) {
	query, args, err := buildObjectList(prefix).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build object list: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	var objects []blob.ObjectInfo
	for rows.Next() {
		var info blob.ObjectInfo
		if err := rows.Scan(&info.Path, &info.Size, &info.ContentType, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		info.Name = blob.RelativeName(prefix, info.Path)
		objects = append(objects, info)
	}
	return objects, rows.Err()
}
