// Package blob defines the object storage capability used for rendered content
// and provides a local implementation backed by bbolt.
package blob

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by a non-upsert upload onto an existing path
	ErrExists = errors.New("object already exists")
)

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store uploads, downloads and lists objects by slash-separated path.
type Store interface {
	// Upload writes content at path and returns the stored path.
	// With upsert=false an existing object yields ErrExists.
	Upload(ctx context.Context, path string, content []byte, contentType string, upsert bool) (string, error)
	// Download returns the object content or ErrNotFound.
	Download(ctx context.Context, path string) ([]byte, error)
	// List returns objects under prefix ordered by path.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// CleanPath strips leading and trailing slashes so paths compare consistently.
func CleanPath(path string) string {
	return strings.Trim(path, "/")
}

// PrefixMatch returns the "<prefix>/" form used to match objects under a folder.
// An empty prefix matches everything.
func PrefixMatch(prefix string) string {
	prefix = CleanPath(prefix)
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// RelativeName returns path relative to prefix.
func RelativeName(prefix, path string) string {
	return strings.TrimPrefix(path, PrefixMatch(prefix))
}
