// Package publishing fetches approved content and runs it through the
// publishing state machine, recording every outcome in a run manifest.
package publishing

import (
	"context"

	"github.com/jonathan/content-publisher/internal/db"
	"github.com/jonathan/content-publisher/internal/errlog"
	"github.com/jonathan/content-publisher/internal/formatting"
	"github.com/jonathan/content-publisher/internal/rendering"
	"github.com/jonathan/content-publisher/internal/types"
)

// ContentStore is the persistence the publisher needs from the content database
type ContentStore interface {
	QueryContent(ctx context.Context, filter db.ContentFilter) ([]types.ContentItem, error)
	ListRetryCandidates(ctx context.Context) ([]types.ContentItem, error)
	GetPublishMetadata(ctx context.Context, id string) (*types.PublishMetadata, error)
	UpdateContentStatus(ctx context.Context, id string, status types.ContentStatus, retry bool, meta types.PublishMetadata) error
	UpdatePublishMetadata(ctx context.Context, id string, meta types.PublishMetadata) error
	AppendRunLog(ctx context.Context, status types.ContentStatus, runID string, entry types.LogEntry) (int64, error)
	InsertPublishingLog(ctx context.Context, entry db.PublishingLog) error
}

// RenderStorage persists a rendered page and returns its storage path
type RenderStorage interface {
	StoreRenderedContent(ctx context.Context, item types.ContentItem, html string) (string, error)
}

// Formatter renders items for platforms and for the published page
type Formatter interface {
	FormatAll(item types.ContentItem, platforms []string) ([]formatting.FormattedContent, error)
	RenderPage(item types.ContentItem) (string, error)
}

// Broadcaster delivers formatted content to its platforms and reports a
// result per platform. A non-nil error means at least one platform failed.
type Broadcaster interface {
	Broadcast(ctx context.Context, item types.ContentItem, formatted []formatting.FormattedContent) (map[string]types.PlatformResult, error)
}

// ErrorLogger records publishing failures durably
type ErrorLogger interface {
	LogError(record types.PublishingError) error
}

var (
	_ ContentStore  = (*db.DB)(nil)
	_ RenderStorage = (*rendering.ContentStorage)(nil)
	_ Formatter     = (*formatting.Dispatcher)(nil)
	_ ErrorLogger   = (*errlog.Logger)(nil)
)
