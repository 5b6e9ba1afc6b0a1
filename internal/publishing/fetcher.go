package publishing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-publisher/internal/db"
	"github.com/jonathan/content-publisher/internal/types"
)

// EventRunStarted is the log event appended to approved records when a run starts
const EventRunStarted = "publish_run_started"

// FetchStore is the subset of ContentStore used by the fetcher
type FetchStore interface {
	QueryContent(ctx context.Context, filter db.ContentFilter) ([]types.ContentItem, error)
	AppendRunLog(ctx context.Context, status types.ContentStatus, runID string, entry types.LogEntry) (int64, error)
}

// FetchOptions filters the content considered for a run
type FetchOptions struct {
	Section               string
	Platforms             []string
	IncludeRetry          bool
	SkipPublished         bool
	IgnoreFutureScheduled bool
	IsDryRun              bool
	Logger                *slog.Logger
}

// DefaultFetchOptions returns options that skip already published content
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{SkipPublished: true}
}

// FetchResult partitions the fetched content and carries the new run metadata
type FetchResult struct {
	Items         []types.ContentItem
	SkippedItems  []types.ContentItem
	DeferredItems []types.ContentItem
	RunMetadata   types.PublishRunMetadata
	// Warnings holds non-fatal failures such as *AuditLogError
	Warnings []error
}

// Empty reports whether the fetch found nothing at all
func (r *FetchResult) Empty() bool {
	return len(r.Items) == 0 && len(r.SkippedItems) == 0 && len(r.DeferredItems) == 0
}

// FetchApprovedContent queries approved content, partitions it into
// publishable, skipped and deferred items, and mints the run metadata.
func FetchApprovedContent(ctx context.Context, store FetchStore, opts FetchOptions, now time.Time) (*FetchResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	statuses := []types.ContentStatus{types.StatusApproved}
	if !opts.SkipPublished {
		statuses = append(statuses, types.StatusPublished)
	}

	items, err := store.QueryContent(ctx, db.ContentFilter{
		Statuses:             statuses,
		Section:              opts.Section,
		Platforms:            opts.Platforms,
		IncludeRetryEligible: opts.IncludeRetry,
	})
	if err != nil {
		return nil, &FetchError{Message: "failed to fetch content", Cause: err}
	}

	result := &FetchResult{}
	for _, item := range items {
		switch {
		case opts.SkipPublished && item.Status == types.StatusPublished:
			result.SkippedItems = append(result.SkippedItems, item)
		case !opts.IgnoreFutureScheduled && item.ScheduledAfter(now):
			result.DeferredItems = append(result.DeferredItems, item)
		default:
			result.Items = append(result.Items, item)
		}
	}

	result.RunMetadata = types.PublishRunMetadata{
		RunID:         uuid.NewString(),
		StartTime:     now.UTC(),
		ItemCount:     len(result.Items),
		SkippedCount:  len(result.SkippedItems),
		DeferredCount: len(result.DeferredItems),
		IsDryRun:      opts.IsDryRun,
		Status:        types.RunStarted,
	}

	if opts.IsDryRun {
		logger.Info("dry run: skipping run audit log", "run_id", result.RunMetadata.RunID)
		return result, nil
	}

	if err := logRunStarted(ctx, store, result); err != nil {
		auditErr := &AuditLogError{RunID: result.RunMetadata.RunID, Cause: err}
		logger.Warn("failed to log publish run", "run_id", result.RunMetadata.RunID, "error", err)
		result.Warnings = append(result.Warnings, auditErr)
	}
	return result, nil
}

// DeferredSummary describes a deferred item for manifests and audit logs
func DeferredSummary(item types.ContentItem) types.DeferredItem {
	d := types.DeferredItem{ID: item.ID, Title: item.Title}
	if item.PublishMetadata.Schedule != nil {
		d.ScheduledFor = item.PublishMetadata.Schedule.UTC().Format(time.RFC3339)
	}
	return d
}

func logRunStarted(ctx context.Context, store FetchStore, result *FetchResult) error {
	meta := result.RunMetadata
	deferred := make([]types.DeferredItem, 0, len(result.DeferredItems))
	for _, item := range result.DeferredItems {
		deferred = append(deferred, DeferredSummary(item))
	}

	_, err := store.AppendRunLog(ctx, types.StatusApproved, meta.RunID, types.LogEntry{
		Timestamp: meta.StartTime,
		Event:     EventRunStarted,
		Details: map[string]any{
			"runId":         meta.RunID,
			"itemCount":     meta.ItemCount,
			"skippedCount":  meta.SkippedCount,
			"deferredCount": meta.DeferredCount,
			"deferredItems": deferred,
		},
	})
	return err
}
