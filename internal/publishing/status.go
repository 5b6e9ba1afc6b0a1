package publishing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/content-publisher/internal/db"
	"github.com/jonathan/content-publisher/internal/manifest"
	"github.com/jonathan/content-publisher/internal/types"
)

// errContentNotFound is the cause recorded when the record vanished mid-run
var errContentNotFound = errors.New("content not found")

// statusWriter merges attempt outcomes into stored records. Failures are
// written to the error log under the "system" platform and returned to the
// caller, which never lets them change the item outcome.
type statusWriter struct {
	store    ContentStore
	errors   ErrorLogger
	logger   *slog.Logger
	runID    string
	isDryRun bool
	now      func() time.Time
}

var _ manifest.StatusUpdater = (*statusWriter)(nil)

func (w *statusWriter) update(ctx context.Context, contentID string, status types.ContentStatus, storagePath, errMsg string) error {
	if w.isDryRun {
		w.logger.Debug("dry run: skipping status update", "content_id", contentID, "status", status)
		return nil
	}

	err := w.apply(ctx, contentID, status, storagePath, errMsg)
	if err == nil {
		return nil
	}

	w.logger.Error("failed to update content status", "content_id", contentID, "status", status, "error", err)
	if w.errors != nil {
		if logErr := w.errors.LogError(types.PublishingError{
			ContentID: contentID,
			Platform:  "system",
			Error:     "Failed to update content status: " + err.Error(),
			Retries:   0,
		}); logErr != nil {
			w.logger.Warn("failed to record status update error", "content_id", contentID, "error", logErr)
		}
	}
	return &StatusUpdateError{ContentID: contentID, Status: status, Cause: err}
}

func (w *statusWriter) apply(ctx context.Context, contentID string, status types.ContentStatus, storagePath, errMsg string) error {
	current, err := w.store.GetPublishMetadata(ctx, contentID)
	if err != nil {
		return err
	}
	if current == nil {
		return errContentNotFound
	}

	next, retry := current.ApplyAttempt(types.Attempt{
		Status:      status,
		RunID:       w.runID,
		At:          w.now().UTC(),
		StoragePath: storagePath,
		Error:       errMsg,
	})
	if status == types.StatusFailed && !retry {
		w.logger.Warn("retries exhausted", "content_id", contentID, "retries", next.Retries)
	}
	return w.store.UpdateContentStatus(ctx, contentID, status, retry, next)
}

// UpdateStatus implements manifest.StatusUpdater for dispatched items
func (w *statusWriter) UpdateStatus(ctx context.Context, contentID string, result types.PublishingResult) error {
	status := types.StatusFailed
	if result.Success {
		status = types.StatusPublished
	}
	var storagePath string
	if r, ok := result.PlatformResults[types.StoragePlatform]; ok {
		storagePath = r.Path
	}
	return w.update(ctx, contentID, status, storagePath, result.Error)
}

// storeResultLogger writes manifest results to the publishing_logs table
type storeResultLogger struct {
	store ContentStore
}

var _ manifest.ResultLogger = storeResultLogger{}

func (l storeResultLogger) LogResult(ctx context.Context, runID, contentID string, result types.PublishingResult) error {
	if err := l.store.InsertPublishingLog(ctx, db.PublishingLog{
		ContentID:       contentID,
		RunID:           runID,
		Timestamp:       result.Timestamp,
		Success:         result.Success,
		Error:           result.Error,
		PlatformResults: result.PlatformResults,
	}); err != nil {
		return fmt.Errorf("failed to insert publishing log: %w", err)
	}
	return nil
}
