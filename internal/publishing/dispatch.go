package publishing

import (
	"context"

	"github.com/jonathan/content-publisher/internal/errlog"
	"github.com/jonathan/content-publisher/internal/formatting"
	"github.com/jonathan/content-publisher/internal/types"
)

// DispatchItem publishes a single item to its routed platforms. Unlike
// PublishBatch the item is registered in the manifest first and its result
// is attached through the manifest, which updates the store status and the
// publishing_logs audit table. The returned error joins side-effect failures;
// a publish failure is reported in the result.
func (e *Engine) DispatchItem(ctx context.Context, item types.ContentItem) (types.PublishingResult, error) {
	if item.Status == types.StatusPublished {
		return types.PublishingResult{}, ErrAlreadyPublished
	}
	if item.ScheduledAfter(e.now()) {
		e.manifest.AddDeferred(DeferredSummary(item))
		if err := e.manifest.Save(); err != nil {
			return types.PublishingResult{}, err
		}
		return types.PublishingResult{}, ErrScheduled
	}

	platforms := formatting.RouteContent(item)
	e.manifest.AddItem(item, platforms)

	result := types.PublishingResult{Timestamp: e.now().UTC()}
	platformResults, err := e.dispatch(ctx, item, platforms)
	result.PlatformResults = platformResults
	if err != nil {
		result.Error = errlog.FormatError(err)
		e.logger.Error("failed to dispatch content", "content_id", item.ID, "error", result.Error)
		if e.deps.ErrorLogger != nil {
			if logErr := e.deps.ErrorLogger.LogError(types.PublishingError{
				ContentID: item.ID,
				Platform:  item.FirstPlatform(),
				Error:     result.Error,
				Section:   item.Section,
				Title:     item.DisplayTitle(),
				Retries:   item.PublishMetadata.Retries,
			}); logErr != nil {
				e.logger.Warn("failed to record publishing error", "content_id", item.ID, "error", logErr)
			}
		}
	} else {
		result.Success = true
	}

	sideErr := e.manifest.UpdateItemResult(ctx, item.ID, result)
	if completeErr := e.manifest.Complete(types.ManifestCompleted); completeErr != nil && sideErr == nil {
		sideErr = completeErr
	}
	return result, sideErr
}

func (e *Engine) dispatch(ctx context.Context, item types.ContentItem, platforms []string) (map[string]types.PlatformResult, error) {
	formatted, err := e.deps.Formatter.FormatAll(item, platforms)
	if err != nil {
		return nil, err
	}

	if e.opts.IsDryRun {
		return simulatedResults(formatted), nil
	}
	if e.deps.Broadcaster == nil {
		return nil, &BroadcastError{Message: "no broadcaster configured"}
	}

	return e.deps.Broadcaster.Broadcast(ctx, item, formatted)
}
