package publishing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/content-publisher/internal/errlog"
	"github.com/jonathan/content-publisher/internal/formatting"
	"github.com/jonathan/content-publisher/internal/manifest"
	"github.com/jonathan/content-publisher/internal/types"
)

// EngineDeps holds the collaborators of an Engine
type EngineDeps struct {
	Store       ContentStore
	Storage     RenderStorage
	Formatter   Formatter
	Broadcaster Broadcaster
	ErrorLogger ErrorLogger
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Options configures one run of the Engine
type Options struct {
	RunID        string
	OutputDir    string
	IsDryRun     bool
	IncludeRetry bool
}

// Engine drives items through the publishing state machine for one run and
// owns that run's manifest.
type Engine struct {
	deps     EngineDeps
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
	manifest *manifest.Manager
	status   *statusWriter
}

// NewEngine returns an engine for the run described by opts
func NewEngine(deps EngineDeps, opts Options) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if deps.Formatter == nil {
		return nil, fmt.Errorf("formatter is required")
	}
	if opts.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	e := &Engine{deps: deps, opts: opts, logger: deps.Logger, now: deps.Clock}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "publisher", "run_id", opts.RunID)
	if e.now == nil {
		e.now = time.Now
	}

	e.status = &statusWriter{
		store:    deps.Store,
		errors:   deps.ErrorLogger,
		logger:   e.logger,
		runID:    opts.RunID,
		isDryRun: opts.IsDryRun,
		now:      e.now,
	}
	e.manifest = manifest.New(opts.RunID, opts.OutputDir, opts.IsDryRun,
		manifest.WithStatusUpdater(e.status),
		manifest.WithResultLogger(storeResultLogger{store: deps.Store}),
		manifest.WithLogger(e.logger),
		manifest.WithClock(e.now),
	)
	return e, nil
}

// Manifest returns a snapshot of the run manifest
func (e *Engine) Manifest() types.PublishingManifest {
	return e.manifest.Snapshot()
}

// ManifestPath returns where the run manifest is written
func (e *Engine) ManifestPath() string {
	return e.manifest.Path()
}

// AddDeferredItems records items held back by the fetcher
func (e *Engine) AddDeferredItems(items []types.ContentItem) {
	for _, item := range items {
		e.manifest.AddDeferred(DeferredSummary(item))
	}
}

// PublishBatch processes items in order, then any retry candidates, and
// marks the manifest completed. Item failures are recorded in the manifest
// and never abort the batch. A manifest write failure is logged and the
// in-memory manifest stays authoritative; only a context cancellation is
// returned.
func (e *Engine) PublishBatch(ctx context.Context, items []types.ContentItem) error {
	batch := items
	if e.opts.IncludeRetry {
		batch = e.withRetryCandidates(ctx, items)
	}
	e.manifest.SetTotalItems(len(batch))

	for _, item := range batch {
		if err := ctx.Err(); err != nil {
			e.saveManifest(e.manifest.Complete(types.ManifestFailed))
			return err
		}
		e.processItem(ctx, item)
		e.saveManifest(e.manifest.Save())
	}

	e.saveManifest(e.manifest.Complete(types.ManifestCompleted))
	snap := e.manifest.Snapshot()
	e.logger.Info("publish batch completed",
		"total", snap.TotalItems,
		"succeeded", snap.SuccessCount,
		"failed", snap.FailureCount,
		"skipped", snap.SkippedCount,
	)
	return nil
}

func (e *Engine) saveManifest(err error) {
	if err != nil {
		e.logger.Warn("failed to save manifest, continuing with in-memory manifest", "path", e.manifest.Path(), "error", err)
	}
}

// withRetryCandidates returns the primary items followed by every retry
// item: those already in items and those listed by the store, each once.
func (e *Engine) withRetryCandidates(ctx context.Context, items []types.ContentItem) []types.ContentItem {
	batch := make([]types.ContentItem, 0, len(items))
	var retries []types.ContentItem
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		if item.IsRetry() {
			retries = append(retries, item)
			continue
		}
		batch = append(batch, item)
	}

	candidates, err := e.deps.Store.ListRetryCandidates(ctx)
	if err != nil {
		e.logger.Error("failed to fetch retry candidates", "error", err)
	}
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		retries = append(retries, c)
	}

	e.manifest.SetRetryCount(len(retries))
	if len(retries) > 0 {
		e.logger.Info("added retry candidates", "count", len(retries))
	}
	return append(batch, retries...)
}

func (e *Engine) processItem(ctx context.Context, item types.ContentItem) {
	logger := e.logger.With("content_id", item.ID, "section", item.Section)

	if item.Status == types.StatusPublished {
		logger.Info("skipping already published content")
		e.manifest.RecordSkip()
		return
	}
	if item.ScheduledAfter(e.now()) {
		logger.Info("deferring scheduled content", "schedule", item.PublishMetadata.Schedule)
		e.manifest.AddDeferred(DeferredSummary(item))
		e.manifest.RecordSkip()
		return
	}

	result, err := e.publishItem(ctx, item)
	if err != nil {
		e.recordFailure(ctx, item, err)
		return
	}
	e.manifest.RecordResult(result)
}

// publishItem formats and publishes one item and returns its result entry
func (e *Engine) publishItem(ctx context.Context, item types.ContentItem) (types.ItemResult, error) {
	formatted, err := e.deps.Formatter.FormatAll(item, item.Platforms)
	if err != nil {
		return types.ItemResult{}, err
	}

	result := types.ItemResult{
		ContentID: item.ID,
		Title:     item.Title,
		WasRetry:  item.IsRetry(),
	}

	switch item.Section {
	case types.SectionBlog, types.SectionBio, types.SectionNewsletter, types.SectionReputation:
		return e.publishPage(ctx, item, formatted, result)
	default:
		return e.publishSocial(ctx, item, formatted, result)
	}
}

func (e *Engine) publishPage(ctx context.Context, item types.ContentItem, formatted []formatting.FormattedContent, result types.ItemResult) (types.ItemResult, error) {
	if e.deps.Storage == nil {
		return result, fmt.Errorf("no storage configured for section %s", item.Section)
	}
	html, err := e.deps.Formatter.RenderPage(item)
	if err != nil {
		return result, err
	}
	storagePath, err := e.deps.Storage.StoreRenderedContent(ctx, item, html)
	if err != nil {
		return result, err
	}

	if e.opts.IsDryRun {
		result.Status = types.ResultSimulated
		result.PlatformResults = simulatedResults(formatted)
		result.PlatformResults[types.StoragePlatform] = types.PlatformResult{Status: types.PlatformSimulated, Path: storagePath}
		e.logger.Info("dry run: simulated publish", "content_id", item.ID, "path", storagePath)
		return result, nil
	}

	// status write failures are logged by the writer and leave the outcome unchanged
	_ = e.status.update(ctx, item.ID, types.StatusPublished, storagePath, "")
	result.Status = types.ResultSuccess
	result.PlatformResults = map[string]types.PlatformResult{
		types.StoragePlatform: {Status: types.PlatformPublished, Path: storagePath},
	}
	e.logger.Info("published content", "content_id", item.ID, "path", storagePath)
	return result, nil
}

func (e *Engine) publishSocial(ctx context.Context, item types.ContentItem, formatted []formatting.FormattedContent, result types.ItemResult) (types.ItemResult, error) {
	if e.opts.IsDryRun {
		result.Status = types.ResultSimulated
		result.PlatformResults = simulatedResults(formatted)
		e.logger.Info("dry run: simulated broadcast", "content_id", item.ID, "platforms", len(formatted))
		return result, nil
	}
	if e.deps.Broadcaster == nil {
		return result, fmt.Errorf("no broadcaster configured for section %s", item.Section)
	}

	platformResults, err := e.deps.Broadcaster.Broadcast(ctx, item, formatted)
	if err != nil {
		var bErr *BroadcastError
		if !errors.As(err, &bErr) {
			bErr = &BroadcastError{Message: "broadcast failed", Results: platformResults, Cause: err}
		}
		return result, bErr
	}
	for platform, r := range platformResults {
		if r.Status != types.PlatformPublished {
			return result, &BroadcastError{
				Message: fmt.Sprintf("platform %s reported %s", platform, r.Status),
				Results: platformResults,
			}
		}
	}

	_ = e.status.update(ctx, item.ID, types.StatusPublished, "", "")
	result.Status = types.ResultSuccess
	result.PlatformResults = platformResults
	e.logger.Info("broadcast content", "content_id", item.ID, "platforms", len(platformResults))
	return result, nil
}

func (e *Engine) recordFailure(ctx context.Context, item types.ContentItem, err error) {
	msg := errlog.FormatError(err)
	e.logger.Error("failed to publish content", "content_id", item.ID, "error", msg)

	if e.deps.ErrorLogger != nil {
		if logErr := e.deps.ErrorLogger.LogError(types.PublishingError{
			ContentID: item.ID,
			Platform:  item.FirstPlatform(),
			Error:     msg,
			Section:   item.Section,
			Title:     item.DisplayTitle(),
			Retries:   item.PublishMetadata.Retries,
		}); logErr != nil {
			e.logger.Warn("failed to record publishing error", "content_id", item.ID, "error", logErr)
		}
	}

	result := types.ItemResult{
		ContentID: item.ID,
		Title:     item.Title,
		Status:    types.ResultFailure,
		Error:     msg,
		WasRetry:  item.IsRetry(),
	}
	var bErr *BroadcastError
	if errors.As(err, &bErr) && len(bErr.Results) > 0 {
		result.PlatformResults = bErr.Results
	}
	e.manifest.RecordResult(result)

	_ = e.status.update(ctx, item.ID, types.StatusFailed, "", msg)
}

func simulatedResults(formatted []formatting.FormattedContent) map[string]types.PlatformResult {
	out := make(map[string]types.PlatformResult, len(formatted)+1)
	for _, fc := range formatted {
		out[string(fc.Platform)] = types.PlatformResult{Status: types.PlatformSimulated}
	}
	return out
}
