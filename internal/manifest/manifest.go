// Package manifest maintains the outcome ledger of one publishing run and
// persists it as JSON after every change.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonathan/content-publisher/internal/types"
)

// StatusUpdater persists the store status implied by a publishing result
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, contentID string, result types.PublishingResult) error
}

// ResultLogger records a publishing result in the audit table
type ResultLogger interface {
	LogResult(ctx context.Context, runID, contentID string, result types.PublishingResult) error
}

// PersistError is returned when the manifest file cannot be written or read
type PersistError struct {
	Path  string
	Cause error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("manifest persist error: %s: %v", e.Path, e.Cause)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}

// Option configures a Manager
type Option func(*Manager)

// WithStatusUpdater sets the store status side effect of UpdateItemResult
func WithStatusUpdater(u StatusUpdater) Option {
	return func(m *Manager) { m.statusUpdater = u }
}

// WithResultLogger sets the audit side effect of UpdateItemResult
func WithResultLogger(l ResultLogger) Option {
	return func(m *Manager) { m.resultLogger = l }
}

// WithLogger sets the logger used for best-effort failures
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns one run's manifest. It is safe for concurrent use so the
// manifest can be inspected while a run is in progress.
type Manager struct {
	mu       sync.Mutex
	manifest types.PublishingManifest
	path     string

	statusUpdater StatusUpdater
	resultLogger  ResultLogger
	logger        *slog.Logger
	now           func() time.Time
}

// FileName returns the manifest file name for a run
func FileName(runID string) string {
	return fmt.Sprintf("publishing_manifest_%s.json", runID)
}

// New creates an in-progress manifest for runID stored under outputDir
func New(runID, outputDir string, isDryRun bool, opts ...Option) *Manager {
	m := &Manager{
		path:   filepath.Join(outputDir, FileName(runID)),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.manifest = types.PublishingManifest{
		RunID:         runID,
		Timestamp:     m.now().UTC(),
		IsDryRun:      isDryRun,
		Status:        types.ManifestInProgress,
		DeferredItems: []types.DeferredItem{},
		Results:       []types.ItemResult{},
	}
	return m
}

// Path returns the manifest file location
func (m *Manager) Path() string {
	return m.path
}

// AddItem registers an item before it is dispatched and counts it in TotalItems
func (m *Manager) AddItem(item types.ContentItem, platforms []string) {
	entry := types.ManifestItem{
		ContentID:  item.ID,
		Section:    item.Section,
		Platforms:  append([]string{}, platforms...),
		RetryCount: item.PublishMetadata.Retries,
	}
	if item.PublishMetadata.Schedule != nil {
		entry.ScheduledDate = item.PublishMetadata.Schedule.UTC().Format(time.RFC3339)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest.Items = append(m.manifest.Items, entry)
	m.manifest.TotalItems++
}

// UpdateItemResult attaches result to a registered item and updates the
// counters. Outside dry-run it then updates the store status and writes the
// audit log; both are attempted and their failures are joined and logged.
// Unknown content ids are ignored.
func (m *Manager) UpdateItemResult(ctx context.Context, contentID string, result types.PublishingResult) error {
	m.mu.Lock()
	idx := -1
	for i := range m.manifest.Items {
		if m.manifest.Items[i].ContentID == contentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = m.now().UTC()
	}
	stored := copyPublishingResult(result)
	m.manifest.Items[idx].Result = &stored
	if result.Success {
		m.manifest.SuccessCount++
	} else {
		m.manifest.FailureCount++
	}
	dryRun := m.manifest.IsDryRun
	runID := m.manifest.RunID
	m.mu.Unlock()

	var errs []error
	if !dryRun {
		if m.statusUpdater != nil {
			if err := m.statusUpdater.UpdateStatus(ctx, contentID, result); err != nil {
				errs = append(errs, fmt.Errorf("failed to update content status: %w", err))
			}
		}
		if m.resultLogger != nil {
			if err := m.resultLogger.LogResult(ctx, runID, contentID, result); err != nil {
				errs = append(errs, fmt.Errorf("failed to log publishing result: %w", err))
			}
		}
	}
	if err := m.Save(); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		m.logger.Warn("manifest side effects failed", "content_id", contentID, "error", err)
	}
	return err
}

// RecordResult appends a per-item outcome and updates the counters
func (m *Manager) RecordResult(r types.ItemResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.manifest.Results = append(m.manifest.Results, copyItemResult(r))
	switch r.Status {
	case types.ResultSuccess, types.ResultSimulated:
		m.manifest.SuccessCount++
	case types.ResultFailure:
		m.manifest.FailureCount++
	}
}

// RecordSkip counts an item that produced no result entry
func (m *Manager) RecordSkip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest.SkippedCount++
}

// AddDeferred records deferred items, ignoring ids already recorded
func (m *Manager) AddDeferred(items ...types.DeferredItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(m.manifest.DeferredItems))
	for _, d := range m.manifest.DeferredItems {
		seen[d.ID] = true
	}
	for _, d := range items {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		m.manifest.DeferredItems = append(m.manifest.DeferredItems, d)
	}
}

// SetTotalItems sets the number of items handed to the run
func (m *Manager) SetTotalItems(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest.TotalItems = n
}

// SetRetryCount sets the number of retry candidates appended to the run
func (m *Manager) SetRetryCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest.RetryCount = n
}

// Complete finalizes the run status and saves the manifest
func (m *Manager) Complete(status types.ManifestStatus) error {
	m.mu.Lock()
	m.manifest.Status = status
	m.mu.Unlock()
	return m.Save()
}

// Snapshot returns a deep copy of the current manifest
func (m *Manager) Snapshot() types.PublishingManifest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.manifest
	out.DeferredItems = append([]types.DeferredItem{}, m.manifest.DeferredItems...)
	out.Results = make([]types.ItemResult, len(m.manifest.Results))
	for i, r := range m.manifest.Results {
		out.Results[i] = copyItemResult(r)
	}
	if m.manifest.Items != nil {
		out.Items = make([]types.ManifestItem, len(m.manifest.Items))
		for i, it := range m.manifest.Items {
			it.Platforms = append([]string{}, it.Platforms...)
			if it.Result != nil {
				r := copyPublishingResult(*it.Result)
				it.Result = &r
			}
			out.Items[i] = it
		}
	}
	return out
}

// Save rewrites the manifest file in full. The file is replaced atomically
// so readers never observe a partial manifest.
func (m *Manager) Save() error {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return &PersistError{Path: m.path, Cause: err}
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistError{Path: m.path, Cause: err}
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return &PersistError{Path: m.path, Cause: err}
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return &PersistError{Path: m.path, Cause: err}
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return &PersistError{Path: m.path, Cause: err}
	}
	return nil
}

// Load reads a manifest file written by Save
func Load(path string) (*types.PublishingManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistError{Path: path, Cause: err}
	}
	var manifest types.PublishingManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &PersistError{Path: path, Cause: err}
	}
	return &manifest, nil
}

func copyPlatformResults(in map[string]types.PlatformResult) map[string]types.PlatformResult {
	if in == nil {
		return nil
	}
	out := make(map[string]types.PlatformResult, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyItemResult(r types.ItemResult) types.ItemResult {
	if r.Title != nil {
		title := *r.Title
		r.Title = &title
	}
	r.PlatformResults = copyPlatformResults(r.PlatformResults)
	return r
}

func copyPublishingResult(r types.PublishingResult) types.PublishingResult {
	r.PlatformResults = copyPlatformResults(r.PlatformResults)
	return r
}

// Verify checks the counter invariants of a manifest read from disk
func Verify(m types.PublishingManifest) error {
	var errs []error
	if m.SuccessCount+m.FailureCount > m.TotalItems {
		errs = append(errs, fmt.Errorf("successCount + failureCount (%d) exceeds totalItems (%d)", m.SuccessCount+m.FailureCount, m.TotalItems))
	}
	if m.Status == types.ManifestCompleted && len(m.Items) == 0 {
		if got := m.SuccessCount + m.FailureCount + m.SkippedCount; got != m.TotalItems {
			errs = append(errs, fmt.Errorf("completed run accounts for %d of %d items", got, m.TotalItems))
		}
		if len(m.Results) != m.SuccessCount+m.FailureCount {
			errs = append(errs, fmt.Errorf("%d results recorded for %d outcomes", len(m.Results), m.SuccessCount+m.FailureCount))
		}
	}
	seen := make(map[string]bool, len(m.DeferredItems))
	for _, d := range m.DeferredItems {
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("deferred item %s listed twice", d.ID))
		}
		seen[d.ID] = true
	}
	return errors.Join(errs...)
}
