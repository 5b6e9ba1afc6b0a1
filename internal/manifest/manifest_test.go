package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-publisher/internal/types"
)

var fixedNow = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

type fakeUpdater struct {
	calls []string
	err   error
}

func (f *fakeUpdater) UpdateStatus(_ context.Context, contentID string, _ types.PublishingResult) error {
	f.calls = append(f.calls, contentID)
	return f.err
}

type fakeResultLogger struct {
	runIDs []string
	err    error
}

func (f *fakeResultLogger) LogResult(_ context.Context, runID, _ string, _ types.PublishingResult) error {
	f.runIDs = append(f.runIDs, runID)
	return f.err
}

func strPtr(s string) *string { return &s }

func newTestManager(t *testing.T, dryRun bool, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New("run-1", t.TempDir(), dryRun, opts...)
}

func TestNew_InitialState(t *testing.T) {
	m := newTestManager(t, true)

	snap := m.Snapshot()
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, fixedNow, snap.Timestamp)
	assert.True(t, snap.IsDryRun)
	assert.Equal(t, types.ManifestInProgress, snap.Status)
	assert.NotNil(t, snap.DeferredItems)
	assert.NotNil(t, snap.Results)
	assert.Equal(t, "publishing_manifest_run-1.json", filepath.Base(m.Path()))
}

func TestRecordResult_Counters(t *testing.T) {
	m := newTestManager(t, false)
	m.SetTotalItems(4)
	m.RecordResult(types.ItemResult{ContentID: "a", Status: types.ResultSuccess})
	m.RecordResult(types.ItemResult{ContentID: "b", Status: types.ResultSimulated})
	m.RecordResult(types.ItemResult{ContentID: "c", Status: types.ResultFailure, Error: "boom"})
	m.RecordSkip()
	m.SetRetryCount(1)

	snap := m.Snapshot()
	assert.Equal(t, 4, snap.TotalItems)
	assert.Equal(t, 2, snap.SuccessCount)
	assert.Equal(t, 1, snap.FailureCount)
	assert.Equal(t, 1, snap.SkippedCount)
	assert.Equal(t, 1, snap.RetryCount)
	require.Len(t, snap.Results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{snap.Results[0].ContentID, snap.Results[1].ContentID, snap.Results[2].ContentID})
	assert.LessOrEqual(t, snap.SuccessCount+snap.FailureCount, snap.TotalItems)
}

func TestAddDeferred_DeduplicatesByID(t *testing.T) {
	m := newTestManager(t, false)
	m.AddDeferred(types.DeferredItem{ID: "x", ScheduledFor: "2030-01-01T00:00:00Z"})
	m.AddDeferred(types.DeferredItem{ID: "x"}, types.DeferredItem{ID: "y"})

	snap := m.Snapshot()
	require.Len(t, snap.DeferredItems, 2)
	assert.Equal(t, "2030-01-01T00:00:00Z", snap.DeferredItems[0].ScheduledFor)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	m := newTestManager(t, false)
	m.RecordResult(types.ItemResult{
		ContentID:       "a",
		Title:           strPtr("Title"),
		Status:          types.ResultSuccess,
		PlatformResults: map[string]types.PlatformResult{"twitter": {Status: types.PlatformPublished}},
	})

	snap := m.Snapshot()
	snap.Results[0].PlatformResults["twitter"] = types.PlatformResult{Status: "tampered"}
	*snap.Results[0].Title = "tampered"
	snap.Results = append(snap.Results, types.ItemResult{ContentID: "extra"})

	again := m.Snapshot()
	require.Len(t, again.Results, 1)
	assert.Equal(t, types.PlatformPublished, again.Results[0].PlatformResults["twitter"].Status)
	assert.Equal(t, "Title", *again.Results[0].Title)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	m := newTestManager(t, true)
	m.SetTotalItems(1)
	m.RecordResult(types.ItemResult{ContentID: "a", Status: types.ResultSimulated, WasRetry: true})
	require.NoError(t, m.Complete(types.ManifestCompleted))

	loaded, err := Load(m.Path())
	require.NoError(t, err)
	assert.Equal(t, m.Snapshot(), *loaded)

	raw, err := os.ReadFile(m.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"runId\": \"run-1\"")
	assert.NotContains(t, string(raw), "\"items\"", "items are omitted when none were registered")

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(m.Path()), ".manifest-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSave_FailureIsPersistError(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	m := New("run-1", filepath.Join(blocker, "sub"), false)
	err := m.Save()

	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, m.Path(), persistErr.Path)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	var persistErr *PersistError
	assert.ErrorAs(t, err, &persistErr)
}

func TestAddItem(t *testing.T) {
	m := newTestManager(t, false)
	schedule := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m.AddItem(types.ContentItem{
		ID:              "a",
		Section:         "social",
		PublishMetadata: types.PublishMetadata{Schedule: &schedule, Retries: 2},
	}, []string{"twitter"})

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.TotalItems)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "2026-01-01T09:00:00Z", snap.Items[0].ScheduledDate)
	assert.Equal(t, 2, snap.Items[0].RetryCount)
	assert.Equal(t, []string{"twitter"}, snap.Items[0].Platforms)
}

func TestUpdateItemResult_BothSideEffectsAttempted(t *testing.T) {
	updater := &fakeUpdater{err: errors.New("db down")}
	resultLog := &fakeResultLogger{}
	m := newTestManager(t, false, WithStatusUpdater(updater), WithResultLogger(resultLog))
	m.AddItem(types.ContentItem{ID: "a", Section: "social"}, []string{"twitter"})

	err := m.UpdateItemResult(context.Background(), "a", types.PublishingResult{Success: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	assert.Equal(t, []string{"a"}, updater.calls)
	assert.Equal(t, []string{"run-1"}, resultLog.runIDs, "audit write runs even after the status update failed")

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.SuccessCount)
	require.NotNil(t, snap.Items[0].Result)
	assert.True(t, snap.Items[0].Result.Success)
	assert.Equal(t, fixedNow, snap.Items[0].Result.Timestamp)

	loaded, err := Load(m.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.SuccessCount)
}

func TestUpdateItemResult_FailureCountsAndJoinsErrors(t *testing.T) {
	updater := &fakeUpdater{err: errors.New("status failed")}
	resultLog := &fakeResultLogger{err: errors.New("log failed")}
	m := newTestManager(t, false, WithStatusUpdater(updater), WithResultLogger(resultLog))
	m.AddItem(types.ContentItem{ID: "a"}, nil)

	err := m.UpdateItemResult(context.Background(), "a", types.PublishingResult{Success: false, Error: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status failed")
	assert.Contains(t, err.Error(), "log failed")
	assert.Equal(t, 1, m.Snapshot().FailureCount)
}

func TestUpdateItemResult_UnknownIDIsNoop(t *testing.T) {
	updater := &fakeUpdater{}
	m := newTestManager(t, false, WithStatusUpdater(updater))

	require.NoError(t, m.UpdateItemResult(context.Background(), "missing", types.PublishingResult{Success: true}))
	assert.Empty(t, updater.calls)
	assert.Zero(t, m.Snapshot().SuccessCount)
}

func TestUpdateItemResult_DryRunSkipsStore(t *testing.T) {
	updater := &fakeUpdater{}
	resultLog := &fakeResultLogger{}
	m := newTestManager(t, true, WithStatusUpdater(updater), WithResultLogger(resultLog))
	m.AddItem(types.ContentItem{ID: "a"}, nil)

	require.NoError(t, m.UpdateItemResult(context.Background(), "a", types.PublishingResult{Success: true}))
	assert.Empty(t, updater.calls)
	assert.Empty(t, resultLog.runIDs)
}

func TestManager_ConcurrentSnapshot(t *testing.T) {
	m := newTestManager(t, false)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.RecordResult(types.ItemResult{ContentID: "a", Status: types.ResultSuccess})
		}()
		go func() {
			defer wg.Done()
			_ = m.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, m.Snapshot().SuccessCount)
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		m       types.PublishingManifest
		wantErr string
	}{
		{
			name: "consistent completed run",
			m: types.PublishingManifest{
				Status: types.ManifestCompleted, TotalItems: 3, SuccessCount: 1, FailureCount: 1, SkippedCount: 1,
				Results: []types.ItemResult{{ContentID: "a"}, {ContentID: "b"}},
			},
		},
		{
			name:    "outcomes exceed total",
			m:       types.PublishingManifest{Status: types.ManifestInProgress, TotalItems: 1, SuccessCount: 2},
			wantErr: "exceeds totalItems",
		},
		{
			name:    "completed run with unaccounted items",
			m:       types.PublishingManifest{Status: types.ManifestCompleted, TotalItems: 2},
			wantErr: "accounts for 0 of 2",
		},
		{
			name: "duplicate deferred",
			m: types.PublishingManifest{
				Status:        types.ManifestInProgress,
				DeferredItems: []types.DeferredItem{{ID: "x"}, {ID: "x"}},
			},
			wantErr: "listed twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.m)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
