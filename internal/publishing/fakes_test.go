package publishing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonathan/content-publisher/internal/db"
	"github.com/jonathan/content-publisher/internal/formatting"
	"github.com/jonathan/content-publisher/internal/types"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }

type statusCall struct {
	ID     string
	Status types.ContentStatus
	Retry  bool
	Meta   types.PublishMetadata
}

// fakeStore is an in-memory ContentStore that records every mutation
type fakeStore struct {
	mu    sync.Mutex
	items map[string]types.ContentItem

	queryResult []types.ContentItem
	queryErr    error
	lastFilter  db.ContentFilter

	retryCandidates []types.ContentItem
	retryErr        error

	getMetaErr error
	updateErr  error
	appendErr  error
	insertErr  error

	statusCalls []statusCall
	metaCalls   []string
	runLogs     []types.LogEntry
	pubLogs     []db.PublishingLog
}

func newFakeStore(items ...types.ContentItem) *fakeStore {
	s := &fakeStore{items: make(map[string]types.ContentItem)}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *fakeStore) mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statusCalls) + len(s.metaCalls) + len(s.runLogs) + len(s.pubLogs)
}

func (s *fakeStore) QueryContent(_ context.Context, filter db.ContentFilter) ([]types.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	return s.queryResult, s.queryErr
}

func (s *fakeStore) ListRetryCandidates(_ context.Context) ([]types.ContentItem, error) {
	return s.retryCandidates, s.retryErr
}

func (s *fakeStore) GetPublishMetadata(_ context.Context, id string) (*types.PublishMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getMetaErr != nil {
		return nil, s.getMetaErr
	}
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	meta := item.PublishMetadata
	return &meta, nil
}

func (s *fakeStore) UpdateContentStatus(_ context.Context, id string, status types.ContentStatus, retry bool, meta types.PublishMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.statusCalls = append(s.statusCalls, statusCall{ID: id, Status: status, Retry: retry, Meta: meta})
	item := s.items[id]
	item.Status = status
	item.Retry = retry
	item.PublishMetadata = meta
	s.items[id] = item
	return nil
}

func (s *fakeStore) UpdatePublishMetadata(_ context.Context, id string, meta types.PublishMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaCalls = append(s.metaCalls, id)
	item := s.items[id]
	item.PublishMetadata = meta
	s.items[id] = item
	return nil
}

func (s *fakeStore) AppendRunLog(_ context.Context, _ types.ContentStatus, _ string, entry types.LogEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return 0, s.appendErr
	}
	s.runLogs = append(s.runLogs, entry)
	return int64(len(s.items)), nil
}

func (s *fakeStore) InsertPublishingLog(_ context.Context, entry db.PublishingLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.pubLogs = append(s.pubLogs, entry)
	return nil
}

type fakeStorage struct {
	calls []string
	err   error
}

func (f *fakeStorage) StoreRenderedContent(_ context.Context, item types.ContentItem, html string) (string, error) {
	f.calls = append(f.calls, item.ID)
	if f.err != nil {
		return "", f.err
	}
	if html == "" {
		return "", errors.New("empty page")
	}
	return "published_content/" + item.Section + "/" + item.ID + ".html", nil
}

type fakeBroadcaster struct {
	calls   []string
	failOn  string
	callErr error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, item types.ContentItem, formatted []formatting.FormattedContent) (map[string]types.PlatformResult, error) {
	f.calls = append(f.calls, item.ID)
	if f.callErr != nil {
		return nil, f.callErr
	}
	results := make(map[string]types.PlatformResult, len(formatted))
	var failed bool
	for _, fc := range formatted {
		platform := string(fc.Platform)
		if platform == f.failOn {
			results[platform] = types.PlatformResult{Status: types.PlatformFailed, Error: "rejected"}
			failed = true
			continue
		}
		results[platform] = types.PlatformResult{Status: types.PlatformPublished, URL: "https://" + platform + ".example/" + item.ID}
	}
	if failed {
		return results, &BroadcastError{Message: "platform rejected post", Results: results}
	}
	return results, nil
}

type fakeErrorLog struct {
	records []types.PublishingError
}

func (f *fakeErrorLog) LogError(record types.PublishingError) error {
	f.records = append(f.records, record)
	return nil
}

// countingFormatter wraps the real dispatcher and counts calls
type countingFormatter struct {
	inner  *formatting.Dispatcher
	calls  []string
	before func(item types.ContentItem)
}

func newCountingFormatter() *countingFormatter {
	return &countingFormatter{inner: formatting.NewDispatcher(formatting.Options{})}
}

func (f *countingFormatter) FormatAll(item types.ContentItem, platforms []string) ([]formatting.FormattedContent, error) {
	if f.before != nil {
		f.before(item)
	}
	f.calls = append(f.calls, item.ID)
	return f.inner.FormatAll(item, platforms)
}

func (f *countingFormatter) RenderPage(item types.ContentItem) (string, error) {
	return f.inner.RenderPage(item)
}
