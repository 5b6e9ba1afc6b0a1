package publishing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-publisher/internal/blob"
	"github.com/jonathan/content-publisher/internal/formatting"
	"github.com/jonathan/content-publisher/internal/ratelimit"
)

func openStore(t *testing.T) *blob.BoltStore {
	t.Helper()
	store, err := blob.OpenBoltStore(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// flakyStore fails uploads whose path contains failOn
type flakyStore struct {
	blob.Store
	failOn string
}

func (s *flakyStore) Upload(ctx context.Context, path string, content []byte, contentType string, upsert bool) (string, error) {
	if strings.Contains(path, s.failOn) {
		return "", errors.New("quota exceeded")
	}
	return s.Store.Upload(ctx, path, content, contentType, upsert)
}

func TestOutboxPath(t *testing.T) {
	assert.Equal(t, "outbox/twitter/abc.txt", OutboxPath("twitter", "abc"))
}

func TestOutboxBroadcaster_WritesEveryPlatform(t *testing.T) {
	store := openStore(t)
	b := NewOutboxBroadcaster(store)
	item := socialItem("a", "twitter", "linkedin")

	formatted, err := formatting.FormatAll(item, item.Platforms, formatting.Options{})
	require.NoError(t, err)

	results, err := b.Broadcast(context.Background(), item, formatted)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "outbox/twitter/a.txt", results["twitter"].Path)

	data, err := store.Download(context.Background(), "outbox/linkedin/a.txt")
	require.NoError(t, err)
	assert.Equal(t, formatted[1].Content, string(data))

	// redelivery overwrites
	_, err = b.Broadcast(context.Background(), item, formatted)
	assert.NoError(t, err)
}

func TestOutboxBroadcaster_PartialFailure(t *testing.T) {
	store := &flakyStore{Store: openStore(t), failOn: "/facebook/"}
	b := NewOutboxBroadcaster(store)
	item := socialItem("a", "facebook", "twitter")

	formatted, err := formatting.FormatAll(item, item.Platforms, formatting.Options{})
	require.NoError(t, err)

	results, err := b.Broadcast(context.Background(), item, formatted)
	var bErr *BroadcastError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, []string{"facebook"}, bErr.FailedPlatforms())
	assert.Equal(t, "quota exceeded", results["facebook"].Error)
	assert.Equal(t, "published", results["twitter"].Status, "later platforms are still attempted")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestOutboxBroadcaster_RateLimited(t *testing.T) {
	store := openStore(t)
	limiter := ratelimit.NewLimiter(&ratelimit.Config{
		Enabled:   true,
		Unlimited: map[string]bool{"linkedin": true},
		Platforms: []ratelimit.PlatformConfig{{Platform: "twitter", Limit: 1, Window: time.Hour}},
	}).WithClock(clock)
	b := NewOutboxBroadcaster(store).WithLimiter(limiter)

	first := socialItem("a", "twitter", "linkedin")
	formatted, err := formatting.FormatAll(first, first.Platforms, formatting.Options{})
	require.NoError(t, err)
	_, err = b.Broadcast(context.Background(), first, formatted)
	require.NoError(t, err)

	second := socialItem("b", "twitter", "linkedin")
	formatted, err = formatting.FormatAll(second, second.Platforms, formatting.Options{})
	require.NoError(t, err)
	results, err := b.Broadcast(context.Background(), second, formatted)

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "twitter", rlErr.Platform)
	assert.Equal(t, "failed", results["twitter"].Status)
	assert.Contains(t, results["twitter"].Error, "retry after 1h0m0s")
	assert.Equal(t, "published", results["linkedin"].Status)

	_, err = store.Download(context.Background(), "outbox/twitter/b.txt")
	assert.Error(t, err, "throttled platform is not written")
}
