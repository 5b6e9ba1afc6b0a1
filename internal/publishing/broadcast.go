package publishing

import (
	"context"
	"fmt"
	"path"

	"github.com/jonathan/content-publisher/internal/blob"
	"github.com/jonathan/content-publisher/internal/formatting"
	"github.com/jonathan/content-publisher/internal/ratelimit"
	"github.com/jonathan/content-publisher/internal/types"
)

// OutboxRoot is the blob folder holding formatted posts awaiting delivery
const OutboxRoot = "outbox"

// OutboxBroadcaster delivers formatted content by writing it to a per-platform
// outbox folder in blob storage, where platform workers pick it up.
type OutboxBroadcaster struct {
	store   blob.Store
	limiter *ratelimit.Limiter
}

// NewOutboxBroadcaster returns a broadcaster writing to store
func NewOutboxBroadcaster(store blob.Store) *OutboxBroadcaster {
	return &OutboxBroadcaster{store: store}
}

// WithLimiter throttles deliveries per platform. A platform over its budget
// fails for this attempt and is left to the retry path.
func (b *OutboxBroadcaster) WithLimiter(l *ratelimit.Limiter) *OutboxBroadcaster {
	b.limiter = l
	return b
}

// OutboxPath returns the outbox object path for an item on a platform
func OutboxPath(platform, contentID string) string {
	return path.Join(OutboxRoot, platform, contentID+".txt")
}

// Broadcast writes every formatted variant. Each platform is attempted even
// after an earlier one failed; any failure yields a *BroadcastError.
func (b *OutboxBroadcaster) Broadcast(ctx context.Context, item types.ContentItem, formatted []formatting.FormattedContent) (map[string]types.PlatformResult, error) {
	results := make(map[string]types.PlatformResult, len(formatted))
	var failed []string
	var firstErr error

	for _, fc := range formatted {
		platform := string(fc.Platform)
		if ok, info := b.limiter.Allow(platform); !ok {
			err := &RateLimitError{Platform: platform, RetryAfter: info.RetryAfter}
			results[platform] = types.PlatformResult{Status: types.PlatformFailed, Error: err.Error()}
			failed = append(failed, platform)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		stored, err := b.store.Upload(ctx, OutboxPath(platform, item.ID), []byte(fc.Content), "text/plain; charset=utf-8", true)
		if err != nil {
			results[platform] = types.PlatformResult{Status: types.PlatformFailed, Error: err.Error()}
			failed = append(failed, platform)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results[platform] = types.PlatformResult{Status: types.PlatformPublished, Path: stored}
	}

	if len(failed) > 0 {
		return results, &BroadcastError{
			Message: fmt.Sprintf("failed to publish to %v", failed),
			Results: results,
			Cause:   firstErr,
		}
	}
	return results, nil
}
