package publishing

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/content-publisher/internal/types"
)

var (
	// ErrAlreadyPublished is returned when dispatching an item that is already published
	ErrAlreadyPublished = errors.New("content already published")
	// ErrScheduled is returned when dispatching an item scheduled in the future
	ErrScheduled = errors.New("content scheduled for a later time")
)

// FetchError represents a failure querying the content store. It aborts the run.
type FetchError struct {
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error: %s", e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// AuditLogError represents a failure writing the run-start audit entry.
// It is reported as a warning and never aborts the run.
type AuditLogError struct {
	RunID string
	Cause error
}

func (e *AuditLogError) Error() string {
	return fmt.Sprintf("audit log error for run %s: %v", e.RunID, e.Cause)
}

func (e *AuditLogError) Unwrap() error {
	return e.Cause
}

// BroadcastError represents a failure publishing to one or more platforms.
// Results holds the per-platform outcomes known at the time of failure.
type BroadcastError struct {
	Message string
	Results map[string]types.PlatformResult
	Cause   error
}

func (e *BroadcastError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("broadcast error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("broadcast error: %s", e.Message)
}

func (e *BroadcastError) Unwrap() error {
	return e.Cause
}

// FailedPlatforms returns the platforms whose result is not published
func (e *BroadcastError) FailedPlatforms() []string {
	var failed []string
	for platform, r := range e.Results {
		if r.Status != types.PlatformPublished {
			failed = append(failed, platform)
		}
	}
	return failed
}

// StatusUpdateError represents a failure writing an item's status to the store
type StatusUpdateError struct {
	ContentID string
	Status    types.ContentStatus
	Cause     error
}

func (e *StatusUpdateError) Error() string {
	return fmt.Sprintf("status update error: %s -> %s: %v", e.ContentID, e.Status, e.Cause)
}

func (e *StatusUpdateError) Unwrap() error {
	return e.Cause
}

// RateLimitError is returned for a platform whose delivery budget is spent
type RateLimitError struct {
	Platform   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Platform, e.RetryAfter.Round(time.Second))
}
