package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-publisher/internal/types"
)

// contentColumns is the column list shared by every content SELECT
var contentColumns = []string{
	"id", "section", "title", "content", "status",
	"COALESCE(platforms, '{}')", "COALESCE(tags, '{}')", "retry",
	"publish_metadata", "user_id", "created_at", "updated_at",
}

// ContentFilter holds optional filters for querying content records.
// Empty fields are not filtered on.
type ContentFilter struct {
	ID        string
	Statuses  []types.ContentStatus
	Section   string
	Platforms []string // record must target all of these
	Retry     *bool
	// IncludeRetryEligible widens the status filter with failed records
	// that have their retry flag set.
	IncludeRetryEligible bool
}

// Run represents a publish run record
type Run struct {
	ID            uuid.UUID  `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	ItemCount     int        `json:"item_count"`
	SkippedCount  int        `json:"skipped_count"`
	DeferredCount int        `json:"deferred_count"`
	IsDryRun      bool       `json:"is_dry_run"`
	Status        string     `json:"status"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// RunFilters holds optional filters for listing runs
type RunFilters struct {
	Status string
	Limit  int
}

// PublishingLog is one row of the publishing_logs audit table
type PublishingLog struct {
	ContentID       string
	RunID           string
	Timestamp       time.Time
	Success         bool
	Error           string
	PlatformResults map[string]types.PlatformResult
}
