//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// RunStatus is the status of one publishing run
type RunStatus string

// Run statuses
const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// PublishRunMetadata identifies one fetch-and-process invocation
type PublishRunMetadata struct {
	RunID         string    `json:"runId"`
	StartTime     time.Time `json:"startTime"`
	ItemCount     int       `json:"itemCount"`
	SkippedCount  int       `json:"skippedCount"`
	DeferredCount int       `json:"deferredCount"`
	IsDryRun      bool      `json:"isDryRun"`
	Status        RunStatus `json:"status"`
}

// ManifestStatus is the lifecycle status of a publishing manifest
type ManifestStatus string

// Manifest statuses
const (
	ManifestInProgress ManifestStatus = "in_progress"
	ManifestCompleted  ManifestStatus = "completed"
	ManifestFailed     ManifestStatus = "failed"
)

// ResultStatus is the outcome recorded for one processed item
type ResultStatus string

// Item outcomes written to the manifest
const (
	ResultSuccess   ResultStatus = "success"
	ResultFailure   ResultStatus = "failure"
	ResultSimulated ResultStatus = "simulated"
)

// Per-platform sub-result statuses
const (
	PlatformPublished = "published"
	PlatformSimulated = "simulated"
	PlatformFailed    = "failed"
)

// StoragePlatform is the pseudo-platform key used for the rendered page upload
const StoragePlatform = "storage"

// PlatformResult is the outcome for a single target platform
type PlatformResult struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ItemResult is the manifest entry for one processed content item
type ItemResult struct {
	ContentID       string                    `json:"contentId"`
	Title           *string                   `json:"title"`
	Status          ResultStatus              `json:"status"`
	Error           string                    `json:"error,omitempty"`
	WasRetry        bool                      `json:"wasRetry"`
	PlatformResults map[string]PlatformResult `json:"platformResults,omitempty"`
}

// DeferredItem summarizes an item held back until its schedule arrives
type DeferredItem struct {
	ID           string  `json:"id"`
	Title        *string `json:"title"`
	ScheduledFor string  `json:"scheduledFor"`
}

// PublishingResult is the outcome attached to a registered manifest item
type PublishingResult struct {
	Success         bool                      `json:"success"`
	Error           string                    `json:"error,omitempty"`
	Timestamp       time.Time                 `json:"timestamp"`
	PlatformResults map[string]PlatformResult `json:"platformResults,omitempty"`
}

// ManifestItem is an item registered with the manifest before processing
type ManifestItem struct {
	ContentID     string            `json:"contentId"`
	Section       string            `json:"section"`
	Platforms     []string          `json:"platforms"`
	ScheduledDate string            `json:"scheduledDate,omitempty"`
	Result        *PublishingResult `json:"result,omitempty"`
	RetryCount    int               `json:"retryCount"`
}

// PublishingManifest is the outcome ledger of one run
type PublishingManifest struct {
	RunID         string         `json:"runId"`
	Timestamp     time.Time      `json:"timestamp"`
	IsDryRun      bool           `json:"isDryRun"`
	Status        ManifestStatus `json:"status"`
	TotalItems    int            `json:"totalItems"`
	SuccessCount  int            `json:"successCount"`
	FailureCount  int            `json:"failureCount"`
	SkippedCount  int            `json:"skippedCount"`
	RetryCount    int            `json:"retryCount"`
	DeferredItems []DeferredItem `json:"deferredItems"`
	Results       []ItemResult   `json:"results"`
	Items         []ManifestItem `json:"items,omitempty"`
}

// PublishingError is one structured failure record in the error log
type PublishingError struct {
	Timestamp time.Time `json:"timestamp"`
	ContentID string    `json:"content_id"`
	Platform  string    `json:"platform"`
	Error     string    `json:"error"`
	Section   string    `json:"section,omitempty"`
	Title     string    `json:"title,omitempty"`
	Retries   int       `json:"retries"`
}
