// Package types provides type definitions for structured data used throughout the content publisher.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxRetries caps automatic retries of a failed content item.
const MaxRetries = 5

// ContentStatus is the lifecycle status of a content record
type ContentStatus string

// Content lifecycle statuses
const (
	StatusDraft     ContentStatus = "draft"
	StatusApproved  ContentStatus = "approved"
	StatusPublished ContentStatus = "published"
	StatusFailed    ContentStatus = "failed"
)

// Sections with special routing in the publishing engine
const (
	SectionBlog       = "blog"
	SectionBio        = "bio"
	SectionNewsletter = "newsletter"
	SectionReputation = "reputation"
	SectionSocial     = "social"
)

// LogEntry is one lifecycle event recorded on a content record
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Details   map[string]any `json:"details,omitempty"`
}

// PublishMetadata is the publishing bookkeeping nested on a content record
type PublishMetadata struct {
	Schedule       *time.Time `json:"schedule,omitempty"`
	LastRunID      string     `json:"lastRunId,omitempty"`
	StoragePath    string     `json:"storagePath,omitempty"`
	Log            []LogEntry `json:"log,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	Retries        int        `json:"retries"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	RetryExhausted bool       `json:"retry_exhausted,omitempty"`
	LastPublished  *time.Time `json:"lastPublished,omitempty"`
}

// ContentItem is a unit of publishable material
type ContentItem struct {
	ID              string          `json:"id" validate:"required"`
	Section         string          `json:"section" validate:"required"`
	Title           *string         `json:"title"`
	Content         string          `json:"content"`
	Status          ContentStatus   `json:"status" validate:"required,oneof=draft approved published failed"`
	Platforms       []string        `json:"platforms"`
	Tags            []string        `json:"tags"`
	Retry           bool            `json:"retry"`
	PublishMetadata PublishMetadata `json:"publish_metadata"`
	UserID          *string         `json:"user_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate validates the ContentItem using the validator.
func (c *ContentItem) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// DisplayTitle returns the title or "Untitled" when the record has none.
func (c *ContentItem) DisplayTitle() string {
	if c.Title == nil || *c.Title == "" {
		return "Untitled"
	}
	return *c.Title
}

// IsRetry reports whether the item entered the run as a retry of a failed publish.
func (c *ContentItem) IsRetry() bool {
	return c.Status == StatusFailed && c.Retry
}

// ScheduledAfter reports whether the item is scheduled strictly later than now.
// Items without a schedule are publishable immediately.
func (c *ContentItem) ScheduledAfter(now time.Time) bool {
	if c.PublishMetadata.Schedule == nil {
		return false
	}
	return c.PublishMetadata.Schedule.After(now)
}

// FirstPlatform returns the first target platform or "unknown".
func (c *ContentItem) FirstPlatform() string {
	if len(c.Platforms) == 0 {
		return "unknown"
	}
	return c.Platforms[0]
}

// Attempt describes the outcome of one publish attempt to be merged into
// the stored metadata.
type Attempt struct {
	Status      ContentStatus
	RunID       string
	At          time.Time
	StoragePath string
	Error       string
}

// ApplyAttempt returns a copy of the metadata with the attempt merged in and
// whether the record should stay eligible for automatic retry.
//
// A published attempt resets the retry counter and clears the last error.
// A failed attempt increments the counter while it is below MaxRetries;
// once the counter has reached MaxRetries the record is marked exhausted
// and retry is switched off.
func (m PublishMetadata) ApplyAttempt(a Attempt) (PublishMetadata, bool) {
	next := m
	if m.Log != nil {
		next.Log = make([]LogEntry, len(m.Log))
		copy(next.Log, m.Log)
	}

	at := a.At
	next.LastRunID = a.RunID
	next.LastAttemptAt = &at
	if a.StoragePath != "" {
		next.StoragePath = a.StoragePath
	}

	switch a.Status {
	case StatusPublished:
		next.Retries = 0
		next.LastError = ""
		next.RetryExhausted = false
		next.LastPublished = &at
		return next, false
	case StatusFailed:
		if a.Error != "" {
			next.LastError = a.Error
		}
		if m.Retries >= MaxRetries {
			next.RetryExhausted = true
			return next, false
		}
		next.Retries = m.Retries + 1
		return next, true
	default:
		return next, false
	}
}

// WithLogEntry returns a copy of the metadata with the entry appended to its log.
func (m PublishMetadata) WithLogEntry(entry LogEntry) PublishMetadata {
	next := m
	next.Log = make([]LogEntry, 0, len(m.Log)+1)
	next.Log = append(next.Log, m.Log...)
	next.Log = append(next.Log, entry)
	return next
}
