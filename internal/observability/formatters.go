// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/content-publisher/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to at most n runes, marking the cut with "..."
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func title(t *string) string {
	if t == nil || *t == "" {
		return "Untitled"
	}
	return *t
}

// PrintRunMetadata outputs the identity and counts of a new run.
func (p *Printer) PrintRunMetadata(meta *types.PublishRunMetadata) {
	if meta == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run ID:    %s\n", meta.RunID))
	sb.WriteString(fmt.Sprintf("Started:   %s\n", meta.StartTime.Format("2006-01-02 15:04:05 MST")))
	if meta.IsDryRun {
		sb.WriteString("Mode:      DRY RUN\n")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("To publish: %d\n", meta.ItemCount))
	sb.WriteString(fmt.Sprintf("Skipped:    %d\n", meta.SkippedCount))
	sb.WriteString(fmt.Sprintf("Deferred:   %d", meta.DeferredCount))

	p.printBox("PUBLISH RUN", sb.String())
}

// PrintSkipped lists items skipped because they are already published.
func (p *Printer) PrintSkipped(items []types.ContentItem) {
	if len(items) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d already published:\n\n", len(items)))
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("• %s (%s)\n", items[i].DisplayTitle(), items[i].Section))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(items)-maxItemsToShow))
	}

	p.printBox("SKIPPED CONTENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDeferred lists items held back until their schedule.
func (p *Printer) PrintDeferred(items []types.DeferredItem) {
	if len(items) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("• %s\n", title(items[i].Title)))
		sb.WriteString(fmt.Sprintf("  scheduled for %s\n", items[i].ScheduledFor))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(items)-maxItemsToShow))
	}

	p.printBox("DEFERRED CONTENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintManifestSummary outputs run counters and each failed item.
func (p *Printer) PrintManifestSummary(m *types.PublishingManifest) {
	if m == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run ID:   %s\n", m.RunID))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", m.Status))
	if m.IsDryRun {
		sb.WriteString("Mode:     DRY RUN\n")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total:     %d\n", m.TotalItems))
	sb.WriteString(fmt.Sprintf("Succeeded: %d\n", m.SuccessCount))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", m.FailureCount))
	sb.WriteString(fmt.Sprintf("Skipped:   %d\n", m.SkippedCount))
	if m.RetryCount > 0 {
		sb.WriteString(fmt.Sprintf("Retries:   %d\n", m.RetryCount))
	}
	if len(m.DeferredItems) > 0 {
		sb.WriteString(fmt.Sprintf("Deferred:  %d\n", len(m.DeferredItems)))
	}

	var failures []types.ItemResult
	for _, r := range m.Results {
		if r.Status == types.ResultFailure {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		sb.WriteString("\nFailures:\n")
		count := min(len(failures), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("⚠ %s\n", title(failures[i].Title)))
			sb.WriteString(fmt.Sprintf("  %s\n", failures[i].Error))
		}
		if len(failures) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(failures)-maxItemsToShow))
		}
	}

	p.printBox("PUBLISHING MANIFEST", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintItemResult outputs one item's per-platform outcome.
func (p *Printer) PrintItemResult(contentID string, r *types.PublishingResult) {
	if r == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Content:  %s\n", contentID))
	if r.Success {
		sb.WriteString("Result:   ✓ published\n")
	} else {
		sb.WriteString("Result:   ✗ failed\n")
		sb.WriteString(fmt.Sprintf("Error:    %s\n", r.Error))
	}

	platforms := make([]string, 0, len(r.PlatformResults))
	for platform := range r.PlatformResults {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	if len(platforms) > 0 {
		sb.WriteString("\n")
	}
	for _, platform := range platforms {
		pr := r.PlatformResults[platform]
		sb.WriteString(fmt.Sprintf("  %-12s %s\n", platform, pr.Status))
	}

	p.printBox("DISPATCH RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintErrors outputs the most recent error log records, newest last.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintErrors(records []types.PublishingError, limit int) {
	if len(records) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO PUBLISHING ERRORS")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	var sb strings.Builder
	for i, rec := range records {
		sb.WriteString(fmt.Sprintf("%s  %s\n", rec.Timestamp.Format("2006-01-02 15:04"), rec.ContentID))
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", rec.Platform, rec.Error))
		if i < len(records)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("PUBLISHING ERRORS", strings.TrimSuffix(sb.String(), "\n"))
}
