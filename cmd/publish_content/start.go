package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-publisher/internal/config"
	"github.com/jonathan/content-publisher/internal/observability"
	"github.com/jonathan/content-publisher/internal/publishing"
	"github.com/jonathan/content-publisher/internal/types"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Publish approved content",
	Long: `Fetches approved content, defers items scheduled in the future, publishes the rest
and writes publishing_manifest_<runId>.json to the output directory.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runStart,
}

var (
	startSection          string
	startPlatforms        []string
	startIncludeRetry     bool
	startIncludePublished bool
	startIgnoreSchedule   bool
	startDryRun           bool
	startVerbose          bool
)

func init() {
	startCmd.Flags().StringVarP(&startSection, "section", "s", "", "Only publish content of this section")
	startCmd.Flags().StringSliceVarP(&startPlatforms, "platforms", "p", nil, "Only publish content targeting all of these platforms")
	startCmd.Flags().BoolVarP(&startIncludeRetry, "include-retry", "r", false, "Also retry failed content that is still retry-eligible")
	startCmd.Flags().BoolVar(&startIncludePublished, "include-published", false, "Fetch already published content too (it is still never republished)")
	startCmd.Flags().BoolVar(&startIgnoreSchedule, "ignore-schedule", false, "Publish scheduled content even if its time has not come")
	startCmd.Flags().BoolVar(&startDryRun, "dry-run", false, "Simulate the run without writing to the store or storage")
	startCmd.Flags().BoolVarP(&startVerbose, "verbose", "v", false, "Print skipped and deferred lists")

	rootCmd.AddCommand(startCmd)
}

// startConfig applies the start flags that were set explicitly
func startConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("section") {
		cfg.Section = startSection
	}
	if cmd.Flags().Changed("platforms") {
		cfg.Platforms = startPlatforms
	}
	if cmd.Flags().Changed("include-retry") {
		cfg.IncludeRetry = startIncludeRetry
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = startVerbose
	}
	return cfg, nil
}

// fetchOptions builds the fetch query for a run. Retry candidates are left
// to the engine, which appends them after the primary batch and counts them.
func fetchOptions(cfg config.Config, logger *slog.Logger) publishing.FetchOptions {
	opts := publishing.DefaultFetchOptions()
	opts.Section = cfg.Section
	opts.Platforms = cfg.Platforms
	opts.SkipPublished = !startIncludePublished
	opts.IgnoreFutureScheduled = startIgnoreSchedule
	opts.IsDryRun = startDryRun
	opts.Logger = logger.With("component", "fetcher")
	return opts
}

func runStart(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := startConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	a, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := fetchOptions(cfg, logger)
	fetched, err := publishing.FetchApprovedContent(ctx, a.db, opts, time.Now())
	if err != nil {
		return err
	}
	for _, w := range fetched.Warnings {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: %v\n", w)
	}

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	meta := fetched.RunMetadata
	printer.PrintRunMetadata(&meta)
	deferred := make([]types.DeferredItem, 0, len(fetched.DeferredItems))
	for _, item := range fetched.DeferredItems {
		deferred = append(deferred, publishing.DeferredSummary(item))
	}
	if cfg.Verbose {
		printer.PrintSkipped(fetched.SkippedItems)
		printer.PrintDeferred(deferred)
	}

	if len(fetched.Items) == 0 && len(deferred) == 0 && !cfg.IncludeRetry {
		// an empty batch still completes a manifest for the run
		_, _ = fmt.Fprintln(out, "No approved content to publish")
	}

	if !startDryRun {
		if err := a.db.CreateRun(ctx, meta); err != nil {
			logger.Warn("failed to record publish run", "run_id", meta.RunID, "error", err)
		}
	}

	engine, err := a.newEngine(meta.RunID, startDryRun, cfg.IncludeRetry)
	if err != nil {
		return err
	}
	engine.AddDeferredItems(fetched.DeferredItems)
	runErr := engine.PublishBatch(ctx, fetched.Items)

	if !startDryRun {
		status := types.RunCompleted
		if runErr != nil {
			status = types.RunFailed
		}
		if err := a.db.CompleteRun(context.WithoutCancel(ctx), meta.RunID, status); err != nil {
			logger.Warn("failed to complete publish run", "run_id", meta.RunID, "error", err)
		}
	}

	summary := engine.Manifest()
	printer.PrintManifestSummary(&summary)
	_, _ = fmt.Fprintf(out, "Manifest written to %s\n", engine.ManifestPath())
	return runErr
}
