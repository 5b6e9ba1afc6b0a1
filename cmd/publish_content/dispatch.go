package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/content-publisher/internal/observability"
	"github.com/jonathan/content-publisher/internal/publishing"
	"github.com/jonathan/content-publisher/internal/types"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Publish a single content record to its routed platforms",
	Long: `Routes one content record to its declared platforms plus those implied by its tags,
writes each formatted variant to the platform outbox and records the result in a manifest
and in the publishing_logs table.`,
	RunE: runDispatch,
}

var (
	dispatchID     string
	dispatchDryRun bool
)

func init() {
	dispatchCmd.Flags().StringVar(&dispatchID, "id", "", "Content record ID (required)")
	dispatchCmd.Flags().BoolVar(&dispatchDryRun, "dry-run", false, "Simulate without writing to the store or outbox")

	if err := dispatchCmd.MarkFlagRequired("id"); err != nil {
		panic(fmt.Sprintf("failed to mark id flag as required: %v", err))
	}

	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, _ []string) error {
	if _, err := uuid.Parse(dispatchID); err != nil {
		return fmt.Errorf("invalid content id %q: %w", dispatchID, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	a, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	item, err := a.db.GetContent(ctx, dispatchID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("content %s not found", dispatchID)
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("content %s is invalid: %w", dispatchID, err)
	}

	meta := types.PublishRunMetadata{
		RunID:     uuid.NewString(),
		StartTime: time.Now().UTC(),
		ItemCount: 1,
		IsDryRun:  dispatchDryRun,
		Status:    types.RunStarted,
	}
	if !dispatchDryRun {
		if err := a.db.CreateRun(ctx, meta); err != nil {
			logger.Warn("failed to record publish run", "run_id", meta.RunID, "error", err)
		}
	}

	engine, err := a.newEngine(meta.RunID, dispatchDryRun, false)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result, dispatchErr := engine.DispatchItem(ctx, *item)
	skipped := errors.Is(dispatchErr, publishing.ErrAlreadyPublished) || errors.Is(dispatchErr, publishing.ErrScheduled)
	if skipped {
		_, _ = fmt.Fprintf(out, "Not dispatched: %v\n", dispatchErr)
	} else {
		if dispatchErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: %v\n", dispatchErr)
		}
		observability.NewPrinter(out).PrintItemResult(item.ID, &result)
	}

	if !dispatchDryRun {
		status := types.RunCompleted
		if !skipped && !result.Success {
			status = types.RunFailed
		}
		if err := a.db.CompleteRun(context.WithoutCancel(ctx), meta.RunID, status); err != nil {
			logger.Warn("failed to complete publish run", "run_id", meta.RunID, "error", err)
		}
	}

	if !errors.Is(dispatchErr, publishing.ErrAlreadyPublished) {
		_, _ = fmt.Fprintf(out, "Manifest written to %s\n", engine.ManifestPath())
	}
	return nil
}
