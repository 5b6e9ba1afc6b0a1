package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-publisher/internal/db"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent publish runs",
	RunE:  runListRuns,
}

var (
	runsStatus string
	runsLimit  int
)

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "Only list runs with this status (started, completed, failed)")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs")

	rootCmd.AddCommand(runsCmd)
}

func runListRuns(cmd *cobra.Command, _ []string) error {
	if runsLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	ctx := context.Background()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListRunsFiltered(ctx, db.RunFilters{Status: runsStatus, Limit: runsLimit})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN ID\tSTARTED\tSTATUS\tITEMS\tSKIPPED\tDEFERRED\tDRY RUN")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%t\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.Status, r.ItemCount, r.SkippedCount, r.DeferredCount, r.IsDryRun)
	}
	return w.Flush()
}
