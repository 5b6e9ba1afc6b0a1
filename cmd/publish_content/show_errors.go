package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-publisher/internal/errlog"
	"github.com/jonathan/content-publisher/internal/observability"
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show recent publishing errors from the error log",
	RunE:  runErrors,
}

var (
	errorsLimit     int
	errorsContentID string
)

func init() {
	errorsCmd.Flags().IntVarP(&errorsLimit, "limit", "n", 20, "Number of most recent records to show (0 for all)")
	errorsCmd.Flags().StringVar(&errorsContentID, "content-id", "", "Only show records of this content ID")

	rootCmd.AddCommand(errorsCmd)
}

func runErrors(cmd *cobra.Command, _ []string) error {
	if errorsLimit < 0 {
		return fmt.Errorf("--limit must be non-negative")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	records, err := errlog.ReadErrors(cfg.OutputDir)
	if err != nil {
		return err
	}
	if errorsContentID != "" {
		filtered := records[:0]
		for _, r := range records {
			if r.ContentID == errorsContentID {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintErrors(records, errorsLimit)
	return nil
}
