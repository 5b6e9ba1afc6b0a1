package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-publisher/internal/manifest"
	"github.com/jonathan/content-publisher/internal/observability"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [manifest.json]",
	Short: "Print the summary of a publishing manifest",
	Long:  "Prints a manifest given by path, or by --run-id from the output directory.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

var (
	inspectRunID string
	inspectJSON  bool
)

func init() {
	inspectCmd.Flags().StringVar(&inspectRunID, "run-id", "", "Run ID whose manifest to read from the output directory")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the manifest as JSON")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	var path string
	switch {
	case len(args) == 1:
		path = args[0]
	case inspectRunID != "":
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path = filepath.Join(cfg.OutputDir, manifest.FileName(inspectRunID))
	default:
		return fmt.Errorf("either a manifest path or --run-id must be provided")
	}

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if inspectJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	p := observability.NewPrinter(out)
	p.PrintManifestSummary(m)
	p.PrintDeferred(m.DeferredItems)
	return nil
}
