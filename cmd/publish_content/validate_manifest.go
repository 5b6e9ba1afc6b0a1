package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-publisher/internal/manifest"
	"github.com/jonathan/content-publisher/internal/schemas"
)

var validateManifestCmd = &cobra.Command{
	Use:   "validate-manifest <manifest.json>",
	Short: "Validate a publishing manifest against its schema and counter invariants",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidateManifest,
}

func init() {
	rootCmd.AddCommand(validateManifestCmd)
}

func runValidateManifest(cmd *cobra.Command, args []string) error {
	path := args[0]

	if err := schemas.ValidateManifestFile(path); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("manifest does not match schema: %w", err)
		}
		return err
	}

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	if err := manifest.Verify(*m); err != nil {
		return fmt.Errorf("manifest counters are inconsistent: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (run %s, %s)\n", path, m.RunID, m.Status)
	return nil
}
