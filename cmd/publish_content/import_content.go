package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/content-publisher/internal/types"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load content records from a JSON or YAML file into the content table",
	Long: `Reads a list of content records and upserts them. Records without an id get a new UUID;
records without a status are imported as draft.`,
	RunE: runImport,
}

var importFile string

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Path to a .json, .yaml or .yml file (required)")

	if err := importCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}

	rootCmd.AddCommand(importCmd)
}

// parseContentFile reads content records from JSON or YAML
func parseContentFile(path string) ([]types.ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// yaml → generic value → JSON so the json tags on ContentItem apply
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse content YAML: %w", err)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert content YAML: %w", err)
		}
	case ".json":
	default:
		return nil, fmt.Errorf("unsupported content file type %q", filepath.Ext(path))
	}

	var items []types.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse content records: %w", err)
	}

	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].Status == "" {
			items[i].Status = types.StatusDraft
		}
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("record %d (%s) is invalid: %w", i, items[i].ID, err)
		}
	}
	return items, nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	items, err := parseContentFile(importFile)
	if err != nil {
		return err
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

	for _, item := range items {
		if err := database.UpsertContent(ctx, item); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ imported %d content records\n", len(items))
	return nil
}
