// Package main provides the publish_content CLI, which publishes approved
// content to storage and social platforms and inspects past runs.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "publish_content",
	Short: "Content publishing run engine",
	Long: `publish_content fetches approved content records, formats them for their target
platforms, stores rendered pages and records every outcome in a run manifest.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
