package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listPublishedCmd = &cobra.Command{
	Use:   "list-published",
	Short: "List stored pages of a section, or the published index",
	RunE:  runListPublished,
}

var (
	listSection string
	listIndex   bool
)

func init() {
	listPublishedCmd.Flags().StringVarP(&listSection, "section", "s", "blog", "Section whose pages to list")
	listPublishedCmd.Flags().BoolVar(&listIndex, "index", false, "Print published_index.json entries instead")

	rootCmd.AddCommand(listPublishedCmd)
}

func runListPublished(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := openBlobOnly(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer a.Close()

	storage := a.storage(true)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	if listIndex {
		entries, err := storage.PublishedIndex(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, "SLUG\tSECTION\tPUBLISHED\tPATH")
		for _, e := range entries {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Slug, e.Section, e.PublishedAt.Format("2006-01-02 15:04"), e.StoragePath)
		}
		return nil
	}

	objects, err := storage.GetPublishedContent(ctx, listSection)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, "NAME\tSIZE\tCREATED")
	for _, o := range objects {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", o.Name, o.Size, o.Created.Format("2006-01-02 15:04"))
	}
	return nil
}
