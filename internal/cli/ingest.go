package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	ingestMaxResults int
	ingestTimeout    time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <search term>",
	Short: "Fetch PubMed abstracts into the document store",
	Long: `Ingest searches PubMed for the given term, saves new abstracts to
the document store, and embeds them so they become searchable.

Run this before querying to populate the corpus.

Example:
  medtrust ingest "ACE inhibitors heart failure"
  medtrust ingest "metformin type 2 diabetes" --max-results 200`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntVar(&ingestMaxResults, "max-results", 100, "maximum number of abstracts to fetch")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "overall ingest timeout")
}

func runIngest(cmd *cobra.Command, args []string) error {
	term := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(os.Stderr, "Searching PubMed for %q (max %d)...\n", term, ingestMaxResults)

	articles, err := a.fetcher.SearchAndFetch(ctx, term, ingestMaxResults)
	if err != nil {
		return fmt.Errorf("fetch from PubMed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Fetched %d articles\n", len(articles))
	if len(articles) == 0 {
		return nil
	}

	saved, err := a.store.SaveIfAbsent(ctx, articles)
	if err != nil {
		return fmt.Errorf("save articles: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Saved %d new documents (%d duplicates skipped)\n", saved, len(articles)-saved)

	embedded, err := a.embedder.EmbedPending(ctx, a.store, cfg.Concurrency.EmbedWorkers)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Embedded %d documents\n", embedded)

	return nil
}
