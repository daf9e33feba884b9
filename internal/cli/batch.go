package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	batchConcurrency int
	batchOutputDir   string
	batchTimeout     time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Answer multiple questions from a file in parallel",
	Long: `Batch reads questions from a file (one per line, # comments and
blank lines skipped) and runs the full pipeline for each with a bounded
worker pool. One trust report JSON file is written per question.

Example:
  medtrust batch questions.txt
  medtrust batch questions.txt --concurrency 5 --output-dir ./reports
  medtrust batch questions.txt --live-fetch --debate`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchCmd,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 3, "number of concurrent questions")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "./medtrust-reports", "output directory for trust reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")

	batchCmd.Flags().IntVar(&queryTopK, "top-k", 10, "number of documents to retrieve per question")
	batchCmd.Flags().BoolVar(&queryLiveFetch, "live-fetch", false, "fetch from PubMed when local coverage is low")
	batchCmd.Flags().IntVar(&queryMaxFetch, "max-fetch", 50, "max documents to fetch from PubMed")
	batchCmd.Flags().BoolVar(&queryDebate, "debate", false, "use multi-agent debate generation")
	batchCmd.Flags().IntVar(&queryAdvocates, "advocates", 2, "number of debate advocates")
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&generationModel, "llm-model", "", "generation model name")
}

func runBatchCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	questions, err := readQuestions(args[0])
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("no questions found in %s", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyQueryFlags(cfg)
	if batchConcurrency > 0 {
		cfg.Concurrency.BatchWorkers = batchConcurrency
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := os.MkdirAll(batchOutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Processing %d questions with %d workers...\n", len(questions), cfg.Concurrency.BatchWorkers)

	items := a.pipeline.RunBatch(ctx, questions, pipelineOptions(), cfg.Concurrency.BatchWorkers)

	failed := 0
	for i, item := range items {
		if item.Error != "" {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %q: %s\n", item.Question, item.Error)
			continue
		}

		path := filepath.Join(batchOutputDir, fmt.Sprintf("report_%03d.json", i+1))
		data, err := json.MarshalIndent(item, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report for %q: %w", item.Question, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "ok   %q -> %s (confidence %.2f)\n",
				item.Question, path, item.Report.OverallConfidence)
		}
	}

	fmt.Fprintf(os.Stderr, "\nDone: %d succeeded, %d failed, reports in %s\n",
		len(items)-failed, failed, batchOutputDir)
	if failed > 0 {
		return fmt.Errorf("%d of %d questions failed", failed, len(items))
	}
	return nil
}

// readQuestions loads one question per line, skipping blanks and #
// comments.
func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open questions file: %w", err)
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}
	return questions, nil
}
