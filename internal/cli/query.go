package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/medtrust/internal/model"
	"github.com/ppiankov/medtrust/internal/pipeline"
)

var (
	queryTopK       int
	queryLiveFetch  bool
	queryMaxFetch   int
	queryDebate     bool
	queryAdvocates  int
	queryTimeout    time.Duration
	queryOutJSON    string
	llmProvider     string
	generationModel string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a medical question and verify the answer",
	Long: `Query runs the full pipeline for a single question:
- Expand the question with medical synonyms and retrieve documents
- Optionally fetch fresh abstracts from PubMed when coverage is low
- Generate a cited answer (single pass or multi-agent debate)
- Verify citations, score claims against evidence, compute confidence

The resulting trust report is printed as JSON.

Example:
  medtrust query "Do ACE inhibitors reduce mortality in heart failure?"
  medtrust query "Is metformin safe in renal impairment?" --live-fetch
  medtrust query "Does aspirin prevent stroke?" --debate --advocates 3`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().IntVar(&queryTopK, "top-k", 10, "number of documents to retrieve")
	queryCmd.Flags().BoolVar(&queryLiveFetch, "live-fetch", false, "fetch from PubMed when local coverage is low")
	queryCmd.Flags().IntVar(&queryMaxFetch, "max-fetch", 50, "max documents to fetch from PubMed")
	queryCmd.Flags().BoolVar(&queryDebate, "debate", false, "use multi-agent debate generation")
	queryCmd.Flags().IntVar(&queryAdvocates, "advocates", 2, "number of debate advocates")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 5*time.Minute, "overall query timeout")
	queryCmd.Flags().StringVar(&queryOutJSON, "json", "", "write the trust report to this path instead of stdout")
	queryCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	queryCmd.Flags().StringVar(&generationModel, "llm-model", "", "generation model name")
}

// applyQueryFlags folds query-level flags into the loaded config.
func applyQueryFlags(cfg *model.Config) {
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if generationModel != "" {
		cfg.LLM.GenerationModel = generationModel
	}
	if queryDebate {
		cfg.Debate.Enabled = true
		cfg.Debate.NumAdvocates = queryAdvocates
	}
}

func pipelineOptions() pipeline.Options {
	return pipeline.Options{
		TopK:      queryTopK,
		LiveFetch: queryLiveFetch,
		MaxFetch:  queryMaxFetch,
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyQueryFlags(cfg)

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "Question: %s\n", question)
		fmt.Fprintf(os.Stderr, "Provider: %s, live_fetch: %t, debate: %t\n\n",
			cfg.LLM.Provider, queryLiveFetch, cfg.Debate.Enabled)
	}

	report, err := a.pipeline.Run(ctx, question, pipelineOptions())
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if queryOutJSON != "" {
		if err := os.WriteFile(queryOutJSON, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", queryOutJSON)
		return nil
	}
	fmt.Println(string(data))
	return nil
}
