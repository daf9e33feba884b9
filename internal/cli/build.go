package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/medtrust/internal/cache"
	"github.com/ppiankov/medtrust/internal/debate"
	"github.com/ppiankov/medtrust/internal/embed"
	"github.com/ppiankov/medtrust/internal/generate"
	"github.com/ppiankov/medtrust/internal/llm"
	"github.com/ppiankov/medtrust/internal/model"
	"github.com/ppiankov/medtrust/internal/pipeline"
	"github.com/ppiankov/medtrust/internal/pubmed"
	"github.com/ppiankov/medtrust/internal/retrieval"
	"github.com/ppiankov/medtrust/internal/store"
	"github.com/ppiankov/medtrust/internal/trust"
)

// loadConfig builds the effective configuration: defaults, overlaid by
// the config file viper located, overlaid by environment variables for
// secrets and the database URL.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PUBMED_API_KEY"); v != "" {
		cfg.PubMed.APIKey = v
	}
	if cfg.Cache.Dir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Cache.Dir = filepath.Join(home, ".medtrust", "cache")
		}
	}
	cfg.Output.Verbose = verbose

	return cfg, nil
}

// resolveAPIKey pulls the provider API key from the environment when the
// config left it empty.
func resolveAPIKey(cfg *model.Config) error {
	if cfg.LLM.APIKey != "" {
		return nil
	}
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
			cfg.LLM.BaseURL = base
		}
	}
	return nil
}

// app bundles the wired components a command needs.
type app struct {
	cfg      *model.Config
	pipeline *pipeline.Pipeline
	store    store.Store
	fetcher  *pubmed.Client
	embedder *embed.Service
}

// buildApp wires the full component graph from config.
func buildApp(cfg *model.Config) (*app, error) {
	if err := resolveAPIKey(cfg); err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.Proxy))
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}

	st, err := store.NewPostgresStore(cfg.Database.URL, cfg.Retrieval)
	if err != nil {
		return nil, fmt.Errorf("connect to document store: %w", err)
	}

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	embedder := embed.NewService(cfg.LLM)
	fetcher := pubmed.NewClient(cfg.PubMed, cfg.Proxy)

	deps := pipeline.Deps{
		Expander:     retrieval.NewQueryExpander(provider, cfg.LLM.UtilityModel, c, cfg.Cache.DiskTTL),
		QueryGen:     retrieval.NewSearchQueryGenerator(provider, cfg.LLM.UtilityModel, c, cfg.Cache.DiskTTL),
		Retriever:    retrieval.NewRetriever(embedder, st),
		Coverage:     retrieval.NewCoverageChecker(cfg.Retrieval),
		Fetcher:      fetcher,
		Store:        st,
		Embedder:     embedder,
		Generator:    generate.NewGenerator(provider, cfg.LLM.GenerationModel),
		Verifier:     trust.NewCitationVerifier(),
		Extractor:    trust.NewClaimExtractor(provider, cfg.LLM.UtilityModel),
		Scorer:       trust.NewAttributionScorer(provider, cfg.LLM.UtilityModel),
		Confidence:   trust.NewConfidenceCalculator(),
		Gaps:         trust.NewGapDetector(provider, cfg.LLM.UtilityModel),
		EmbedWorkers: cfg.Concurrency.EmbedWorkers,
	}
	if cfg.Debate.Enabled {
		deps.Debate = debate.NewOrchestrator(provider, cfg.LLM.GenerationModel, cfg.Debate.NumAdvocates)
	}

	return &app{
		cfg:      cfg,
		pipeline: pipeline.New(deps),
		store:    st,
		fetcher:  fetcher,
		embedder: embedder,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}
