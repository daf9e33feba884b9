package retrieval

import (
	"context"
	"log"
	"time"

	"github.com/ppiankov/medtrust/internal/cache"
	"github.com/ppiankov/medtrust/internal/llm"
)

const searchQueryPrompt = `You are a PubMed search query generator. Your job is to convert a natural language medical question into an effective PubMed search query.

RULES:
1. Extract the key medical concepts from the question
2. Use proper medical terminology (e.g., "myocardial infarction" not just "heart attack")
3. Include relevant synonyms separated by spaces
4. Add study type terms if relevant (randomized controlled trial, meta-analysis, cohort study)
5. Keep the query focused - don't add unrelated terms
6. Output ONLY the search terms, no explanation
7. Do NOT use PubMed advanced syntax (no AND/OR/NOT operators, no field tags)

EXAMPLES:
- "Do ACE inhibitors reduce mortality in heart failure?" -> "ACE inhibitors angiotensin converting enzyme mortality survival heart failure clinical trial"
- "What are the side effects of metformin?" -> "metformin adverse effects side effects safety tolerability"
- "Is aspirin effective for preventing heart attacks?" -> "aspirin acetylsalicylic acid prevention myocardial infarction cardiovascular randomized trial"
- "How does obesity affect diabetes risk?" -> "obesity body mass index diabetes mellitus type 2 risk factors epidemiology"

Generate a PubMed search query for the following question:`

// SearchQueryGenerator converts a natural language question into PubMed
// search terms. Generation failure falls back to the question itself.
type SearchQueryGenerator struct {
	provider llm.Provider
	model    string
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewSearchQueryGenerator creates a search query generator. cache may be
// nil to disable caching.
func NewSearchQueryGenerator(provider llm.Provider, model string, c cache.Cache, ttl time.Duration) *SearchQueryGenerator {
	return &SearchQueryGenerator{provider: provider, model: model, cache: c, cacheTTL: ttl}
}

// Generate produces a PubMed search query for the question.
func (g *SearchQueryGenerator) Generate(ctx context.Context, question string) string {
	key := cache.Key("pubmedquery:" + g.model + ":" + question)
	if g.cache != nil {
		if val, found := g.cache.Get(key); found {
			return string(val)
		}
	}

	query, err := g.provider.Complete(ctx, llm.CompletionRequest{
		System:      searchQueryPrompt,
		User:        question,
		Model:       g.model,
		Temperature: 0.3,
		MaxTokens:   150,
	})
	if err != nil {
		log.Printf("search query generator: generation failed, using original question: %v", err)
		return question
	}

	if g.cache != nil {
		if err := g.cache.Set(key, []byte(query), g.cacheTTL); err != nil {
			log.Printf("search query generator: cache write failed: %v", err)
		}
	}
	return query
}
