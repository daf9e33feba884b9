package retrieval

import (
	"context"
	"log"
	"time"

	"github.com/ppiankov/medtrust/internal/cache"
	"github.com/ppiankov/medtrust/internal/llm"
)

const expansionPrompt = `You are a medical query expansion system. Your job is to generate ADDITIONAL synonyms, abbreviations, and related terms for a user's medical question to improve search results.

RULES:
1. Output ONLY the additional expansion terms (the original query will be prepended automatically)
2. Add medical synonyms (e.g., for "heart attack" add "myocardial infarction")
3. Add common abbreviations (e.g., for "ACE inhibitors" add "angiotensin-converting enzyme")
4. Add related clinical terms that papers might use
5. Do NOT repeat the original query terms
6. Do NOT add unrelated terms
7. Return ONLY the expansion terms, no explanation

EXAMPLES:
- "Does aspirin prevent heart attacks?" -> "acetylsalicylic acid ASA myocardial infarction MI cardiovascular prevention antiplatelet therapy"
- "metformin weight loss" -> "weight reduction obesity body mass index BMI antidiabetic biguanide metabolic syndrome"
- "high blood pressure treatment" -> "hypertension antihypertensive therapy medication management systolic diastolic BP"

Generate expansion terms for the following query:`

// QueryExpander bridges the terminology gap between how users ask questions
// and how papers describe concepts ("heart attack" vs "myocardial
// infarction"). Expansion failure is non-fatal: the original query is used.
type QueryExpander struct {
	provider llm.Provider
	model    string
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewQueryExpander creates a query expander. cache may be nil to disable
// expansion caching.
func NewQueryExpander(provider llm.Provider, model string, c cache.Cache, ttl time.Duration) *QueryExpander {
	return &QueryExpander{provider: provider, model: model, cache: c, cacheTTL: ttl}
}

// Expand returns "{query} {expansion terms}". The original query always
// leads so the user's exact intent survives expansion.
func (e *QueryExpander) Expand(ctx context.Context, query string) string {
	key := cache.Key("expand:" + e.model + ":" + query)
	if e.cache != nil {
		if val, found := e.cache.Get(key); found {
			return string(val)
		}
	}

	terms, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:      expansionPrompt,
		User:        query,
		Model:       e.model,
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		log.Printf("query expander: expansion failed, using original query: %v", err)
		return query
	}

	expanded := query + " " + terms
	if e.cache != nil {
		if err := e.cache.Set(key, []byte(expanded), e.cacheTTL); err != nil {
			log.Printf("query expander: cache write failed: %v", err)
		}
	}
	return expanded
}
