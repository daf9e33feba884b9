package retrieval

import (
	"context"
	"fmt"
	"log"

	"github.com/ppiankov/medtrust/internal/model"
)

// QueryEmbedder turns query text into an embedding vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher finds documents by combined vector and keyword relevance.
type Searcher interface {
	HybridSearch(ctx context.Context, queryText string, queryVector []float32, topK int) ([]model.DocumentWithScore, error)
}

// Retriever is the entry point into the document corpus: it embeds the
// (already expanded) query and runs a hybrid search against the store.
type Retriever struct {
	embedder QueryEmbedder
	searcher Searcher
}

// NewRetriever creates a retriever over the given embedder and store.
func NewRetriever(embedder QueryEmbedder, searcher Searcher) *Retriever {
	return &Retriever{embedder: embedder, searcher: searcher}
}

// Retrieve returns the topK most relevant documents for the query,
// ordered most relevant first.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]model.DocumentWithScore, error) {
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err := r.searcher.HybridSearch(ctx, query, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	log.Printf("retriever: %d documents for query (top_k=%d)", len(docs), topK)
	return docs, nil
}
