package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/medtrust/internal/model"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeSearcher struct {
	docs      []model.DocumentWithScore
	err       error
	lastQuery string
	lastTopK  int
}

func (f *fakeSearcher) HybridSearch(ctx context.Context, queryText string, queryVector []float32, topK int) ([]model.DocumentWithScore, error) {
	f.lastQuery = queryText
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func TestRetriever_Retrieve(t *testing.T) {
	searcher := &fakeSearcher{docs: scoredDocs(0.9, 0.7)}
	retriever := NewRetriever(&fakeEmbedder{vector: []float32{0.1, 0.2}}, searcher)

	docs, err := retriever.Retrieve(context.Background(), "statins and LDL", 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("Expected 2 documents, got %d", len(docs))
	}
	if searcher.lastQuery != "statins and LDL" {
		t.Errorf("Expected query text passed through, got %q", searcher.lastQuery)
	}
	if searcher.lastTopK != 10 {
		t.Errorf("Expected topK 10, got %d", searcher.lastTopK)
	}
}

func TestRetriever_EmbedError(t *testing.T) {
	retriever := NewRetriever(&fakeEmbedder{err: errors.New("embeddings down")}, &fakeSearcher{})

	_, err := retriever.Retrieve(context.Background(), "query", 5)
	if err == nil {
		t.Fatal("Expected error when embedding fails")
	}
}

func TestRetriever_SearchError(t *testing.T) {
	retriever := NewRetriever(
		&fakeEmbedder{vector: []float32{0.1}},
		&fakeSearcher{err: errors.New("db down")},
	)

	_, err := retriever.Retrieve(context.Background(), "query", 5)
	if err == nil {
		t.Fatal("Expected error when search fails")
	}
}
