// Package embed generates OpenAI embeddings for queries and stored
// documents. Documents are embedded at ingest time; query time pays for
// exactly one embedding call.
package embed

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ppiankov/medtrust/internal/model"
	"github.com/ppiankov/medtrust/internal/store"
	"github.com/ppiankov/medtrust/internal/worker"
)

// The API accepts up to 2048 inputs per call; 100 keeps request bodies
// small.
const batchSize = 100

// Rough truncation guard: ~8k tokens at 4 chars per token.
const maxEmbedChars = 32000

type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Service embeds text with the configured OpenAI embedding model.
type Service struct {
	client embeddingsAPI
	model  string
}

// NewService creates an embedding service from LLM config.
func NewService(cfg model.LLMConfig) *Service {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	embModel := cfg.EmbeddingModel
	if embModel == "" {
		embModel = "text-embedding-3-small"
	}
	return &Service{client: openai.NewClientWithConfig(clientCfg), model: embModel}
}

// EmbedQuery embeds a single query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds up to batchSize texts in one API call. Overlong
// texts are truncated rather than rejected.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > batchSize {
		return nil, fmt.Errorf("too many texts (%d), max is %d", len(texts), batchSize)
	}

	input := make([]string, len(texts))
	for i, t := range texts {
		if len(t) > maxEmbedChars {
			t = t[:maxEmbedChars]
		}
		input[i] = t
	}

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(s.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(input), len(resp.Data))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// EmbedPending embeds every stored document that has no embedding yet,
// fanning batches out across workers. Returns how many documents were
// embedded.
func (s *Service) EmbedPending(ctx context.Context, st store.Store, workers int) (int, error) {
	if workers < 1 {
		workers = 1
	}

	embedded := 0
	for {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}
		// Embedded documents leave the pending set, so each round pulls
		// the next slice of work. One round feeds every worker a batch.
		pending, err := st.PendingDocuments(ctx, workers*batchSize)
		if err != nil {
			return embedded, err
		}
		if len(pending) == 0 {
			break
		}

		pool := worker.NewPool(ctx, workers)
		pool.Start()
		for start := 0; start < len(pending); start += batchSize {
			end := start + batchSize
			if end > len(pending) {
				end = len(pending)
			}
			pool.Submit(&embedJob{service: s, store: st, docs: pending[start:end]})
		}

		var firstErr error
		for _, res := range pool.Wait() {
			if err := res.GetError(); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			embedded += res.(*embedResult).embedded
		}
		if firstErr != nil {
			return embedded, fmt.Errorf("embed pending documents: %w", firstErr)
		}
	}

	if embedded > 0 {
		log.Printf("embed: %d documents embedded", embedded)
	}
	return embedded, nil
}

// embedJob embeds one batch of documents and persists the vectors.
type embedJob struct {
	service *Service
	store   store.Store
	docs    []model.Document
}

type embedResult struct {
	embedded int
	err      error
}

func (r *embedResult) GetError() error { return r.err }

func (j *embedJob) Execute(ctx context.Context) worker.Result {
	texts := make([]string, len(j.docs))
	for i, d := range j.docs {
		texts[i] = d.Title + "\n\n" + d.Abstract
	}

	vecs, err := j.service.EmbedTexts(ctx, texts)
	if err != nil {
		return &embedResult{err: err}
	}

	count := 0
	for i, d := range j.docs {
		if err := j.store.UpdateEmbedding(ctx, d.ID, vecs[i]); err != nil {
			return &embedResult{embedded: count, err: err}
		}
		count++
	}
	return &embedResult{embedded: count}
}
