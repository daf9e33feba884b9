// Package store persists the document corpus in Postgres with the
// pgvector extension. Search combines vector similarity with keyword
// rank so exact drug and condition names still match when embeddings
// land wide.
package store

import (
	"context"

	"github.com/ppiankov/medtrust/internal/model"
)

// Store is the document persistence interface the pipeline and server
// depend on.
type Store interface {
	// HybridSearch returns the topK documents ranked by weighted vector
	// plus keyword relevance, best first. Only embedded documents are
	// searchable.
	HybridSearch(ctx context.Context, queryText string, queryVector []float32, topK int) ([]model.DocumentWithScore, error)

	// SaveIfAbsent inserts articles whose PMID is not already stored and
	// returns how many were new.
	SaveIfAbsent(ctx context.Context, articles []model.Article) (int, error)

	// PendingDocuments returns up to limit documents that have no
	// embedding yet.
	PendingDocuments(ctx context.Context, limit int) ([]model.Document, error)

	// UpdateEmbedding sets the embedding for a stored document.
	UpdateEmbedding(ctx context.Context, id int64, vector []float32) error

	// GetByPMID returns the document with the given PMID, or a NotFound
	// error.
	GetByPMID(ctx context.Context, pmid string) (model.Document, error)

	// Counts reports corpus totals.
	Counts(ctx context.Context) (model.DocumentCounts, error)

	Close() error
}
