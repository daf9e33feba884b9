package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/ppiankov/medtrust/internal/model"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

const embeddingDim = 1536

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id               BIGSERIAL PRIMARY KEY,
	pmid             TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	abstract         TEXT NOT NULL,
	authors          TEXT[],
	journal          TEXT,
	publication_date DATE,
	embedding        vector(1536),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS documents_search_idx
	ON documents USING gin (to_tsvector('english', title || ' ' || abstract));
`

// PostgresStore implements Store on Postgres with pgvector.
type PostgresStore struct {
	db            *sql.DB
	vectorWeight  float64
	keywordWeight float64
}

// NewPostgresStore opens the database, verifies connectivity, and
// ensures the schema exists.
func NewPostgresStore(url string, retrieval model.RetrievalConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{
		db:            db,
		vectorWeight:  retrieval.VectorWeight,
		keywordWeight: retrieval.KeywordWeight,
	}
	if s.vectorWeight == 0 && s.keywordWeight == 0 {
		s.vectorWeight, s.keywordWeight = 0.7, 0.3
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) HybridSearch(ctx context.Context, queryText string, queryVector []float32, topK int) ([]model.DocumentWithScore, error) {
	if len(queryVector) != embeddingDim {
		return nil, fmt.Errorf("query vector dimension %d, want %d", len(queryVector), embeddingDim)
	}
	if topK <= 0 {
		topK = 10
	}

	// Cosine distance via <=>; relevance is 1 - distance. Keyword rank
	// uses the same tsvector expression as the GIN index.
	const query = `
SELECT id, pmid, title, abstract, authors, journal, publication_date,
       $1::float8 * (1 - (embedding <=> $2::vector))
     + $3::float8 * ts_rank(to_tsvector('english', title || ' ' || abstract),
                            plainto_tsquery('english', $4)) AS relevance
FROM documents
WHERE embedding IS NOT NULL
ORDER BY relevance DESC
LIMIT $5`

	rows, err := s.db.QueryContext(ctx, query,
		s.vectorWeight, vectorLiteral(queryVector), s.keywordWeight, queryText, topK)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	defer rows.Close()

	var docs []model.DocumentWithScore
	for rows.Next() {
		var d model.DocumentWithScore
		var authors pq.StringArray
		var journal sql.NullString
		var pubDate sql.NullTime
		if err := rows.Scan(&d.ID, &d.PMID, &d.Title, &d.Abstract, &authors, &journal, &pubDate, &d.RelevanceScore); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		d.Authors = authors
		d.Journal = journal.String
		if pubDate.Valid {
			t := pubDate.Time
			d.PublicationDate = &t
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) SaveIfAbsent(ctx context.Context, articles []model.Article) (int, error) {
	const query = `
INSERT INTO documents (pmid, title, abstract, authors, journal, publication_date)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (pmid) DO NOTHING`

	saved := 0
	for _, a := range articles {
		var journal any
		if a.Journal != "" {
			journal = a.Journal
		}
		var pubDate any
		if a.PublicationDate != nil {
			pubDate = *a.PublicationDate
		}

		res, err := s.db.ExecContext(ctx, query, a.PMID, a.Title, a.Abstract, pq.Array(a.Authors), journal, pubDate)
		if err != nil {
			return saved, fmt.Errorf("save document %s: %w", a.PMID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			saved++
		}
	}
	return saved, nil
}

func (s *PostgresStore) PendingDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	const query = `
SELECT id, pmid, title, abstract, authors, journal, publication_date, created_at
FROM documents
WHERE embedding IS NULL
ORDER BY id
LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pending documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) UpdateEmbedding(ctx context.Context, id int64, vector []float32) error {
	if len(vector) != embeddingDim {
		return fmt.Errorf("embedding dimension %d, want %d", len(vector), embeddingDim)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET embedding = $1::vector WHERE id = $2`, vectorLiteral(vector), id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetByPMID(ctx context.Context, pmid string) (model.Document, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, pmid, title, abstract, authors, journal, publication_date, created_at,
       embedding IS NOT NULL
FROM documents
WHERE pmid = $1`, pmid)

	var d model.Document
	var authors pq.StringArray
	var journal sql.NullString
	var pubDate sql.NullTime
	err := row.Scan(&d.ID, &d.PMID, &d.Title, &d.Abstract, &authors, &journal, &pubDate, &d.CreatedAt, &d.HasEmbedding)
	if err == sql.ErrNoRows {
		return model.Document{}, fmt.Errorf("document %s: %w", pmid, ErrNotFound)
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("get document %s: %w", pmid, err)
	}
	d.Authors = authors
	d.Journal = journal.String
	if pubDate.Valid {
		t := pubDate.Time
		d.PublicationDate = &t
	}
	return d, nil
}

func (s *PostgresStore) Counts(ctx context.Context) (model.DocumentCounts, error) {
	var c model.DocumentCounts
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE embedding IS NOT NULL)
FROM documents`).Scan(&c.Total, &c.Embedded)
	if err != nil {
		return model.DocumentCounts{}, fmt.Errorf("count documents: %w", err)
	}
	c.Pending = c.Total - c.Embedded
	return c, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (model.Document, error) {
	var d model.Document
	var authors pq.StringArray
	var journal sql.NullString
	var pubDate sql.NullTime
	if err := row.Scan(&d.ID, &d.PMID, &d.Title, &d.Abstract, &authors, &journal, &pubDate, &d.CreatedAt); err != nil {
		return model.Document{}, fmt.Errorf("scan document: %w", err)
	}
	d.Authors = authors
	d.Journal = journal.String
	if pubDate.Valid {
		t := pubDate.Time
		d.PublicationDate = &t
	}
	return d, nil
}

// vectorLiteral renders a vector in pgvector's text format: [0.1,0.2,...].
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
