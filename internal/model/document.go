package model

import "time"

// Document is a PubMed abstract as stored in the document database.
type Document struct {
	ID              int64      `json:"id"`
	PMID            string     `json:"pmid"`
	Title           string     `json:"title"`
	Abstract        string     `json:"abstract"`
	Authors         []string   `json:"authors,omitempty"`
	Journal         string     `json:"journal,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	HasEmbedding    bool       `json:"has_embedding"`
}

// DocumentWithScore is a document paired with its retrieval relevance score.
// Retrieval returns these sorted by RelevanceScore, descending.
type DocumentWithScore struct {
	ID              int64      `json:"id"`
	PMID            string     `json:"pmid"`
	Title           string     `json:"title"`
	Abstract        string     `json:"abstract"`
	Authors         []string   `json:"authors,omitempty"`
	Journal         string     `json:"journal,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	RelevanceScore  float64    `json:"relevance_score"`
}

// Article is a raw PubMed article as parsed from the E-utilities response,
// before it is saved to the document store.
type Article struct {
	PMID            string
	Title           string
	Abstract        string
	Authors         []string
	Journal         string
	PublicationDate *time.Time
}

// DocumentCounts reports how many documents are stored and embedded.
type DocumentCounts struct {
	Total    int `json:"total"`
	Embedded int `json:"embedded"`
	Pending  int `json:"pending"`
}
