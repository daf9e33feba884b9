// Package retrieval finds the documents a question will be answered from:
// query expansion, hybrid search over the document store, and the coverage
// check that decides whether to augment from PubMed first.
package retrieval

import (
	"fmt"

	"github.com/ppiankov/medtrust/internal/model"
)

// CoverageResult is the outcome of a coverage check.
type CoverageResult struct {
	// IsSufficient reports whether the documents are good enough to answer
	// without fetching more literature.
	IsSufficient bool `json:"is_sufficient"`

	// DocumentCount is the number of documents checked.
	DocumentCount int `json:"document_count"`

	// AvgRelevance is the mean relevance of the top documents.
	AvgRelevance float64 `json:"avg_relevance"`

	// Reason carries the numeric basis of the decision for logging.
	Reason string `json:"reason"`
}

// CoverageChecker decides whether a retrieved document set provides enough
// coverage to answer a query. Pure and deterministic: insufficient when
// there are too few documents or the top documents' mean relevance is below
// the threshold. Documents are assumed pre-sorted by relevance, descending.
type CoverageChecker struct {
	threshold    float64
	minDocuments int
	topNForAvg   int
}

// NewCoverageChecker creates a coverage checker from retrieval config.
func NewCoverageChecker(cfg model.RetrievalConfig) *CoverageChecker {
	minDocs := cfg.MinDocuments
	if minDocs <= 0 {
		minDocs = 3
	}
	topN := cfg.TopNForAvg
	if topN <= 0 {
		topN = 5
	}
	return &CoverageChecker{
		threshold:    cfg.CoverageThreshold,
		minDocuments: minDocs,
		topNForAvg:   topN,
	}
}

// Check evaluates document coverage.
func (c *CoverageChecker) Check(documents []model.DocumentWithScore) CoverageResult {
	count := len(documents)

	if count < c.minDocuments {
		return CoverageResult{
			IsSufficient:  false,
			DocumentCount: count,
			AvgRelevance:  0,
			Reason:        fmt.Sprintf("Only %d documents found (minimum: %d)", count, c.minDocuments),
		}
	}

	top := documents
	if len(top) > c.topNForAvg {
		top = top[:c.topNForAvg]
	}
	var sum float64
	for _, d := range top {
		sum += d.RelevanceScore
	}
	avg := sum / float64(len(top))

	if avg < c.threshold {
		return CoverageResult{
			IsSufficient:  false,
			DocumentCount: count,
			AvgRelevance:  avg,
			Reason:        fmt.Sprintf("Low relevance (%.2f < %g threshold)", avg, c.threshold),
		}
	}

	return CoverageResult{
		IsSufficient:  true,
		DocumentCount: count,
		AvgRelevance:  avg,
		Reason:        fmt.Sprintf("Good coverage: %d docs, %.2f avg relevance", count, avg),
	}
}
