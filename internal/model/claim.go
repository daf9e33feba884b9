package model

// ExtractedClaim is one atomic factual statement pulled out of a generated
// answer. Spans are character offsets into the answer text; the dashboard
// uses them to highlight claims in place.
type ExtractedClaim struct {
	Text       string   `json:"text"`
	SpanStart  int      `json:"span_start"`
	SpanEnd    int      `json:"span_end"`
	CitedPMIDs []string `json:"cited_pmids"`
}

// EvidenceReference links a claim to one document that was scored against it.
type EvidenceReference struct {
	PMID           string  `json:"pmid"`
	Title          string  `json:"title"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Verdict classifies one document's stance toward one claim.
type Verdict string

const (
	VerdictSupports    Verdict = "supports"
	VerdictContradicts Verdict = "contradicts"
	VerdictNeutral     Verdict = "neutral"
)

// ScoredClaim is a claim with its evidence buckets. A document the scorer
// never evaluated appears in none of the buckets; that is distinct from an
// evaluated-as-neutral document.
type ScoredClaim struct {
	Claim             ExtractedClaim
	SupportingDocs    []EvidenceReference
	ContradictingDocs []EvidenceReference
	NeutralDocs       []EvidenceReference
}

// SupportScore is (supporting - contradicting) / total, in [-1, 1].
// Zero when no evidence was attributed at all.
func (s ScoredClaim) SupportScore() float64 {
	total := len(s.SupportingDocs) + len(s.ContradictingDocs) + len(s.NeutralDocs)
	if total == 0 {
		return 0
	}
	return float64(len(s.SupportingDocs)-len(s.ContradictingDocs)) / float64(total)
}

// ConfidenceResult is the evidence-based confidence for a single claim.
type ConfidenceResult struct {
	ClaimID           string  `json:"claim_id"`
	ClaimText         string  `json:"claim_text"`
	Confidence        float64 `json:"confidence"`
	EvidenceAgreement float64 `json:"evidence_agreement"`
	NumSupporting     int     `json:"num_supporting"`
	NumContradicting  int     `json:"num_contradicting"`
	NumNeutral        int     `json:"num_neutral"`
}

// GapResult holds the missing-evidence statements detected for one claim.
type GapResult struct {
	ClaimIndex int      `json:"claim_index"`
	ClaimText  string   `json:"claim_text"`
	Gaps       []string `json:"gaps"`
}
