package model

// Claim is the enriched, report-facing form of an extracted claim:
// evidence buckets from attribution, confidence from the calculator,
// missing evidence from gap detection.
//
// The JSON shape here is consumed by the dashboard and must not drift.
type Claim struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	SpanStart int    `json:"span_start"`
	SpanEnd   int    `json:"span_end"`

	SupportingDocs    []EvidenceReference `json:"supporting_docs"`
	ContradictingDocs []EvidenceReference `json:"contradicting_docs"`
	NeutralDocs       []EvidenceReference `json:"neutral_docs"`

	Confidence      float64  `json:"confidence"`
	MissingEvidence []string `json:"missing_evidence"`
}

// EvidenceSummary aggregates evidence counts over unique PMIDs across all
// claims. A document counts once even when it appears under several claims;
// the first bucket it was seen in wins.
type EvidenceSummary struct {
	TotalSources  int `json:"total_sources"`
	Supporting    int `json:"supporting"`
	Contradicting int `json:"contradicting"`
	Neutral       int `json:"neutral"`
}

// TrustReport is the terminal artifact of a pipeline run: the answer, its
// claims with evidence mapping, confidence, and what the evidence does not
// cover.
type TrustReport struct {
	Query  string  `json:"query"`
	Answer string  `json:"answer"`
	Claims []Claim `json:"claims"`

	OverallConfidence float64         `json:"overall_confidence"`
	EvidenceSummary   EvidenceSummary `json:"evidence_summary"`

	GlobalGaps            []string `json:"global_gaps"`
	HallucinatedCitations []string `json:"hallucinated_citations"`

	FetchTriggered   bool `json:"fetch_triggered"`
	DocumentsFetched int  `json:"documents_fetched"`
}
