package model

import "sort"

// AdvocateResponse is what a single document advocate produces: an argument
// scoped to its assigned documents, key findings, self-assessed confidence,
// and the PMIDs it actually cited. CitedPMIDs is always a subset of the
// assigned documents' PMIDs.
type AdvocateResponse struct {
	GroupID     string              `json:"group_id"`
	Documents   []DocumentWithScore `json:"documents"`
	Argument    string              `json:"argument"`
	KeyFindings []string            `json:"key_findings"`
	Confidence  float64             `json:"confidence"`
	CitedPMIDs  []string            `json:"cited_pmids"`
}

// DebateRound groups advocate responses for one round. The debate currently
// runs a single initial round; the type exists so transcripts and audits
// keep their shape if rebuttal rounds are added.
type DebateRound struct {
	RoundNumber       int                `json:"round_number"`
	RoundType         string             `json:"round_type"`
	AdvocateResponses []AdvocateResponse `json:"advocate_responses"`
}

// DebateResult is the outcome of a debate session: the synthesized answer
// plus the full audit trail.
type DebateResult struct {
	Answer             string             `json:"answer"`
	AdvocateResponses  []AdvocateResponse `json:"advocate_responses"`
	SynthesisReasoning string             `json:"synthesis_reasoning"`
	Transcript         string             `json:"debate_transcript"`
	Rounds             []DebateRound      `json:"rounds"`
	Metadata           map[string]any     `json:"metadata"`
}

// NumAdvocates returns how many advocates participated.
func (r DebateResult) NumAdvocates() int {
	return len(r.AdvocateResponses)
}

// AllCitedPMIDs returns the unique PMIDs cited across all advocates, sorted.
func (r DebateResult) AllCitedPMIDs() []string {
	seen := make(map[string]bool)
	var pmids []string
	for _, resp := range r.AdvocateResponses {
		for _, pmid := range resp.CitedPMIDs {
			if !seen[pmid] {
				seen[pmid] = true
				pmids = append(pmids, pmid)
			}
		}
	}
	sort.Strings(pmids)
	return pmids
}

// AverageConfidence is the mean of advocate self-assessed confidences.
func (r DebateResult) AverageConfidence() float64 {
	if len(r.AdvocateResponses) == 0 {
		return 0
	}
	var sum float64
	for _, resp := range r.AdvocateResponses {
		sum += resp.Confidence
	}
	return sum / float64(len(r.AdvocateResponses))
}
