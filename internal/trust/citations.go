// Package trust implements the post-hoc verification stages that turn a
// generated answer plus its retrieved documents into claim-level evidence
// scores, confidence, and gap analysis.
package trust

import (
	"log"
	"regexp"

	"github.com/ppiankov/medtrust/internal/model"
)

// pmidPattern matches inline [PMID:12345] citation markers.
var pmidPattern = regexp.MustCompile(`\[PMID:(\d+)\]`)

// VerificationResult is the outcome of citation verification.
type VerificationResult struct {
	// CitedPMIDs are all PMIDs cited in the answer, first-occurrence order,
	// de-duplicated.
	CitedPMIDs []string

	// ValidPMIDs exist in the retrieved document set.
	ValidPMIDs []string

	// HallucinatedPMIDs were cited but never retrieved.
	HallucinatedPMIDs []string
}

// HasHallucinations reports whether any cited PMID was not retrieved.
func (r VerificationResult) HasHallucinations() bool {
	return len(r.HallucinatedPMIDs) > 0
}

// HallucinationRate is the fraction of citations that are hallucinated,
// zero when nothing was cited.
func (r VerificationResult) HallucinationRate() float64 {
	if len(r.CitedPMIDs) == 0 {
		return 0
	}
	return float64(len(r.HallucinatedPMIDs)) / float64(len(r.CitedPMIDs))
}

// CitationVerifier diffs the citations appearing in an answer against the
// retrieved document set. It is the only fully deterministic verification
// stage: no LLM call, same input always yields the same result.
type CitationVerifier struct{}

// NewCitationVerifier creates a new citation verifier
func NewCitationVerifier() *CitationVerifier {
	return &CitationVerifier{}
}

// Verify partitions the answer's citations into valid and hallucinated.
func (v *CitationVerifier) Verify(answer string, retrievedDocs []model.DocumentWithScore) VerificationResult {
	cited := ExtractPMIDs(answer)

	retrieved := make(map[string]bool, len(retrievedDocs))
	for _, doc := range retrievedDocs {
		retrieved[doc.PMID] = true
	}

	var valid, hallucinated []string
	for _, pmid := range cited {
		if retrieved[pmid] {
			valid = append(valid, pmid)
		} else {
			hallucinated = append(hallucinated, pmid)
		}
	}

	if len(hallucinated) > 0 {
		log.Printf("citation verifier: %d hallucinated citation(s): %v", len(hallucinated), hallucinated)
	}

	return VerificationResult{
		CitedPMIDs:        cited,
		ValidPMIDs:        valid,
		HallucinatedPMIDs: hallucinated,
	}
}

// ExtractPMIDs returns all PMIDs cited in text, preserving first-occurrence
// order and dropping duplicates.
func ExtractPMIDs(text string) []string {
	matches := pmidPattern.FindAllStringSubmatch(text, -1)

	seen := make(map[string]bool)
	var pmids []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			pmids = append(pmids, m[1])
		}
	}
	return pmids
}
