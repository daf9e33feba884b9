package trust

import (
	"fmt"
	"log"
	"math"

	"github.com/ppiankov/medtrust/internal/model"
)

// maxExpectedSources normalizes the diminishing-returns source factor:
// ln(supporting+1) / ln(maxExpectedSources+1), capped at 1.
const maxExpectedSources = 10

// ConfidenceCalculator converts attribution counts into per-claim and
// overall confidence. This is evidence confidence, not model confidence:
// it measures how well the retrieved literature backs each claim.
type ConfidenceCalculator struct{}

// NewConfidenceCalculator creates a new confidence calculator
func NewConfidenceCalculator() *ConfidenceCalculator {
	return &ConfidenceCalculator{}
}

// CalculateClaim computes the confidence for a single scored claim.
//
// The formula is load-bearing for report compatibility:
//
//	agreement     = (supporting - contradicting) / total
//	sourceFactor  = min(1, ln(supporting+1) / ln(11))
//	agreement < 0: confidence = 0.1 + (agreement+1)*0.2   -> [0.1, 0.3)
//	otherwise:     confidence = 0.3 + agreement*sourceFactor*0.7
//
// Zero total evidence yields zero confidence.
func (c *ConfidenceCalculator) CalculateClaim(sc model.ScoredClaim) float64 {
	supporting := len(sc.SupportingDocs)
	contradicting := len(sc.ContradictingDocs)
	neutral := len(sc.NeutralDocs)
	total := supporting + contradicting + neutral

	if total == 0 {
		return 0
	}

	agreement := float64(supporting-contradicting) / float64(total)

	sourceFactor := math.Log(float64(supporting)+1) / math.Log(maxExpectedSources+1)
	sourceFactor = math.Min(sourceFactor, 1)

	var confidence float64
	if agreement < 0 {
		confidence = 0.1 + (agreement+1)*0.2
	} else {
		confidence = 0.3 + agreement*sourceFactor*0.7
	}

	return math.Max(0, math.Min(1, confidence))
}

// CalculateAll computes per-claim confidence, the weighted overall
// confidence, and the unique-source evidence summary.
//
// Overall confidence weights each claim by supporting+1, so a claim is
// never zero-weighted but better-evidenced claims dominate. The summary
// counts unique PMIDs across all buckets of all claims; the first bucket a
// PMID is seen in wins.
func (c *ConfidenceCalculator) CalculateAll(
	scoredClaims []model.ScoredClaim,
) ([]model.ConfidenceResult, float64, model.EvidenceSummary) {
	if len(scoredClaims) == 0 {
		return []model.ConfidenceResult{}, 0, model.EvidenceSummary{}
	}

	results := make([]model.ConfidenceResult, 0, len(scoredClaims))
	seen := make(map[string]bool)
	summary := model.EvidenceSummary{}

	for i, sc := range scoredClaims {
		results = append(results, model.ConfidenceResult{
			ClaimID:           fmt.Sprintf("claim_%d", i+1),
			ClaimText:         sc.Claim.Text,
			Confidence:        c.CalculateClaim(sc),
			EvidenceAgreement: sc.SupportScore(),
			NumSupporting:     len(sc.SupportingDocs),
			NumContradicting:  len(sc.ContradictingDocs),
			NumNeutral:        len(sc.NeutralDocs),
		})

		for _, doc := range sc.SupportingDocs {
			if !seen[doc.PMID] {
				seen[doc.PMID] = true
				summary.Supporting++
			}
		}
		for _, doc := range sc.ContradictingDocs {
			if !seen[doc.PMID] {
				seen[doc.PMID] = true
				summary.Contradicting++
			}
		}
		for _, doc := range sc.NeutralDocs {
			if !seen[doc.PMID] {
				seen[doc.PMID] = true
				summary.Neutral++
			}
		}
	}
	summary.TotalSources = len(seen)

	var weightedSum, totalWeight float64
	for _, r := range results {
		weight := float64(r.NumSupporting + 1)
		weightedSum += r.Confidence * weight
		totalWeight += weight
	}
	overall := 0.0
	if totalWeight > 0 {
		overall = weightedSum / totalWeight
	}

	log.Printf("confidence calculator: overall=%.2f, claims=%d, sources=%d",
		overall, len(results), summary.TotalSources)

	return results, overall, summary
}
