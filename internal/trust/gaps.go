package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/ppiankov/medtrust/internal/llm"
	"github.com/ppiankov/medtrust/internal/model"
)

// gapContextDocs is how many top documents get their abstracts included in
// the gap analysis request for context.
const gapContextDocs = 5

// gapAbstractBudget caps context abstract length.
const gapAbstractBudget = 300

const gapDetectionPrompt = `You are a medical evidence analyst. Your job is to identify gaps in the evidence - what important clinical information is NOT addressed.

THINK LIKE A DOCTOR: What would a clinician want to know that isn't covered?

GAP CATEGORIES:
1. Population gaps: Age groups, demographics, comorbidities not covered
2. Dosage gaps: Optimal dosing, titration, formulations not specified
3. Duration gaps: Long-term effects, treatment duration unclear
4. Safety gaps: Side effects, contraindications, interactions not addressed
5. Comparator gaps: No comparison with alternative treatments
6. Outcome gaps: Important outcomes not measured (quality of life, etc.)

RULES:
- Be specific: "Pediatric patients under 12" not just "some patients"
- Be relevant: Only clinically important gaps
- Don't repeat gaps already mentioned
- Limit to 3-5 most important gaps per claim

OUTPUT FORMAT (JSON):
{
  "claim_gaps": [
    {
      "claim_index": 0,
      "gaps": ["Specific gap 1", "Specific gap 2"]
    }
  ],
  "global_gaps": ["Gaps that apply to the answer as a whole"]
}

Analyze the following claims and their supporting evidence:`

// GapDetector identifies missing clinically relevant evidence, per claim
// and for the answer as a whole. It is non-fatal: a failed or unparseable
// completion yields empty gap lists rather than aborting the pipeline.
type GapDetector struct {
	provider llm.Provider
	model    string
}

// NewGapDetector creates a gap detector.
func NewGapDetector(provider llm.Provider, model string) *GapDetector {
	return &GapDetector{provider: provider, model: model}
}

type gapResponse struct {
	ClaimGaps []struct {
		ClaimIndex int      `json:"claim_index"`
		Gaps       []string `json:"gaps"`
	} `json:"claim_gaps"`
	GlobalGaps []string `json:"global_gaps"`
}

// Detect analyzes evidence gaps. Every claim gets an entry in the returned
// per-claim results, ordered by claim index, even when the model reported
// nothing for it.
func (d *GapDetector) Detect(
	ctx context.Context,
	scoredClaims []model.ScoredClaim,
	documents []model.DocumentWithScore,
) ([]model.GapResult, []string) {
	if len(scoredClaims) == 0 {
		return []model.GapResult{}, []string{}
	}

	log.Printf("gap detector: analyzing %d claims", len(scoredClaims))

	resp, err := d.provider.Complete(ctx, llm.CompletionRequest{
		System:      gapDetectionPrompt,
		User:        buildGapRequest(scoredClaims, documents),
		Model:       d.model,
		JSONMode:    true,
		Temperature: 0.3,
	})
	if err != nil {
		log.Printf("gap detector: completion failed, continuing without gaps: %v", err)
		return emptyGapResults(scoredClaims), []string{}
	}

	var parsed gapResponse
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil {
		log.Printf("gap detector: unparseable response, continuing without gaps: %v", err)
		return emptyGapResults(scoredClaims), []string{}
	}

	byIndex := make(map[int]model.GapResult)
	for _, cg := range parsed.ClaimGaps {
		if cg.ClaimIndex < 0 || cg.ClaimIndex >= len(scoredClaims) {
			continue
		}
		gaps := cg.Gaps
		if gaps == nil {
			gaps = []string{}
		}
		byIndex[cg.ClaimIndex] = model.GapResult{
			ClaimIndex: cg.ClaimIndex,
			ClaimText:  scoredClaims[cg.ClaimIndex].Claim.Text,
			Gaps:       gaps,
		}
	}

	results := make([]model.GapResult, 0, len(scoredClaims))
	for i, sc := range scoredClaims {
		if gr, ok := byIndex[i]; ok {
			results = append(results, gr)
			continue
		}
		results = append(results, model.GapResult{
			ClaimIndex: i,
			ClaimText:  sc.Claim.Text,
			Gaps:       []string{},
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ClaimIndex < results[j].ClaimIndex })

	globalGaps := parsed.GlobalGaps
	if globalGaps == nil {
		globalGaps = []string{}
	}

	total := 0
	for _, gr := range results {
		total += len(gr.Gaps)
	}
	log.Printf("gap detector: %d claim-specific gaps, %d global gaps", total, len(globalGaps))

	return results, globalGaps
}

func emptyGapResults(scoredClaims []model.ScoredClaim) []model.GapResult {
	results := make([]model.GapResult, 0, len(scoredClaims))
	for i, sc := range scoredClaims {
		results = append(results, model.GapResult{
			ClaimIndex: i,
			ClaimText:  sc.Claim.Text,
			Gaps:       []string{},
		})
	}
	return results
}

// buildGapRequest lists every claim with its evidence titles plus the top
// document abstracts for context.
func buildGapRequest(scoredClaims []model.ScoredClaim, documents []model.DocumentWithScore) string {
	var b strings.Builder

	b.WriteString("CLAIMS AND THEIR SUPPORTING EVIDENCE:\n\n")
	for i, sc := range scoredClaims {
		fmt.Fprintf(&b, "[Claim %d]: %s\n", i, sc.Claim.Text)

		if len(sc.SupportingDocs) > 0 {
			b.WriteString("  Supporting evidence:\n")
			for _, doc := range sc.SupportingDocs {
				fmt.Fprintf(&b, "    - %s [PMID:%s]\n", doc.Title, doc.PMID)
			}
		} else {
			b.WriteString("  No supporting evidence found\n")
		}

		if len(sc.ContradictingDocs) > 0 {
			b.WriteString("  Contradicting evidence:\n")
			for _, doc := range sc.ContradictingDocs {
				fmt.Fprintf(&b, "    - %s [PMID:%s]\n", doc.Title, doc.PMID)
			}
		}

		b.WriteString("\n")
	}

	b.WriteString("\nDOCUMENT ABSTRACTS (for context):\n\n")
	for i, doc := range documents {
		if i >= gapContextDocs {
			break
		}
		fmt.Fprintf(&b, "[PMID:%s] %s\n", doc.PMID, doc.Title)
		fmt.Fprintf(&b, "Abstract: %s\n\n", truncate(doc.Abstract, gapAbstractBudget))
	}

	b.WriteString("\nIdentify what clinically important information is MISSING from this evidence.")
	return b.String()
}
