package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ppiankov/medtrust/internal/llm"
	"github.com/ppiankov/medtrust/internal/model"
)

// abstractBudget caps how much of each abstract goes into the scoring
// request, bounding request size for large document sets.
const abstractBudget = 500

const scoringPrompt = `You are an evidence evaluation system. Your job is to determine if a document supports, contradicts, or is neutral to a claim.

DEFINITIONS:
- SUPPORTS: The document provides evidence that the claim is true
- CONTRADICTS: The document provides evidence that the claim is false
- NEUTRAL: The document doesn't clearly support or contradict (mentions related topics, but no direct evidence)

Be strict:
- Only mark SUPPORTS if there's clear positive evidence
- Only mark CONTRADICTS if there's clear negative evidence
- When in doubt, mark NEUTRAL

OUTPUT FORMAT (JSON):
{
  "evaluations": [
    {
      "claim_index": 0,
      "doc_pmid": "12345",
      "verdict": "supports",
      "reasoning": "Brief explanation"
    }
  ]
}

Evaluate the following claim-document pairs:`

// AttributionScorer classifies each (claim, document) pair the model judges
// relevant as supporting, contradicting, or neutral, building the evidence
// map. All pairs go out in a single batched request.
//
// A pair the model never evaluates lands in no bucket; that is deliberate
// and distinct from an evaluated-as-neutral pair.
type AttributionScorer struct {
	provider llm.Provider
	model    string
}

// NewAttributionScorer creates an attribution scorer.
func NewAttributionScorer(provider llm.Provider, model string) *AttributionScorer {
	return &AttributionScorer{provider: provider, model: model}
}

type attributionResponse struct {
	Evaluations []struct {
		ClaimIndex int    `json:"claim_index"`
		DocPMID    string `json:"doc_pmid"`
		Verdict    string `json:"verdict"`
		Reasoning  string `json:"reasoning"`
	} `json:"evaluations"`
}

// Score evaluates every claim against the document set. With no claims or
// no documents it returns one empty-bucket ScoredClaim per claim without an
// LLM call. A completion or parse failure is fatal.
func (s *AttributionScorer) Score(
	ctx context.Context,
	claims []model.ExtractedClaim,
	documents []model.DocumentWithScore,
) ([]model.ScoredClaim, error) {
	if len(claims) == 0 || len(documents) == 0 {
		scored := make([]model.ScoredClaim, len(claims))
		for i, claim := range claims {
			scored[i] = emptyScoredClaim(claim)
		}
		return scored, nil
	}

	log.Printf("attribution scorer: scoring %d claims against %d documents", len(claims), len(documents))

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		System:      scoringPrompt,
		User:        buildEvalRequest(claims, documents),
		Model:       s.model,
		JSONMode:    true,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("attribution completion: %w", err)
	}

	var parsed attributionResponse
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil {
		return nil, fmt.Errorf("parse attribution response: %w", err)
	}

	return bucketEvaluations(claims, documents, parsed), nil
}

func emptyScoredClaim(claim model.ExtractedClaim) model.ScoredClaim {
	return model.ScoredClaim{
		Claim:             claim,
		SupportingDocs:    []model.EvidenceReference{},
		ContradictingDocs: []model.EvidenceReference{},
		NeutralDocs:       []model.EvidenceReference{},
	}
}

// buildEvalRequest enumerates indexed claims and truncated documents into
// one evaluation payload.
func buildEvalRequest(claims []model.ExtractedClaim, documents []model.DocumentWithScore) string {
	var b strings.Builder

	b.WriteString("CLAIMS:\n")
	for i, claim := range claims {
		fmt.Fprintf(&b, "[%d] %s\n", i, claim.Text)
	}

	b.WriteString("\nDOCUMENTS:\n")
	for _, doc := range documents {
		fmt.Fprintf(&b, "[PMID:%s] %s\n", doc.PMID, doc.Title)
		fmt.Fprintf(&b, "Abstract: %s\n\n", truncate(doc.Abstract, abstractBudget))
	}

	b.WriteString("\nEvaluate each claim against each document.")
	return b.String()
}

// bucketEvaluations validates and buckets the model's verdicts. Verdicts
// with an out-of-range claim index or an unknown PMID are discarded: the
// scorer's own output can hallucinate identifiers too.
func bucketEvaluations(
	claims []model.ExtractedClaim,
	documents []model.DocumentWithScore,
	parsed attributionResponse,
) []model.ScoredClaim {
	docLookup := make(map[string]model.DocumentWithScore, len(documents))
	for _, doc := range documents {
		docLookup[doc.PMID] = doc
	}

	scored := make([]model.ScoredClaim, len(claims))
	for i, claim := range claims {
		scored[i] = emptyScoredClaim(claim)
	}

	// The model sometimes emits the same claim/document pair twice with
	// different verdicts. First verdict wins; a document stays in exactly
	// one bucket per claim.
	type pair struct {
		claim int
		pmid  string
	}
	seen := make(map[pair]bool)

	for _, eval := range parsed.Evaluations {
		if eval.ClaimIndex < 0 || eval.ClaimIndex >= len(claims) {
			continue
		}
		doc, ok := docLookup[eval.DocPMID]
		if !ok {
			continue
		}
		key := pair{claim: eval.ClaimIndex, pmid: eval.DocPMID}
		if seen[key] {
			continue
		}
		seen[key] = true

		ref := model.EvidenceReference{
			PMID:           doc.PMID,
			Title:          doc.Title,
			RelevanceScore: doc.RelevanceScore,
		}

		sc := &scored[eval.ClaimIndex]
		switch model.Verdict(strings.ToLower(eval.Verdict)) {
		case model.VerdictSupports:
			sc.SupportingDocs = append(sc.SupportingDocs, ref)
		case model.VerdictContradicts:
			sc.ContradictingDocs = append(sc.ContradictingDocs, ref)
		default:
			sc.NeutralDocs = append(sc.NeutralDocs, ref)
		}
	}

	return scored
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
