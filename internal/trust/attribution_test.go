package trust

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/medtrust/internal/model"
)

func TestAttributionScorer_Score(t *testing.T) {
	provider := &MockProvider{
		response: `{"evaluations": [
			{"claim_index": 0, "doc_pmid": "100", "verdict": "supports", "reasoning": "direct evidence"},
			{"claim_index": 0, "doc_pmid": "200", "verdict": "contradicts", "reasoning": "opposite finding"},
			{"claim_index": 1, "doc_pmid": "100", "verdict": "neutral", "reasoning": "related topic only"}
		]}`,
	}
	scorer := NewAttributionScorer(provider, "gpt-4o")

	claims := []model.ExtractedClaim{
		{Text: "claim one"},
		{Text: "claim two"},
	}

	scored, err := scorer.Score(context.Background(), claims, docs("100", "200"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("Expected 2 scored claims, got %d", len(scored))
	}

	if len(scored[0].SupportingDocs) != 1 || scored[0].SupportingDocs[0].PMID != "100" {
		t.Errorf("Expected claim 0 supported by 100, got %v", scored[0].SupportingDocs)
	}
	if len(scored[0].ContradictingDocs) != 1 || scored[0].ContradictingDocs[0].PMID != "200" {
		t.Errorf("Expected claim 0 contradicted by 200, got %v", scored[0].ContradictingDocs)
	}
	if len(scored[1].NeutralDocs) != 1 {
		t.Errorf("Expected claim 1 to have one neutral doc, got %v", scored[1].NeutralDocs)
	}
}

func TestAttributionScorer_DiscardsInvalidEvaluations(t *testing.T) {
	provider := &MockProvider{
		response: `{"evaluations": [
			{"claim_index": 5, "doc_pmid": "100", "verdict": "supports"},
			{"claim_index": -1, "doc_pmid": "100", "verdict": "supports"},
			{"claim_index": 0, "doc_pmid": "999", "verdict": "supports"},
			{"claim_index": 0, "doc_pmid": "100", "verdict": "SUPPORTS"},
			{"claim_index": 0, "doc_pmid": "200", "verdict": "maybe"}
		]}`,
	}
	scorer := NewAttributionScorer(provider, "gpt-4o")

	claims := []model.ExtractedClaim{{Text: "claim"}}

	scored, err := scorer.Score(context.Background(), claims, docs("100", "200"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Out-of-range indexes and unknown PMIDs are dropped; verdicts are
	// case-insensitive; unrecognized verdicts bucket as neutral.
	if len(scored[0].SupportingDocs) != 1 || scored[0].SupportingDocs[0].PMID != "100" {
		t.Errorf("Expected one supporting doc 100, got %v", scored[0].SupportingDocs)
	}
	if len(scored[0].NeutralDocs) != 1 || scored[0].NeutralDocs[0].PMID != "200" {
		t.Errorf("Expected unknown verdict bucketed as neutral, got %v", scored[0].NeutralDocs)
	}
}

func TestAttributionScorer_DuplicatePairKeepsFirstVerdict(t *testing.T) {
	provider := &MockProvider{
		response: `{"evaluations": [
			{"claim_index": 0, "doc_pmid": "100", "verdict": "supports"},
			{"claim_index": 0, "doc_pmid": "100", "verdict": "contradicts"},
			{"claim_index": 0, "doc_pmid": "100", "verdict": "neutral"},
			{"claim_index": 1, "doc_pmid": "100", "verdict": "contradicts"}
		]}`,
	}
	scorer := NewAttributionScorer(provider, "gpt-4o")

	claims := []model.ExtractedClaim{
		{Text: "claim one"},
		{Text: "claim two"},
	}

	scored, err := scorer.Score(context.Background(), claims, docs("100"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// A document lands in exactly one bucket per claim; repeated verdicts
	// for the same pair are dropped.
	if len(scored[0].SupportingDocs) != 1 || scored[0].SupportingDocs[0].PMID != "100" {
		t.Errorf("Expected one supporting doc 100, got %v", scored[0].SupportingDocs)
	}
	if len(scored[0].ContradictingDocs) != 0 || len(scored[0].NeutralDocs) != 0 {
		t.Errorf("Expected duplicate verdicts discarded, got contradicting=%v neutral=%v",
			scored[0].ContradictingDocs, scored[0].NeutralDocs)
	}
	if len(scored[1].ContradictingDocs) != 1 {
		t.Errorf("Expected same doc still bucketed for the other claim, got %v", scored[1].ContradictingDocs)
	}
}

func TestAttributionScorer_NoDocuments(t *testing.T) {
	// The provider must not be called when there is nothing to evaluate.
	provider := &MockProvider{err: errors.New("should not be called")}
	scorer := NewAttributionScorer(provider, "gpt-4o")

	claims := []model.ExtractedClaim{{Text: "claim"}}

	scored, err := scorer.Score(context.Background(), claims, nil)
	if err != nil {
		t.Fatalf("Expected no error with no documents, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("Expected no provider calls, got %d", provider.calls)
	}
	if len(scored) != 1 {
		t.Fatalf("Expected 1 scored claim, got %d", len(scored))
	}
	if scored[0].SupportingDocs == nil || len(scored[0].SupportingDocs) != 0 {
		t.Errorf("Expected empty supporting bucket, got %v", scored[0].SupportingDocs)
	}
}

func TestAttributionScorer_CompletionError(t *testing.T) {
	provider := &MockProvider{err: errors.New("timeout")}
	scorer := NewAttributionScorer(provider, "gpt-4o")

	_, err := scorer.Score(context.Background(), []model.ExtractedClaim{{Text: "c"}}, docs("100"))
	if err == nil {
		t.Fatal("Expected error when completion fails")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
	if got := truncate("a long abstract text", 6); got != "a long..." {
		t.Errorf("Expected truncated string with ellipsis, got %q", got)
	}
}
