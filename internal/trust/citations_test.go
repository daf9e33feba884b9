package trust

import (
	"testing"

	"github.com/ppiankov/medtrust/internal/model"
)

func docs(pmids ...string) []model.DocumentWithScore {
	out := make([]model.DocumentWithScore, 0, len(pmids))
	for _, pmid := range pmids {
		out = append(out, model.DocumentWithScore{
			PMID:     pmid,
			Title:    "Title " + pmid,
			Abstract: "Abstract " + pmid,
		})
	}
	return out
}

func TestExtractPMIDs(t *testing.T) {
	text := "ACE inhibitors reduce mortality [PMID:111] and morbidity [PMID:222]. " +
		"This is well established [PMID:111]."

	pmids := ExtractPMIDs(text)
	if len(pmids) != 2 {
		t.Fatalf("Expected 2 unique PMIDs, got %d: %v", len(pmids), pmids)
	}
	if pmids[0] != "111" || pmids[1] != "222" {
		t.Errorf("Expected first-occurrence order [111 222], got %v", pmids)
	}
}

func TestExtractPMIDs_NoCitations(t *testing.T) {
	pmids := ExtractPMIDs("No citations here. PMID 123 without brackets does not count.")
	if len(pmids) != 0 {
		t.Errorf("Expected no PMIDs, got %v", pmids)
	}
}

func TestCitationVerifier_Verify(t *testing.T) {
	verifier := NewCitationVerifier()
	answer := "Statins reduce LDL [PMID:100]. They also reduce events [PMID:200] per trials [PMID:999]."

	result := verifier.Verify(answer, docs("100", "200", "300"))

	if len(result.CitedPMIDs) != 3 {
		t.Errorf("Expected 3 cited PMIDs, got %d", len(result.CitedPMIDs))
	}
	if len(result.ValidPMIDs) != 2 {
		t.Errorf("Expected 2 valid PMIDs, got %v", result.ValidPMIDs)
	}
	if len(result.HallucinatedPMIDs) != 1 || result.HallucinatedPMIDs[0] != "999" {
		t.Errorf("Expected hallucinated [999], got %v", result.HallucinatedPMIDs)
	}
	if !result.HasHallucinations() {
		t.Error("Expected HasHallucinations to be true")
	}

	rate := result.HallucinationRate()
	if rate < 0.333 || rate > 0.334 {
		t.Errorf("Expected hallucination rate 1/3, got %f", rate)
	}
}

func TestCitationVerifier_NoCitations(t *testing.T) {
	verifier := NewCitationVerifier()

	result := verifier.Verify("An answer without any citation markers.", docs("100"))

	if len(result.CitedPMIDs) != 0 {
		t.Errorf("Expected no cited PMIDs, got %v", result.CitedPMIDs)
	}
	if result.HasHallucinations() {
		t.Error("Expected no hallucinations")
	}
	if result.HallucinationRate() != 0 {
		t.Errorf("Expected zero rate with no citations, got %f", result.HallucinationRate())
	}
}

func TestCitationVerifier_AllHallucinated(t *testing.T) {
	verifier := NewCitationVerifier()

	result := verifier.Verify("Entirely fabricated [PMID:1][PMID:2].", nil)

	if result.HallucinationRate() != 1.0 {
		t.Errorf("Expected rate 1.0, got %f", result.HallucinationRate())
	}
	if len(result.ValidPMIDs) != 0 {
		t.Errorf("Expected no valid PMIDs, got %v", result.ValidPMIDs)
	}
}
