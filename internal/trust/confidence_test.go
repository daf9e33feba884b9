package trust

import (
	"math"
	"testing"

	"github.com/ppiankov/medtrust/internal/model"
)

func refs(pmids ...string) []model.EvidenceReference {
	out := make([]model.EvidenceReference, 0, len(pmids))
	for _, pmid := range pmids {
		out = append(out, model.EvidenceReference{PMID: pmid, Title: "Title " + pmid})
	}
	return out
}

func scoredClaim(text string, supporting, contradicting, neutral []model.EvidenceReference) model.ScoredClaim {
	sc := model.ScoredClaim{
		Claim:             model.ExtractedClaim{Text: text},
		SupportingDocs:    supporting,
		ContradictingDocs: contradicting,
		NeutralDocs:       neutral,
	}
	if sc.SupportingDocs == nil {
		sc.SupportingDocs = []model.EvidenceReference{}
	}
	if sc.ContradictingDocs == nil {
		sc.ContradictingDocs = []model.EvidenceReference{}
	}
	if sc.NeutralDocs == nil {
		sc.NeutralDocs = []model.EvidenceReference{}
	}
	return sc
}

func TestConfidenceCalculator_CalculateClaim(t *testing.T) {
	calc := NewConfidenceCalculator()

	tests := []struct {
		name          string
		supporting    int
		contradicting int
		neutral       int
		want          float64
	}{
		// agreement=0.75, sourceFactor=ln(4)/ln(11)
		{"mostly supported", 3, 0, 1, 0.3 + 0.75*(math.Log(4)/math.Log(11))*0.7},
		// agreement=1, sourceFactor=ln(3)/ln(11)
		{"fully supported", 2, 0, 0, 0.3 + 1.0*(math.Log(3)/math.Log(11))*0.7},
		// agreement=-1 maps to the floor
		{"fully contradicted", 0, 2, 0, 0.1},
		// agreement=-0.5 maps to 0.1 + 0.5*0.2
		{"mostly contradicted", 1, 3, 0, 0.2},
		// agreement=0, neutral evidence only
		{"neutral only", 0, 0, 5, 0.3},
		{"no evidence", 0, 0, 0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := scoredClaim("claim",
				refs(make([]string, tt.supporting)...),
				refs(make([]string, tt.contradicting)...),
				refs(make([]string, tt.neutral)...),
			)
			got := calc.CalculateClaim(sc)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected confidence %f, got %f", tt.want, got)
			}
		})
	}
}

func TestConfidenceCalculator_SourceFactorCapped(t *testing.T) {
	calc := NewConfidenceCalculator()

	// 20 supporting docs: ln(21)/ln(11) > 1, so the factor caps at 1 and
	// confidence maxes out at 0.3 + 1*1*0.7.
	sc := scoredClaim("claim", refs(make([]string, 20)...), nil, nil)
	got := calc.CalculateClaim(sc)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Expected capped confidence 1.0, got %f", got)
	}
}

func TestConfidenceCalculator_CalculateAll_Empty(t *testing.T) {
	calc := NewConfidenceCalculator()

	results, overall, summary := calc.CalculateAll(nil)
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
	if overall != 0 {
		t.Errorf("Expected zero overall confidence, got %f", overall)
	}
	if summary.TotalSources != 0 {
		t.Errorf("Expected zero total sources, got %d", summary.TotalSources)
	}
}

func TestConfidenceCalculator_CalculateAll_WeightedOverall(t *testing.T) {
	calc := NewConfidenceCalculator()

	claims := []model.ScoredClaim{
		scoredClaim("well evidenced", refs("1", "2", "3"), nil, nil),
		scoredClaim("unevidenced", nil, nil, refs("4")),
	}

	results, overall, _ := calc.CalculateAll(claims)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].ClaimID != "claim_1" || results[1].ClaimID != "claim_2" {
		t.Errorf("Expected claim IDs claim_1, claim_2, got %s, %s", results[0].ClaimID, results[1].ClaimID)
	}

	// Weights are supporting+1: claim 1 gets weight 4, claim 2 gets weight 1.
	conf1 := 0.3 + 1.0*(math.Log(4)/math.Log(11))*0.7
	conf2 := 0.3
	want := (conf1*4 + conf2*1) / 5
	if math.Abs(overall-want) > 1e-9 {
		t.Errorf("Expected weighted overall %f, got %f", want, overall)
	}
}

func TestConfidenceCalculator_EvidenceSummary_FirstBucketWins(t *testing.T) {
	calc := NewConfidenceCalculator()

	// PMID 1 appears as supporting for claim 1 and contradicting for
	// claim 2; it must be counted once, in the bucket seen first.
	claims := []model.ScoredClaim{
		scoredClaim("a", refs("1"), nil, nil),
		scoredClaim("b", nil, refs("1"), refs("2")),
	}

	_, _, summary := calc.CalculateAll(claims)

	if summary.Supporting != 1 {
		t.Errorf("Expected 1 supporting source, got %d", summary.Supporting)
	}
	if summary.Contradicting != 0 {
		t.Errorf("Expected 0 contradicting sources, got %d", summary.Contradicting)
	}
	if summary.Neutral != 1 {
		t.Errorf("Expected 1 neutral source, got %d", summary.Neutral)
	}
	if summary.TotalSources != 2 {
		t.Errorf("Expected 2 total sources, got %d", summary.TotalSources)
	}
}
