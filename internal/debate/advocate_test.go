package debate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/medtrust/internal/llm"
	"github.com/ppiankov/medtrust/internal/model"
)

// MockProvider implements llm.Provider with a per-request responder
type MockProvider struct {
	respond func(req llm.CompletionRequest) (string, error)
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return m.respond(req)
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return true
}

func staticProvider(response string, err error) *MockProvider {
	return &MockProvider{respond: func(llm.CompletionRequest) (string, error) {
		return response, err
	}}
}

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

func TestAdvocate_Argue(t *testing.T) {
	provider := staticProvider(`{
		"argument": "The evidence is strong [PMID:100] and consistent [PMID:999].",
		"key_findings": ["Mortality reduced by 20% [PMID:100]"],
		"confidence": 0.8,
		"cited_pmids": ["200"]
	}`, nil)
	advocate := NewAdvocate("group_1", provider, "gpt-4o")

	resp := advocate.Argue(context.Background(), "query", docs("100", "200"))

	if resp.GroupID != "group_1" {
		t.Errorf("Expected group_1, got %s", resp.GroupID)
	}
	if resp.Confidence != 0.8 {
		t.Errorf("Expected confidence 0.8, got %f", resp.Confidence)
	}
	// Cited set is the JSON field plus markers in the argument, filtered
	// to the assigned documents: 200 from the field, 100 from the text,
	// 999 dropped as unassigned.
	if len(resp.CitedPMIDs) != 2 {
		t.Fatalf("Expected 2 cited PMIDs, got %v", resp.CitedPMIDs)
	}
	if resp.CitedPMIDs[0] != "200" || resp.CitedPMIDs[1] != "100" {
		t.Errorf("Expected cited [200 100], got %v", resp.CitedPMIDs)
	}
}

func TestAdvocate_ConfidenceClamped(t *testing.T) {
	provider := staticProvider(`{"argument": "a", "confidence": 1.7, "cited_pmids": []}`, nil)
	advocate := NewAdvocate("group_1", provider, "gpt-4o")

	resp := advocate.Argue(context.Background(), "query", docs("100"))
	if resp.Confidence != 1.0 {
		t.Errorf("Expected confidence clamped to 1.0, got %f", resp.Confidence)
	}
}

func TestAdvocate_EmptyAssignment(t *testing.T) {
	provider := staticProvider("", errors.New("should not be called"))
	advocate := NewAdvocate("group_1", provider, "gpt-4o")

	resp := advocate.Argue(context.Background(), "query", nil)
	if resp.Argument != "No documents were assigned to this advocate." {
		t.Errorf("Unexpected argument: %q", resp.Argument)
	}
	if resp.Confidence != 0 {
		t.Errorf("Expected zero confidence, got %f", resp.Confidence)
	}
}

func TestAdvocate_ProviderFailure(t *testing.T) {
	provider := staticProvider("", errors.New("timeout"))
	advocate := NewAdvocate("group_2", provider, "gpt-4o")

	resp := advocate.Argue(context.Background(), "query", docs("100"))
	if !strings.HasPrefix(resp.Argument, "Advocate failed:") {
		t.Errorf("Expected failure argument, got %q", resp.Argument)
	}
	if resp.Confidence != 0 {
		t.Errorf("Expected zero confidence on failure, got %f", resp.Confidence)
	}
	if len(resp.CitedPMIDs) != 0 {
		t.Errorf("Expected no citations on failure, got %v", resp.CitedPMIDs)
	}
}

func TestAdvocate_UnparseableOutput(t *testing.T) {
	provider := staticProvider("not json", nil)
	advocate := NewAdvocate("group_1", provider, "gpt-4o")

	resp := advocate.Argue(context.Background(), "query", docs("100"))
	if !strings.HasPrefix(resp.Argument, "Advocate failed:") {
		t.Errorf("Expected failure argument, got %q", resp.Argument)
	}
}

func TestFilterPMIDs(t *testing.T) {
	got := filterPMIDs([]string{"1", "2", "1", "3"}, []string{"1", "3"})
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Errorf("Expected [1 3], got %v", got)
	}

	if got := filterPMIDs(nil, []string{"1"}); len(got) != 0 {
		t.Errorf("Expected empty result, got %v", got)
	}
}
