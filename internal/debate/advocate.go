// Package debate implements the multi-agent answer mode: documents are
// split among advocates that each argue for their subset, and a
// synthesizer weighs the competing arguments into one answer.
package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ppiankov/medtrust/internal/llm"
	"github.com/ppiankov/medtrust/internal/model"
	"github.com/ppiankov/medtrust/internal/trust"
)

const advocatePrompt = `You are an expert medical researcher acting as an advocate for a specific set of research papers.

YOUR ROLE:
You must argue why YOUR assigned documents provide the best evidence to answer the query.
Think of yourself as a lawyer for these papers - your job is to make the strongest possible case.

RULES:
1. ONLY use evidence from the documents provided to you
2. Cite every claim using [PMID:xxxxx] format
3. Be specific - quote key statistics, findings, and conclusions
4. Acknowledge limitations in your documents honestly
5. Do NOT make up information or cite documents you weren't given

OUTPUT FORMAT (JSON):
{
    "argument": "Your 2-3 paragraph argument for why these documents answer the query best",
    "key_findings": [
        "Finding 1 with specific data [PMID:xxxxx]",
        "Finding 2 with specific data [PMID:xxxxx]",
        ...
    ],
    "confidence": 0.0-1.0,
    "cited_pmids": ["12345", "67890"]
}

CONFIDENCE SCALE:
- 0.9-1.0: Documents directly and definitively answer the query
- 0.7-0.9: Documents strongly support an answer with good evidence
- 0.5-0.7: Documents provide partial or indirect evidence
- 0.3-0.5: Documents are tangentially related
- 0.0-0.3: Documents don't really address the query`

// Advocate argues for one group of documents. Its cited PMIDs are always
// filtered down to the documents it was actually assigned, so a
// hallucinated citation cannot leak into the debate result.
type Advocate struct {
	groupID  string
	provider llm.Provider
	model    string
}

// NewAdvocate creates an advocate for a document group.
func NewAdvocate(groupID string, provider llm.Provider, model string) *Advocate {
	return &Advocate{groupID: groupID, provider: provider, model: model}
}

type advocateOutput struct {
	Argument    string   `json:"argument"`
	KeyFindings []string `json:"key_findings"`
	Confidence  float64  `json:"confidence"`
	CitedPMIDs  []string `json:"cited_pmids"`
}

// Argue constructs the advocate's case for its assigned documents. An
// empty assignment or a provider failure produces a zero-confidence
// response rather than an error: the synthesizer decides what to do with
// weak advocates.
func (a *Advocate) Argue(ctx context.Context, query string, docs []model.DocumentWithScore) model.AdvocateResponse {
	if len(docs) == 0 {
		return model.AdvocateResponse{
			GroupID:     a.groupID,
			Documents:   docs,
			Argument:    "No documents were assigned to this advocate.",
			KeyFindings: []string{},
			CitedPMIDs:  []string{},
		}
	}

	log.Printf("advocate %s: arguing for %d documents", a.groupID, len(docs))

	available := make([]string, 0, len(docs))
	for _, doc := range docs {
		available = append(available, doc.PMID)
	}

	user := fmt.Sprintf(`QUERY: %s

YOUR ASSIGNED DOCUMENTS:
%s

Available PMIDs for citation: %s

Construct your argument for why these documents best answer the query.
Return your response as JSON.`, query, formatAdvocateDocs(docs), strings.Join(available, ", "))

	raw, err := a.provider.Complete(ctx, llm.CompletionRequest{
		System:      advocatePrompt,
		User:        user,
		Model:       a.model,
		JSONMode:    true,
		Temperature: 0.3,
	})
	if err != nil {
		return a.failed(docs, err)
	}

	var out advocateOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return a.failed(docs, fmt.Errorf("parse advocate output: %w", err))
	}

	// Cited PMIDs come from both the structured field and any [PMID:...]
	// markers in the argument text, restricted to the assigned set.
	cited := filterPMIDs(append(out.CitedPMIDs, trust.ExtractPMIDs(out.Argument)...), available)

	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	if out.KeyFindings == nil {
		out.KeyFindings = []string{}
	}

	return model.AdvocateResponse{
		GroupID:     a.groupID,
		Documents:   docs,
		Argument:    out.Argument,
		KeyFindings: out.KeyFindings,
		Confidence:  out.Confidence,
		CitedPMIDs:  cited,
	}
}

func (a *Advocate) failed(docs []model.DocumentWithScore, err error) model.AdvocateResponse {
	log.Printf("advocate %s: failed: %v", a.groupID, err)
	return model.AdvocateResponse{
		GroupID:     a.groupID,
		Documents:   docs,
		Argument:    fmt.Sprintf("Advocate failed: %v", err),
		KeyFindings: []string{},
		CitedPMIDs:  []string{},
	}
}

func formatAdvocateDocs(docs []model.DocumentWithScore) string {
	var b strings.Builder
	for i, doc := range docs {
		journal := doc.Journal
		if journal == "" {
			journal = "Unknown"
		}
		fmt.Fprintf(&b, "\n=== DOCUMENT %d ===\nPMID: %s\nTitle: %s\nJournal: %s\nRelevance Score: %.3f\n\nAbstract:\n%s\n",
			i+1, doc.PMID, doc.Title, journal, doc.RelevanceScore, doc.Abstract)
	}
	return b.String()
}

// filterPMIDs de-duplicates pmids and keeps only those in allowed,
// preserving first-seen order.
func filterPMIDs(pmids, allowed []string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, p := range allowed {
		allowedSet[p] = true
	}
	seen := make(map[string]bool, len(pmids))
	out := []string{}
	for _, p := range pmids {
		if allowedSet[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
