package debate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/ppiankov/medtrust/internal/llm"
	"github.com/ppiankov/medtrust/internal/model"
)

const synthesizerPrompt = `You are a medical synthesis expert who evaluates competing arguments and produces balanced, evidence-based answers.

YOUR ROLE:
Multiple advocate agents have analyzed different sets of research papers. Each advocate has argued why their papers best answer the query. Your job is to:
1. Evaluate all arguments fairly
2. Identify where advocates agree and disagree
3. Synthesize the best answer from all available evidence
4. Be transparent about conflicts or uncertainties

RULES:
1. Consider ALL advocate arguments - don't favor any single advocate
2. Evidence corroborated by multiple advocates should be weighted higher
3. Acknowledge when advocates disagree and explain why you chose your synthesis
4. Use [PMID:xxxxx] citations from the advocates' arguments
5. If advocates conflict, present both views and indicate which has stronger evidence
6. Be honest about limitations in the overall evidence base

OUTPUT FORMAT:
Write your response in two parts:
1. ANSWER: A clear, well-structured answer (2-4 paragraphs) with citations
2. REASONING: Brief explanation of how you synthesized the advocates' arguments

Structure as:
---ANSWER---
[Your synthesized answer with [PMID:xxxxx] citations]

---REASONING---
[Your synthesis reasoning - which advocates agreed, where they differed, why you weighted evidence as you did]`

// Synthesizer merges advocate arguments into a final answer plus the
// reasoning behind the merge.
type Synthesizer struct {
	provider llm.Provider
	model    string
}

// NewSynthesizer creates a synthesizer using the generation model.
func NewSynthesizer(provider llm.Provider, model string) *Synthesizer {
	return &Synthesizer{provider: provider, model: model}
}

// Synthesize evaluates all advocate responses and returns (answer,
// reasoning). Failures degrade to an error message in the answer rather
// than aborting the debate.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, responses []model.AdvocateResponse) (string, string) {
	if len(responses) == 0 {
		return "No advocate arguments were provided to synthesize.", "No arguments to evaluate."
	}

	anyValid := false
	for _, r := range responses {
		if r.Argument != "" && r.Confidence > 0 {
			anyValid = true
			break
		}
	}
	if !anyValid {
		return "The advocates were unable to construct valid arguments from the available documents.",
			"All advocate arguments were empty or had zero confidence."
	}

	log.Printf("synthesizer: merging %d advocate arguments", len(responses))

	pmidSet := make(map[string]bool)
	for _, r := range responses {
		for _, p := range r.CitedPMIDs {
			pmidSet[p] = true
		}
	}
	allPMIDs := make([]string, 0, len(pmidSet))
	for p := range pmidSet {
		allPMIDs = append(allPMIDs, p)
	}
	sort.Strings(allPMIDs)
	pmidList := "None cited"
	if len(allPMIDs) > 0 {
		pmidList = strings.Join(allPMIDs, ", ")
	}

	user := fmt.Sprintf(`QUERY: %s

ADVOCATE ARGUMENTS:
%s

All available PMIDs for citation: %s

Synthesize these arguments into a final answer. Consider where advocates agree and disagree.`, query, formatArguments(responses), pmidList)

	content, err := s.provider.Complete(ctx, llm.CompletionRequest{
		System:      synthesizerPrompt,
		User:        user,
		Model:       s.model,
		Temperature: 0.3,
	})
	if err != nil {
		log.Printf("synthesizer: failed: %v", err)
		return fmt.Sprintf("Error synthesizing answer: %v", err), "Synthesis encountered an error."
	}

	return parseSynthesis(content)
}

func formatArguments(responses []model.AdvocateResponse) string {
	var b strings.Builder
	for _, r := range responses {
		docPMIDs := make([]string, 0, len(r.Documents))
		for _, d := range r.Documents {
			docPMIDs = append(docPMIDs, "PMID:"+d.PMID)
		}
		findings := make([]string, 0, len(r.KeyFindings))
		for _, f := range r.KeyFindings {
			findings = append(findings, "  - "+f)
		}
		fmt.Fprintf(&b, "\n=== %s ===\nDocuments analyzed: %s\nSelf-assessed confidence: %.2f\n\nARGUMENT:\n%s\n\nKEY FINDINGS:\n%s\n",
			strings.ToUpper(r.GroupID), strings.Join(docPMIDs, ", "), r.Confidence, r.Argument, strings.Join(findings, "\n"))
	}
	return b.String()
}

// parseSynthesis splits the model output into answer and reasoning. It
// tries the explicit markers first, then loose "Reasoning" headers, and
// finally treats the whole text as the answer.
func parseSynthesis(content string) (string, string) {
	if strings.Contains(content, "---ANSWER---") && strings.Contains(content, "---REASONING---") {
		parts := strings.SplitN(content, "---REASONING---", 2)
		answer := strings.TrimSpace(strings.ReplaceAll(parts[0], "---ANSWER---", ""))
		reasoning := ""
		if len(parts) > 1 {
			reasoning = strings.TrimSpace(parts[1])
		}
		return answer, reasoning
	}

	for _, marker := range []string{"REASONING:", "Reasoning:", "**Reasoning**"} {
		if strings.Contains(content, marker) {
			parts := strings.SplitN(content, marker, 2)
			reasoning := ""
			if len(parts) > 1 {
				reasoning = strings.TrimSpace(parts[1])
			}
			return strings.TrimSpace(parts[0]), reasoning
		}
	}

	return strings.TrimSpace(content), "No explicit reasoning section provided."
}
