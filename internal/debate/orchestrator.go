package debate

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/medtrust/internal/llm"
	"github.com/ppiankov/medtrust/internal/model"
)

// Orchestrator runs a debate: it splits documents among advocates, fans
// the advocates out concurrently, and synthesizes their arguments.
type Orchestrator struct {
	numAdvocates int
	provider     llm.Provider
	model        string
	synthesizer  *Synthesizer
}

// NewOrchestrator creates an orchestrator with at least one advocate.
func NewOrchestrator(provider llm.Provider, generationModel string, numAdvocates int) *Orchestrator {
	if numAdvocates < 1 {
		numAdvocates = 1
	}
	return &Orchestrator{
		numAdvocates: numAdvocates,
		provider:     provider,
		model:        generationModel,
		synthesizer:  NewSynthesizer(provider, generationModel),
	}
}

// Run executes one debate over the documents and returns the synthesized
// result with a full audit trail.
func (o *Orchestrator) Run(ctx context.Context, query string, docs []model.DocumentWithScore) model.DebateResult {
	start := time.Now()

	if len(docs) == 0 {
		return model.DebateResult{
			Answer:             "No documents were provided for the debate.",
			AdvocateResponses:  []model.AdvocateResponse{},
			SynthesisReasoning: "Cannot debate without documents.",
			Transcript:         "No documents provided.",
			Rounds:             []model.DebateRound{},
			Metadata:           map[string]any{"error": "no_documents"},
		}
	}

	// More advocates than documents would leave some with empty
	// assignments and nothing to argue.
	n := o.numAdvocates
	if n > len(docs) {
		n = len(docs)
	}

	log.Printf("debate: %d documents, %d advocates", len(docs), n)

	groups := splitDocuments(docs, n)
	responses := o.runAdvocates(ctx, query, groups)
	advocateTime := time.Since(start)

	synthStart := time.Now()
	answer, reasoning := o.synthesizer.Synthesize(ctx, query, responses)
	synthTime := time.Since(synthStart)

	docsPerAdvocate := make([]int, len(groups))
	for i, g := range groups {
		docsPerAdvocate[i] = len(g)
	}

	result := model.DebateResult{
		Answer:             answer,
		AdvocateResponses:  responses,
		SynthesisReasoning: reasoning,
		Transcript:         buildTranscript(query, responses, answer, reasoning),
		Rounds: []model.DebateRound{{
			RoundNumber:       1,
			RoundType:         "initial",
			AdvocateResponses: responses,
		}},
		Metadata: map[string]any{
			"num_advocates":          n,
			"num_documents":          len(docs),
			"docs_per_advocate":      docsPerAdvocate,
			"advocate_time_seconds":  roundSeconds(advocateTime),
			"synthesis_time_seconds": roundSeconds(synthTime),
			"total_time_seconds":     roundSeconds(time.Since(start)),
		},
	}

	log.Printf("debate: complete, %d unique PMIDs cited, avg confidence %.2f, total %.2fs",
		len(result.AllCitedPMIDs()), result.AverageConfidence(), time.Since(start).Seconds())
	return result
}

// runAdvocates fans out one goroutine per group. Results land in their
// group's slot so ordering matches the document split regardless of
// completion order.
func (o *Orchestrator) runAdvocates(ctx context.Context, query string, groups [][]model.DocumentWithScore) []model.AdvocateResponse {
	responses := make([]model.AdvocateResponse, len(groups))
	var wg sync.WaitGroup
	for i, group := range groups {
		wg.Add(1)
		go func(i int, group []model.DocumentWithScore) {
			defer wg.Done()
			advocate := NewAdvocate(fmt.Sprintf("group_%d", i+1), o.provider, o.model)
			responses[i] = advocate.Argue(ctx, query, group)
		}(i, group)
	}
	wg.Wait()
	return responses
}

// splitDocuments distributes documents round-robin. Documents arrive
// sorted by relevance, so round-robin gives every advocate a mix of
// strong and weak evidence instead of one advocate holding all the best
// papers.
func splitDocuments(docs []model.DocumentWithScore, numGroups int) [][]model.DocumentWithScore {
	groups := make([][]model.DocumentWithScore, numGroups)
	for i, doc := range docs {
		groups[i%numGroups] = append(groups[i%numGroups], doc)
	}
	return groups
}

func buildTranscript(query string, responses []model.AdvocateResponse, answer, reasoning string) string {
	rule := strings.Repeat("=", 60)
	sep := strings.Repeat("-", 40)

	var b strings.Builder
	b.WriteString(rule + "\nDEBATE TRANSCRIPT\n" + rule + "\n")
	b.WriteString("\nQUERY: " + query + "\n\n")
	b.WriteString(sep + "\nADVOCATE ARGUMENTS\n" + sep + "\n")

	for _, r := range responses {
		cited := strings.Join(r.CitedPMIDs, ", ")
		if cited == "" {
			cited = "None"
		}
		fmt.Fprintf(&b, "\n### %s ###\nDocuments: %d\nConfidence: %.2f\nPMIDs cited: %s\n\nArgument:\n%s\n\nKey Findings:\n",
			strings.ToUpper(r.GroupID), len(r.Documents), r.Confidence, cited, r.Argument)
		for _, f := range r.KeyFindings {
			b.WriteString("  - " + f + "\n")
		}
	}

	fmt.Fprintf(&b, "\n%s\nSYNTHESIS\n%s\n\nFinal Answer:\n%s\n\nSynthesis Reasoning:\n%s\n\n%s\n",
		sep, sep, answer, reasoning, rule)
	return b.String()
}

func roundSeconds(d time.Duration) float64 {
	return float64(int(d.Seconds()*100+0.5)) / 100
}
