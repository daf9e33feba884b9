// Package generate produces cited answers from retrieved evidence. It is
// deliberately uncritical: every claim it emits is checked downstream by
// the trust layer.
package generate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ppiankov/medtrust/internal/llm"
	"github.com/ppiankov/medtrust/internal/model"
)

const generationPrompt = `You are a medical AI assistant that provides evidence-based answers.

CRITICAL RULES:
1. Answer ONLY based on the provided evidence. Do not use external knowledge.
2. For EVERY factual claim, cite the source using [PMID:xxxxx] format.
3. If the evidence doesn't support a clear answer, say "Based on the provided evidence, I cannot definitively answer this question."
4. Be concise but thorough. Aim for 2-4 paragraphs.
5. If evidence is conflicting, acknowledge the conflict and cite both sides.

CITATION FORMAT:
- Use [PMID:xxxxx] immediately after each claim
- Example: "ACE inhibitors reduce mortality by 23% [PMID:12345]."
- You can cite multiple sources: "...shown in multiple studies [PMID:12345][PMID:67890]."

STRUCTURE YOUR ANSWER:
1. Direct answer to the question
2. Supporting evidence with citations
3. Any important caveats or limitations`

// Generator produces single-pass answers with inline citations.
type Generator struct {
	provider llm.Provider
	model    string
}

// NewGenerator creates a generator using the configured generation model.
func NewGenerator(provider llm.Provider, model string) *Generator {
	return &Generator{provider: provider, model: model}
}

// Generate answers the question from the provided documents. Generation
// failure is fatal to a pipeline run: there is nothing to verify without
// an answer.
func (g *Generator) Generate(ctx context.Context, question string, docs []model.DocumentWithScore) (string, error) {
	if len(docs) == 0 {
		return "I cannot answer this question because no relevant evidence was found in the database.", nil
	}

	user := fmt.Sprintf("EVIDENCE:\n%s\n\nQUESTION:\n%s\n\nPlease provide an evidence-based answer with citations.", FormatContext(docs), question)

	log.Printf("generator: answering with %d documents", len(docs))
	answer, err := g.provider.Complete(ctx, llm.CompletionRequest{
		System:      generationPrompt,
		User:        user,
		Model:       g.model,
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// FormatContext renders documents into the cited-evidence block shared by
// the generator and the debate advocates. The leading [PMID:...] marker is
// what makes the model's citations parseable downstream.
func FormatContext(docs []model.DocumentWithScore) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, fmt.Sprintf("[PMID:%s] (Relevance: %.2f)\nTitle: %s\nAbstract: %s",
			doc.PMID, doc.RelevanceScore, doc.Title, doc.Abstract))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
