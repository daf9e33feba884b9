package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ppiankov/medtrust/internal/llm"
	"github.com/ppiankov/medtrust/internal/model"
)

// citationBackfillWindow is how many characters past a claim's span the
// fallback scan looks for citation markers the model failed to attach.
const citationBackfillWindow = 100

const extractionPrompt = `You are a claim extraction system. Your job is to break down medical text into atomic, verifiable claims.

RULES:
1. Extract EVERY factual claim from the text
2. Each claim should be a single, verifiable statement
3. Include the character positions (span_start, span_end) where each claim appears
4. Extract any PMID citations associated with each claim
5. Claims should be complete sentences that stand alone

IMPORTANT:
- "ACE inhibitors reduce mortality in heart failure" is ONE claim
- "ACE inhibitors reduce mortality" and "this applies to heart failure patients" are TWO claims
- Be thorough - extract ALL claims, even small ones

OUTPUT FORMAT (JSON):
{
  "claims": [
    {
      "text": "The exact claim text",
      "span_start": 0,
      "span_end": 50,
      "cited_pmids": ["12345", "67890"]
    }
  ]
}

Extract claims from the following text:`

// ClaimExtractor decomposes a generated answer into atomic claims with
// character spans and cited PMIDs. A completion failure here is fatal to
// the pipeline: without claims there is nothing to verify.
type ClaimExtractor struct {
	provider llm.Provider
	model    string
}

// NewClaimExtractor creates a claim extractor using the given completion
// provider and model.
func NewClaimExtractor(provider llm.Provider, model string) *ClaimExtractor {
	return &ClaimExtractor{provider: provider, model: model}
}

type extractionResponse struct {
	Claims []struct {
		Text       string   `json:"text"`
		SpanStart  int      `json:"span_start"`
		SpanEnd    int      `json:"span_end"`
		CitedPMIDs []string `json:"cited_pmids"`
	} `json:"claims"`
}

// Extract splits the answer into atomic claims.
func (e *ClaimExtractor) Extract(ctx context.Context, answer string) ([]model.ExtractedClaim, error) {
	log.Printf("claim extractor: extracting claims from answer (%d chars)", len(answer))

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:      extractionPrompt,
		User:        answer,
		Model:       e.model,
		JSONMode:    true,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("claim extraction completion: %w", err)
	}

	var parsed extractionResponse
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil {
		return nil, fmt.Errorf("parse claim extraction response: %w", err)
	}

	claims := make([]model.ExtractedClaim, 0, len(parsed.Claims))
	for _, c := range parsed.Claims {
		claim := model.ExtractedClaim{
			Text:       c.Text,
			SpanStart:  c.SpanStart,
			SpanEnd:    c.SpanEnd,
			CitedPMIDs: c.CitedPMIDs,
		}
		if claim.CitedPMIDs == nil {
			claim.CitedPMIDs = []string{}
		}
		claims = append(claims, claim)
	}

	claims = backfillCitations(answer, claims)

	log.Printf("claim extractor: extracted %d claims", len(claims))
	return claims, nil
}

// backfillCitations attaches citation markers the model missed. For every
// claim without cited PMIDs, a positional scan associates markers found
// between span_start and span_end plus the backfill window.
func backfillCitations(answer string, claims []model.ExtractedClaim) []model.ExtractedClaim {
	markers := pmidPattern.FindAllStringSubmatchIndex(answer, -1)

	for i := range claims {
		if len(claims[i].CitedPMIDs) > 0 {
			continue
		}
		var nearby []string
		for _, m := range markers {
			pos := m[0]
			if claims[i].SpanStart <= pos && pos <= claims[i].SpanEnd+citationBackfillWindow {
				nearby = append(nearby, answer[m[2]:m[3]])
			}
		}
		if len(nearby) > 0 {
			claims[i].CitedPMIDs = nearby
		}
	}

	return claims
}
