// Package pipeline orchestrates the full flow from medical question to
// trust report: retrieval (with optional PubMed augmentation), answer
// generation, and the trust layer that verifies the answer.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/medtrust/internal/model"
	"github.com/ppiankov/medtrust/internal/retrieval"
	"github.com/ppiankov/medtrust/internal/store"
	"github.com/ppiankov/medtrust/internal/trust"
)

// Dependency seams. Production wiring passes the concrete components;
// tests pass fakes.

// Expander rewrites a question with medical synonyms.
type Expander interface {
	Expand(ctx context.Context, query string) string
}

// QueryGenerator turns a question into a PubMed search query.
type QueryGenerator interface {
	Generate(ctx context.Context, question string) string
}

// Retriever finds relevant documents for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]model.DocumentWithScore, error)
}

// Fetcher pulls articles from PubMed.
type Fetcher interface {
	SearchAndFetch(ctx context.Context, term string, maxResults int) ([]model.Article, error)
}

// PendingEmbedder embeds stored documents that lack embeddings.
type PendingEmbedder interface {
	EmbedPending(ctx context.Context, st store.Store, workers int) (int, error)
}

// Generator produces a cited answer in one pass.
type Generator interface {
	Generate(ctx context.Context, question string, docs []model.DocumentWithScore) (string, error)
}

// DebateRunner produces a cited answer via multi-agent debate.
type DebateRunner interface {
	Run(ctx context.Context, query string, docs []model.DocumentWithScore) model.DebateResult
}

// Extractor pulls atomic claims out of an answer.
type Extractor interface {
	Extract(ctx context.Context, answer string) ([]model.ExtractedClaim, error)
}

// Scorer buckets documents as evidence for or against each claim.
type Scorer interface {
	Score(ctx context.Context, claims []model.ExtractedClaim, docs []model.DocumentWithScore) ([]model.ScoredClaim, error)
}

// GapFinder identifies what evidence is missing.
type GapFinder interface {
	Detect(ctx context.Context, scored []model.ScoredClaim, docs []model.DocumentWithScore) ([]model.GapResult, []string)
}

// Deps bundles everything a Pipeline needs. Store, Fetcher, and Embedder
// may be nil when live fetch is never requested; Debate may be nil when
// debate mode is disabled.
type Deps struct {
	Expander   Expander
	QueryGen   QueryGenerator
	Retriever  Retriever
	Coverage   *retrieval.CoverageChecker
	Fetcher    Fetcher
	Store      store.Store
	Embedder   PendingEmbedder
	Generator  Generator
	Debate     DebateRunner
	Verifier   *trust.CitationVerifier
	Extractor  Extractor
	Scorer     Scorer
	Confidence *trust.ConfidenceCalculator
	Gaps       GapFinder

	EmbedWorkers int
}

// Options control one pipeline run.
type Options struct {
	TopK      int
	LiveFetch bool
	MaxFetch  int
}

// Pipeline turns a question into a TrustReport.
type Pipeline struct {
	deps Deps
}

// New creates a pipeline over the given dependencies.
func New(deps Deps) *Pipeline {
	if deps.EmbedWorkers < 1 {
		deps.EmbedWorkers = 1
	}
	return &Pipeline{deps: deps}
}

// runState carries intermediate results between stages.
type runState struct {
	question string
	opts     Options

	expandedQuery    string
	documents        []model.DocumentWithScore
	fetchTriggered   bool
	documentsFetched int

	answer       string
	debateResult *model.DebateResult

	citations         trust.VerificationResult
	scoredClaims      []model.ScoredClaim
	confidenceResults []model.ConfidenceResult
	overallConfidence float64
	evidenceSummary   model.EvidenceSummary
	gapResults        []model.GapResult
	globalGaps        []string
}

// Run executes the full pipeline. Claim extraction, attribution, and
// single-pass generation failures abort the run; expansion, fetching,
// and gap detection degrade instead.
func (p *Pipeline) Run(ctx context.Context, question string, opts Options) (model.TrustReport, error) {
	if err := ctx.Err(); err != nil {
		return model.TrustReport{}, err
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.MaxFetch <= 0 {
		opts.MaxFetch = 50
	}

	runID := uuid.NewString()[:8]
	log.Printf("pipeline %s: starting %q (live_fetch=%t)", runID, question, opts.LiveFetch)

	state := &runState{question: question, opts: opts}

	if err := p.stageRetrieval(ctx, state); err != nil {
		return model.TrustReport{}, err
	}
	if len(state.documents) == 0 {
		log.Printf("pipeline %s: no documents, returning empty report", runID)
		return emptyReport(state), nil
	}

	if err := p.stageGeneration(ctx, state); err != nil {
		return model.TrustReport{}, err
	}
	if err := p.stageTrustLayer(ctx, state); err != nil {
		return model.TrustReport{}, err
	}

	report := buildReport(state)
	log.Printf("pipeline %s: complete, confidence=%.2f claims=%d fetch_triggered=%t",
		runID, report.OverallConfidence, len(report.Claims), report.FetchTriggered)
	return report, nil
}

func (p *Pipeline) stageRetrieval(ctx context.Context, state *runState) error {
	state.expandedQuery = p.deps.Expander.Expand(ctx, state.question)

	docs, err := p.deps.Retriever.Retrieve(ctx, state.expandedQuery, state.opts.TopK)
	if err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	state.documents = docs

	if state.opts.LiveFetch {
		if err := p.augmentFromPubMed(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

// augmentFromPubMed fetches new articles when local coverage is too thin,
// then re-retrieves with the same expanded query. It runs at most once per
// query: if PubMed cannot improve coverage, fetching again will not either.
func (p *Pipeline) augmentFromPubMed(ctx context.Context, state *runState) error {
	coverage := p.deps.Coverage.Check(state.documents)
	log.Printf("pipeline: coverage: %s", coverage.Reason)
	if coverage.IsSufficient {
		return nil
	}
	if p.deps.Fetcher == nil || p.deps.Store == nil || p.deps.Embedder == nil {
		log.Printf("pipeline: live fetch requested but not configured, skipping")
		return nil
	}

	state.fetchTriggered = true

	searchQuery := p.deps.QueryGen.Generate(ctx, state.question)
	log.Printf("pipeline: fetching from pubmed: %q", searchQuery)

	articles, err := p.deps.Fetcher.SearchAndFetch(ctx, searchQuery, state.opts.MaxFetch)
	if err != nil {
		log.Printf("pipeline: pubmed fetch failed, continuing with local documents: %v", err)
		return nil
	}
	if len(articles) == 0 {
		return nil
	}

	saved, err := p.deps.Store.SaveIfAbsent(ctx, articles)
	if err != nil {
		return fmt.Errorf("save fetched articles: %w", err)
	}
	state.documentsFetched = saved

	if saved > 0 {
		if _, err := p.deps.Embedder.EmbedPending(ctx, p.deps.Store, p.deps.EmbedWorkers); err != nil {
			return fmt.Errorf("embed fetched articles: %w", err)
		}
	}

	docs, err := p.deps.Retriever.Retrieve(ctx, state.expandedQuery, state.opts.TopK)
	if err != nil {
		return fmt.Errorf("re-retrieval after fetch: %w", err)
	}
	state.documents = docs
	log.Printf("pipeline: re-retrieved %d documents after fetch", len(docs))
	return nil
}

func (p *Pipeline) stageGeneration(ctx context.Context, state *runState) error {
	if p.deps.Debate != nil {
		result := p.deps.Debate.Run(ctx, state.question, state.documents)
		state.answer = result.Answer
		state.debateResult = &result
		return nil
	}

	answer, err := p.deps.Generator.Generate(ctx, state.question, state.documents)
	if err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	state.answer = answer
	return nil
}

func (p *Pipeline) stageTrustLayer(ctx context.Context, state *runState) error {
	state.citations = p.deps.Verifier.Verify(state.answer, state.documents)
	if state.citations.HasHallucinations() {
		log.Printf("pipeline: hallucinated citations: %v", state.citations.HallucinatedPMIDs)
	}

	claims, err := p.deps.Extractor.Extract(ctx, state.answer)
	if err != nil {
		return fmt.Errorf("claim extraction: %w", err)
	}

	state.scoredClaims, err = p.deps.Scorer.Score(ctx, claims, state.documents)
	if err != nil {
		return fmt.Errorf("attribution scoring: %w", err)
	}

	state.confidenceResults, state.overallConfidence, state.evidenceSummary =
		p.deps.Confidence.CalculateAll(state.scoredClaims)

	state.gapResults, state.globalGaps = p.deps.Gaps.Detect(ctx, state.scoredClaims, state.documents)

	applyHallucinationPenalty(state)
	return nil
}

// applyHallucinationPenalty scales confidence down by the share of
// unverifiable citations and prepends a warning to the global gaps.
func applyHallucinationPenalty(state *runState) {
	if !state.citations.HasHallucinations() {
		return
	}

	rate := state.citations.HallucinationRate()
	original := state.overallConfidence
	state.overallConfidence = original * (1 - rate)
	log.Printf("pipeline: hallucination penalty %.2f -> %.2f", original, state.overallConfidence)

	pmids := state.citations.HallucinatedPMIDs
	listed := pmids
	if len(listed) > 3 {
		listed = listed[:3]
	}
	summary := strings.Join(listed, ", ")
	if len(pmids) > 3 {
		summary += fmt.Sprintf(", ... (+%d more)", len(pmids)-3)
	}

	warning := fmt.Sprintf("Warning: %d citation(s) could not be verified (PMIDs: %s)", len(pmids), summary)
	state.globalGaps = append([]string{warning}, state.globalGaps...)
}

func buildReport(state *runState) model.TrustReport {
	claims := make([]model.Claim, 0, len(state.scoredClaims))
	for i, sc := range state.scoredClaims {
		claim := model.Claim{
			ID:                fmt.Sprintf("claim_%d", i+1),
			Text:              sc.Claim.Text,
			SpanStart:         sc.Claim.SpanStart,
			SpanEnd:           sc.Claim.SpanEnd,
			SupportingDocs:    sc.SupportingDocs,
			ContradictingDocs: sc.ContradictingDocs,
			NeutralDocs:       sc.NeutralDocs,
		}
		if i < len(state.confidenceResults) {
			claim.Confidence = state.confidenceResults[i].Confidence
		}
		if i < len(state.gapResults) {
			claim.MissingEvidence = state.gapResults[i].Gaps
		}
		if claim.MissingEvidence == nil {
			claim.MissingEvidence = []string{}
		}
		claims = append(claims, claim)
	}

	return model.TrustReport{
		Query:                 state.question,
		Answer:                state.answer,
		Claims:                claims,
		OverallConfidence:     state.overallConfidence,
		EvidenceSummary:       state.evidenceSummary,
		GlobalGaps:            state.globalGaps,
		HallucinatedCitations: state.citations.HallucinatedPMIDs,
		FetchTriggered:        state.fetchTriggered,
		DocumentsFetched:      state.documentsFetched,
	}
}

func emptyReport(state *runState) model.TrustReport {
	return model.TrustReport{
		Query: state.question,
		Answer: "I cannot answer this question because no relevant documents " +
			"were found in the database. Try enabling live_fetch to " +
			"retrieve documents from PubMed.",
		Claims:                []model.Claim{},
		EvidenceSummary:       model.EvidenceSummary{},
		GlobalGaps:            []string{"No relevant documents in database"},
		HallucinatedCitations: []string{},
		FetchTriggered:        state.fetchTriggered,
		DocumentsFetched:      state.documentsFetched,
	}
}
