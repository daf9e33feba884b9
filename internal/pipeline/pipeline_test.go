package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ppiankov/medtrust/internal/model"
	"github.com/ppiankov/medtrust/internal/retrieval"
	"github.com/ppiankov/medtrust/internal/store"
	"github.com/ppiankov/medtrust/internal/trust"
)

// Fakes for every pipeline seam.

type fakeExpander struct{ suffix string }

func (f *fakeExpander) Expand(ctx context.Context, query string) string {
	return query + f.suffix
}

type fakeQueryGen struct{ query string }

func (f *fakeQueryGen) Generate(ctx context.Context, question string) string {
	return f.query
}

// fakeRetriever returns its result sets in sequence, one per call.
type fakeRetriever struct {
	results [][]model.DocumentWithScore
	err     error
	calls   int
	queries []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]model.DocumentWithScore, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	return f.results[idx], nil
}

type fakeFetcher struct {
	articles []model.Article
	err      error
	calls    int
}

func (f *fakeFetcher) SearchAndFetch(ctx context.Context, term string, maxResults int) ([]model.Article, error) {
	f.calls++
	return f.articles, f.err
}

type fakeStore struct {
	saved int
}

func (f *fakeStore) HybridSearch(ctx context.Context, queryText string, queryVector []float32, topK int) ([]model.DocumentWithScore, error) {
	return nil, nil
}

func (f *fakeStore) SaveIfAbsent(ctx context.Context, articles []model.Article) (int, error) {
	f.saved += len(articles)
	return len(articles), nil
}

func (f *fakeStore) PendingDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	return nil, nil
}

func (f *fakeStore) UpdateEmbedding(ctx context.Context, id int64, vector []float32) error {
	return nil
}

func (f *fakeStore) GetByPMID(ctx context.Context, pmid string) (model.Document, error) {
	return model.Document{}, nil
}

func (f *fakeStore) Counts(ctx context.Context) (model.DocumentCounts, error) {
	return model.DocumentCounts{}, nil
}

func (f *fakeStore) Close() error { return nil }

type stubEmbedder struct{ calls int }

func (f *stubEmbedder) EmbedPending(ctx context.Context, st store.Store, workers int) (int, error) {
	f.calls++
	return 0, nil
}

type fakeGenerator struct {
	answer string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, question string, docs []model.DocumentWithScore) (string, error) {
	return f.answer, f.err
}

type fakeDebate struct{ result model.DebateResult }

func (f *fakeDebate) Run(ctx context.Context, query string, docs []model.DocumentWithScore) model.DebateResult {
	return f.result
}

type fakeExtractor struct {
	claims []model.ExtractedClaim
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, answer string) ([]model.ExtractedClaim, error) {
	return f.claims, f.err
}

type fakeScorer struct {
	scored []model.ScoredClaim
	err    error
}

func (f *fakeScorer) Score(ctx context.Context, claims []model.ExtractedClaim, docs []model.DocumentWithScore) ([]model.ScoredClaim, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.scored != nil {
		return f.scored, nil
	}
	scored := make([]model.ScoredClaim, len(claims))
	for i, claim := range claims {
		scored[i] = model.ScoredClaim{
			Claim:             claim,
			SupportingDocs:    []model.EvidenceReference{},
			ContradictingDocs: []model.EvidenceReference{},
			NeutralDocs:       []model.EvidenceReference{},
		}
	}
	return scored, nil
}

type fakeGaps struct {
	results []model.GapResult
	global  []string
}

func (f *fakeGaps) Detect(ctx context.Context, scored []model.ScoredClaim, docs []model.DocumentWithScore) ([]model.GapResult, []string) {
	if f.results != nil {
		return f.results, f.global
	}
	results := make([]model.GapResult, len(scored))
	for i, sc := range scored {
		results[i] = model.GapResult{ClaimIndex: i, ClaimText: sc.Claim.Text, Gaps: []string{}}
	}
	global := f.global
	if global == nil {
		global = []string{}
	}
	return results, global
}

func testDocs(pmids ...string) []model.DocumentWithScore {
	out := make([]model.DocumentWithScore, 0, len(pmids))
	for _, pmid := range pmids {
		out = append(out, model.DocumentWithScore{PMID: pmid, Title: "t" + pmid, Abstract: "a", RelevanceScore: 0.9})
	}
	return out
}

func baseDeps(docs []model.DocumentWithScore) Deps {
	return Deps{
		Expander:  &fakeExpander{suffix: " expanded"},
		QueryGen:  &fakeQueryGen{query: "search terms"},
		Retriever: &fakeRetriever{results: [][]model.DocumentWithScore{docs}},
		Coverage: retrieval.NewCoverageChecker(model.RetrievalConfig{
			CoverageThreshold: 0.5,
			MinDocuments:      3,
			TopNForAvg:        5,
		}),
		Generator:  &fakeGenerator{answer: "An answer [PMID:100]."},
		Verifier:   trust.NewCitationVerifier(),
		Extractor:  &fakeExtractor{claims: []model.ExtractedClaim{{Text: "An answer", CitedPMIDs: []string{"100"}}}},
		Scorer:     &fakeScorer{},
		Confidence: trust.NewConfidenceCalculator(),
		Gaps:       &fakeGaps{},
	}
}

func TestPipeline_Run(t *testing.T) {
	docs := testDocs("100", "200", "300")
	deps := baseDeps(docs)
	deps.Scorer = &fakeScorer{scored: []model.ScoredClaim{{
		Claim:             model.ExtractedClaim{Text: "An answer"},
		SupportingDocs:    []model.EvidenceReference{{PMID: "100"}, {PMID: "200"}},
		ContradictingDocs: []model.EvidenceReference{},
		NeutralDocs:       []model.EvidenceReference{},
	}}}
	p := New(deps)

	report, err := p.Run(context.Background(), "does it work?", Options{TopK: 5})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if report.Query != "does it work?" {
		t.Errorf("Unexpected query: %q", report.Query)
	}
	if report.Answer != "An answer [PMID:100]." {
		t.Errorf("Unexpected answer: %q", report.Answer)
	}
	if len(report.Claims) != 1 || report.Claims[0].ID != "claim_1" {
		t.Fatalf("Expected claim_1, got %v", report.Claims)
	}
	if len(report.Claims[0].SupportingDocs) != 2 {
		t.Errorf("Expected 2 supporting docs, got %d", len(report.Claims[0].SupportingDocs))
	}
	if report.OverallConfidence <= 0 {
		t.Errorf("Expected positive confidence, got %f", report.OverallConfidence)
	}
	if len(report.HallucinatedCitations) != 0 {
		t.Errorf("Expected no hallucinated citations, got %v", report.HallucinatedCitations)
	}
	if report.FetchTriggered {
		t.Error("Expected no fetch without live_fetch")
	}
}

func TestPipeline_EmptyCorpus(t *testing.T) {
	deps := baseDeps(nil)
	p := New(deps)

	report, err := p.Run(context.Background(), "question", Options{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	wantAnswer := "I cannot answer this question because no relevant documents " +
		"were found in the database. Try enabling live_fetch to " +
		"retrieve documents from PubMed."
	if report.Answer != wantAnswer {
		t.Errorf("Unexpected answer: %q", report.Answer)
	}
	if len(report.Claims) != 0 {
		t.Errorf("Expected no claims, got %d", len(report.Claims))
	}
	if len(report.GlobalGaps) != 1 || report.GlobalGaps[0] != "No relevant documents in database" {
		t.Errorf("Unexpected global gaps: %v", report.GlobalGaps)
	}
	if report.OverallConfidence != 0 {
		t.Errorf("Expected zero confidence, got %f", report.OverallConfidence)
	}
}

func TestPipeline_HallucinationPenalty(t *testing.T) {
	docs := testDocs("100", "200", "300")
	deps := baseDeps(docs)
	// Two citations, one of which was never retrieved.
	deps.Generator = &fakeGenerator{answer: "Claim A [PMID:100]. Claim B [PMID:999]."}
	deps.Scorer = &fakeScorer{scored: []model.ScoredClaim{{
		Claim:             model.ExtractedClaim{Text: "Claim A"},
		SupportingDocs:    []model.EvidenceReference{{PMID: "100"}},
		ContradictingDocs: []model.EvidenceReference{},
		NeutralDocs:       []model.EvidenceReference{},
	}}}
	p := New(deps)

	report, err := p.Run(context.Background(), "question", Options{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(report.HallucinatedCitations) != 1 || report.HallucinatedCitations[0] != "999" {
		t.Fatalf("Expected hallucinated [999], got %v", report.HallucinatedCitations)
	}

	// One of two citations failed: confidence is halved.
	unpenalized := 0.3 + 1.0*(math.Log(2)/math.Log(11))*0.7
	if math.Abs(report.OverallConfidence-unpenalized/2) > 1e-9 {
		t.Errorf("Expected halved confidence %f, got %f", unpenalized/2, report.OverallConfidence)
	}

	if len(report.GlobalGaps) == 0 ||
		report.GlobalGaps[0] != "Warning: 1 citation(s) could not be verified (PMIDs: 999)" {
		t.Errorf("Expected hallucination warning first, got %v", report.GlobalGaps)
	}
}

func TestPipeline_HallucinationWarningTruncatesPMIDs(t *testing.T) {
	docs := testDocs("100", "200", "300")
	deps := baseDeps(docs)
	deps.Generator = &fakeGenerator{answer: "[PMID:1][PMID:2][PMID:3][PMID:4][PMID:5]"}
	p := New(deps)

	report, err := p.Run(context.Background(), "question", Options{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := "Warning: 5 citation(s) could not be verified (PMIDs: 1, 2, 3, ... (+2 more))"
	if len(report.GlobalGaps) == 0 || report.GlobalGaps[0] != want {
		t.Errorf("Expected %q, got %v", want, report.GlobalGaps)
	}
}

func TestPipeline_DebateMode(t *testing.T) {
	docs := testDocs("100", "200", "300")
	deps := baseDeps(docs)
	deps.Generator = &fakeGenerator{err: errors.New("generator must not be used in debate mode")}
	deps.Debate = &fakeDebate{result: model.DebateResult{Answer: "Debate answer [PMID:100]."}}
	p := New(deps)

	report, err := p.Run(context.Background(), "question", Options{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if report.Answer != "Debate answer [PMID:100]." {
		t.Errorf("Expected debate answer, got %q", report.Answer)
	}
}

func TestPipeline_GenerationFailureIsFatal(t *testing.T) {
	deps := baseDeps(testDocs("100", "200", "300"))
	deps.Generator = &fakeGenerator{err: errors.New("model down")}
	p := New(deps)

	if _, err := p.Run(context.Background(), "question", Options{}); err == nil {
		t.Fatal("Expected error when generation fails")
	}
}

func TestPipeline_ExtractionFailureIsFatal(t *testing.T) {
	deps := baseDeps(testDocs("100", "200", "300"))
	deps.Extractor = &fakeExtractor{err: errors.New("bad json")}
	p := New(deps)

	if _, err := p.Run(context.Background(), "question", Options{}); err == nil {
		t.Fatal("Expected error when extraction fails")
	}
}

func TestPipeline_RetrievalFailureIsFatal(t *testing.T) {
	deps := baseDeps(nil)
	deps.Retriever = &fakeRetriever{err: errors.New("db down")}
	p := New(deps)

	if _, err := p.Run(context.Background(), "question", Options{}); err == nil {
		t.Fatal("Expected error when retrieval fails")
	}
}

func TestPipeline_LiveFetchAugments(t *testing.T) {
	// First retrieval finds too little; after fetch, re-retrieval
	// succeeds with enough documents.
	thin := testDocs("100")
	full := testDocs("100", "200", "300")
	retriever := &fakeRetriever{results: [][]model.DocumentWithScore{thin, full}}
	fetcher := &fakeFetcher{articles: []model.Article{{PMID: "200"}, {PMID: "300"}}}
	st := &fakeStore{}

	deps := baseDeps(nil)
	deps.Retriever = retriever
	deps.Fetcher = fetcher
	deps.Store = st
	deps.Embedder = &stubEmbedder{}
	p := New(deps)

	report, err := p.Run(context.Background(), "question", Options{LiveFetch: true})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !report.FetchTriggered {
		t.Error("Expected fetch to trigger on thin coverage")
	}
	if report.DocumentsFetched != 2 {
		t.Errorf("Expected 2 documents fetched, got %d", report.DocumentsFetched)
	}
	if fetcher.calls != 1 {
		t.Errorf("Expected exactly 1 fetch, got %d", fetcher.calls)
	}
	if retriever.calls != 2 {
		t.Errorf("Expected retrieve then re-retrieve, got %d calls", retriever.calls)
	}
	// Both retrievals use the same expanded query.
	if retriever.queries[0] != retriever.queries[1] {
		t.Errorf("Expected identical queries, got %q and %q", retriever.queries[0], retriever.queries[1])
	}
}

func TestPipeline_LiveFetchSkippedOnGoodCoverage(t *testing.T) {
	fetcher := &fakeFetcher{}
	deps := baseDeps(testDocs("100", "200", "300"))
	deps.Fetcher = fetcher
	deps.Store = &fakeStore{}
	deps.Embedder = &stubEmbedder{}
	p := New(deps)

	report, err := p.Run(context.Background(), "question", Options{LiveFetch: true})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if report.FetchTriggered {
		t.Error("Expected no fetch with sufficient coverage")
	}
	if fetcher.calls != 0 {
		t.Errorf("Expected no fetch calls, got %d", fetcher.calls)
	}
}

func TestPipeline_FetchFailureDegrades(t *testing.T) {
	deps := baseDeps(nil)
	deps.Retriever = &fakeRetriever{results: [][]model.DocumentWithScore{testDocs("100", "200", "300", "400")}}
	// Drop relevance below threshold so the fetch triggers.
	deps.Coverage = retrieval.NewCoverageChecker(model.RetrievalConfig{
		CoverageThreshold: 0.99,
		MinDocuments:      3,
		TopNForAvg:        5,
	})
	deps.Fetcher = &fakeFetcher{err: errors.New("ncbi unreachable")}
	deps.Store = &fakeStore{}
	deps.Embedder = &stubEmbedder{}
	p := New(deps)

	report, err := p.Run(context.Background(), "question", Options{LiveFetch: true})
	if err != nil {
		t.Fatalf("Expected fetch failure to degrade, got %v", err)
	}
	if !report.FetchTriggered {
		t.Error("Expected fetch to have been attempted")
	}
	if report.DocumentsFetched != 0 {
		t.Errorf("Expected 0 documents fetched, got %d", report.DocumentsFetched)
	}
	if !strings.Contains(report.Answer, "An answer") {
		t.Errorf("Expected answer from local documents, got %q", report.Answer)
	}
}

func TestPipeline_RunBatch(t *testing.T) {
	deps := baseDeps(testDocs("100", "200", "300"))
	p := New(deps)

	questions := []string{"q one", "q two", "q three"}
	items := p.RunBatch(context.Background(), questions, Options{}, 2)

	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	// Results keep input order regardless of completion order.
	for i, q := range questions {
		if items[i].Question != q {
			t.Errorf("Expected question %q at index %d, got %q", q, i, items[i].Question)
		}
		if items[i].Error != "" {
			t.Errorf("Expected no error for %q, got %s", q, items[i].Error)
		}
		if items[i].Report == nil || items[i].Report.Query != q {
			t.Errorf("Expected report for %q, got %+v", q, items[i].Report)
		}
	}
}

func TestPipeline_RunBatch_CanceledContext(t *testing.T) {
	deps := baseDeps(testDocs("100", "200", "300"))
	p := New(deps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := p.RunBatch(ctx, []string{"q one", "q two"}, Options{}, 2)

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	for i, item := range items {
		if item.Report != nil {
			t.Errorf("Expected no report for item %d after cancellation, got %+v", i, item.Report)
		}
		if item.Error == "" {
			t.Errorf("Expected item %d to carry a cancellation error", i)
		}
	}
}

func TestPipeline_RunBatch_FailuresIsolated(t *testing.T) {
	deps := baseDeps(testDocs("100", "200", "300"))
	deps.Retriever = &flakyRetriever{failQuestion: "bad question expanded"}
	p := New(deps)

	items := p.RunBatch(context.Background(), []string{"good question", "bad question"}, Options{}, 1)

	if items[0].Error != "" {
		t.Errorf("Expected first question to succeed, got %s", items[0].Error)
	}
	if items[1].Error == "" {
		t.Error("Expected second question to fail")
	}
}

// flakyRetriever fails for one specific expanded query.
type flakyRetriever struct{ failQuestion string }

func (f *flakyRetriever) Retrieve(ctx context.Context, query string, topK int) ([]model.DocumentWithScore, error) {
	if query == f.failQuestion {
		return nil, errors.New("retrieval broken")
	}
	return testDocs("100", "200", "300"), nil
}
