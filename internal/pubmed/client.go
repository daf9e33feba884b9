// Package pubmed is a client for the NCBI E-utilities API. It searches
// PubMed for article IDs (esearch) and fetches abstracts for them
// (efetch), staying under NCBI's published rate limits.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/medtrust/internal/model"
	"github.com/ppiankov/medtrust/internal/util"
)

const eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// efetch accepts comma-separated IDs; NCBI recommends at most 200 per
// request.
const fetchBatchSize = 200

// Client talks to the PubMed E-utilities endpoints. All requests pass
// through a shared rate limiter: 3 req/s without an API key, 10 req/s
// with one.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter
}

// NewClient creates a PubMed client from config.
func NewClient(cfg model.PubMedConfig, proxy model.ProxyConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	rps := rate.Limit(3)
	if cfg.APIKey != "" {
		rps = rate.Limit(10)
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: eutilsBase,
		httpc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(proxy.HTTPProxy, proxy.HTTPSProxy, proxy.NoProxy),
			},
		},
		limiter: rate.NewLimiter(rps, 1),
	}
}

// Search returns up to maxResults PMIDs matching the term, ordered by
// relevance.
func (c *Client) Search(ctx context.Context, term string, maxResults int) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "json")
	params.Set("sort", "relevance")

	body, err := c.get(ctx, "/esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}

	var result struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("pubmed search: decode response: %w", err)
	}

	log.Printf("pubmed: search %q returned %d results", term, len(result.ESearchResult.IDList))
	return result.ESearchResult.IDList, nil
}

// FetchAbstracts fetches article details for the given PMIDs. Articles
// without an abstract are skipped; there is nothing to embed or cite in
// them.
func (c *Client) FetchAbstracts(ctx context.Context, pmids []string) ([]model.Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	var articles []model.Article
	for start := 0; start < len(pmids); start += fetchBatchSize {
		end := start + fetchBatchSize
		if end > len(pmids) {
			end = len(pmids)
		}

		batch, err := c.fetchBatch(ctx, pmids[start:end])
		if err != nil {
			return nil, err
		}
		articles = append(articles, batch...)
	}

	log.Printf("pubmed: fetched %d articles", len(articles))
	return articles, nil
}

// SearchAndFetch is the composed operation the pipeline uses when local
// coverage is insufficient.
func (c *Client) SearchAndFetch(ctx context.Context, term string, maxResults int) ([]model.Article, error) {
	pmids, err := c.Search(ctx, term, maxResults)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		log.Printf("pubmed: no results for %q", term)
		return nil, nil
	}
	return c.FetchAbstracts(ctx, pmids)
}

func (c *Client) fetchBatch(ctx context.Context, pmids []string) ([]model.Article, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")
	params.Set("rettype", "abstract")

	body, err := c.get(ctx, "/efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch: %w", err)
	}
	return parseArticleSet(body)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
