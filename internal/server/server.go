// Package server exposes the pipeline over HTTP. Routes stay thin:
// decode, call the component, encode.
package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/medtrust/internal/model"
	"github.com/ppiankov/medtrust/internal/pipeline"
	"github.com/ppiankov/medtrust/internal/store"
)

// Server holds the components the HTTP API needs.
type Server struct {
	pipeline     *pipeline.Pipeline
	store        store.Store
	fetcher      pipeline.Fetcher
	embedder     pipeline.PendingEmbedder
	embedWorkers int
}

// New creates a server. fetcher and embedder back the ingest endpoint.
func New(p *pipeline.Pipeline, st store.Store, fetcher pipeline.Fetcher, embedder pipeline.PendingEmbedder, embedWorkers int) *Server {
	if embedWorkers < 1 {
		embedWorkers = 1
	}
	return &Server{
		pipeline:     p,
		store:        st,
		fetcher:      fetcher,
		embedder:     embedder,
		embedWorkers: embedWorkers,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	api.POST("/query", s.handleQuery)
	api.POST("/documents/ingest", s.handleIngest)
	// Register /stats before /:pmid so "stats" is not read as a PMID.
	api.GET("/documents/stats", s.handleStats)
	api.GET("/documents/:pmid", s.handleGetDocument)
	api.GET("/health", s.handleHealth)

	return r
}

// Run starts the HTTP server on the configured address.
func (s *Server) Run(cfg model.ServerConfig) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Printf("server: listening on %s", addr)
	return s.Router().Run(addr)
}

type queryRequest struct {
	Question  string `json:"question" binding:"required,min=10"`
	TopK      int    `json:"top_k"`
	LiveFetch bool   `json:"live_fetch"`
	MaxFetch  int    `json:"max_fetch"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.pipeline.Run(c.Request.Context(), req.Question, pipeline.Options{
		TopK:      req.TopK,
		LiveFetch: req.LiveFetch,
		MaxFetch:  req.MaxFetch,
	})
	if err != nil {
		log.Printf("server: query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query pipeline failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

type ingestRequest struct {
	SearchTerm string `json:"search_term" binding:"required,min=3"`
	MaxResults int    `json:"max_results"`
}

func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 100
	}

	ctx := c.Request.Context()

	articles, err := s.fetcher.SearchAndFetch(ctx, req.SearchTerm, req.MaxResults)
	if err != nil {
		log.Printf("server: ingest fetch failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "pubmed fetch failed"})
		return
	}
	if len(articles) == 0 {
		c.JSON(http.StatusOK, gin.H{"fetched": 0, "saved": 0, "embedded": 0})
		return
	}

	saved, err := s.store.SaveIfAbsent(ctx, articles)
	if err != nil {
		log.Printf("server: ingest save failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save documents"})
		return
	}

	embedded, err := s.embedder.EmbedPending(ctx, s.store, s.embedWorkers)
	if err != nil {
		log.Printf("server: ingest embedding failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to embed documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fetched":  len(articles),
		"saved":    saved,
		"embedded": embedded,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	counts, err := s.store.Counts(c.Request.Context())
	if err != nil {
		log.Printf("server: stats failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count documents"})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) handleGetDocument(c *gin.Context) {
	pmid := c.Param("pmid")

	doc, err := s.store.GetByPMID(c.Request.Context(), pmid)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("document %s not found", pmid)})
		return
	}
	if err != nil {
		log.Printf("server: get document failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if _, err := s.store.Counts(c.Request.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
