// Package api exposes the retrieval engine over HTTP: the query
// endpoint consumed by the messaging layer, the ingestion trigger, and
// corpus administration.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driving"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
)

// Services bundles the driving ports the server exposes. Any nil
// service turns its endpoints into 503s.
type Services struct {
	Answer    driving.AnswerService
	Retrieval driving.RetrievalService
	Indexing  driving.IndexingService
	Corpora   driving.CorpusAdmin
}

// Server is the HTTP adapter.
type Server struct {
	engine *gin.Engine
	svc    Services
}

// New creates the server and registers all routes. metricsHandler may
// be nil to skip the /metrics endpoint.
func New(svc Services, metricsHandler http.Handler) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLog())

	s := &Server{engine: engine, svc: svc}

	engine.GET("/health", s.health)
	if metricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(metricsHandler))
	}

	rag := engine.Group("/api/rag")
	rag.POST("/query", s.query)
	rag.POST("/retrieve", s.retrieve)

	engine.POST("/api/documents/ingest", s.ingest)

	corpora := engine.Group("/api/corpora")
	corpora.GET("", s.listCorpora)
	corpora.POST("/:entityID/check", s.checkCorpus)
	corpora.DELETE("/:entityID", s.purgeCorpus)

	return s
}

// Handler returns the underlying http.Handler, used by tests and by
// callers embedding the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	logger.Info("http api listening on %s", addr)
	return s.engine.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// query answers a patient question grounded in their corpus.
func (s *Server) query(c *gin.Context) {
	if s.svc.Answer == nil {
		serviceUnavailable(c)
		return
	}

	var req driving.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := s.svc.Answer.Answer(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type retrieveRequest struct {
	EntityID string  `json:"entity_id"`
	Query    string  `json:"query"`
	TopK     int     `json:"top_k"`
	Alpha    float64 `json:"alpha"`
	Rerank   bool    `json:"rerank"`
}

// retrieve returns ranked passages without generation, for diagnostics
// and downstream consumers that build their own prompts.
func (s *Server) retrieve(c *gin.Context) {
	if s.svc.Retrieval == nil {
		serviceUnavailable(c)
		return
	}

	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	opts := domain.RetrievalOptions{TopK: req.TopK, Alpha: req.Alpha, Rerank: req.Rerank}
	if req.Alpha == 0 {
		opts.Alpha = domain.DefaultAlpha
	}

	resp, err := s.svc.Retrieval.Retrieve(c.Request.Context(), req.EntityID, req.Query, opts)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ingest triggers indexing of one uploaded document. The work runs
// synchronously; the task queue calling this endpoint owns retries.
func (s *Server) ingest(c *gin.Context) {
	if s.svc.Indexing == nil {
		serviceUnavailable(c)
		return
	}

	var req driving.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := s.svc.Indexing.Ingest(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (s *Server) listCorpora(c *gin.Context) {
	if s.svc.Corpora == nil {
		serviceUnavailable(c)
		return
	}

	ids, err := s.svc.Corpora.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": ids})
}

func (s *Server) checkCorpus(c *gin.Context) {
	if s.svc.Corpora == nil {
		serviceUnavailable(c)
		return
	}

	rebuilt, err := s.svc.Corpora.EnsureConsistency(c.Request.Context(), c.Param("entityID"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rebuilt": rebuilt})
}

func (s *Server) purgeCorpus(c *gin.Context) {
	if s.svc.Corpora == nil {
		serviceUnavailable(c)
		return
	}

	if err := s.svc.Corpora.Purge(c.Request.Context(), c.Param("entityID")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": c.Param("entityID")})
}

// writeServiceError maps domain errors to HTTP statuses. Internal
// details never reach the client.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrCorpusNotReady):
		c.JSON(http.StatusNotFound, gin.H{"error": "no indexed documents for this patient"})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrGenerationUnavailable):
		serviceUnavailable(c)
	default:
		logger.Error("request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func serviceUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service not configured"})
}

// requestLog traces every request at debug level.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d in %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
