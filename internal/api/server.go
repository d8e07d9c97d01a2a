// Package api serves stored analysis runs over HTTP.
package api

import (
	"net/http"
	"sync"
	"time"

	"insurisk/internal"
	"insurisk/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the run repository, rendered reports and metrics
type Server struct {
	repo   ports.RunRepository
	logger *internal.Logger
	router *gin.Engine

	mu      sync.RWMutex
	reports map[uuid.UUID][]byte
	latest  uuid.UUID
}

// NewServer creates the server and registers its routes
func NewServer(repo ports.RunRepository, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	s := &Server{
		repo:    repo,
		logger:  logger,
		router:  gin.New(),
		reports: make(map[uuid.UUID][]byte),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/report", s.handleLatestReport)

	runs := s.router.Group("/api/runs")
	runs.GET("", s.handleListRuns)
	runs.GET("/:id", s.handleGetRun)
	runs.GET("/:id/tests", s.handleGetTests)
	runs.GET("/:id/segments", s.handleGetSegments)
	runs.GET("/:id/report", s.handleGetReport)
}

// PublishReport makes the rendered HTML report of a run available; the most
// recently published run backs /report
func (s *Server) PublishReport(id uuid.UUID, html []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[id] = html
	s.latest = id
}

// Handler returns the HTTP handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server on the given address
func (s *Server) Start(addr string) error {
	s.logger.Info("Results API listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
