package api

import (
	"math"
	"net/http"
	"strconv"

	"insurisk/domain/stats"
	"insurisk/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// testResponse is a hypothesis result with undefined numbers reported as null
type testResponse struct {
	Hypothesis string   `json:"hypothesis"`
	Metric     string   `json:"metric"`
	Test       string   `json:"test"`
	PValue     *float64 `json:"p_value"`
	Statistic  *float64 `json:"statistic"`
	EffectSize *float64 `json:"effect_size"`
	SampleSize int      `json:"sample_size"`
	Groups     int      `json:"groups"`
	Reject     bool     `json:"reject"`
}

func newTestResponse(r stats.HypothesisResult) testResponse {
	return testResponse{
		Hypothesis: r.Hypothesis,
		Metric:     string(r.Metric),
		Test:       string(r.Test),
		PValue:     finite(r.PValue),
		Statistic:  finite(r.Statistic),
		EffectSize: finite(r.EffectSize),
		SampleSize: r.SampleSize,
		Groups:     r.Groups,
		Reject:     r.Reject,
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	r, err := s.repo.GetRun(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleGetTests(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	results, err := s.repo.GetTests(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]testResponse, len(results))
	for i, r := range results {
		out[i] = newTestResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "tests": out})
}

func (s *Server) handleGetSegments(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	segments, err := s.repo.GetSegments(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "segments": segments})
}

func (s *Server) handleGetReport(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s.mu.RLock()
	html, found := s.reports[id]
	s.mu.RUnlock()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report for run " + id.String()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (s *Server) handleLatestReport(c *gin.Context) {
	s.mu.RLock()
	html, found := s.reports[s.latest]
	s.mu.RUnlock()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis has been run yet"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return uuid.Nil, false
	}
	return id, true
}

// fail maps an error onto a status by its application code
func (s *Server) fail(c *gin.Context, err error) {
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.CodeInvalidInput, errors.CodeValidationError:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Request %s failed: %v", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
