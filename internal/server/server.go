// Package server exposes the verdict pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"dev.veridict.agent/internal/metrics"
	"dev.veridict.agent/internal/models"
	"dev.veridict.agent/internal/optimizer"
	"dev.veridict.agent/internal/pipeline"
	"dev.veridict.agent/internal/reliability"
	"dev.veridict.agent/internal/storage"
)

type Server struct {
	engine     *gin.Engine
	controller *pipeline.Controller
	store      *storage.Store
	collector  *metrics.Collector
	registry   *reliability.Registry
	optimizer  *optimizer.Optimizer
	log        *logrus.Entry
}

func New(controller *pipeline.Controller, store *storage.Store, collector *metrics.Collector,
	registry *reliability.Registry, opt *optimizer.Optimizer, gatherer prometheus.Gatherer, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		engine:     engine,
		controller: controller,
		store:      store,
		collector:  collector,
		registry:   registry,
		optimizer:  opt,
		log:        log.WithField("component", "server"),
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := engine.Group("/api/v1")
	{
		api.POST("/check", s.handleCheck)
		api.GET("/results/:id", s.handleResult)
		api.GET("/results", s.handleRecent)
		api.GET("/statistics", s.handleStatistics)
		api.POST("/feedback", s.handleFeedback)
	}
	return s
}

// Handler returns the router for mounting or testing.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error { return s.engine.Run(addr) }

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Debug("request handled")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

type checkRequest struct {
	ID        string                      `json:"id"`
	Headline  string                      `json:"headline" binding:"required"`
	Text      string                      `json:"text"`
	Link      string                      `json:"link"`
	ImageURL  string                      `json:"image_url"`
	FactCheck *models.FactCheckAnnotation `json:"fact_check,omitempty"`
}

func (s *Server) handleCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item := models.NewsItem{
		ID:        req.ID,
		Headline:  req.Headline,
		Text:      req.Text,
		Link:      req.Link,
		ImageURL:  req.ImageURL,
		FactCheck: req.FactCheck,
	}
	if item.ID == "" {
		item.ID = pipeline.ContentKey(item)[:16]
	}

	run, err := s.controller.Process(c.Request.Context(), item)
	if err != nil {
		var jf *pipeline.JudgeFailure
		if errors.As(err, &jf) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  jf.Error(),
				"run_id": run.RunID,
				"phases": jf.Phases,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.store != nil {
		if err := s.store.SaveRun(c.Request.Context(), run); err != nil {
			s.log.WithError(err).WithField("run_id", run.RunID).Error("failed to persist run")
		}
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleResult(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result storage disabled"})
		return
	}
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleRecent(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result storage disabled"})
		return
	}
	runs, err := s.store.RecentRuns(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": runs, "count": len(runs)})
}

func (s *Server) handleStatistics(c *gin.Context) {
	resp := gin.H{}
	if s.collector != nil {
		resp["checks"] = s.collector.Summary()
	}
	if s.registry != nil {
		resp["reliability"] = s.registry.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

type feedbackRequest struct {
	RunID string `json:"run_id" binding:"required"`
	Truth string `json:"truth" binding:"required"`
}

// handleFeedback applies explicit ground truth to a stored run, feeding
// the reliability loop.
func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	truth := models.VerdictLabel(req.Truth)
	if !truth.Valid() || truth == models.VerdictUnsure {
		c.JSON(http.StatusBadRequest, gin.H{"error": "truth must be REAL or FAKE"})
		return
	}
	if s.store == nil || s.optimizer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feedback loop disabled"})
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), req.RunID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := s.optimizer.ApplyGroundTruth(run, truth); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.collector != nil {
		s.collector.RecordFeedback("ground_truth")
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":      req.RunID,
		"applied":     true,
		"reliability": s.registry.Snapshot(),
	})
}

// Checkpoint persists the registry snapshot; the hosting process calls it
// on a timer and at shutdown.
func (s *Server) Checkpoint(ctx context.Context) error {
	if s.store == nil || s.registry == nil {
		return nil
	}
	return s.store.CheckpointReliability(ctx, s.registry.Snapshot())
}
