// Package httpapi provides the HTTP API for mentord.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/logging"
	"github.com/fyrsmithlabs/mentord/internal/memory"
	"github.com/fyrsmithlabs/mentord/internal/pipeline"
	"github.com/fyrsmithlabs/mentord/internal/problem"
)

// Runner is the pipeline surface the API exposes. The concrete
// implementation is *pipeline.Orchestrator.
type Runner interface {
	Start(ctx context.Context, source problem.SourceKind, rawInput string) (pipeline.Result, error)
	Resume(ctx context.Context, runID string, corr pipeline.Correction) (pipeline.Result, error)
	Abandon(ctx context.Context, runID string) (pipeline.Result, error)
	Get(ctx context.Context, runID string) (pipeline.Snapshot, error)
	TraceSummary(ctx context.Context, runID string) (string, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// DisableMetrics turns off the /metrics Prometheus endpoint.
	DisableMetrics bool
}

// Server provides HTTP endpoints for mentord.
type Server struct {
	echo    *echo.Echo
	runner  Runner
	records memory.Store
	logger  *logging.Logger
	config  *Config
}

// NewServer creates a new HTTP server. records may be nil, disabling the
// feedback endpoint.
func NewServer(runner Runner, records memory.Store, logger *logging.Logger, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8970,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		runner:  runner,
		records: records,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if !s.config.DisableMetrics {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/runs", s.handleStartRun)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.GET("/runs/:id/trace", s.handleGetTrace)
	v1.POST("/runs/:id/resume", s.handleResumeRun)
	v1.POST("/runs/:id/abandon", s.handleAbandonRun)
	v1.POST("/records/:id/feedback", s.handleFeedback)
}

// StartRunRequest is the request body for POST /api/v1/runs.
type StartRunRequest struct {
	// Input is the problem statement (or digitized text for image/audio).
	Input string `json:"input"`

	// Source is "text", "image" or "audio". Defaults to "text".
	Source string `json:"source,omitempty"`
}

// ResumeRequest is the request body for POST /api/v1/runs/:id/resume.
type ResumeRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// FeedbackRequest is the request body for POST /api/v1/records/:id/feedback.
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
	Comment  string `json:"comment,omitempty"`
}

// TraceResponse is the response body for GET /api/v1/runs/:id/trace.
type TraceResponse struct {
	RunID   string                `json:"run_id"`
	Summary string                `json:"summary"`
	Events  []pipeline.TraceEvent `json:"events"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStartRun drives a new run until it finishes or pauses and returns
// the outcome either way.
func (s *Server) handleStartRun(c echo.Context) error {
	var req StartRunRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid run request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Input == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "input field is required")
	}
	source := problem.SourceKind(req.Source)
	if req.Source == "" {
		source = problem.SourceText
	}

	result, err := s.runner.Start(c.Request().Context(), source, req.Input)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetRun(c echo.Context) error {
	snap, err := s.runner.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, pipeline.ResultFromSnapshot(snap))
}

func (s *Server) handleGetTrace(c echo.Context) error {
	id := c.Param("id")
	snap, err := s.runner.Get(c.Request().Context(), id)
	if err != nil {
		return s.mapError(c, err)
	}
	summary, err := s.runner.TraceSummary(c.Request().Context(), id)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, TraceResponse{RunID: id, Summary: summary, Events: snap.Events})
}

func (s *Server) handleResumeRun(c echo.Context) error {
	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.runner.Resume(c.Request().Context(), c.Param("id"),
		pipeline.Correction{Field: req.Field, Value: req.Value})
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleAbandonRun(c echo.Context) error {
	result, err := s.runner.Abandon(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// handleFeedback attaches a user judgment to a stored memory record.
func (s *Server) handleFeedback(c echo.Context) error {
	if s.records == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "no memory store configured")
	}

	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err := s.records.UpdateFeedback(c.Request().Context(), c.Param("id"),
		memory.Feedback(req.Feedback), req.Comment)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "recorded"})
}

// mapError translates pipeline and memory errors onto HTTP status codes.
func (s *Server) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrRunNotFound), errors.Is(err, memory.ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrRunActive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrRunNotPaused), errors.Is(err, pipeline.ErrRunTerminal):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrInvalidCorrection), errors.Is(err, pipeline.ErrEmptyInput),
		errors.Is(err, problem.ErrInvalidSource), errors.Is(err, memory.ErrInvalidFeedback):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
