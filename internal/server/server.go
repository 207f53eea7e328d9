// Package server exposes the analysis pipelines over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/abelbrown/rabbitbrain/internal/analysis"
	"github.com/abelbrown/rabbitbrain/internal/logging"
	"github.com/abelbrown/rabbitbrain/internal/metrics"
	"github.com/abelbrown/rabbitbrain/internal/ratelimit"
	"github.com/abelbrown/rabbitbrain/internal/store"
)

// Topic length bounds for discovery requests, in runes after trimming.
const (
	MinTopicLen = 2
	MaxTopicLen = 80
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Pipeline runs the analysis operations.
type Pipeline interface {
	Analyze(ctx context.Context, rawURL string) (*analysis.AnalyzeResult, error)
	Discover(ctx context.Context, topic string) (*analysis.DiscoveryResult, error)
	Share(ctx context.Context, rawURL string) (*analysis.ShareResult, error)
}

// History persists pipeline results per caller.
type History interface {
	SaveAnalysis(userID string, res *analysis.AnalyzeResult) (*store.Record, error)
	SaveDiscovery(userID string, res *analysis.DiscoveryResult) (*store.Record, error)
	SaveShare(userID string, res *analysis.ShareResult) (*store.Record, error)
	ListRecords(userID string, limit int) ([]store.Record, error)
	GetRecord(id string) (*store.Record, error)
}

// Config represents server configuration
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig(addr string) Config {
	return Config{
		Addr:           addr,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		IdleTimeout:    120 * time.Second,
		RequestTimeout: 90 * time.Second,
		ShutdownGrace:  30 * time.Second,
	}
}

// Server is the HTTP front end. History, limiter and metrics are optional.
type Server struct {
	cfg      Config
	pipeline Pipeline
	history  History
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
}

// Option customizes a Server.
type Option func(*Server)

// WithHistory persists results and enables the history routes.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithLimiter rate limits the pipeline routes per caller.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithMetrics instruments requests and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds a Server around pipeline.
func New(cfg Config, pipeline Pipeline, opts ...Option) *Server {
	s := &Server{cfg: cfg, pipeline: pipeline}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router creates the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(RequestIDMiddleware())
	router.Use(CallerMiddleware())
	router.Use(LoggingMiddleware())
	router.Use(RecoveryMiddleware())
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "rabbitbrain"})
	})
	if s.metrics != nil {
		router.GET("/metrics", s.metrics.Handler())
	}

	api := router.Group("/api")
	pipelines := api.Group("")
	if s.limiter != nil {
		var onLimited func()
		if s.metrics != nil {
			onLimited = s.metrics.RateLimited.Inc
		}
		pipelines.Use(RateLimitMiddleware(s.limiter, onLimited))
	}
	pipelines.POST("/analyze", s.handleAnalyze)
	pipelines.POST("/discover", s.handleDiscover)
	pipelines.POST("/share", s.handleShare)

	if s.history != nil {
		api.GET("/history", s.handleHistory)
		api.GET("/history/:id", s.handleRecord)
	}

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Starting HTTP server", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logging.Info("Server stopped")
	return nil
}

// postRequest is the body of analyze and share. xUrl is the field the web
// client sends; url is accepted for scripts.
type postRequest struct {
	XURL string `json:"xUrl"`
	URL  string `json:"url"`
}

func (r postRequest) target() string {
	if r.XURL != "" {
		return r.XURL
	}
	return r.URL
}

type topicRequest struct {
	Topic string `json:"topic"`
}

type analyzeResponse struct {
	ID *string `json:"id"`
	*analysis.AnalyzeResult
}

type discoverResponse struct {
	ID *string `json:"id"`
	*analysis.DiscoveryResult
}

type shareResponse struct {
	ID *string `json:"id"`
	*analysis.ShareResult
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.target()) == "" {
		abortWithError(c, analysis.Errorf(analysis.CodeInvalidURL, "Invalid X post URL"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.pipeline.Analyze(ctx, req.target())
	if err != nil {
		abortWithError(c, err)
		return
	}

	var id *string
	if s.history != nil {
		id = savedID(s.history.SaveAnalysis(callerID(c), res))
	}
	c.JSON(http.StatusOK, analyzeResponse{ID: id, AnalyzeResult: res})
}

func (s *Server) handleDiscover(c *gin.Context) {
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validTopic(req.Topic) {
		abortWithError(c, analysis.Errorf(analysis.CodeInvalidTopic, "Invalid topic"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.pipeline.Discover(ctx, req.Topic)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var id *string
	if s.history != nil {
		id = savedID(s.history.SaveDiscovery(callerID(c), res))
	}
	c.JSON(http.StatusOK, discoverResponse{ID: id, DiscoveryResult: res})
}

func (s *Server) handleShare(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.target()) == "" {
		abortWithError(c, analysis.Errorf(analysis.CodeInvalidURL, "Invalid X post URL"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.pipeline.Share(ctx, req.target())
	if err != nil {
		abortWithError(c, err)
		return
	}

	var id *string
	if s.history != nil {
		id = savedID(s.history.SaveShare(callerID(c), res))
	}
	c.JSON(http.StatusOK, shareResponse{ID: id, ShareResult: res})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.ListRecords(callerID(c), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) handleRecord(c *gin.Context) {
	rec, err := s.history.GetRecord(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && rec.UserID != callerID(c)) {
		abortWithError(c, analysis.Errorf(analysis.CodeNotFound, "Record not found"))
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// savedID returns the record id, or nil when saving failed. A failed save
// does not fail the request.
func savedID(rec *store.Record, err error) *string {
	if err != nil {
		logging.Warn("history save failed", "error", err)
		return nil
	}
	return &rec.ID
}

func validTopic(topic string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(topic))
	return n >= MinTopicLen && n <= MaxTopicLen
}
