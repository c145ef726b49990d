package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sleepstars/yuanbao2api/internal/config"
	"github.com/sleepstars/yuanbao2api/internal/logger"
	"github.com/sleepstars/yuanbao2api/internal/metrics"
	"github.com/sleepstars/yuanbao2api/internal/orchestrator"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the OpenAI-compatible HTTP surface
type Server struct {
	cfg       *config.Config
	completer orchestrator.Completer
	metrics   *metrics.CompletionMetrics
	gatherer  prometheus.Gatherer
	engine    *gin.Engine
	logger    *logger.Logger
}

// New builds the gin router. m may be nil; a nil gatherer serves the default
// prometheus registry.
func New(cfg *config.Config, completer orchestrator.Completer, m *metrics.CompletionMetrics, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:       cfg,
		completer: completer,
		metrics:   m,
		gatherer:  gatherer,
		logger:    logger.GetLogger().WithComponent("server"),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(
		requestID(),
		gin.LoggerWithConfig(gin.LoggerConfig{
			Output:    s.logger.Writer(),
			SkipPaths: []string{"/healthz", "/metrics"},
		}),
		gin.Recovery(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	if s.cfg.Key != "" {
		v1.Use(requireKey(s.cfg.Key))
	}
	v1.GET("/models", s.listModels)
	v1.POST("/chat/completions", s.chatCompletions)
	return r
}

// Handler returns the router for embedding in tests or another server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
