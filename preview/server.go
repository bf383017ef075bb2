package preview

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the Hub over HTTP:
//
//	GET /ws           previewer websocket
//	GET /healthz      liveness and connected previewer count
//	GET /api/program  latest source sent for rendering
//	GET /metrics      Prometheus metrics, when a gatherer is configured
type Server struct {
	hub      *Hub
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	engine   *gin.Engine
}

type ServerOption func(*Server)

// WithGatherer mounts /metrics for the given registry.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(hub *Hub, options ...ServerOption) *Server {
	s := &Server{
		hub:    hub,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/ws", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "previewers": s.hub.Clients()})
	})
	engine.GET("/api/program", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"source": s.hub.Latest()})
	})
	if s.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("preview server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return goerr.Wrap(err, "preview server failed", goerr.V("addr", addr))

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shut down preview server")
		}
		<-errCh
		return nil
	}
}
