package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/history"
	"github.com/jfarrand/diskwright/internal/registry"
)

// Historian supplies recorded tool invocations for the history endpoint.
type Historian interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

var _ Historian = (*history.Journal)(nil)

// Server is the diskwright HTTP API server.
type Server struct {
	httpServer *http.Server
	registry   *registry.Registry
	journal    Historian
	logger     *zap.Logger
	mux        *http.ServeMux
}

// New creates an API server bound to addr. journal and gatherer may be
// nil, in which case the history and metrics endpoints report empty data.
func New(addr string, reg *registry.Registry, journal Historian, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		registry: reg,
		journal:  journal,
		logger:   logger,
		mux:      mux,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	s.registerRoutes(gatherer)
	return s
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/v1/lvm/pvs", s.handlePVs)
	s.mux.HandleFunc("GET /api/v1/lvm/vgs", s.handleVGs)
	s.mux.HandleFunc("GET /api/v1/lvm/lvs", s.handleLVs)
	s.mux.HandleFunc("GET /api/v1/history", s.handleHistory)

	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
