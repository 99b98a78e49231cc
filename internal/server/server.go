package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"machinesentry/internal/config"
	"machinesentry/internal/metrics"
)

// Server is the scoring HTTP server. It only exists in the READY state: the
// model is loaded before New returns and is immutable for the lifetime of the
// process.
type Server struct {
	server *http.Server
	log    *zap.Logger
}

// New loads the model artifact and builds the server. A missing or corrupt
// artifact fails construction; no request is ever accepted without a model.
func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	scorer, err := NewScorer(cfg.Model.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	metrics.ModelLoaded.Set(1)
	log.Info("model loaded",
		zap.String("artifact", cfg.Model.ArtifactPath),
		zap.Float64("threshold", scorer.Threshold()),
	)

	return NewWithScorer(cfg, scorer, log), nil
}

// NewWithScorer builds the server around an already-constructed Scorer.
func NewWithScorer(cfg *config.Config, scorer *Scorer, log *zap.Logger) *Server {
	handler := NewHandler(scorer, log, cfg.Server.RequestTimeout.Std())

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", handler.Predict)
	mux.HandleFunc("/health", handler.Health)
	mux.Handle("/metrics", promhttp.Handler())

	chain := Chain(
		RecoveryMiddleware(log),
		LoggerMiddleware(log),
	)

	return &Server{
		server: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      chain(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: cfg.Server.RequestTimeout.Std() + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	s.log.Info("scoring service listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.log.Info("shutting down scoring service")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Handler exposes the composed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
