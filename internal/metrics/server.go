package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valentinerf/valentine-rf/internal/config"
)

const readHeaderTimeout = 3 * time.Second

// Server is the standalone /metrics HTTP listener, separate from the main
// control-plane router so it can bind to a loopback-only address.
type Server struct {
	http *http.Server
}

// NewServer builds the metrics listener. It is a no-op if metrics are
// disabled in configuration.
func NewServer(cfg *config.Metrics) *Server {
	if !cfg.Enabled {
		return &Server{}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Start runs the listener; it blocks until the server stops or errors.
func (s *Server) Start() error {
	if s.http == nil {
		return nil
	}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
