// Package pprof runs the optional diagnostic pprof listener, separate from
// the control plane router. Grounded on the teacher's internal/pprof, with
// the tracing middleware and trusted-proxy plumbing dropped (no tracing
// requirement in this spec; see DESIGN.md).
package pprof

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/valentinerf/valentine-rf/internal/config"
)

const readHeaderTimeout = 3 * time.Second

// Run starts the pprof server and blocks. It is a no-op if pprof is disabled.
func Run(cfg *config.PProf, logger *slog.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	r := gin.New()
	r.Use(gin.Recovery())
	pprof.Register(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	logger.Info("pprof server listening", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
