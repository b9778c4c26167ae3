// Package httpapi implements the uniform HTTP control plane (spec §4.6):
// per-mode status/start/stop/stream/tools, plus the global health and
// killall endpoints.
//
// Grounded on the teacher's internal/http server.go CreateRouter/
// addMiddleware split: gin engine, CORS, a session-cookie hook for the
// external auth layer to build on, per-client-IP rate limiting applied to
// every route, and pprof in debug mode.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/config"
	"github.com/valentinerf/valentine-rf/internal/decoder"
)

const (
	rateLimitRate  = time.Second
	rateLimitLimit = 5
)

// Server exposes the decoder registry over HTTP.
type Server struct {
	registry *decoder.Registry
	devices  *arbiter.DeviceCache
	log      *slog.Logger
	start    time.Time
}

// NewServer builds an httpapi.Server bound to registry and the device cache.
func NewServer(registry *decoder.Registry, devices *arbiter.DeviceCache, log *slog.Logger) *Server {
	return &Server{registry: registry, devices: devices, log: log, start: time.Now()}
}

// CreateRouter builds the gin engine: middleware, per-mode routes for every
// registered mode, and the global endpoints (modes, health, killall,
// devices, devices/rescan).
func (s *Server) CreateRouter(cfg *config.HTTP, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.accessLogMiddleware())

	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil && s.log != nil {
		s.log.Error("failed to set trusted proxies", "error", err)
	}

	s.addMiddleware(r, cfg, debug)
	s.addRoutes(r, cfg)

	return r
}

func (s *Server) addMiddleware(r *gin.Engine, cfg *config.HTTP, debug bool) {
	if debug {
		pprof.Register(r)
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowOrigins = cfg.CORSHosts
	corsConfig.AddAllowHeaders("Authorization")
	r.Use(cors.New(corsConfig))

	// The core only hangs a cookie-backed session store here; the
	// session/password layer that actually authenticates requests is an
	// external collaborator (spec §1, §6).
	sessionStore := cookie.NewStore([]byte("valentine-rf-session"))
	r.Use(sessions.Sessions("valentine_session", sessionStore))

	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  rateLimitRate,
		Limit: rateLimitLimit,
	})
	r.Use(ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":     "error",
				"error_type": "INTERNAL",
				"message":    "rate limited, retry after " + time.Until(info.ResetTime).String(),
			})
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}))
}

func (s *Server) addRoutes(r *gin.Engine, cfg *config.HTTP) {
	for _, modeID := range s.registry.ModeIDs() {
		rt := s.registry.Get(modeID)
		group := r.Group("/" + modeID)
		group.GET("/status", s.handleStatus(rt))
		group.POST("/start", s.handleStart(rt))
		group.POST("/stop", s.handleStop(rt))
		group.GET("/stream", s.handleStream(rt))
		group.GET("/stream/ws", s.handleStreamWS(rt, cfg))
		group.GET("/tools", s.handleTools(rt))
	}

	r.GET("/modes", s.handleModes())
	r.GET("/health", s.handleHealth())
	r.POST("/killall", s.handleKillAll())
	r.GET("/devices", s.handleDevices())
	r.POST("/devices/rescan", s.handleDevicesRescan())
}

func (s *Server) accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if s.log == nil {
			return
		}
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
