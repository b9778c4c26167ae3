package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/valentinerf/valentine-rf/internal/config"
	"github.com/valentinerf/valentine-rf/internal/decoder"
)

const wsBufferSize = 1024

// newUpgrader mirrors the teacher's CheckOrigin discipline: only accept
// upgrades whose Origin header matches a configured CORS host.
func newUpgrader(corsHosts []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  wsBufferSize,
		WriteBufferSize: wsBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return false
			}
			for _, host := range corsHosts {
				if strings.Contains(origin, host) {
					return true
				}
			}
			return false
		},
	}
}

// handleStreamWS is the additive websocket variant of /<mode>/stream (spec
// SPEC_FULL supplement): same bus subscription, pushed as JSON text frames
// instead of SSE frames, for clients that prefer a persistent duplex
// connection. A PING text frame is answered with PONG, matching the
// teacher's websocket keep-alive convention.
func (s *Server) handleStreamWS(rt *decoder.Runtime, cfg *config.HTTP) gin.HandlerFunc {
	upgrader := newUpgrader(cfg.CORSHosts)
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			if s.log != nil {
				s.log.Debug("websocket upgrade failed", "error", err)
			}
			return
		}
		defer conn.Close()

		sub := rt.Bus().Subscribe()
		defer rt.Bus().Unsubscribe(sub)

		readFailed := make(chan struct{})
		go func() {
			defer close(readFailed)
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if string(msg) == "PING" {
					if err := conn.WriteMessage(websocket.TextMessage, []byte("PONG")); err != nil {
						return
					}
				}
			}
		}()

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-readFailed:
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				payload, err := json.Marshal(map[string]any{"event": ev.Type, "data": ev.Data})
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}
	}
}
