package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/decoder"
)

// handleStream subscribes to the mode's bus and streams events as
// `event: <type>\ndata: <json>\n\n` until the client disconnects (spec
// §4.6 GET /<M>/stream).
func (s *Server) handleStream(rt *decoder.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		sub := rt.Bus().Subscribe()
		defer rt.Bus().Unsubscribe(sub)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if !writeSSEEvent(c, ev) {
					return
				}
			}
		}
	}
}

func writeSSEEvent(c *gin.Context, ev bus.Event) bool {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return true // skip a single unmarshalable event rather than killing the stream
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
