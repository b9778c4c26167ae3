package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/valentinerf/valentine-rf/internal/decoder"
	"github.com/valentinerf/valentine-rf/internal/rferr"
)

func (s *Server) handleStatus(rt *decoder.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, rt.GetStatus())
	}
}

func (s *Server) handleStart(rt *decoder.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params map[string]any
		if err := c.ShouldBindJSON(&params); err != nil {
			params = map[string]any{}
		}
		result, err := rt.Start(c.Request.Context(), params)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (s *Server) handleStop(rt *decoder.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := rt.Stop()
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (s *Server) handleTools(rt *decoder.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, rt.ToolAvailability())
	}
}

func (s *Server) handleModes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"modes": s.registry.ModeIDs()})
	}
}

func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		healthy := s.registry.Healthy()
		body := gin.H{
			"uptime":           time.Since(s.start).String(),
			"process_count":    s.registry.LiveProcessCount(),
			"decoder_statuses": s.registry.AllStatuses(),
		}
		if healthy {
			c.JSON(http.StatusOK, body)
			return
		}
		c.JSON(http.StatusServiceUnavailable, body)
	}
}

func (s *Server) handleKillAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		stopped := s.registry.KillAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"killed": stopped})
	}
}

// handleDevices serves the cached hardware enumeration (spec-supplement
// "device enumeration caching with manual refresh"): never probes hardware
// inline on the request path.
func (s *Server) handleDevices() gin.HandlerFunc {
	return func(c *gin.Context) {
		devices, advisory, refreshedAt := s.devices.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"devices":      devices,
			"advisory":     advisory,
			"refreshed_at": refreshedAt,
		})
	}
}

// handleDevicesRescan triggers an immediate re-probe, for an operator who
// just plugged in a dongle and doesn't want to wait for the next scheduled
// refresh.
func (s *Server) handleDevicesRescan() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.devices.Refresh()
		devices, advisory, refreshedAt := s.devices.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"devices":      devices,
			"advisory":     advisory,
			"refreshed_at": refreshedAt,
		})
	}
}

func writeError(c *gin.Context, err error) {
	envelope := rferr.AsEnvelope(err)
	status := 500
	if rfErr, ok := err.(*rferr.Error); ok {
		status = rfErr.Kind.HTTPStatus()
	}
	c.JSON(status, envelope)
}
