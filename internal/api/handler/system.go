package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reviewpilot/reviewpilot/consts"
	"github.com/reviewpilot/reviewpilot/internal/database"
	"github.com/reviewpilot/reviewpilot/internal/engine"
	pkgerrors "github.com/reviewpilot/reviewpilot/pkg/errors"
)

// SystemHandler serves health, stats and version endpoints
type SystemHandler struct {
	engine *engine.Engine
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(e *engine.Engine) *SystemHandler {
	return &SystemHandler{engine: e}
}

// Health handles GET /healthz
func (h *SystemHandler) Health(c *gin.Context) {
	if err := database.HealthCheck(); err != nil {
		respondError(c, http.StatusServiceUnavailable, pkgerrors.ErrCodeDBConnection, "Database unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats handles GET /api/v1/stats
func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.engine.Stats()
	if err != nil {
		respondError(c, http.StatusInternalServerError, pkgerrors.ErrCodeDBQuery, "Failed to collect stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"queue":       stats.Queue,
		"pool":        stats.Pool,
		"utilization": stats.Utilization,
		"uptime":      consts.GetUptime().String(),
	})
}

// Version handles GET /api/v1/version
func (h *SystemHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":       consts.ProjectName,
		"version":    consts.Version,
		"build_time": consts.BuildTime,
		"git_commit": consts.GitCommit,
	})
}
