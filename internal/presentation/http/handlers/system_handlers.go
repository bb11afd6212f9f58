package handlers

import (
	"fmt"
	"net/http"

	"github.com/AtRiskMedia/tractstack-behavior/internal/application/services"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/cleanup"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// SystemHandlers serves cache, performance and health endpoints.
type SystemHandlers struct {
	cache       interfaces.Sweeper
	worker      *cleanup.Worker
	tracker     *services.BehaviorTracker
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewSystemHandlers creates system handlers with injected dependencies
func NewSystemHandlers(cache interfaces.Sweeper, worker *cleanup.Worker, tracker *services.BehaviorTracker, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SystemHandlers {
	return &SystemHandlers{
		cache:       cache,
		worker:      worker,
		tracker:     tracker,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetCacheStats handles GET /api/v1/cache/stats
func (h *SystemHandlers) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

// PostCacheCleanup handles POST /api/v1/cache/cleanup
func (h *SystemHandlers) PostCacheCleanup(c *gin.Context) {
	marker := h.perfTracker.StartOperation("cache:cleanup")
	defer h.perfTracker.CompleteOperation(marker)

	cleaned := h.worker.RunOnce()
	h.logger.WithOperation(logging.ChannelCache, "manual_cleanup").Info("Cache cleanup requested", "cleaned", cleaned)
	c.JSON(http.StatusOK, gin.H{"cleaned": cleaned, "stats": h.cache.Stats()})
}

// GetPerformanceStats handles GET /api/v1/perf/stats
func (h *SystemHandlers) GetPerformanceStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.perfTracker.GetOverallStats())
}

// GetHealth handles GET /health
func (h *SystemHandlers) GetHealth(c *gin.Context) {
	_, sessionActive := h.tracker.SessionID()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"performance":   h.perfTracker.Health(),
		"sessionActive": sessionActive,
	})
}

// LogLevelRequest is the body of PUT /api/v1/system/log-levels.
type LogLevelRequest struct {
	Channel string `json:"channel" binding:"required"`
	Level   string `json:"level" binding:"required"`
}

// GetLogLevels handles GET /api/v1/system/log-levels
func (h *SystemHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// PutLogLevel handles PUT /api/v1/system/log-levels
func (h *SystemHandlers) PutLogLevel(c *gin.Context) {
	var req LogLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	level, err := logging.ParseLevel(req.Level)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log level specified", "details": err.Error()})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to set log level", "details": err.Error()})
		return
	}

	h.logger.WithOperation(logging.ChannelSystem, "set_log_level").Info("Log level changed",
		"channel", req.Channel, "level", level.String())
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": fmt.Sprintf("Log level for channel '%s' set to '%s'", req.Channel, level.String()),
	})
}
