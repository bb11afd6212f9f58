// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"

	"github.com/AtRiskMedia/tractstack-behavior/internal/application/services"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/cookies"
	"github.com/AtRiskMedia/tractstack-behavior/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// BehaviorHandlers exposes the behavior tracker to UI collaborators.
type BehaviorHandlers struct {
	tracker     *services.BehaviorTracker
	sessionDays float64
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// PageViewRequest is the body of POST /page-views.
type PageViewRequest struct {
	Path string `json:"path" binding:"required"`
}

// SearchRequest is the body of POST /searches. A blank query is accepted and ignored.
type SearchRequest struct {
	Query string `json:"query"`
}

// InteractionRequest is the body of POST /interactions.
type InteractionRequest struct {
	ContentID string `json:"contentId" binding:"required"`
	Action    string `json:"action"`
}

// TimeSpentRequest is the body of POST /time-spent.
type TimeSpentRequest struct {
	Path    string `json:"path" binding:"required"`
	Seconds int64  `json:"seconds"`
}

// PreferenceRequest is the body of PUT /preferences/:key.
type PreferenceRequest struct {
	Value any `json:"value"`
}

// VisibilityRequest is the body of POST /visibility. A path different from
// the observed one is treated as a navigation first.
type VisibilityRequest struct {
	Path    string `json:"path"`
	Visible *bool  `json:"visible" binding:"required"`
}

// NewBehaviorHandlers creates behavior handlers with injected dependencies
func NewBehaviorHandlers(tracker *services.BehaviorTracker, sessionDays float64, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *BehaviorHandlers {
	return &BehaviorHandlers{
		tracker:     tracker,
		sessionDays: sessionDays,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// PostInit handles POST /api/v1/behavior/init
func (h *BehaviorHandlers) PostInit(c *gin.Context) {
	marker := h.perfTracker.StartOperation("behavior:init")
	defer h.perfTracker.CompleteOperation(marker)

	h.tracker.Init()
	sessionID, _ := h.tracker.SessionID()

	if store, ok := middleware.GetCookieStore(c); ok {
		if err := store.Set(services.SessionCookie, sessionID, cookies.WithExpiresInDays(h.sessionDays)); err != nil {
			h.logger.HTTP().Warn("Failed to set session cookie", "error", err.Error())
		}
	}

	h.logger.Analytics().Info("Behavior tracker initialized", "sessionId", sessionID)
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": sessionID})
}

// PostPageView handles POST /api/v1/behavior/page-views
func (h *BehaviorHandlers) PostPageView(c *gin.Context) {
	marker := h.perfTracker.StartOperation("behavior:page_view")
	defer h.perfTracker.CompleteOperation(marker)

	var req PageViewRequest
	if !h.bind(c, marker, &req) {
		return
	}

	h.tracker.TrackPageView(req.Path)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PostSearch handles POST /api/v1/behavior/searches
func (h *BehaviorHandlers) PostSearch(c *gin.Context) {
	marker := h.perfTracker.StartOperation("behavior:search")
	defer h.perfTracker.CompleteOperation(marker)

	var req SearchRequest
	if !h.bind(c, marker, &req) {
		return
	}

	h.tracker.TrackSearch(req.Query)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PostInteraction handles POST /api/v1/behavior/interactions
func (h *BehaviorHandlers) PostInteraction(c *gin.Context) {
	marker := h.perfTracker.StartOperation("behavior:course_interaction")
	defer h.perfTracker.CompleteOperation(marker)

	var req InteractionRequest
	if !h.bind(c, marker, &req) {
		return
	}

	h.tracker.TrackCourseInteraction(req.ContentID, req.Action)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PostTimeSpent handles POST /api/v1/behavior/time-spent
func (h *BehaviorHandlers) PostTimeSpent(c *gin.Context) {
	marker := h.perfTracker.StartOperation("behavior:time_spent")
	defer h.perfTracker.CompleteOperation(marker)

	var req TimeSpentRequest
	if !h.bind(c, marker, &req) {
		return
	}

	h.tracker.TrackTimeSpent(req.Path, req.Seconds)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PutPreference handles PUT /api/v1/behavior/preferences/:key
func (h *BehaviorHandlers) PutPreference(c *gin.Context) {
	marker := h.perfTracker.StartOperation("behavior:save_preference")
	defer h.perfTracker.CompleteOperation(marker)

	var req PreferenceRequest
	if !h.bind(c, marker, &req) {
		return
	}

	h.tracker.SavePreference(c.Param("key"), req.Value)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetPreference handles GET /api/v1/behavior/preferences/:key
func (h *BehaviorHandlers) GetPreference(c *gin.Context) {
	key := c.Param("key")
	value, ok := h.tracker.GetPreference(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "preference not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// GetAnalytics handles GET /api/v1/behavior/analytics
func (h *BehaviorHandlers) GetAnalytics(c *gin.Context) {
	marker := h.perfTracker.StartOperation("behavior:analytics")
	defer h.perfTracker.CompleteOperation(marker)

	c.JSON(http.StatusOK, h.tracker.Analytics())
}

// GetProfile handles GET /api/v1/behavior/profile
func (h *BehaviorHandlers) GetProfile(c *gin.Context) {
	profile, ok := h.tracker.Profile()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no behavior profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetEvents handles GET /api/v1/behavior/events
func (h *BehaviorHandlers) GetEvents(c *gin.Context) {
	events := h.tracker.Events()
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// PostVisibility handles POST /api/v1/behavior/visibility
func (h *BehaviorHandlers) PostVisibility(c *gin.Context) {
	marker := h.perfTracker.StartOperation("behavior:visibility")
	defer h.perfTracker.CompleteOperation(marker)

	var req VisibilityRequest
	if !h.bind(c, marker, &req) {
		return
	}

	observer := h.tracker.Observer()
	if observer == nil {
		marker.SetSuccess(false)
		c.JSON(http.StatusConflict, gin.H{"error": "behavior tracker not initialized"})
		return
	}

	if req.Path != "" && req.Path != observer.Path() {
		observer.Navigate(req.Path)
	}
	observer.SetVisible(*req.Visible)

	c.JSON(http.StatusOK, gin.H{"success": true, "visible": observer.Visible()})
}

// PostTeardown handles POST /api/v1/behavior/teardown
func (h *BehaviorHandlers) PostTeardown(c *gin.Context) {
	observer := h.tracker.Observer()
	if observer == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "behavior tracker not initialized"})
		return
	}

	observer.Teardown()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteBehavior handles DELETE /api/v1/behavior
func (h *BehaviorHandlers) DeleteBehavior(c *gin.Context) {
	marker := h.perfTracker.StartOperation("behavior:clear_all")
	defer h.perfTracker.CompleteOperation(marker)

	h.tracker.ClearAll()

	if store, ok := middleware.GetCookieStore(c); ok {
		for _, name := range []string{services.SessionCookie, services.LastVisitCookie} {
			if err := store.Remove(name); err != nil {
				h.logger.HTTP().Warn("Failed to remove browser cookie", "name", name, "error", err.Error())
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *BehaviorHandlers) bind(c *gin.Context, marker *performance.Marker, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.HTTP().Warn("Request JSON binding failed", "path", c.Request.URL.Path, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return false
	}
	return true
}
