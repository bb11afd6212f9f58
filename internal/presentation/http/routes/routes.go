// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/tractstack-behavior/internal/application/container"
	"github.com/AtRiskMedia/tractstack-behavior/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/tractstack-behavior/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware(container.Config.AllowedOrigins))

	// Initialize handlers
	behaviorHandlers := handlers.NewBehaviorHandlers(
		container.BehaviorTracker,
		float64(container.Config.SessionCookieDays),
		container.Logger,
		container.PerfTracker,
	)
	systemHandlers := handlers.NewSystemHandlers(
		container.CacheManager,
		container.CleanupWorker,
		container.BehaviorTracker,
		container.Logger,
		container.PerfTracker,
	)

	r.GET("/health", systemHandlers.GetHealth)

	api := r.Group("/api/v1")
	{
		behaviorAPI := api.Group("/behavior")
		behaviorAPI.Use(middleware.SessionMiddleware(container.BehaviorTracker, middleware.SessionConfig{
			Clock:       container.Scheduler,
			SessionDays: float64(container.Config.SessionCookieDays),
			Defaults:    container.CookieDefaults,
		}, container.Logger))
		{
			behaviorAPI.POST("/init", behaviorHandlers.PostInit)
			behaviorAPI.POST("/page-views", behaviorHandlers.PostPageView)
			behaviorAPI.POST("/searches", behaviorHandlers.PostSearch)
			behaviorAPI.POST("/interactions", behaviorHandlers.PostInteraction)
			behaviorAPI.POST("/time-spent", behaviorHandlers.PostTimeSpent)
			behaviorAPI.PUT("/preferences/:key", behaviorHandlers.PutPreference)
			behaviorAPI.GET("/preferences/:key", behaviorHandlers.GetPreference)
			behaviorAPI.GET("/analytics", behaviorHandlers.GetAnalytics)
			behaviorAPI.GET("/profile", behaviorHandlers.GetProfile)
			behaviorAPI.GET("/events", behaviorHandlers.GetEvents)
			behaviorAPI.POST("/visibility", behaviorHandlers.PostVisibility)
			behaviorAPI.POST("/teardown", behaviorHandlers.PostTeardown)
			behaviorAPI.DELETE("", behaviorHandlers.DeleteBehavior)
		}

		cacheAPI := api.Group("/cache")
		{
			cacheAPI.GET("/stats", systemHandlers.GetCacheStats)
			cacheAPI.POST("/cleanup", systemHandlers.PostCacheCleanup)
		}

		api.GET("/perf/stats", systemHandlers.GetPerformanceStats)

		systemAPI := api.Group("/system")
		{
			systemAPI.GET("/log-levels", systemHandlers.GetLogLevels)
			systemAPI.PUT("/log-levels", systemHandlers.PutLogLevel)
		}
	}

	return r
}
