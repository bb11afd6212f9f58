package middleware

import (
	"github.com/AtRiskMedia/tractstack-behavior/internal/application/services"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/cookies"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
	"github.com/gin-gonic/gin"
)

const cookieStoreKey = "cookieStore"

// SessionConfig carries what the session middleware needs to write cookies.
type SessionConfig struct {
	Clock       scheduling.Clock
	SessionDays float64
	Defaults    []cookies.Option
}

// SessionMiddleware gives every request a cookie store over the request and
// response headers, and mirrors the tracker's session ID into the browser
// when the browser does not already carry it.
func SessionMiddleware(tracker *services.BehaviorTracker, config SessionConfig, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := cookies.NewStore(cookies.NewGinJar(c, config.Clock), config.Clock, logger, config.Defaults...)
		c.Set(cookieStoreKey, store)

		if id, ok := tracker.SessionID(); ok {
			if current, _ := store.Get(services.SessionCookie); current != id {
				logger.HTTP().Debug("Mirroring session cookie", "path", c.Request.URL.Path)
				if err := store.Set(services.SessionCookie, id, cookies.WithExpiresInDays(config.SessionDays)); err != nil {
					logger.HTTP().Warn("Failed to mirror session cookie", "error", err.Error())
				}
			}
		}

		c.Next()
	}
}

// GetCookieStore returns the request cookie store installed by SessionMiddleware.
func GetCookieStore(c *gin.Context) (*cookies.Store, bool) {
	value, exists := c.Get(cookieStoreKey)
	if !exists {
		return nil, false
	}
	store, ok := value.(*cookies.Store)
	return store, ok
}
