package cleanup

import (
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/pkg/config"
)

// Config holds cleanup worker configuration, sourced from the central config.
type Config struct {
	CleanupInterval  time.Duration
	VerboseReporting bool
}

// NewConfig copies the cleanup settings out of cfg.
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		CleanupInterval:  cfg.CacheCleanupInterval,
		VerboseReporting: cfg.CacheCleanupVerbose,
	}
}
