// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"
	"os"

	"github.com/AtRiskMedia/tractstack-behavior/internal/application/services"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/cleanup"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/cookies"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/storage"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
	"github.com/AtRiskMedia/tractstack-behavior/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies.
// One Container is built per process and handed to the HTTP layer.
type Container struct {
	Config    *config.Config
	Logger    *logging.ChanneledLogger
	Scheduler scheduling.Scheduler

	// Infrastructure Dependencies
	DB             *database.DB // nil when STORAGE_DRIVER=memory
	Storage        storage.Port
	CacheManager   *manager.Manager
	CleanupWorker  *cleanup.Worker
	CookieJar      *cookies.MemoryJar
	CookieStore    *cookies.Store
	CookieDefaults []cookies.Option
	PerfTracker    *performance.Tracker

	// Behavior Services
	BehaviorTracker *services.BehaviorTracker
}

// NewContainer creates and wires all singleton services. Nothing is started.
func NewContainer(cfg *config.Config, logger *logging.ChanneledLogger, scheduler scheduling.Scheduler) (*Container, error) {
	c := &Container{
		Config:         cfg,
		Logger:         logger,
		Scheduler:      scheduler,
		CookieDefaults: CookieDefaults(cfg),
		PerfTracker:    performance.NewTracker(nil, logger),
	}

	switch cfg.StorageDriver {
	case "memory":
		c.Storage = storage.NewMemory(0)
	default:
		db, err := database.NewConnectionWithLogger(cfg.StorageDriver, cfg.StoragePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open durable storage: %w", err)
		}
		store, err := storage.NewSQLStore(db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("prepare durable storage: %w", err)
		}
		c.DB = db
		c.Storage = store
	}

	c.CacheManager = manager.NewManager(c.Storage, scheduler, logger, cfg.CacheDefaultExpiry)
	c.CleanupWorker = cleanup.NewWorker(c.CacheManager, scheduler, cleanup.NewConfig(cfg), logger, os.Stdout)

	c.CookieJar = cookies.NewMemoryJar(scheduler)
	c.CookieStore = cookies.NewStore(c.CookieJar, scheduler, logger, c.CookieDefaults...)

	c.BehaviorTracker = services.NewBehaviorTracker(c.CacheManager, c.CookieStore, scheduler, services.NewTrackerConfig(cfg), logger)

	return c, nil
}

// CookieDefaults are the record attributes every tracker cookie carries.
func CookieDefaults(cfg *config.Config) []cookies.Option {
	opts := []cookies.Option{
		cookies.WithPath(cfg.CookiePath),
		cookies.WithSecure(cfg.CookieSecure),
		cookies.WithSameSite(cookies.ParseSameSite(cfg.CookieSameSite)),
	}
	if cfg.CookieDomain != "" {
		opts = append(opts, cookies.WithDomain(cfg.CookieDomain))
	}
	return opts
}

// Start launches background work: the cache sweep.
func (c *Container) Start() {
	c.CleanupWorker.Start()
}

// Dispose flushes the tracker, stops background work and closes storage.
func (c *Container) Dispose() error {
	c.BehaviorTracker.Dispose()
	c.CleanupWorker.Stop()

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("close durable storage: %w", err)
		}
	}
	return nil
}
