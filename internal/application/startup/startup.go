// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/application/container"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
	"github.com/AtRiskMedia/tractstack-behavior/internal/presentation/http/server"
	"github.com/AtRiskMedia/tractstack-behavior/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal has been handled.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	log.Println("\033[32m" + `

 ▄██▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄██▄▄▄▄▄▄▄██▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄ ▄▄▄
  ██  ██ ██ ▀▀ ██ ██ ▀▀ ██ ██ ▀▀ ██ ▀▀ ██ ██ ▀▀ ██ ██
  ██  ██▀█▄ ██▀██ ██ ▄▄ ██ ▀▀▀██ ██ ██▀██ ██ ▄▄ ██▀█▄
  ██  ██ ██ ██▄██ ██▄██ ██ ██▄██ ██ ██▄██ ██▄██ ██ ██
   ▀▀                   ▀▀       ▀▀             ▀▀ ▀▀▀
` + "\033[97m" + `
  behavior core · made by At Risk Media
` + "\033[0m")

	// Step 1: Load configuration
	log.Println("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Step 2: Create the channeled logger
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Channeled logging ready - switching from standard log")

	// Step 3: Create dependency injection container
	phaseStart := time.Now()
	appContainer, err := container.NewContainer(cfg, logger, scheduling.NewSystem())
	if err != nil {
		logger.LogStartupPhase("container", time.Since(phaseStart), false, map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to build container: %w", err)
	}
	logger.LogStartupPhase("container", time.Since(phaseStart), true, map[string]any{
		"storageDriver": cfg.StorageDriver,
		"storagePath":   cfg.StoragePath,
	})

	// Step 4: Start background cleanup worker
	phaseStart = time.Now()
	appContainer.Start()
	logger.LogStartupPhase("cleanup_worker", time.Since(phaseStart), true, map[string]any{
		"interval": cfg.CacheCleanupInterval.String(),
	})

	// Step 5: Start HTTP server
	httpServer := server.New(appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"address", httpServer.Addr())

	// Wait for shutdown signal or a failed listener
	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErrors:
		if err != nil {
			logger.Shutdown().Error("HTTP server failed", "error", err.Error())
		}
	}

	shutdownStart := time.Now()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Flushing behavior data and closing storage...")
	if err := appContainer.Dispose(); err != nil {
		logger.Shutdown().Error("Error disposing container", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

func newLogger(cfg *config.Config) (*logging.ChanneledLogger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    cfg.LogToFile,
		OutputToConsole: true,
		LogDirectory:    cfg.LogDirectory,
		JSONFormat:      cfg.LogJSON,
		DefaultLevel:    level,
	})
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
