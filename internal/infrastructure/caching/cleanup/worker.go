package cleanup

import (
	"io"
	"sync"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
)

// Worker handles background cache cleanup operations
type Worker struct {
	cache     interfaces.Sweeper
	scheduler scheduling.Scheduler
	config    *Config
	logger    *logging.ChanneledLogger
	reporter  *Reporter

	mu   sync.Mutex
	task scheduling.Task
}

// NewWorker creates a new cleanup worker with injected configuration.
// Verbose reports are written to out.
func NewWorker(cache interfaces.Sweeper, scheduler scheduling.Scheduler, config *Config, logger *logging.ChanneledLogger, out io.Writer) *Worker {
	return &Worker{
		cache:     cache,
		scheduler: scheduler,
		config:    config,
		logger:    logger,
		reporter:  NewReporter(out),
	}
}

// Start schedules the sweep at the configured interval. Calling Start on a
// running worker does nothing.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.task != nil {
		return
	}
	w.task = w.scheduler.Every(w.config.CleanupInterval, func() { w.RunOnce() })

	w.logger.Cache().Info("Cache cleanup worker started",
		"interval", w.config.CleanupInterval, "verbose", w.config.VerboseReporting)
}

// Stop cancels the scheduled sweep.
func (w *Worker) Stop() {
	w.mu.Lock()
	task := w.task
	w.task = nil
	w.mu.Unlock()

	if task != nil {
		task.Stop()
		w.logger.Cache().Info("Cache cleanup worker stopped")
	}
}

// RunOnce performs a single sweep and returns the number of entries removed.
func (w *Worker) RunOnce() int {
	start := time.Now()

	if w.config.VerboseReporting {
		w.reporter.LogStage("PERIODIC CACHE CLEANUP")
		io.WriteString(w.reporter.out, w.reporter.GenerateReport(w.cache.Stats(), w.scheduler.Now()))
	}

	cleaned := w.cache.Cleanup()
	duration := time.Since(start)

	if cleaned > 0 {
		w.logger.Cache().Info("Cache cleanup finished", "cleaned", cleaned, "duration", duration)
		if w.config.VerboseReporting {
			w.reporter.LogSuccess("Cache cleanup finished: %d items cleaned in %v", cleaned, duration)
		}
	} else if w.config.VerboseReporting {
		w.reporter.LogInfo("Cache cleanup completed - no expired items found (%v)", duration)
	}

	return cleaned
}
