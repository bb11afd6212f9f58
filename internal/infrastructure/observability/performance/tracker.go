package performance

import (
	"runtime"
	"sync"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
)

// Tracker keeps a bounded window of completed markers and flags slow ones.
// Once the window is full, next indexes the oldest marker, which the next
// completion overwrites.
type Tracker struct {
	mu        sync.RWMutex
	completed []Marker
	next      int
	active    int
	slow      int
	started   time.Time
	config    *TrackerConfig
	logger    *logging.ChanneledLogger
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers    int           `json:"maxMarkers"`    // Completed markers retained
	SlowThreshold time.Duration `json:"slowThreshold"` // Operations above this are logged as slow
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:    1000,
		SlowThreshold: 500 * time.Millisecond,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig, logger *logging.ChanneledLogger) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &Tracker{
		started: time.Now(),
		config:  config,
		logger:  logger,
	}
}

// StartOperation creates a marker for operation. Operations are assumed to
// succeed until told otherwise.
func (t *Tracker) StartOperation(operation string) *Marker {
	t.mu.Lock()
	t.active++
	t.mu.Unlock()

	return &Marker{
		Operation: operation,
		StartTime: time.Now(),
		Success:   true,
	}
}

// CompleteOperation completes marker, records it and logs it on the
// performance channel.
func (t *Tracker) CompleteOperation(marker *Marker) {
	if marker == nil || marker.Completed {
		return
	}
	marker.Complete()

	slow := marker.Duration > t.config.SlowThreshold

	t.mu.Lock()
	t.active--
	if slow {
		t.slow++
	}
	t.recordLocked(*marker)
	t.mu.Unlock()

	perf := t.logger.Perf().With("operation", marker.Operation, "duration", marker.Duration, "success", marker.Success)
	if slow {
		perf.Warn("Slow operation", "threshold", t.config.SlowThreshold)
		return
	}
	perf.Debug("Operation completed")
}

func (t *Tracker) recordLocked(marker Marker) {
	if t.config.MaxMarkers <= 0 {
		return
	}
	if len(t.completed) < t.config.MaxMarkers {
		t.completed = append(t.completed, marker)
		return
	}
	t.completed[t.next] = marker
	t.next = (t.next + 1) % len(t.completed)
}

// GetRecentMetrics returns completed markers that ended within the window,
// oldest first.
func (t *Tracker) GetRecentMetrics(within time.Duration) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	recent := make([]Marker, 0)
	for i := range t.completed {
		m := t.completed[(t.next+i)%len(t.completed)]
		if m.EndTime.After(cutoff) {
			recent = append(recent, m)
		}
	}
	return recent
}

// Health classifies the retained window.
func (t *Tracker) Health() HealthStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.completed) == 0 {
		return HealthUnknown
	}
	slow := 0
	for _, m := range t.completed {
		if m.Duration > t.config.SlowThreshold || !m.Success {
			slow++
		}
	}
	if slow*10 > len(t.completed) {
		return HealthDegraded
	}
	return HealthHealthy
}

// GetOverallStats returns overall tracker statistics
func (t *Tracker) GetOverallStats() map[string]any {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	health := t.Health()

	t.mu.RLock()
	defer t.mu.RUnlock()

	return map[string]any{
		"trackerUptime":       time.Since(t.started).String(),
		"activeOperations":    t.active,
		"completedOperations": len(t.completed),
		"slowOperations":      t.slow,
		"health":              health,
		"memoryUsageMB":       memStats.Alloc / (1024 * 1024),
		"systemMemoryMB":      memStats.Sys / (1024 * 1024),
	}
}
