package services

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
)

// TimeRecorder receives flushed dwell time.
type TimeRecorder interface {
	TrackTimeSpent(path string, seconds int64)
}

// DwellObserver accrues visible time for the current path. It is Active while
// the page is visible and Hidden otherwise. A periodic tick, a visibility
// change, a navigation and teardown all go through flush, which takes the
// whole seconds since the start marker and advances the marker in the same
// critical section, so no interval is ever reported twice.
type DwellObserver struct {
	mu        sync.Mutex
	recorder  TimeRecorder
	scheduler scheduling.Scheduler
	interval  time.Duration
	logger    *logging.ChanneledLogger

	path    string
	visible bool
	marker  time.Time
	task    scheduling.Task
}

// NewDwellObserver returns an Active observer with no path. Call Start to
// begin the periodic flush.
func NewDwellObserver(recorder TimeRecorder, scheduler scheduling.Scheduler, interval time.Duration, logger *logging.ChanneledLogger) *DwellObserver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &DwellObserver{
		recorder:  recorder,
		scheduler: scheduler,
		interval:  interval,
		logger:    logger,
		visible:   true,
		marker:    scheduler.Now(),
	}
}

// Start schedules the periodic flush. Calling it again does nothing.
func (o *DwellObserver) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.task != nil {
		return
	}
	o.task = o.scheduler.Every(o.interval, o.flush)
	o.logger.Lifecycle().Info("Dwell observer started", "interval", o.interval)
}

// Stop cancels the periodic flush without flushing.
func (o *DwellObserver) Stop() {
	o.mu.Lock()
	task := o.task
	o.task = nil
	o.mu.Unlock()

	if task != nil {
		task.Stop()
		o.logger.Lifecycle().Info("Dwell observer stopped")
	}
}

// Navigate flushes time owed to the previous path and starts accruing for path.
func (o *DwellObserver) Navigate(path string) {
	o.mu.Lock()
	prev, seconds := o.takeLocked()
	o.path = path
	o.marker = o.scheduler.Now()
	o.mu.Unlock()

	o.record(prev, seconds, "navigate")
}

// SetVisible moves between Active and Hidden. Hiding flushes and pauses the
// clock; showing restarts it at now.
func (o *DwellObserver) SetVisible(visible bool) {
	o.mu.Lock()
	if o.visible == visible {
		o.mu.Unlock()
		return
	}

	var (
		path    string
		seconds int64
	)
	if visible {
		o.marker = o.scheduler.Now()
	} else {
		path, seconds = o.takeLocked()
	}
	o.visible = visible
	o.mu.Unlock()

	o.logger.Lifecycle().Debug("Visibility changed", "visible", visible)
	o.record(path, seconds, "visibility")
}

// Teardown is the final flush of a page context. The observer is left
// Hidden until the next Init resumes it or SetVisible(true) is called.
func (o *DwellObserver) Teardown() {
	o.mu.Lock()
	path, seconds := o.takeLocked()
	o.visible = false
	o.mu.Unlock()

	o.record(path, seconds, "teardown")
}

// Resume begins a new page context: time owed to the current one is flushed,
// the observer becomes Active and the clock restarts at now.
func (o *DwellObserver) Resume() {
	o.mu.Lock()
	path, seconds := o.takeLocked()
	o.visible = true
	o.marker = o.scheduler.Now()
	o.mu.Unlock()

	o.record(path, seconds, "resume")
}

// Restart drops any accrued time and restarts the clock at now.
func (o *DwellObserver) Restart() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.marker = o.scheduler.Now()
}

// Visible reports whether the observer is Active.
func (o *DwellObserver) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

// Path returns the path time is accruing for.
func (o *DwellObserver) Path() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.path
}

func (o *DwellObserver) flush() {
	o.mu.Lock()
	path, seconds := o.takeLocked()
	o.mu.Unlock()

	o.record(path, seconds, "tick")
}

// takeLocked returns the whole seconds owed to the current path and advances
// the marker by exactly that much. The sub-second remainder carries over.
func (o *DwellObserver) takeLocked() (string, int64) {
	if !o.visible || o.path == "" {
		return "", 0
	}
	seconds := int64(o.scheduler.Now().Sub(o.marker) / time.Second)
	if seconds <= 0 {
		return "", 0
	}
	o.marker = o.marker.Add(time.Duration(seconds) * time.Second)
	return o.path, seconds
}

func (o *DwellObserver) record(path string, seconds int64, trigger string) {
	if seconds <= 0 {
		return
	}
	o.logger.Lifecycle().Debug("Flushing dwell time", "path", path, "seconds", seconds, "trigger", trigger)
	o.recorder.TrackTimeSpent(path, seconds)
}
