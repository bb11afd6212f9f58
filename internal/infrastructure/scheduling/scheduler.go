// Package scheduling provides the clock and periodic task abstractions used by
// the cache sweep and the dwell-time observer.
package scheduling

import (
	"sync"
	"time"
)

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// Task is a handle to a scheduled periodic callback.
type Task interface {
	// Stop cancels the task. It is safe to call more than once.
	Stop()
}

// Scheduler runs callbacks periodically.
type Scheduler interface {
	Clock
	// Every invokes fn once per interval until the returned Task is stopped.
	Every(interval time.Duration, fn func()) Task
}

// System is the wall-clock Scheduler backed by time.Ticker goroutines.
type System struct{}

// NewSystem returns the wall-clock scheduler.
func NewSystem() *System {
	return &System{}
}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Every starts a goroutine that calls fn on each tick.
func (System) Every(interval time.Duration, fn func()) Task {
	t := &tickerTask{
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer close(t.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return t
}

type tickerTask struct {
	once    sync.Once
	done    chan struct{}
	stopped chan struct{}
}

// Stop signals the goroutine and waits for it to exit. It must not be
// called from inside the task's own callback.
func (t *tickerTask) Stop() {
	t.once.Do(func() { close(t.done) })
	<-t.stopped
}
