package scheduling

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by virtual time. Tasks fire only inside
// Advance, synchronously and in chronological order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	tasks  map[int]*manualTask
}

type manualTask struct {
	id       int
	interval time.Duration
	next     time.Time
	fn       func()
	owner    *Manual
}

// NewManual returns a Manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:   start,
		tasks: make(map[int]*manualTask),
	}
}

// Now returns the virtual instant.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Every registers fn to run each interval of virtual time.
func (m *Manual) Every(interval time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	task := &manualTask{
		id:       m.nextID,
		interval: interval,
		next:     m.now.Add(interval),
		fn:       fn,
		owner:    m,
	}
	m.tasks[task.id] = task
	return task
}

// Stop removes the task from its scheduler.
func (t *manualTask) Stop() {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	delete(t.owner.tasks, t.id)
}

// Set moves the clock to instant without firing any task.
func (m *Manual) Set(instant time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = instant
}

// Advance moves the clock forward by d, firing every task that comes due on
// the way. Callbacks run without the scheduler lock held.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		due := m.nextDueLocked(target)
		if due == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = due.next
		due.next = due.next.Add(due.interval)
		fn := due.fn
		m.mu.Unlock()

		fn()
	}
}

// Pending reports how many tasks are registered.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manual) nextDueLocked(target time.Time) *manualTask {
	candidates := make([]*manualTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		if !task.next.After(target) {
			candidates = append(candidates, task)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].next.Equal(candidates[j].next) {
			return candidates[i].id < candidates[j].id
		}
		return candidates[i].next.Before(candidates[j].next)
	})
	return candidates[0]
}
