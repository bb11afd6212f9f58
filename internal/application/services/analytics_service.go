package services

import (
	"github.com/AtRiskMedia/tractstack-behavior/internal/domain/behavior"
)

// Analytics derives the summary of the current profile: the most visited
// pages and top searches (each capped at the configured top N), the total
// dwell seconds and the milliseconds since the session started. Without a
// profile every field is empty or zero.
func (t *BehaviorTracker) Analytics() behavior.AnalyticsSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	profile, ok := t.loadLocked()
	if !ok {
		return behavior.EmptySummary()
	}
	return behavior.Summarize(profile, t.scheduler.Now(), t.config.AnalyticsTopN)
}

// Profile returns a snapshot of the stored profile.
func (t *BehaviorTracker) Profile() (*behavior.Profile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked()
}

// Events returns the audit trail, oldest first.
func (t *BehaviorTracker) Events() []behavior.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	events := make([]behavior.Event, 0)
	t.cache.Get(EventsCacheKey, &events)
	return events
}

// SessionID returns the ID minted by Init.
func (t *BehaviorTracker) SessionID() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID, t.sessionID != ""
}
