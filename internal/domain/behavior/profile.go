// Package behavior defines the anonymous behavior profile, its audit events
// and the analytics derived from them.
package behavior

import (
	"strings"
	"time"
)

// DefaultAction is recorded when an interaction names no action.
const DefaultAction = "view"

// Profile is the single behavior record kept per client. It is always
// persisted whole so the durable copy is a complete snapshot. Timestamps are
// Unix milliseconds.
type Profile struct {
	PageViews          map[string]int   `json:"pageViews"`
	SearchQueries      []string         `json:"searchQueries"`
	CourseInteractions map[string]int   `json:"courseInteractions"`
	TimeSpent          map[string]int64 `json:"timeSpent"`
	Preferences        map[string]any   `json:"preferences"`
	LastVisitAt        int64            `json:"lastVisitAt"`
	SessionStartAt     int64            `json:"sessionStartAt"`
}

// NewProfile returns an empty profile with both timestamps at now.
func NewProfile(now time.Time) *Profile {
	ms := now.UnixMilli()
	return &Profile{
		PageViews:          make(map[string]int),
		SearchQueries:      make([]string, 0),
		CourseInteractions: make(map[string]int),
		TimeSpent:          make(map[string]int64),
		Preferences:        make(map[string]any),
		LastVisitAt:        ms,
		SessionStartAt:     ms,
	}
}

// Normalize replaces nil collections left by decoding an older or partial
// record, so mutations never write into a nil map.
func (p *Profile) Normalize() {
	if p.PageViews == nil {
		p.PageViews = make(map[string]int)
	}
	if p.SearchQueries == nil {
		p.SearchQueries = make([]string, 0)
	}
	if p.CourseInteractions == nil {
		p.CourseInteractions = make(map[string]int)
	}
	if p.TimeSpent == nil {
		p.TimeSpent = make(map[string]int64)
	}
	if p.Preferences == nil {
		p.Preferences = make(map[string]any)
	}
}

// StartSession resets the session start, leaving all history in place.
func (p *Profile) StartSession(now time.Time) {
	p.SessionStartAt = now.UnixMilli()
}

// RecordPageView counts a visit to path.
func (p *Profile) RecordPageView(path string, now time.Time) {
	p.PageViews[path]++
	p.LastVisitAt = now.UnixMilli()
}

// RecordSearch appends query, keeping at most limit of the most recent ones.
// Blank queries are ignored and reported as false.
func (p *Profile) RecordSearch(query string, limit int) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	p.SearchQueries = AppendBounded(p.SearchQueries, query, limit)
	return true
}

// InteractionKey is the courseInteractions key for contentID and action.
func InteractionKey(contentID, action string) string {
	if action == "" {
		action = DefaultAction
	}
	return contentID + "_" + action
}

// RecordInteraction counts one action on contentID and returns the key used.
func (p *Profile) RecordInteraction(contentID, action string) string {
	key := InteractionKey(contentID, action)
	p.CourseInteractions[key]++
	return key
}

// RecordTimeSpent adds seconds of dwell time to path. Non-positive amounts
// are ignored and reported as false.
func (p *Profile) RecordTimeSpent(path string, seconds int64) bool {
	if seconds <= 0 {
		return false
	}
	p.TimeSpent[path] += seconds
	return true
}

// SetPreference stores value under key, replacing any previous value.
func (p *Profile) SetPreference(key string, value any) {
	p.Preferences[key] = value
}

// AppendBounded appends v and drops the oldest elements beyond limit.
// A limit <= 0 leaves the buffer unbounded.
func AppendBounded[T any](buf []T, v T, limit int) []T {
	buf = append(buf, v)
	if limit > 0 && len(buf) > limit {
		buf = append(buf[:0:0], buf[len(buf)-limit:]...)
	}
	return buf
}
