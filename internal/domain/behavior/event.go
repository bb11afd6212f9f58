package behavior

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType names what an audit event records.
type EventType string

const (
	EventPageView          EventType = "page_view"
	EventSearch            EventType = "search"
	EventCourseInteraction EventType = "course_interaction"
	EventTimeSpent         EventType = "time_spent"
	EventPreferenceChange  EventType = "preference_change"
)

// Event is one entry of the audit trail. Aggregation never reads it.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"`
}

// NewEvent stamps an event at now with a ULID carrying the same instant.
func NewEvent(eventType EventType, payload map[string]any, now time.Time) Event {
	return Event{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: now.UnixMilli(),
	}
}
