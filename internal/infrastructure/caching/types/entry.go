// Package types defines the cache entry and statistics structures shared by
// the tiered cache and its cleanup worker.
package types

import (
	"encoding/json"
	"errors"
	"time"
)

// Entry is one cached value with its creation time and optional expiry, both
// in Unix milliseconds. The same shape is serialized into the durable tier.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	CreatedAt int64           `json:"createdAt"`
	ExpiresAt *int64          `json:"expiresAt"`
}

// NewEntry stamps value with now and, when ttl > 0, an expiry ttl later.
func NewEntry(value json.RawMessage, now time.Time, ttl time.Duration) *Entry {
	entry := &Entry{
		Value:     value,
		CreatedAt: now.UnixMilli(),
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl).UnixMilli()
		entry.ExpiresAt = &expiresAt
	}
	return entry
}

// ValidAt reports whether the entry may be served at now.
func (e *Entry) ValidAt(now time.Time) bool {
	return e.ExpiresAt == nil || now.UnixMilli() < *e.ExpiresAt
}

// ParseEntry decodes a durable record. A record without a value is malformed.
func ParseEntry(raw string) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	if len(entry.Value) == 0 {
		return nil, errors.New("cache entry has no value")
	}
	return &entry, nil
}

// Stats counts the entries held by each tier.
type Stats struct {
	MemoryItems  int `json:"memoryItems"`
	DurableItems int `json:"durableItems"`
}
