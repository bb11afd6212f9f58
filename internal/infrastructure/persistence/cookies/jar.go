package cookies

import (
	"sync"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
)

// Jar is the host cookie store: a readable header of live name=value pairs
// and a sink accepting serialized records.
type Jar interface {
	// Header returns the live cookies as "a=1; b=2".
	Header() string
	// Store applies one serialized record.
	Store(record string) error
}

type jarEntry struct {
	pair
	path   string
	domain string
	record Record
}

// MemoryJar behaves like a browser cookie store: records are keyed by name,
// path and domain, a record expiring in the past deletes its key, and expired
// records drop out of the header.
type MemoryJar struct {
	mu      sync.Mutex
	clock   scheduling.Clock
	entries []jarEntry
}

// NewMemoryJar returns an empty jar reading time from clock.
func NewMemoryJar(clock scheduling.Clock) *MemoryJar {
	return &MemoryJar{clock: clock}
}

func (j *MemoryJar) Header() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.clock.Now()
	live := make([]pair, 0, len(j.entries))
	kept := j.entries[:0]
	for _, e := range j.entries {
		if e.record.ExpiredAt(now) {
			continue
		}
		kept = append(kept, e)
		live = append(live, e.pair)
	}
	j.entries = kept
	return joinHeader(live)
}

func (j *MemoryJar) Store(raw string) error {
	record, err := ParseRecord(raw)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry := jarEntry{
		pair:   pair{name: Encode(record.Name), value: Encode(record.Value)},
		path:   record.Path,
		domain: record.Domain,
		record: record,
	}

	idx := -1
	for i, e := range j.entries {
		if e.name == entry.name && e.path == entry.path && e.domain == entry.domain {
			idx = i
			break
		}
	}

	if record.ExpiredAt(j.clock.Now()) {
		if idx >= 0 {
			j.entries = append(j.entries[:idx], j.entries[idx+1:]...)
		}
		return nil
	}

	if idx >= 0 {
		j.entries[idx] = entry
	} else {
		j.entries = append(j.entries, entry)
	}
	return nil
}

// Len reports how many records the jar holds, expired ones included.
func (j *MemoryJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
