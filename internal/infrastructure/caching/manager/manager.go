// Package manager provides the two-tier value cache: a memory tier backed by a
// durable storage area, with per-entry expiry.
package manager

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/types"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/storage"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
	"golang.org/x/sync/singleflight"
)

// DurablePrefix namespaces cache-owned records in the durable tier.
const DurablePrefix = "cache_"

// DefaultExpiry applies when neither the caller nor the Manager picks one.
const DefaultExpiry = 60 * time.Minute

var _ interfaces.Cache = (*Manager)(nil)

// WithExpiry expires the entry d after it is written.
func WithExpiry(d time.Duration) interfaces.SetOption {
	return func(o *interfaces.SetOptions) {
		o.Expiry = d
		o.NoExpiry = false
	}
}

// WithExpiryMinutes is WithExpiry in whole minutes.
func WithExpiryMinutes(minutes int) interfaces.SetOption {
	return WithExpiry(time.Duration(minutes) * time.Minute)
}

// WithoutExpiry keeps the entry until it is removed.
func WithoutExpiry() interfaces.SetOption {
	return func(o *interfaces.SetOptions) { o.NoExpiry = true }
}

// MemoryOnly skips the durable tier.
func MemoryOnly() interfaces.SetOption {
	return func(o *interfaces.SetOptions) {
		o.UseMemory = true
		o.UseDurable = false
	}
}

// DurableOnly skips the memory tier.
func DurableOnly() interfaces.SetOption {
	return func(o *interfaces.SetOptions) {
		o.UseMemory = false
		o.UseDurable = true
	}
}

// Manager is the tiered cache. Reads try memory first and fall back to the
// durable tier, writing valid durable hits back into memory. Durable failures
// are logged and swallowed so the memory tier stays authoritative.
type Manager struct {
	mu            sync.RWMutex
	memory        map[string]*types.Entry
	durable       storage.Port
	clock         scheduling.Clock
	logger        *logging.ChanneledLogger
	defaultExpiry time.Duration
	sf            singleflight.Group
}

// NewManager builds a cache over durable. defaultExpiry <= 0 selects DefaultExpiry.
func NewManager(durable storage.Port, clock scheduling.Clock, logger *logging.ChanneledLogger, defaultExpiry time.Duration) *Manager {
	if defaultExpiry <= 0 {
		defaultExpiry = DefaultExpiry
	}
	logger.Cache().Info("Initializing tiered cache", "defaultExpiry", defaultExpiry, "durablePrefix", DurablePrefix)

	return &Manager{
		memory:        make(map[string]*types.Entry),
		durable:       durable,
		clock:         clock,
		logger:        logger,
		defaultExpiry: defaultExpiry,
	}
}

func durableKey(key string) string {
	return DurablePrefix + key
}

// Set stores value under key. Only a value that cannot be JSON encoded is
// reported; durable write failures are logged.
func (m *Manager) Set(key string, value any, opts ...interfaces.SetOption) error {
	o := &interfaces.SetOptions{UseMemory: true, UseDurable: true}
	for _, opt := range opts {
		opt(o)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}

	ttl := o.Expiry
	if ttl <= 0 {
		ttl = m.defaultExpiry
	}
	if o.NoExpiry {
		ttl = 0
	}
	entry := types.NewEntry(raw, m.clock.Now(), ttl)

	if o.UseMemory {
		m.mu.Lock()
		m.memory[key] = entry
		m.mu.Unlock()
	}

	if o.UseDurable {
		record, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode cache entry %q: %w", key, err)
		}
		if err := m.durable.Write(durableKey(key), string(record)); err != nil {
			m.logger.Cache().Warn("Durable tier write failed, continuing in memory",
				"key", key, "error", err.Error())
		}
	}

	return nil
}

// Get decodes the cached value for key into dest and reports whether it was
// found. A value that no longer decodes into dest is removed.
func (m *Manager) Get(key string, dest any) bool {
	raw, ok := m.lookup(key)
	if !ok {
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		m.logger.Cache().Warn("Cached value does not decode, removing", "key", key, "error", err.Error())
		m.Remove(key)
		return false
	}
	return true
}

// Lookup is the typed form of Manager.Get.
func Lookup[T any](m *Manager, key string) (T, bool) {
	var value T
	ok := m.Get(key, &value)
	return value, ok
}

func (m *Manager) lookup(key string) (json.RawMessage, bool) {
	start := time.Now()
	now := m.clock.Now()

	m.mu.RLock()
	entry, ok := m.memory[key]
	m.mu.RUnlock()

	if ok {
		if entry.ValidAt(now) {
			m.logger.LogCacheOperation("get", key, true, time.Since(start))
			return entry.Value, true
		}
		m.evictMemory(key, entry)
	}

	value, _, _ := m.sf.Do(key, func() (any, error) {
		return m.loadDurable(key, now), nil
	})
	loaded, _ := value.(*types.Entry)

	// callers sharing one durable read check the entry against their own clock
	if loaded != nil && !loaded.ValidAt(m.clock.Now()) {
		m.evictMemory(key, loaded)
		loaded = nil
	}
	if loaded == nil {
		m.logger.LogCacheOperation("get", key, false, time.Since(start))
		return nil, false
	}
	m.logger.LogCacheOperation("get", key, true, time.Since(start))
	return loaded.Value, true
}

// evictMemory deletes key only if it still holds the entry that was observed
// stale, so a concurrent Set is never undone.
func (m *Manager) evictMemory(key string, observed *types.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.memory[key]; ok && current == observed {
		delete(m.memory, key)
	}
}

func (m *Manager) loadDurable(key string, now time.Time) *types.Entry {
	record, ok, err := m.durable.Read(durableKey(key))
	if err != nil {
		m.logger.Cache().Warn("Durable tier read failed", "key", key, "error", err.Error())
		return nil
	}
	if !ok {
		return nil
	}

	entry, err := types.ParseEntry(record)
	if err != nil {
		m.logger.Cache().Warn("Malformed durable cache record, deleting", "key", key, "error", err.Error())
		m.deleteDurable(key)
		return nil
	}
	if !entry.ValidAt(now) {
		m.deleteDurable(key)
		return nil
	}

	m.mu.Lock()
	m.memory[key] = entry
	m.mu.Unlock()

	return entry
}

func (m *Manager) deleteDurable(key string) {
	if err := m.durable.Delete(durableKey(key)); err != nil {
		m.logger.Cache().Warn("Durable tier delete failed", "key", key, "error", err.Error())
	}
}

// Remove deletes key from both tiers.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	delete(m.memory, key)
	m.mu.Unlock()

	m.deleteDurable(key)
}

// Clear empties the memory tier and deletes every cache-owned durable record.
// Durable records outside the cache namespace are left alone.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.memory = make(map[string]*types.Entry)
	m.mu.Unlock()

	keys, err := m.durable.Keys()
	if err != nil {
		m.logger.Cache().Warn("Durable tier listing failed during clear", "error", err.Error())
		return
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, DurablePrefix) {
			continue
		}
		if err := m.durable.Delete(k); err != nil {
			m.logger.Cache().Warn("Durable tier delete failed during clear", "key", k, "error", err.Error())
		}
	}
	m.logger.Cache().Info("Cache cleared")
}

// Cleanup sweeps both tiers and deletes every entry that is no longer valid.
func (m *Manager) Cleanup() int {
	now := m.clock.Now()
	removed := 0

	m.mu.Lock()
	for key, entry := range m.memory {
		if !entry.ValidAt(now) {
			delete(m.memory, key)
			removed++
		}
	}
	m.mu.Unlock()

	keys, err := m.durable.Keys()
	if err != nil {
		m.logger.Cache().Warn("Durable tier listing failed during cleanup", "error", err.Error())
		return removed
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, DurablePrefix) {
			continue
		}
		record, ok, err := m.durable.Read(k)
		if err != nil || !ok {
			continue
		}
		entry, err := types.ParseEntry(record)
		if err == nil && entry.ValidAt(now) {
			continue
		}
		if err := m.durable.Delete(k); err != nil {
			m.logger.Cache().Warn("Durable tier delete failed during cleanup", "key", k, "error", err.Error())
			continue
		}
		removed++
	}

	return removed
}

// Stats counts the entries currently held by each tier.
func (m *Manager) Stats() types.Stats {
	m.mu.RLock()
	stats := types.Stats{MemoryItems: len(m.memory)}
	m.mu.RUnlock()

	keys, err := m.durable.Keys()
	if err != nil {
		m.logger.Cache().Warn("Durable tier listing failed during stats", "error", err.Error())
		return stats
	}
	for _, k := range keys {
		if strings.HasPrefix(k, DurablePrefix) {
			stats.DurableItems++
		}
	}
	return stats
}
