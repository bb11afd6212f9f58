// Package interfaces defines cache operation contracts.
package interfaces

import (
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/types"
)

// Cache is the value cache used by the behavior tracker.
type Cache interface {
	Set(key string, value any, opts ...SetOption) error
	Get(key string, dest any) bool
	Remove(key string)
	Clear()
	Sweeper
}

// Sweeper is the part of a cache the cleanup worker drives.
type Sweeper interface {
	// Cleanup deletes every invalid entry from every tier and returns how many it removed.
	Cleanup() int
	Stats() types.Stats
}

// SetOption adjusts how a value is stored.
type SetOption func(*SetOptions)

// SetOptions are the resolved storage options of one Set call.
type SetOptions struct {
	Expiry     time.Duration // zero selects the cache default
	NoExpiry   bool
	UseMemory  bool
	UseDurable bool
}
