// Package storage provides the durable per-origin storage area used as the
// second tier of the behavior cache.
package storage

import "errors"

var (
	// ErrQuotaExceeded is returned when a write would exceed the storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrUnavailable is returned when the storage area is disabled or closed.
	ErrUnavailable = errors.New("storage unavailable")
)

// Port is a string-keyed storage area. Implementations must be safe for
// concurrent use.
type Port interface {
	// Read returns the value stored under key and whether it exists.
	Read(key string) (string, bool, error)
	// Write stores value under key, replacing any previous value.
	Write(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Keys lists every stored key.
	Keys() ([]string, error)
}
