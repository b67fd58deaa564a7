// Package backend defines the storage abstraction used by apicache.
//
// A Backend is a key/value store with per-entry TTL and pattern-based key
// enumeration. Implementations must be safe for concurrent use. An entry
// whose TTL has elapsed is indistinguishable from an absent one: Get and
// Exists must treat it as missing and may remove it as a side effect.
//
// The pattern grammar accepted by Keys is identical across implementations
// ("*" matches any substring; see internal/match). Patterns are data values,
// never executed.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by constructors when a backend cannot be built
// (missing dependency, unreachable service, unwritable directory). Callers
// are expected to fall back to the in-process backend, never to abort.
var ErrUnavailable = errors.New("apicache: backend unavailable")

// Backend is the minimal store contract. Every method may block on I/O and
// honors ctx cancellation where the underlying store supports it.
type Backend interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss or
	// expiry. An IO/remote error is (nil, false, err).
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores value under key, overwriting unconditionally. ttl <= 0
	// means no time-based expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this backend.
	Clear(ctx context.Context) error

	// Exists reports whether key holds a live (non-expired) entry.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns all live keys matching pattern. Implementations may
	// lazily evict expired entries while enumerating.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// CleanupExpired proactively removes expired entries, returning how
	// many were dropped. Best-effort; correctness never depends on it.
	CleanupExpired(ctx context.Context) (int, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Sizer is an optional side-interface for bounded backends; the manager
// uses it to derive capacity utilization for health reporting.
type Sizer interface {
	Len() int
	Capacity() int
}
