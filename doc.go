// Package apicache is a transparent read-through cache for idempotent
// operations against slow or rate-limited external services. Read operations
// are wrapped with Cached (lookup before, store after); mutating operations
// are wrapped with Invalidating (pattern-based removal after success).
//
// Components:
//   - backend.Backend: swappable storage (in-process map, disk, Redis,
//     bigcache) sharing one pattern grammar for key enumeration.
//   - Manager: owns one lazily-built backend, records metrics, and absorbs
//     every backend failure. Cache trouble degrades to extra latency, never
//     to incorrect results or a crash.
//   - Strategy: static pattern hierarchy plus named invalidation chains for
//     cascading invalidation.
//   - metrics.Collector: hit/miss/write/delete counters, global and per
//     endpoint, with derived hit rate and time saved.
//
// Keys are derived from the operation identity and its named parameters:
//
//	domain:operation:name=value,...   (names sorted, non-scalars hashed)
//
// Availability beats consistency throughout: a backend that fails on every
// call still yields misses and silent no-op writes.
package apicache
