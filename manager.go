package apicache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/apicache/backend"
	"github.com/unkn0wn-root/apicache/backend/bigcache"
	"github.com/unkn0wn-root/apicache/backend/disk"
	"github.com/unkn0wn-root/apicache/backend/memory"
	"github.com/unkn0wn-root/apicache/backend/redis"
	"github.com/unkn0wn-root/apicache/config"
	"github.com/unkn0wn-root/apicache/metrics"
)

// Health classifications reported by Stats.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// Health thresholds: a hit rate this low over enough lookups, or a bounded
// backend this full, classifies the cache as degraded.
const (
	healthMinLookups     = 50
	healthMinHitRate     = 0.2
	healthMaxUtilization = 0.95
)

// BackendBuilder constructs a named backend from configuration.
type BackendBuilder func(ctx context.Context, cfg *config.Config, log Logger) (backend.Backend, error)

// Options tune the Manager. All fields are optional.
type Options struct {
	Logger   Logger              // nil => NopLogger
	Metrics  *metrics.Collector  // nil => fresh collector
	Strategy *Strategy           // nil => empty strategy
	Backends map[string]BackendBuilder // extra or overriding builders, keyed by name
}

// Manager owns exactly one lazily-built backend and exposes a
// backend-agnostic surface. Every backend failure is caught here, logged,
// and converted to a safe default: absent-as-miss for reads, silent no-op
// for writes. Callers never see a cache error.
type Manager struct {
	cfg      *config.Config
	log      Logger
	metrics  *metrics.Collector
	strategy *Strategy
	builders map[string]BackendBuilder

	// mu guards lazy construction only; it is never held across a backend
	// call, so one slow key cannot serialize unrelated keys.
	mu     sync.Mutex
	be     backend.Backend
	beName string
}

// New builds a Manager. Construction never touches the configured backend;
// that happens on first use so caching can never block process startup.
func New(cfg *config.Config, opts Options) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Manager{
		cfg:      cfg,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		strategy: opts.Strategy,
	}
	if m.strategy == nil {
		m.strategy = NewStrategy()
	}
	m.metrics = opts.Metrics
	if m.metrics == nil {
		m.metrics = metrics.NewCollector()
	}

	m.builders = map[string]BackendBuilder{
		config.BackendMemory: func(_ context.Context, cfg *config.Config, _ Logger) (backend.Backend, error) {
			return memory.New(memory.Config{MaxEntries: cfg.MaxEntries}), nil
		},
		config.BackendDisk: func(_ context.Context, cfg *config.Config, _ Logger) (backend.Backend, error) {
			return disk.New(disk.Config{Dir: cfg.CacheDirectory})
		},
		config.BackendRedis: func(ctx context.Context, cfg *config.Config, _ Logger) (backend.Backend, error) {
			return redis.New(ctx, redis.Config{URL: cfg.ConnectionString})
		},
		config.BackendBigcache: func(_ context.Context, cfg *config.Config, _ Logger) (backend.Backend, error) {
			return bigcache.New(bigcache.Config{LifeWindow: cfg.DefaultTTL()})
		},
	}
	for name, b := range opts.Backends {
		m.builders[name] = b
	}
	return m
}

func (m *Manager) Enabled() bool { return m.cfg.Enabled }

// Metrics exposes the collector for decorators and introspection.
func (m *Manager) Metrics() *metrics.Collector { return m.metrics }

// Strategy exposes the invalidation strategy for registration.
func (m *Manager) Strategy() *Strategy { return m.strategy }

// Config exposes the effective configuration (read-only by convention).
func (m *Manager) Config() *config.Config { return m.cfg }

// backendLazy returns the single backend, building it on first use. A
// non-memory backend that fails to construct is logged and replaced by the
// in-process backend; construction failure is never fatal.
//
// Construction runs outside the state lock: building redis pings the server
// and a slow probe must not serialize unrelated calls. Concurrent first uses
// may race; the first build stored wins and losers close their duplicate.
func (m *Manager) backendLazy(ctx context.Context) backend.Backend {
	m.mu.Lock()
	be := m.be
	m.mu.Unlock()
	if be != nil {
		return be
	}

	name := m.cfg.Backend
	build, ok := m.builders[name]
	if !ok {
		m.log.Warn("unknown cache backend, falling back to memory", Fields{"backend": name})
		name = config.BackendMemory
		build = m.builders[name]
	}

	built, err := build(ctx, m.cfg, m.log)
	if err != nil {
		m.log.Warn("cache backend unavailable, falling back to memory",
			Fields{"backend": name, "err": err})
		name = config.BackendMemory
		built, _ = m.builders[name](ctx, m.cfg, m.log)
	}

	m.mu.Lock()
	if m.be != nil {
		winner := m.be
		m.mu.Unlock()
		_ = built.Close(ctx)
		return winner
	}
	m.be = built
	m.beName = name
	m.mu.Unlock()

	m.log.Info("cache backend ready", Fields{"backend": name})
	return built
}

// BackendName reports the selected backend: the configured name before
// first use, the actually-built one after.
func (m *Manager) BackendName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beName != "" {
		return m.beName
	}
	return m.cfg.Backend
}

// lookup is Get without outcome recording. The caching decorator validates
// the stored shape before deciding whether the read counts as a hit, so it
// records on its own. Backend errors degrade to a miss.
func (m *Manager) lookup(ctx context.Context, key string) (any, bool, time.Duration) {
	be := m.backendLazy(ctx)

	start := time.Now()
	v, ok, err := be.Get(ctx, key)
	elapsed := time.Since(start)
	if err != nil {
		m.log.Warn("cache get failed", Fields{"key": key, "err": err})
		return nil, false, elapsed
	}
	return v, ok, elapsed
}

// Get looks up key, recording a latency-tagged hit or miss under endpoint
// (may be empty). Backend errors degrade to a miss.
func (m *Manager) Get(ctx context.Context, key, endpoint string) (any, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}
	v, ok, elapsed := m.lookup(ctx, key)
	if ok {
		m.metrics.RecordHit(endpoint, elapsed)
	} else {
		m.metrics.RecordMiss(endpoint, elapsed)
	}
	return v, ok
}

// Set stores value under key. ttl <= 0 means no time-based expiry. Backend
// errors degrade to a silent no-op.
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration, endpoint string) {
	if !m.cfg.Enabled {
		return
	}
	be := m.backendLazy(ctx)
	if err := be.Set(ctx, key, value, ttl); err != nil {
		m.log.Warn("cache set failed", Fields{"key": key, "err": err})
		return
	}
	m.metrics.RecordSet(endpoint)
}

// Delete removes key; absent keys and backend errors are both no-ops.
func (m *Manager) Delete(ctx context.Context, key, endpoint string) {
	if !m.cfg.Enabled {
		return
	}
	if err := m.backendLazy(ctx).Delete(ctx, key); err != nil {
		m.log.Warn("cache delete failed", Fields{"key": key, "err": err})
		return
	}
	m.metrics.RecordDelete(endpoint)
}

// Exists reports whether key holds a live entry; errors degrade to false.
func (m *Manager) Exists(ctx context.Context, key string) bool {
	if !m.cfg.Enabled {
		return false
	}
	ok, err := m.backendLazy(ctx).Exists(ctx, key)
	if err != nil {
		m.log.Warn("cache exists failed", Fields{"key": key, "err": err})
		return false
	}
	return ok
}

// Clear drops every entry; errors are logged and swallowed.
func (m *Manager) Clear(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}
	if err := m.backendLazy(ctx).Clear(ctx); err != nil {
		m.log.Warn("cache clear failed", Fields{"err": err})
	}
}

// CleanupExpired runs one proactive expiry sweep.
func (m *Manager) CleanupExpired(ctx context.Context) int {
	if !m.cfg.Enabled {
		return 0
	}
	n, err := m.backendLazy(ctx).CleanupExpired(ctx)
	if err != nil {
		m.log.Warn("cache cleanup failed", Fields{"err": err})
		return 0
	}
	return n
}

// InvalidationResult describes one Invalidate call.
type InvalidationResult struct {
	Pattern          string
	ExpandedPatterns []string
	RemovedCount     int
	RemovedKeys      []string
}

// Invalidate removes every key matching pattern. With hierarchical set the
// pattern expands through the Strategy's declared hierarchy first; the key
// union across all expanded patterns is removed once. Backend errors shrink
// the result, never surface.
func (m *Manager) Invalidate(ctx context.Context, pattern string, hierarchical bool) InvalidationResult {
	res := InvalidationResult{Pattern: pattern, ExpandedPatterns: []string{pattern}}
	if !m.cfg.Enabled {
		return res
	}
	if hierarchical {
		res.ExpandedPatterns = m.strategy.ExpandPattern(pattern)
	}

	be := m.backendLazy(ctx)
	seen := make(map[string]struct{})
	byEndpoint := make(map[string]int)
	for _, p := range res.ExpandedPatterns {
		keys, err := be.Keys(ctx, p)
		if err != nil {
			m.log.Warn("cache key enumeration failed", Fields{"pattern": p, "err": err})
			continue
		}
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if err := be.Delete(ctx, k); err != nil {
				m.log.Warn("cache invalidation delete failed", Fields{"key": k, "err": err})
				continue
			}
			res.RemovedKeys = append(res.RemovedKeys, k)
			if ep := endpointOfKey(k); ep != "" {
				byEndpoint[ep]++
			}
		}
	}
	res.RemovedCount = len(res.RemovedKeys)
	m.metrics.RecordInvalidation(res.RemovedCount, byEndpoint)
	m.log.Debug("invalidated pattern", Fields{
		"pattern":  pattern,
		"expanded": len(res.ExpandedPatterns),
		"removed":  res.RemovedCount,
	})
	return res
}

// endpointOfKey recovers the metrics bucket from a cache key's first two
// segments. Keys not shaped by BuildKey count globally only.
func endpointOfKey(key string) string {
	i := strings.IndexByte(key, ':')
	if i < 0 {
		return ""
	}
	j := strings.IndexByte(key[i+1:], ':')
	if j < 0 {
		return key
	}
	return key[:i+1+j]
}

// Close releases the backend if one was built.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	be := m.be
	m.be = nil
	m.mu.Unlock()
	if be != nil {
		return be.Close(ctx)
	}
	return nil
}

// Stats is the runtime introspection surface.
type Stats struct {
	Enabled bool
	Backend string
	Health  string
	// Utilization is live entries over capacity for bounded backends,
	// -1 when the backend does not report size.
	Utilization float64
	Metrics     metrics.Snapshot
}

// Stats classifies health from hit rate and, where the backend reports it,
// capacity utilization.
func (m *Manager) Stats() Stats {
	s := Stats{
		Enabled:     m.cfg.Enabled,
		Backend:     m.BackendName(),
		Health:      HealthHealthy,
		Utilization: -1,
		Metrics:     m.metrics.Snapshot(),
	}

	m.mu.Lock()
	be := m.be
	m.mu.Unlock()
	if sz, ok := be.(backend.Sizer); ok && sz.Capacity() > 0 {
		s.Utilization = float64(sz.Len()) / float64(sz.Capacity())
	}

	lookups := s.Metrics.Hits + s.Metrics.Misses
	if lookups >= healthMinLookups && s.Metrics.HitRate < healthMinHitRate {
		s.Health = HealthDegraded
	}
	if s.Utilization >= healthMaxUtilization {
		s.Health = HealthDegraded
	}
	return s
}
