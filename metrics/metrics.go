// Package metrics counts cache traffic globally and per endpoint. One
// collector lives for the process; every mutation takes its single lock.
// Derived figures (hit rate, averages, time saved) are computed on read and
// never stored.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Sort keys accepted by TopEndpoints.
const (
	SortHits      = "hits"
	SortMisses    = "misses"
	SortHitRate   = "hit_rate"
	SortTimeSaved = "time_saved"
)

type counters struct {
	hits, misses, sets, deletes uint64
	invalidated                 uint64 // keys removed by invalidation

	cacheTime    time.Duration // cumulative lookup latency (hits + misses)
	cacheLookups uint64
	apiTime      time.Duration // cumulative underlying-operation latency
	apiCalls     uint64
}

func (c *counters) hitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func (c *counters) avgAPI() time.Duration {
	if c.apiCalls == 0 {
		return 0
	}
	return c.apiTime / time.Duration(c.apiCalls)
}

func (c *counters) avgCache() time.Duration {
	if c.cacheLookups == 0 {
		return 0
	}
	return c.cacheTime / time.Duration(c.cacheLookups)
}

// timeSaved is the latency a hit avoids: average underlying-operation time
// minus average cache-lookup time. Negative values clamp to zero (a cache
// slower than the API saves nothing).
func (c *counters) timeSaved() time.Duration {
	d := c.avgAPI() - c.avgCache()
	if d < 0 {
		return 0
	}
	return d
}

// Collector is the process-wide metrics sink.
type Collector struct {
	mu            sync.Mutex
	global        counters
	invalidations uint64
	removedKeys   uint64
	endpoints     map[string]*counters
}

func NewCollector() *Collector {
	return &Collector{endpoints: make(map[string]*counters)}
}

func (m *Collector) endpoint(id string) *counters {
	c, ok := m.endpoints[id]
	if !ok {
		c = &counters{}
		m.endpoints[id] = c
	}
	return c
}

// RecordHit notes a cache hit and its lookup latency. endpoint may be empty.
func (m *Collector) RecordHit(endpoint string, lookup time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global.hits++
	m.global.cacheTime += lookup
	m.global.cacheLookups++
	if endpoint != "" {
		c := m.endpoint(endpoint)
		c.hits++
		c.cacheTime += lookup
		c.cacheLookups++
	}
}

func (m *Collector) RecordMiss(endpoint string, lookup time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global.misses++
	m.global.cacheTime += lookup
	m.global.cacheLookups++
	if endpoint != "" {
		c := m.endpoint(endpoint)
		c.misses++
		c.cacheTime += lookup
		c.cacheLookups++
	}
}

func (m *Collector) RecordSet(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global.sets++
	if endpoint != "" {
		m.endpoint(endpoint).sets++
	}
}

func (m *Collector) RecordDelete(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global.deletes++
	if endpoint != "" {
		m.endpoint(endpoint).deletes++
	}
}

// RecordInvalidation notes one invalidation call, how many keys it removed,
// and the per-endpoint breakdown of those keys. byEndpoint may be nil.
func (m *Collector) RecordInvalidation(removed int, byEndpoint map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations++
	m.removedKeys += uint64(removed)
	for id, n := range byEndpoint {
		if id != "" {
			m.endpoint(id).invalidated += uint64(n)
		}
	}
}

// RecordAPICall notes one invocation of the wrapped (underlying) operation.
func (m *Collector) RecordAPICall(endpoint string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global.apiTime += elapsed
	m.global.apiCalls++
	if endpoint != "" {
		c := m.endpoint(endpoint)
		c.apiTime += elapsed
		c.apiCalls++
	}
}

// EndpointStats is a read-only view of one endpoint's counters.
type EndpointStats struct {
	Endpoint        string
	Hits            uint64
	Misses          uint64
	Sets            uint64
	Deletes         uint64
	Invalidated     uint64
	APICalls        uint64
	HitRate         float64
	AvgAPILatency   time.Duration
	AvgCacheLatency time.Duration
	TimeSaved       time.Duration
}

// Snapshot is a consistent copy of all counters plus derived figures.
type Snapshot struct {
	Hits            uint64
	Misses          uint64
	Sets            uint64
	Deletes         uint64
	Invalidations   uint64
	RemovedKeys     uint64
	APICalls        uint64
	CacheLookups    uint64
	HitRate         float64
	AvgAPILatency   time.Duration
	AvgCacheLatency time.Duration
	TimeSaved       time.Duration
	Endpoints       map[string]EndpointStats
}

func statsOf(id string, c *counters) EndpointStats {
	return EndpointStats{
		Endpoint:        id,
		Hits:            c.hits,
		Misses:          c.misses,
		Sets:            c.sets,
		Deletes:         c.deletes,
		Invalidated:     c.invalidated,
		APICalls:        c.apiCalls,
		HitRate:         c.hitRate(),
		AvgAPILatency:   c.avgAPI(),
		AvgCacheLatency: c.avgCache(),
		TimeSaved:       c.timeSaved(),
	}
}

func (m *Collector) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Hits:            m.global.hits,
		Misses:          m.global.misses,
		Sets:            m.global.sets,
		Deletes:         m.global.deletes,
		Invalidations:   m.invalidations,
		RemovedKeys:     m.removedKeys,
		APICalls:        m.global.apiCalls,
		CacheLookups:    m.global.cacheLookups,
		HitRate:         m.global.hitRate(),
		AvgAPILatency:   m.global.avgAPI(),
		AvgCacheLatency: m.global.avgCache(),
		TimeSaved:       m.global.timeSaved(),
		Endpoints:       make(map[string]EndpointStats, len(m.endpoints)),
	}
	for id, c := range m.endpoints {
		s.Endpoints[id] = statsOf(id, c)
	}
	return s
}

// TopEndpoints sorts the current endpoint set by sortBy (SortHits if
// unknown) and returns at most limit entries. Endpoint cardinality is
// bounded by the program's own operation set, so a plain sort is fine.
func (m *Collector) TopEndpoints(limit int, sortBy string) []EndpointStats {
	m.mu.Lock()
	out := make([]EndpointStats, 0, len(m.endpoints))
	for id, c := range m.endpoints {
		out = append(out, statsOf(id, c))
	}
	m.mu.Unlock()

	less := func(a, b EndpointStats) bool { return a.Hits > b.Hits }
	switch sortBy {
	case SortMisses:
		less = func(a, b EndpointStats) bool { return a.Misses > b.Misses }
	case SortHitRate:
		less = func(a, b EndpointStats) bool { return a.HitRate > b.HitRate }
	case SortTimeSaved:
		less = func(a, b EndpointStats) bool { return a.TimeSaved > b.TimeSaved }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
