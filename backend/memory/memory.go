// Package memory implements the in-process backend: fastest, not durable,
// visible to one process only. It is also the fallback every other backend
// degrades to when construction fails.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/apicache/backend"
	"github.com/unkn0wn-root/apicache/internal/match"
)

// DefaultMaxEntries bounds the store when Config.MaxEntries is unset.
const DefaultMaxEntries = 1000

type entry struct {
	key       string
	value     any
	expiresAt time.Time // zero => never expires
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Backend keeps entries in one map guarded by a single mutex, with a
// linked list tracking insertion order. On overflow the earliest-inserted
// surviving key is evicted (insertion-order approximation of LRU;
// overwriting a key keeps its original position).
type Backend struct {
	mu      sync.Mutex
	byKey   map[string]*list.Element
	order   *list.List // of *entry; front = earliest inserted
	maxSize int

	ticker    *time.Ticker
	stopCh    chan struct{}
	sweepWg   sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ backend.Backend = (*Backend)(nil)
	_ backend.Sizer   = (*Backend)(nil)
)

type Config struct {
	// MaxEntries caps the number of live entries; <= 0 uses DefaultMaxEntries.
	MaxEntries int
	// SweepInterval enables a background expiry sweep when > 0. Correctness
	// never depends on it; expired entries are dropped lazily on access.
	SweepInterval time.Duration
}

func New(cfg Config) *Backend {
	b := &Backend{
		byKey:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxEntries,
	}
	if b.maxSize <= 0 {
		b.maxSize = DefaultMaxEntries
	}
	if cfg.SweepInterval > 0 {
		b.ticker = time.NewTicker(cfg.SweepInterval)
		b.stopCh = make(chan struct{})
		b.sweepWg.Add(1)
		go b.sweepLoop()
	}
	return b
}

func (b *Backend) sweepLoop() {
	defer b.sweepWg.Done()
	for {
		select {
		case <-b.ticker.C:
			_, _ = b.CleanupExpired(context.Background())
		case <-b.stopCh:
			return
		}
	}
}

func (b *Backend) Get(_ context.Context, key string) (any, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	el, ok := b.byKey[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*entry)
	if e.expired(time.Now()) {
		b.removeLocked(el)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if el, ok := b.byKey[key]; ok {
		// Overwrite in place; insertion position is preserved.
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = exp
		return nil
	}

	// Make room: expired entries go first, then the earliest-inserted key.
	if len(b.byKey) >= b.maxSize {
		b.purgeExpiredLocked(time.Now())
	}
	for len(b.byKey) >= b.maxSize {
		front := b.order.Front()
		if front == nil {
			break
		}
		b.removeLocked(front)
	}

	el := b.order.PushBack(&entry{key: key, value: value, expiresAt: exp})
	b.byKey[key] = el
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if el, ok := b.byKey[key]; ok {
		b.removeLocked(el)
	}
	return nil
}

func (b *Backend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byKey = make(map[string]*list.Element)
	b.order.Init()
	return nil
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *Backend) Keys(_ context.Context, pattern string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var out []string
	for el := b.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if e.expired(now) {
			b.removeLocked(el)
		} else if match.Key(e.key, pattern) {
			out = append(out, e.key)
		}
		el = next
	}
	return out, nil
}

func (b *Backend) CleanupExpired(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.purgeExpiredLocked(time.Now()), nil
}

func (b *Backend) Close(_ context.Context) error {
	b.closeOnce.Do(func() {
		if b.stopCh != nil {
			close(b.stopCh)
			b.ticker.Stop()
			b.sweepWg.Wait()
		}
	})
	return nil
}

// Len reports the current entry count.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byKey)
}

// Capacity reports the configured entry bound.
func (b *Backend) Capacity() int { return b.maxSize }

func (b *Backend) removeLocked(el *list.Element) {
	e := b.order.Remove(el).(*entry)
	delete(b.byKey, e.key)
}

func (b *Backend) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for el := b.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry).expired(now) {
			b.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}
