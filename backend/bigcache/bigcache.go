// Package bigcache adapts allegro/bigcache as an optional in-process byte
// backend for high-throughput workloads. Its contract is deliberately weaker
// than the map backend's: per-entry TTLs are ignored in favor of the cache's
// global life window, and eviction follows bigcache's own policy rather than
// insertion order.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/apicache/backend"
	"github.com/unkn0wn-root/apicache/codec"
	"github.com/unkn0wn-root/apicache/internal/match"
)

// DefaultLifeWindow applies when Config.LifeWindow is unset.
const DefaultLifeWindow = 10 * time.Minute

type Backend struct {
	c     *bc.BigCache
	codec codec.Fallback
}

var _ backend.Backend = (*Backend)(nil)

type Config struct {
	// LifeWindow is the global TTL for every entry; 0 uses DefaultLifeWindow.
	LifeWindow time.Duration
	// CleanWindow is the interval between expired-entry sweeps.
	CleanWindow time.Duration
	// HardMaxCacheSizeMB caps memory; 0 = unlimited.
	HardMaxCacheSizeMB int
	// Codec overrides the value encoding; zero value means codec.ForRemote().
	Codec codec.Fallback
}

func New(cfg Config) (*Backend, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = DefaultLifeWindow
	}
	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, errors.Join(backend.ErrUnavailable, err)
	}
	cd := cfg.Codec
	if cd.Primary == nil {
		cd = codec.ForRemote()
	}
	return &Backend{c: c, codec: cd}, nil
}

func (b *Backend) Get(_ context.Context, key string) (any, bool, error) {
	raw, err := b.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := b.codec.Unmarshal(raw)
	if err != nil {
		_ = b.c.Delete(key) // self-heal
		return nil, false, nil
	}
	return v, true, nil
}

// Set stores value under the cache's global life window; the per-entry ttl
// is accepted for interface compatibility and ignored.
func (b *Backend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := b.codec.Marshal(value)
	if err != nil {
		return err
	}
	return b.c.Set(key, raw)
}

func (b *Backend) Delete(_ context.Context, key string) error {
	err := b.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (b *Backend) Clear(_ context.Context) error { return b.c.Reset() }

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *Backend) Keys(_ context.Context, pattern string) ([]string, error) {
	var keys []string
	it := b.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue // entry evicted mid-iteration
		}
		keys = append(keys, info.Key())
	}
	return match.Filter(keys, pattern), nil
}

// CleanupExpired is a no-op: bigcache sweeps on its own clean window.
func (b *Backend) CleanupExpired(context.Context) (int, error) { return 0, nil }

func (b *Backend) Close(context.Context) error { return b.c.Close() }
