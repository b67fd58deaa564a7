// Package redis implements the remote backend: a pooled connection to a
// shared Redis instance, the only backend whose entries are visible across
// processes. TTL is delegated to Redis' native expiry and enumeration uses
// incremental SCAN, never the blocking KEYS command.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/apicache/backend"
	"github.com/unkn0wn-root/apicache/codec"
	"github.com/unkn0wn-root/apicache/internal/match"
)

// DefaultNamespace prefixes every key this backend writes so Clear never
// touches foreign data in a shared instance.
const DefaultNamespace = "apicache:"

const dialProbeTimeout = 3 * time.Second

type Backend struct {
	rdb         goredis.UniversalClient
	ns          string
	codec       codec.Fallback
	closeClient bool
}

var _ backend.Backend = (*Backend)(nil)

type Config struct {
	// URL is a redis connection string (redis://host:port/db). Ignored when
	// Client is set.
	URL string
	// Client supplies an externally owned client.
	Client goredis.UniversalClient
	// CloseClient releases the client on Close. Set only when this backend
	// exclusively owns it (always true for URL-constructed clients).
	CloseClient bool
	// Namespace overrides DefaultNamespace.
	Namespace string
	// Codec overrides the value encoding; zero value means codec.ForRemote().
	Codec codec.Fallback
}

// New connects and probes the server. An unreachable service is reported as
// backend.ErrUnavailable so the caller can fall back instead of aborting.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	rdb := cfg.Client
	closeClient := cfg.CloseClient
	if rdb == nil {
		if cfg.URL == "" {
			return nil, fmt.Errorf("%w: redis: connection string is required", backend.ErrUnavailable)
		}
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: redis: %v", backend.ErrUnavailable, err)
		}
		rdb = goredis.NewClient(opts)
		closeClient = true
	}

	probeCtx, cancel := context.WithTimeout(ctx, dialProbeTimeout)
	defer cancel()
	if err := rdb.Ping(probeCtx).Err(); err != nil {
		if closeClient {
			_ = rdb.Close()
		}
		return nil, fmt.Errorf("%w: redis: %v", backend.ErrUnavailable, err)
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	c := cfg.Codec
	if c.Primary == nil {
		c = codec.ForRemote()
	}
	return &Backend{rdb: rdb, ns: ns, codec: c, closeClient: closeClient}, nil
}

func (b *Backend) Get(ctx context.Context, key string) (any, bool, error) {
	raw, err := b.rdb.Get(ctx, b.ns+key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := b.codec.Unmarshal(raw)
	if err != nil {
		// self-heal corrupt
		_ = b.rdb.Del(ctx, b.ns+key).Err()
		return nil, false, nil
	}
	return v, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := b.codec.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = 0 // no expiry per backend contract
	}
	return b.rdb.Set(ctx, b.ns+key, raw, ttl).Err()
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, b.ns+key).Err()
}

func (b *Backend) Clear(ctx context.Context) error {
	// Scoped to the namespace; never FLUSHDB on a shared instance.
	iter := b.rdb.Scan(ctx, 0, b.ns+"*", 256).Iterator()
	for iter.Next(ctx) {
		if err := b.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.rdb.Exists(ctx, b.ns+key).Result()
	return n > 0, err
}

// Keys scans the namespace incrementally and applies the shared grammar
// client-side; Redis' own glob rules differ from ours on edge patterns.
func (b *Backend) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := b.rdb.Scan(ctx, 0, b.ns+"*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), b.ns))
	}
	return match.Filter(keys, pattern), iter.Err()
}

// CleanupExpired is a no-op: Redis expires entries natively.
func (b *Backend) CleanupExpired(context.Context) (int, error) { return 0, nil }

// Close releases the underlying client only when this backend owns it.
// Repeated calls become no-ops.
func (b *Backend) Close(context.Context) error {
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
