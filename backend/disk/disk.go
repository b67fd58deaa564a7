// Package disk implements the durable single-process backend. Each entry is
// a pair of files under the cache directory: a content file holding the
// encoded value (JSON, with a CBOR fallback for values JSON rejects) and a
// metadata file recording the original key, creation time, TTL and expiry.
// The content filename is a hash of the key, so the metadata file is the
// only place the original key survives; reads always consult metadata first.
//
// Ordering between the two files under concurrent writers to the same key is
// best-effort only. This is a documented, weaker guarantee than the other
// backends offer.
package disk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/unkn0wn-root/apicache/backend"
	"github.com/unkn0wn-root/apicache/codec"
	"github.com/unkn0wn-root/apicache/internal/match"
	"github.com/unkn0wn-root/apicache/internal/util"
)

const (
	contentExt = ".cache"
	metaExt    = ".meta"
)

// metadata mirrors one entry's bookkeeping. ExpiresAt is nil for entries
// without time-based expiry.
type metadata struct {
	Key        string     `json:"key"`
	CreatedAt  time.Time  `json:"created_at"`
	TTLSeconds int64      `json:"ttl_seconds"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func (m *metadata) expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

type Backend struct {
	dir   string
	codec codec.Fallback
}

var _ backend.Backend = (*Backend)(nil)

type Config struct {
	// Dir is the cache directory; created if missing.
	Dir string
	// Codec overrides the value encoding; zero value means codec.ForDisk().
	Codec codec.Fallback
}

func New(cfg Config) (*Backend, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: disk: cache directory is required", backend.ErrUnavailable)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: disk: %v", backend.ErrUnavailable, err)
	}
	// Probe writability now so failure surfaces at construction, where the
	// manager can fall back, instead of on the first Set.
	probe := filepath.Join(cfg.Dir, ".probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return nil, fmt.Errorf("%w: disk: %v", backend.ErrUnavailable, err)
	}
	_ = os.Remove(probe)

	c := cfg.Codec
	if c.Primary == nil {
		c = codec.ForDisk()
	}
	return &Backend{dir: cfg.Dir, codec: c}, nil
}

func (b *Backend) Get(_ context.Context, key string) (any, bool, error) {
	meta, metaPath, ok, err := b.readMeta(key)
	if err != nil || !ok {
		return nil, false, err
	}
	if meta.expired(time.Now()) {
		b.removePair(metaPath)
		return nil, false, nil
	}

	raw, err := os.ReadFile(contentPath(metaPath))
	if err != nil {
		// Metadata without content: heal by dropping the orphan.
		b.removePair(metaPath)
		return nil, false, nil
	}
	v, err := b.codec.Unmarshal(raw)
	if err != nil {
		b.removePair(metaPath)
		return nil, false, nil
	}
	return v, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := b.codec.Marshal(value)
	if err != nil {
		return err
	}

	now := time.Now()
	meta := metadata{Key: key, CreatedAt: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		meta.TTLSeconds = int64(ttl / time.Second)
		meta.ExpiresAt = &exp
	}
	metaRaw, err := json.Marshal(&meta)
	if err != nil {
		return err
	}

	metaPath := b.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return err
	}
	// Content first, metadata second: a reader trusts content only after
	// metadata exists. Ordering across the two files is still best-effort
	// under concurrent writers to the same key.
	if err := os.WriteFile(contentPath(metaPath), raw, 0o644); err != nil {
		return err
	}
	return os.WriteFile(metaPath, metaRaw, 0o644)
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.removePair(b.pathFor(key))
	return nil
}

func (b *Backend) Clear(_ context.Context) error {
	shards, err := os.ReadDir(b.dir)
	if err != nil {
		return err
	}
	for _, s := range shards {
		if s.IsDir() {
			if err := os.RemoveAll(filepath.Join(b.dir, s.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Backend) Exists(_ context.Context, key string) (bool, error) {
	meta, metaPath, ok, err := b.readMeta(key)
	if err != nil || !ok {
		return false, err
	}
	if meta.expired(time.Now()) {
		b.removePair(metaPath)
		return false, nil
	}
	return true, nil
}

func (b *Backend) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()
	var out []string
	err := b.walkMeta(func(metaPath string, meta *metadata) {
		if meta.expired(now) {
			b.removePair(metaPath)
			return
		}
		if match.Key(meta.Key, pattern) {
			out = append(out, meta.Key)
		}
	})
	return out, err
}

func (b *Backend) CleanupExpired(_ context.Context) (int, error) {
	now := time.Now()
	removed := 0
	err := b.walkMeta(func(metaPath string, meta *metadata) {
		if meta.expired(now) {
			b.removePair(metaPath)
			removed++
		}
	})
	return removed, err
}

func (b *Backend) Close(_ context.Context) error { return nil }

// pathFor returns the metadata path for key. Entries shard into
// two-hex-char subdirectories to keep directory fan-out flat.
func (b *Backend) pathFor(key string) string {
	h := util.FileKey(key)
	return filepath.Join(b.dir, h[:2], h+metaExt)
}

func contentPath(metaPath string) string {
	return strings.TrimSuffix(metaPath, metaExt) + contentExt
}

func (b *Backend) readMeta(key string) (*metadata, string, bool, error) {
	metaPath := b.pathFor(key)
	raw, err := os.ReadFile(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		b.removePair(metaPath)
		return nil, "", false, nil
	}
	return &meta, metaPath, true, nil
}

// removePair deletes both files of an entry and opportunistically prunes
// the shard directory; os.Remove on a non-empty directory simply fails.
func (b *Backend) removePair(metaPath string) {
	_ = os.Remove(contentPath(metaPath))
	_ = os.Remove(metaPath)
	_ = os.Remove(filepath.Dir(metaPath))
}

func (b *Backend) walkMeta(fn func(metaPath string, meta *metadata)) error {
	return filepath.WalkDir(b.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A shard pruned mid-walk is not a failure.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, metaExt) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var meta metadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			b.removePair(path)
			return nil
		}
		fn(path, &meta)
		return nil
	})
}
