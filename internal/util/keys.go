package util

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// FileKey returns a stable filesystem-safe name for a cache key: the first
// 32 hex chars of its SHA-256. Collision resistance matters here because the
// name is the file's identity on disk.
func FileKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum)[:32]
}

// Fingerprint hashes an arbitrary value to a short stable token for use
// inside cache keys. The value is reduced to canonical JSON first
// (encoding/json sorts map keys), so logically equal values fingerprint
// identically regardless of construction order.
func Fingerprint(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Unencodable values still need a deterministic token.
		b = []byte(fmt.Sprintf("%T:%v", v, v))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
