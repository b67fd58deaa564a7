package apicache

import (
	"context"
	"encoding/json"
	"time"
)

// Operation is a wrapped callable: named parameters in, a result or an
// error out. The cache is indifferent to how the operation obtains its
// result.
type Operation[R any] func(ctx context.Context, params Params) (R, error)

// CachedSpec configures the caching decorator for one read operation.
type CachedSpec[R any] struct {
	// Domain and Operation form the stable identity of the wrapped call.
	Domain    string
	Operation string

	// TTL pins the entry lifetime. Precedence: TTL > TTLFunc > per-endpoint
	// config > global default.
	TTL time.Duration
	// TTLFunc derives the lifetime from the call's arguments and result.
	TTLFunc func(params Params, result R) time.Duration

	// StoreIf rejects individual results from being cached. The default
	// stores everything except error-shaped results. If the predicate
	// panics the result is cached anyway (the safer branch).
	StoreIf func(params Params, result R) bool

	// Include/Exclude filter which parameters participate in the key.
	// Include wins when both are set.
	Include []string
	Exclude []string
}

// Cached wraps a read operation with lookup-before/store-after behavior.
// The wrapped operation keeps the identical contract. A cache failure at
// any point degrades to calling the operation; it never suppresses or
// replaces the operation's real result.
func Cached[R any](m *Manager, spec CachedSpec[R], op Operation[R]) Operation[R] {
	endpoint := EndpointID(spec.Domain, spec.Operation)

	return func(ctx context.Context, params Params) (R, error) {
		key := BuildKey(spec.Domain, spec.Operation, filterParams(params, spec.Include, spec.Exclude))

		if m.Enabled() {
			cached, ok, elapsed := m.lookup(ctx, key)
			if ok {
				if r, converted := coerce[R](cached); converted {
					m.metrics.RecordHit(endpoint, elapsed)
					return r, nil
				}
				// Stored shape no longer converts to R (codec round-trip
				// drift or a colliding writer). A hit the caller cannot use
				// is a miss: drop it and fall through to the call.
				ok = false
				m.Delete(ctx, key, endpoint)
			}
			if !ok {
				m.metrics.RecordMiss(endpoint, elapsed)
			}
		}

		start := time.Now()
		result, err := op(ctx, params)
		m.metrics.RecordAPICall(endpoint, time.Since(start))
		if err != nil {
			return result, err
		}

		if shouldStore(m, spec, params, result) {
			m.Set(ctx, key, result, resolveTTL(m, spec, params, result), endpoint)
		}
		return result, nil
	}
}

func shouldStore[R any](m *Manager, spec CachedSpec[R], params Params, result R) (store bool) {
	if spec.StoreIf == nil {
		return !IsErrorShaped(result)
	}
	// A failing predicate takes the safer branch: cache the result.
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("store predicate panicked, caching result", Fields{"panic": r})
			store = true
		}
	}()
	return spec.StoreIf(params, result)
}

func resolveTTL[R any](m *Manager, spec CachedSpec[R], params Params, result R) time.Duration {
	if spec.TTL != 0 {
		return spec.TTL
	}
	if spec.TTLFunc != nil {
		if ttl := safeTTLFunc(m, spec.TTLFunc, params, result); ttl != 0 {
			return ttl
		}
	}
	return m.cfg.EndpointTTL(spec.Domain, spec.Operation)
}

func safeTTLFunc[R any](m *Manager, fn func(Params, R) time.Duration, params Params, result R) (ttl time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("ttl func panicked, using configured TTL", Fields{"panic": r})
			ttl = 0
		}
	}()
	return fn(params, result)
}

// IsErrorShaped recognizes the conventional error value of a wrapped
// service: a map with a well-known "error" field, or a one-element list
// wrapping that same map (the list-returning operation convention).
func IsErrorShaped(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		_, ok := t["error"]
		return ok
	case []any:
		return len(t) == 1 && IsErrorShaped(t[0])
	case []map[string]any:
		if len(t) != 1 {
			return false
		}
		_, ok := t[0]["error"]
		return ok
	}
	return false
}

// coerce converts a cached value back to R. In-process entries assert
// directly; entries that round-tripped through a serializing backend come
// back as generic JSON shapes and are re-marshaled into R.
func coerce[R any](v any) (R, bool) {
	if r, ok := v.(R); ok {
		return r, true
	}
	var r R
	b, err := json.Marshal(v)
	if err != nil {
		return r, false
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, false
	}
	return r, true
}
