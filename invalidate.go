package apicache

import (
	"context"
)

// InvalidateSpec configures the invalidation decorator for one mutating
// operation. Patterns and Chain may be combined; all resolved patterns are
// invalidated in order.
type InvalidateSpec struct {
	// Patterns are literal patterns or templates with {param} placeholders
	// filled from the call's scalar parameters. A placeholder without a
	// matching parameter widens to "*".
	Patterns []string

	// Chain names a registered invalidation chain on the Manager's Strategy.
	Chain string

	// Hierarchical expands each resolved pattern through the hierarchy.
	Hierarchical bool

	// When rejects invalidation for individual calls, evaluated over the
	// arguments and the (untyped) result. The default invalidates unless
	// the result is error-shaped. A panicking predicate takes the safer
	// branch: invalidate.
	When func(params Params, result any) bool
}

// Invalidating wraps a mutating operation: the operation always runs first
// and its result is always returned, whatever happens afterwards. On
// success (and unless When rejects), the spec's patterns are resolved and
// invalidated; invalidation failures are logged and swallowed.
func Invalidating[R any](m *Manager, spec InvalidateSpec, op Operation[R]) Operation[R] {
	return func(ctx context.Context, params Params) (R, error) {
		result, err := op(ctx, params)
		if err != nil {
			return result, err
		}
		if !shouldInvalidate(m, spec, params, result) {
			return result, nil
		}

		vars := scalarVars(params)
		patterns := make([]string, 0, len(spec.Patterns))
		for _, p := range spec.Patterns {
			patterns = append(patterns, fillTemplate(p, vars))
		}
		if spec.Chain != "" {
			patterns = append(patterns, m.strategy.Chain(spec.Chain, vars)...)
		}

		seen := make(map[string]struct{}, len(patterns))
		for _, p := range patterns {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			m.Invalidate(ctx, p, spec.Hierarchical)
		}
		return result, nil
	}
}

func shouldInvalidate[R any](m *Manager, spec InvalidateSpec, params Params, result R) (inv bool) {
	if spec.When == nil {
		return !IsErrorShaped(result)
	}
	// Over-invalidation is safe; a broken predicate must not block it.
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("invalidation predicate panicked, invalidating", Fields{"panic": r})
			inv = true
		}
	}()
	return spec.When(params, any(result))
}

// scalarVars renders the scalar parameters of a call for template
// substitution; non-scalar values are skipped rather than hashed, since a
// hash fragment in an invalidation pattern would match nothing readable.
func scalarVars(params Params) map[string]string {
	out := make(map[string]string, len(params))
	for name, v := range params {
		switch v.(type) {
		case nil, string, bool, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, float32, float64:
			out[name] = renderParam(v)
		}
	}
	return out
}
