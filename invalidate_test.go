package apicache

import (
	"context"
	"errors"
	"testing"
)

func seedKeys(t *testing.T, m *Manager, keys ...string) {
	t.Helper()
	ctx := context.Background()
	for _, k := range keys {
		m.Set(ctx, k, 1, 0, "")
	}
}

func remaining(t *testing.T, m *Manager) []string {
	t.Helper()
	res := m.Invalidate(context.Background(), "*", false)
	return res.RemovedKeys
}

func TestInvalidatingRemovesExactlyResolvedPatterns(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, Options{})
	seedKeys(t, m,
		"light:status:id=kitchen",
		"light:status:id=kitchen,mode=full",
		"light:status:id=hall",
		"climate:status:id=home",
	)

	mutate := Invalidating(m, InvalidateSpec{
		Patterns: []string{"light:status:id={id}*"},
	}, func(_ context.Context, _ Params) (string, error) { return "done", nil })

	if _, err := mutate(ctx, Params{"id": "kitchen"}); err != nil {
		t.Fatal(err)
	}

	left := remaining(t, m)
	want := map[string]bool{"light:status:id=hall": true, "climate:status:id=home": true}
	if len(left) != 2 {
		t.Fatalf("remaining keys = %v", left)
	}
	for _, k := range left {
		if !want[k] {
			t.Fatalf("unexpected surviving key %q", k)
		}
	}
}

func TestInvalidatingSkipsOnOperationError(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, Options{})
	seedKeys(t, m, "light:status:id=kitchen")

	fail := errors.New("mutation failed")
	mutate := Invalidating(m, InvalidateSpec{Patterns: []string{"light:*"}},
		func(_ context.Context, _ Params) (string, error) { return "", fail })

	if _, err := mutate(ctx, nil); !errors.Is(err, fail) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := m.Get(ctx, "light:status:id=kitchen", ""); !ok {
		t.Fatal("failed mutation must not invalidate")
	}
}

func TestInvalidatingSkipsOnErrorShapedResult(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, Options{})
	seedKeys(t, m, "light:status:id=kitchen")

	mutate := Invalidating(m, InvalidateSpec{Patterns: []string{"light:*"}},
		func(_ context.Context, _ Params) (any, error) {
			return map[string]any{"error": "rejected"}, nil
		})

	if _, err := mutate(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(ctx, "light:status:id=kitchen", ""); !ok {
		t.Fatal("error-shaped mutation result must not invalidate")
	}
}

func TestInvalidatingWhenPredicate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, Options{})
	seedKeys(t, m, "light:status:id=kitchen")

	mutate := Invalidating(m, InvalidateSpec{
		Patterns: []string{"light:*"},
		When:     func(params Params, _ any) bool { return params["commit"] == true },
	}, func(_ context.Context, _ Params) (string, error) { return "ok", nil })

	// predicate rejects: result still returned, nothing invalidated
	if v, err := mutate(ctx, Params{"commit": false}); err != nil || v != "ok" {
		t.Fatalf("mutation result lost: %v, %v", v, err)
	}
	if _, ok := m.Get(ctx, "light:status:id=kitchen", ""); !ok {
		t.Fatal("rejected invalidation still ran")
	}

	if _, err := mutate(ctx, Params{"commit": true}); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(ctx, "light:status:id=kitchen", ""); ok {
		t.Fatal("accepted invalidation did not run")
	}
}

func TestInvalidatingPanickingPredicateInvalidates(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, Options{})
	seedKeys(t, m, "light:status:id=kitchen")

	mutate := Invalidating(m, InvalidateSpec{
		Patterns: []string{"light:*"},
		When:     func(Params, any) bool { panic("broken") },
	}, func(_ context.Context, _ Params) (string, error) { return "ok", nil })

	if v, err := mutate(ctx, nil); err != nil || v != "ok" {
		t.Fatalf("result lost: %v, %v", v, err)
	}
	if _, ok := m.Get(ctx, "light:status:id=kitchen", ""); ok {
		t.Fatal("panicking predicate should take the broader branch and invalidate")
	}
}

func TestInvalidatingChain(t *testing.T) {
	ctx := context.Background()
	strategy := NewStrategy()
	strategy.AddChain("config_changed",
		"light:get:id={id}*",
		"light:list*",
		"dashboard:summary*",
	)
	m := newTestManager(t, nil, Options{Strategy: strategy})
	seedKeys(t, m,
		"light:get:id=kitchen",
		"light:list",
		"dashboard:summary:main",
		"light:get:id=hall",
	)

	mutate := Invalidating(m, InvalidateSpec{Chain: "config_changed"},
		func(_ context.Context, _ Params) (string, error) { return "ok", nil })

	if _, err := mutate(ctx, Params{"id": "kitchen"}); err != nil {
		t.Fatal(err)
	}

	left := remaining(t, m)
	if len(left) != 1 || left[0] != "light:get:id=hall" {
		t.Fatalf("remaining = %v, want only light:get:id=hall", left)
	}
}

func TestInvalidatingMissingTemplateVarWidens(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, Options{})
	seedKeys(t, m, "light:status:id=kitchen", "light:status:id=hall", "climate:x")

	mutate := Invalidating(m, InvalidateSpec{
		Patterns: []string{"light:status:id={id}*"},
	}, func(_ context.Context, _ Params) (string, error) { return "ok", nil })

	// no "id" param: template widens and removes all light:status entries
	if _, err := mutate(ctx, Params{}); err != nil {
		t.Fatal(err)
	}
	left := remaining(t, m)
	if len(left) != 1 || left[0] != "climate:x" {
		t.Fatalf("remaining = %v", left)
	}
}
