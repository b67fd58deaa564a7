package match

import "testing"

func TestKeyGrammar(t *testing.T) {
	cases := []struct {
		key, pattern string
		want         bool
	}{
		// exact
		{"light:status", "light:status", true},
		{"light:status", "light:state", false},
		// prefix
		{"light:status:id=kitchen", "light:status:*", true},
		{"light:toggle:id=kitchen", "light:status:*", false},
		{"light:status", "light:status*", true},
		// suffix
		{"light:status:id=kitchen", "*id=kitchen", true},
		{"light:status:id=hall", "*id=kitchen", false},
		// containment
		{"light:status:id=kitchen", "*status*", true},
		{"light:toggle:id=kitchen", "*status*", false},
		// match-all
		{"anything", "*", true},
		{"anything", "", true},
		// single internal star: prefix and suffix
		{"light:status:id=kitchen", "light*kitchen", true},
		{"status:id=kitchen", "light*kitchen", false},
		{"xlightkitchenx", "light*kitchen", false},
		{"ab", "a*b", true},
		{"ab", "a*ab", false}, // prefix and suffix may not overlap
		// degenerate: repeated stars fall back to stripped containment
		{"xlightkitchenx", "li*ghtkit*chen", true},
		{"status:id=kitchen", "li*ght*chen", false},
	}
	for _, c := range cases {
		if got := Key(c.key, c.pattern); got != c.want {
			t.Errorf("Key(%q, %q) = %v, want %v", c.key, c.pattern, got, c.want)
		}
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	keys := []string{"a:1", "b:1", "a:2", "c:1", "a:3"}
	got := Filter(keys, "a:*")
	want := []string{"a:1", "a:2", "a:3"}
	if len(got) != len(want) {
		t.Fatalf("Filter returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Filter returned %v, want %v", got, want)
		}
	}
}

func TestFilterMatchAllReturnsInput(t *testing.T) {
	keys := []string{"x", "y"}
	if got := Filter(keys, "*"); len(got) != 2 {
		t.Fatalf("Filter(*, ...) = %v", got)
	}
}
