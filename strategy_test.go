package apicache

import (
	"reflect"
	"testing"
)

func TestExpandPatternWalksHierarchy(t *testing.T) {
	s := NewStrategy()
	s.AddHierarchy("light:*", "light:status:*", "light:list")
	s.AddHierarchy("light:status:*", "dashboard:summary")

	got := s.ExpandPattern("light:*")
	want := []string{"light:*", "light:status:*", "light:list", "dashboard:summary"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandPattern = %v, want %v", got, want)
	}
}

func TestExpandPatternTerminatesOnCycles(t *testing.T) {
	s := NewStrategy()
	s.AddHierarchy("a:*", "b:*")
	s.AddHierarchy("b:*", "a:*", "c:*")

	got := s.ExpandPattern("a:*")
	want := []string{"a:*", "b:*", "c:*"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cyclic ExpandPattern = %v, want %v", got, want)
	}
}

func TestExpandPatternUnknownIsIdentity(t *testing.T) {
	s := NewStrategy()
	got := s.ExpandPattern("nothing:*")
	if !reflect.DeepEqual(got, []string{"nothing:*"}) {
		t.Fatalf("ExpandPattern = %v", got)
	}
}

func TestSpecificPatternsNeverActAsParents(t *testing.T) {
	s := NewStrategy()
	// A misconfigured hierarchy hanging children off an entity pattern must
	// not cascade: invalidating one entity never touches siblings.
	s.AddHierarchy("light:status:id=kitchen", "light:status:id=hall")

	got := s.ExpandPattern("light:status:id=kitchen")
	if !reflect.DeepEqual(got, []string{"light:status:id=kitchen"}) {
		t.Fatalf("specific pattern expanded: %v", got)
	}
}

func TestChainSubstitution(t *testing.T) {
	s := NewStrategy()
	s.AddChain("config_changed",
		"{domain}:get:id={id}*",
		"{domain}:list*",
		"dashboard:summary*",
	)

	got := s.Chain("config_changed", map[string]string{"domain": "light", "id": "kitchen"})
	want := []string{"light:get:id=kitchen*", "light:list*", "dashboard:summary*"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Chain = %v, want %v", got, want)
	}
}

func TestChainMissingVarWidens(t *testing.T) {
	s := NewStrategy()
	s.AddChain("c", "light:get:id={id}*")

	got := s.Chain("c", nil)
	if got[0] != "light:get:id=**" {
		t.Fatalf("missing var should widen to *, got %q", got[0])
	}
}

func TestChainUnknownName(t *testing.T) {
	s := NewStrategy()
	if got := s.Chain("nope", nil); got != nil {
		t.Fatalf("unknown chain = %v, want nil", got)
	}
}

func TestExtractIdentifier(t *testing.T) {
	cases := []struct {
		key  string
		want string
		ok   bool
	}{
		{"light:status:id=kitchen", "kitchen", true},
		{"light:status:id=kitchen,mode=full", "kitchen", true},
		{"light:status:brightness=80,id=hall", "hall", true},
		{"light:list", "", false},
		{"", "", false},
		{"id=solo", "solo", true},
	}
	for _, c := range cases {
		got, ok := ExtractIdentifier(c.key)
		if got != c.want || ok != c.ok {
			t.Errorf("ExtractIdentifier(%q) = %q, %v; want %q, %v", c.key, got, ok, c.want, c.ok)
		}
	}
}

func TestExtractDomain(t *testing.T) {
	if d, ok := ExtractDomain("light:status:id=kitchen"); !ok || d != "light" {
		t.Fatalf("ExtractDomain = %q, %v", d, ok)
	}
	if _, ok := ExtractDomain("nodomain"); ok {
		t.Fatal("key without separator should not yield a domain")
	}
	if _, ok := ExtractDomain(":leading"); ok {
		t.Fatal("empty domain segment should not match")
	}
}
