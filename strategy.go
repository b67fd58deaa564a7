package apicache

import (
	"regexp"
	"strings"
	"sync"
)

// Strategy declares how invalidation patterns relate: a static hierarchy
// (coarse pattern to child patterns) and named chains (mutation kind to an
// ordered list of pattern templates). Patterns are matched as data, never
// executed.
type Strategy struct {
	mu       sync.RWMutex
	children map[string][]string
	chains   map[string][]string
}

func NewStrategy() *Strategy {
	return &Strategy{
		children: make(map[string][]string),
		chains:   make(map[string][]string),
	}
}

// AddHierarchy declares parent's child patterns. Repeated calls append.
func (s *Strategy) AddHierarchy(parent string, children ...string) {
	s.mu.Lock()
	s.children[parent] = append(s.children[parent], children...)
	s.mu.Unlock()
}

// AddChain registers the ordered pattern templates for one mutation kind,
// e.g. "config_changed" => own entry, list view, domain summary.
// Templates may carry {name} placeholders filled from call parameters.
func (s *Strategy) AddChain(name string, templates ...string) {
	s.mu.Lock()
	s.chains[name] = append(s.chains[name], templates...)
	s.mu.Unlock()
}

// ExpandPattern returns pattern plus every descendant reachable through the
// hierarchy, de-duplicated, in discovery order. A visited set guarantees
// termination even when the declared hierarchy is cyclic. Specific patterns
// (ones carrying an identifier fragment) never act as parents, so
// invalidating one entity cannot cascade into unrelated siblings.
func (s *Strategy) ExpandPattern(pattern string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{pattern}
	seen := map[string]struct{}{pattern: {}}
	queue := []string{pattern}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if isSpecific(p) {
			continue
		}
		for _, child := range s.children[p] {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// Chain resolves a named chain, substituting {name} placeholders from vars.
// Unknown names yield nil.
func (s *Strategy) Chain(name string, vars map[string]string) []string {
	s.mu.RLock()
	templates := s.chains[name]
	s.mu.RUnlock()

	if len(templates) == 0 {
		return nil
	}
	out := make([]string, 0, len(templates))
	for _, t := range templates {
		out = append(out, fillTemplate(t, vars))
	}
	return out
}

// isSpecific reports whether a pattern carries an identifier fragment
// (a name=value pair) and therefore targets one entity.
func isSpecific(pattern string) bool {
	return strings.Contains(pattern, "=")
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// fillTemplate substitutes {name} placeholders. A placeholder with no
// matching variable becomes "*": broader than intended and therefore safe,
// since over-invalidation only costs extra misses.
func fillTemplate(template string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return "*"
	})
}

var identifierRe = regexp.MustCompile(`(?:^|[:,])id=([^:,*]+)`)

// ExtractIdentifier pulls the entity identifier out of a cache key built by
// BuildKey. It never fails; a key without one yields ("", false).
func ExtractIdentifier(key string) (string, bool) {
	m := identifierRe.FindStringSubmatch(key)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractDomain returns the domain segment of a cache key, i.e. everything
// before the first ":". Keys without a separator yield ("", false).
func ExtractDomain(key string) (string, bool) {
	i := strings.IndexByte(key, ':')
	if i <= 0 {
		return "", false
	}
	return key[:i], true
}
