// Package match implements the wildcard grammar shared by every backend.
//
// A pattern is plain text with "*" standing for any substring:
//
//	exact       no "*": the key must equal the pattern
//	prefix*     one trailing "*": prefix match
//	*suffix     one leading "*": suffix match
//	*middle*    leading and trailing "*": containment
//	pre*suf     one internal "*": prefix and suffix match
//
// Anything with more than one internal "*" degrades to containment of the
// pattern with all "*" stripped. Patterns are data, never executed.
package match

import "strings"

// Key reports whether key matches pattern. An empty pattern or a bare "*"
// matches every key.
func Key(key, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	stars := strings.Count(pattern, "*")
	if stars == 0 {
		return key == pattern
	}

	lead := strings.HasPrefix(pattern, "*")
	trail := strings.HasSuffix(pattern, "*")

	switch {
	case stars == 1 && trail:
		return strings.HasPrefix(key, pattern[:len(pattern)-1])
	case stars == 1 && lead:
		return strings.HasSuffix(key, pattern[1:])
	case stars == 1:
		i := strings.IndexByte(pattern, '*')
		before, after := pattern[:i], pattern[i+1:]
		// The length guard keeps prefix and suffix from overlapping.
		return len(key) >= len(before)+len(after) &&
			strings.HasPrefix(key, before) && strings.HasSuffix(key, after)
	case stars == 2 && lead && trail:
		return strings.Contains(key, pattern[1:len(pattern)-1])
	}

	// Degenerate patterns (repeated stars): containment on the star-stripped
	// text is the broadest safe interpretation.
	return strings.Contains(key, strings.ReplaceAll(pattern, "*", ""))
}

// Filter returns the subset of keys matching pattern, preserving order.
func Filter(keys []string, pattern string) []string {
	if pattern == "" || pattern == "*" {
		return keys
	}
	out := keys[:0:0]
	for _, k := range keys {
		if Key(k, pattern) {
			out = append(out, k)
		}
	}
	return out
}
