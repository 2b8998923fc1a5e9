// Package wildcard provides the default key-filter implementation used by
// the CLI's read command and by db to evaluate a delete marker's stored
// wildcard, grounded on sonnerie's original_source/src/wildcard.rs
// `%`-prefix/suffix matcher.
//
// The segment, index, keyrange and merge packages never import this
// package: they take an opaque `func(key []byte) bool` predicate so the
// matching rule stays outside the storage format. wildcard.Matcher is just
// one implementation of that predicate.
package wildcard

import "strings"

// Matcher is a compiled wildcard pattern. A leading or trailing '%' marks
// that side as unbounded; a pattern with neither is an exact-match
// literal. "%abc%" matches any key containing "abc", "abc%" matches keys
// with prefix "abc", "%abc" matches keys with suffix "abc".
type Matcher struct {
	literal      string
	prefixOpen   bool // leading '%': suffix match against literal
	suffixOpen   bool // trailing '%': prefix match against literal
}

// Compile parses pattern into a Matcher.
func Compile(pattern string) Matcher {
	lit := pattern
	var m Matcher

	if len(lit) > 0 && lit[0] == '%' {
		m.prefixOpen = true
		lit = lit[1:]
	}
	if len(lit) > 0 && lit[len(lit)-1] == '%' {
		m.suffixOpen = true
		lit = lit[:len(lit)-1]
	}
	m.literal = lit
	return m
}

// Match reports whether key satisfies the compiled pattern.
func (m Matcher) Match(key string) bool {
	switch {
	case m.prefixOpen && m.suffixOpen:
		return strings.Contains(key, m.literal)
	case m.prefixOpen:
		return strings.HasSuffix(key, m.literal)
	case m.suffixOpen:
		return strings.HasPrefix(key, m.literal)
	default:
		return key == m.literal
	}
}

// Func adapts Match into the func([]byte) bool predicate shape of
// keyrange.Predicate.
func (m Matcher) Func() func(key []byte) bool {
	return func(key []byte) bool { return m.Match(string(key)) }
}

// String returns the original pattern form of the matcher.
func (m Matcher) String() string {
	s := m.literal
	if m.prefixOpen {
		s = "%" + s
	}
	if m.suffixOpen {
		s = s + "%"
	}
	return s
}
