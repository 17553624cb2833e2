// Package scope models OAuth2 scopes: a set of strings in memory and a
// space-delimited list on the wire.
package scope

import "strings"

// Scope is an ordered set of scope values. The order of first appearance is
// kept so that the wire form is stable.
type Scope []string

// Parse splits a scope string on spaces, dropping empties and duplicates. Only
// the space character delimits; tabs and newlines stay part of a value.
func Parse(s string) Scope {
	return New(strings.Split(s, " ")...)
}

// New builds a Scope from the given values, dropping empties and duplicates.
func New(values ...string) Scope {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make(Scope, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// String returns the wire form.
func (s Scope) String() string {
	return strings.Join(s, " ")
}

func (s Scope) Empty() bool {
	return len(s) == 0
}

func (s Scope) Contains(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Subset reports whether every value of s is also in other.
func (s Scope) Subset(other Scope) bool {
	for _, v := range s {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

// Equal compares as sets, ignoring order.
func (s Scope) Equal(other Scope) bool {
	return s.Subset(other) && other.Subset(s)
}
