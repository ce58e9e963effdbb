// Package permission models the flat permission sets attached to users,
// clients and tokens, plus the merge used to compute a token's effective set.
package permission

import (
	"sort"
	"strings"
)

// Set maps a resource name to the actions allowed on it.
// The zero value (nil) is a valid empty set.
type Set map[string][]string

// Merge unions any number of sets. The same resource appearing in several
// inputs keeps the union of its action lists; permissions only accumulate.
// Inputs are never mutated and the result shares no backing arrays with them.
func Merge(sets ...Set) Set {
	out := Set{}
	for _, s := range sets {
		for resource, actions := range s {
			out[resource] = unionActions(out[resource], actions)
		}
	}
	return out
}

func unionActions(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, action := range list {
			if _, ok := seen[action]; ok {
				continue
			}
			seen[action] = struct{}{}
			out = append(out, action)
		}
	}
	sort.Strings(out)
	return out
}

// Can reports whether the set allows action on resource. A resource entry
// whose last segment is "*" matches any value for that segment, so an entry
// "tokens:*" grants the action on every token id.
func (s Set) Can(resource, action string) bool {
	if allowed(s[resource], action) {
		return true
	}
	if i := strings.LastIndex(resource, ":"); i >= 0 {
		if allowed(s[resource[:i]+":*"], action) {
			return true
		}
	}
	return false
}

func allowed(actions []string, action string) bool {
	for _, a := range actions {
		if a == action || a == "*" {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for resource, actions := range s {
		out[resource] = append([]string(nil), actions...)
	}
	return out
}
