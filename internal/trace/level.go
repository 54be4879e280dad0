package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff    Level = iota // no tracing
	LevelError               // only emit on errors/crashes
	LevelOp                  // driver + store operations
	LevelDetail              // worker-level events
	LevelDebug               // everything including branch-level
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelOp:
		return "op"
	case LevelDetail:
		return "detail"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "op":
		return LevelOp, nil
	case "detail":
		return LevelDetail, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|op|detail|debug)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff, LevelError:
		return false // error events go through the crash path
	case LevelOp:
		return scope <= ScopeStore
	case LevelDetail:
		return scope <= ScopeWorker
	case LevelDebug:
		return true
	}
	return false
}

// ScopeSet narrows tracing to a subset of scopes on top of the level. The
// zero set keeps every scope.
type ScopeSet uint8

// ScopesOf builds a set holding the given scopes.
func ScopesOf(scopes ...Scope) ScopeSet {
	var s ScopeSet
	for _, sc := range scopes {
		s |= 1 << sc
	}
	return s
}

// Has reports whether scope is in the set.
func (s ScopeSet) Has(scope Scope) bool {
	return s == 0 || s&(1<<scope) != 0
}

// String lists the scopes in the set, "all" for the zero set.
func (s ScopeSet) String() string {
	if s == 0 {
		return "all"
	}
	var names []string
	for sc := ScopeDriver; sc <= ScopeBranch; sc++ {
		if s&(1<<sc) != 0 {
			names = append(names, sc.String())
		}
	}
	return strings.Join(names, ",")
}

// ParseScopes reads a comma-separated scope list such as "store,branch".
// An empty list or "all" keeps every scope.
func ParseScopes(list string) (ScopeSet, error) {
	var set ScopeSet
	for _, part := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || name == "all" {
			continue
		}
		found := false
		for sc := ScopeDriver; sc <= ScopeBranch; sc++ {
			if sc.String() == name {
				set |= 1 << sc
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("invalid trace scope: %q (expected: driver|store|worker|branch)", name)
		}
	}
	return set, nil
}
