// Package enum defines the enumerations shared by the daemon, its backends
// and its clients, together with their text forms.
package enum

import "strings"

// lookup returns the index of s in names, or 0 (the "unknown" slot) when absent.
func lookup(names []string, s string) int {
	for i, n := range names {
		if n == s {
			return i
		}
	}
	return 0
}

// name returns names[i], falling back to the first entry when i is out of range.
func name(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return names[0]
	}
	return names[i]
}

// splitList splits a ';' separated list, keeping empty sections so callers
// can reject them.
func splitList(s string) []string {
	return strings.Split(s, ";")
}
