package enum

import (
	"fmt"
	"strings"
)

// Filter is a set of result filters, encoded as a bitfield.
type Filter uint64

const (
	FilterNone Filter = 1 << iota
	FilterInstalled
	FilterNotInstalled
	FilterDevelopment
	FilterNotDevelopment
	FilterGUI
	FilterNotGUI
	FilterFree
	FilterNotFree
	FilterVisible
	FilterNotVisible
	FilterSupported
	FilterNotSupported
	FilterBasename
	FilterNotBasename
	FilterNewest
	FilterNotNewest
	FilterArch
	FilterNotArch
	FilterSource
	FilterNotSource
	FilterCollections
	FilterNotCollections
	FilterApplication
	FilterNotApplication
	FilterDownloaded
	FilterNotDownloaded
)

var filterNames = []string{
	"none",
	"installed",
	"~installed",
	"devel",
	"~devel",
	"gui",
	"~gui",
	"free",
	"~free",
	"visible",
	"~visible",
	"supported",
	"~supported",
	"basename",
	"~basename",
	"newest",
	"~newest",
	"arch",
	"~arch",
	"source",
	"~source",
	"collections",
	"~collections",
	"application",
	"~application",
	"downloaded",
	"~downloaded",
}

// ParseFilter parses a ';' separated filter list such as "installed;~devel".
// Every section must be non-empty and name a known filter.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return 0, fmt.Errorf("filter zero length")
	}
	var f Filter
	for _, part := range splitList(s) {
		if part == "" {
			return 0, fmt.Errorf("single empty section of filter: %s", s)
		}
		idx := -1
		for i, n := range filterNames {
			if n == part {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0, fmt.Errorf("unknown filter part: %s", part)
		}
		f |= 1 << uint(idx)
	}
	return f, nil
}

// Has reports whether every bit of other is set.
func (f Filter) Has(other Filter) bool {
	return other != 0 && f&other == other
}

// String returns the ';' separated text form, "none" for an empty set.
func (f Filter) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for i, n := range filterNames {
		if f&(1<<uint(i)) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, ";")
}
