package enum

import (
	"fmt"
	"strings"
)

// TransactionFlag modifies how a package-changing transaction is carried out.
type TransactionFlag uint64

const (
	FlagNone           TransactionFlag = 0
	FlagOnlyTrusted    TransactionFlag = 1 << 0
	FlagSimulate       TransactionFlag = 1 << 1
	FlagOnlyDownload   TransactionFlag = 1 << 2
	FlagAllowReinstall TransactionFlag = 1 << 3
	FlagJustReinstall  TransactionFlag = 1 << 4
	FlagAllowDowngrade TransactionFlag = 1 << 5
)

var flagNames = []struct {
	flag TransactionFlag
	name string
}{
	{FlagOnlyTrusted, "only-trusted"},
	{FlagSimulate, "simulate"},
	{FlagOnlyDownload, "only-download"},
	{FlagAllowReinstall, "allow-reinstall"},
	{FlagJustReinstall, "just-reinstall"},
	{FlagAllowDowngrade, "allow-downgrade"},
}

// Has reports whether every bit of other is set.
func (f TransactionFlag) Has(other TransactionFlag) bool {
	return other != 0 && f&other == other
}

// String returns the ';' separated text form, "none" when no flag is set.
func (f TransactionFlag) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ";")
}

// ParseTransactionFlags parses a ';' separated flag list. "none" and the
// empty string yield FlagNone.
func ParseTransactionFlags(s string) (TransactionFlag, error) {
	if s == "" || s == "none" {
		return FlagNone, nil
	}
	var f TransactionFlag
	for _, part := range splitList(s) {
		found := false
		for _, fn := range flagNames {
			if fn.name == part {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown transaction flag: %q", part)
		}
	}
	return f, nil
}
