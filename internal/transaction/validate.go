package transaction

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"pkgd/internal/config"
	"pkgd/pkg/enum"
	"pkgd/pkg/packageid"
)

// maxInputLength bounds every free-form string a caller may send.
const maxInputLength = 1024

const knownFilters = enum.FilterNotDownloaded<<1 - 1

// limits wraps the configured request bounds.
type limits config.LimitsConfig

// validString rejects text that is too long, not UTF-8 or contains
// characters a backend might pass to a shell.
func validString(s string) bool {
	if len(s) > maxInputLength || !utf8.ValidString(s) {
		return false
	}
	return !strings.ContainsAny(s, "$`'\"^[]{}\\<>")
}

func (l limits) checkSearch(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: no search terms", ErrSearchInvalid)
	}
	for _, v := range values {
		switch {
		case v == "":
			return fmt.Errorf("%w: search string zero length", ErrSearchInvalid)
		case len(v) < 2:
			return fmt.Errorf("%w: the search string length is too small", ErrSearchInvalid)
		case len(v) > l.MaximumSearchLength:
			return fmt.Errorf("%w: the search string length is too large", ErrSearchInvalid)
		case strings.Contains(v, "*"):
			return fmt.Errorf("%w: invalid search containing '*'", ErrSearchInvalid)
		case strings.Contains(v, "?"):
			return fmt.Errorf("%w: invalid search containing '?'", ErrSearchInvalid)
		case !validString(v):
			return fmt.Errorf("%w: invalid search term %q", ErrInputInvalid, v)
		}
	}
	return nil
}

func checkFilter(f enum.Filter) error {
	if f == 0 || f&^knownFilters != 0 {
		return fmt.Errorf("%w: %#x", ErrFilterInvalid, uint64(f))
	}
	return nil
}

// ParseFilter parses a caller supplied filter list such as "installed;~gui".
func ParseFilter(s string) (enum.Filter, error) {
	if !validString(s) {
		return 0, fmt.Errorf("%w: invalid filter term %q", ErrInputInvalid, s)
	}
	f, err := enum.ParseFilter(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFilterInvalid, err)
	}
	return f, nil
}

func (l limits) checkPackageIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no package ids", ErrNumberOfPackagesInvalid)
	}
	if len(ids) > l.MaximumPackagesToProcess {
		return fmt.Errorf("%w: %d packages is more than the limit of %d",
			ErrNumberOfPackagesInvalid, len(ids), l.MaximumPackagesToProcess)
	}
	for _, id := range ids {
		if !validString(id) {
			return fmt.Errorf("%w: %q", ErrInputInvalid, id)
		}
		if !packageid.Valid(id) {
			return fmt.Errorf("%w: %q", ErrPackageIDInvalid, id)
		}
	}
	return nil
}

func (l limits) checkNames(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: no names to resolve", ErrNumberOfPackagesInvalid)
	}
	if len(names) > l.MaximumItemsToResolve {
		return fmt.Errorf("%w: %d items is more than the limit of %d",
			ErrNumberOfPackagesInvalid, len(names), l.MaximumItemsToResolve)
	}
	for _, n := range names {
		if n == "" || !validString(n) {
			return fmt.Errorf("%w: %q", ErrInputInvalid, n)
		}
	}
	return nil
}

func checkFiles(files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no files", ErrNumberOfPackagesInvalid)
	}
	for _, f := range files {
		if !utf8.ValidString(f) || len(f) > maxInputLength {
			return fmt.Errorf("%w: %q", ErrInputInvalid, f)
		}
		if !filepath.IsAbs(f) {
			return fmt.Errorf("%w: %s is not an absolute path", ErrNoSuchFile, f)
		}
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%w: %s", ErrNoSuchFile, f)
		}
	}
	return nil
}

func checkText(field, s string, required bool) error {
	if required && s == "" {
		return fmt.Errorf("%w: %s is empty", ErrInputInvalid, field)
	}
	if !validString(s) {
		return fmt.Errorf("%w: invalid %s %q", ErrInputInvalid, field, s)
	}
	return nil
}
