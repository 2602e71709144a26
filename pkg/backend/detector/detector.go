// Package detector identifies the running distribution so the daemon can
// pick its native backend.
package detector

import (
	"runtime"
	"slices"
)

// System describes the host the daemon runs on.
type System struct {
	GOOS string
	// Arch is the Go architecture name; see PackageArch for the name used
	// in package ids.
	Arch string

	// From os-release.
	ID         string
	IDLike     []string
	Name       string
	PrettyName string
	VersionID  string
}

// nativeBackends maps a distribution id, or an id listed in ID_LIKE, to
// the backend that manages it.
var nativeBackends = map[string]string{
	"arch":        "pacman",
	"archarm":     "pacman",
	"artix":       "pacman",
	"cachyos":     "pacman",
	"endeavouros": "pacman",
	"garuda":      "pacman",
	"manjaro":     "pacman",
	"steamos":     "pacman",
}

var packageArches = map[string]string{
	"amd64": "x86_64",
	"386":   "i686",
	"arm64": "aarch64",
	"arm":   "armv7h",
}

// Detect describes the current host. Non-Linux hosts are reported by GOOS
// alone.
func Detect() (*System, error) {
	s := &System{GOOS: runtime.GOOS, Arch: runtime.GOARCH}
	if s.GOOS != "linux" {
		s.ID, s.PrettyName = s.GOOS, s.GOOS
		return s, nil
	}
	if err := s.readRelease(); err != nil {
		return s, err
	}
	return s, nil
}

// IsLinux reports whether the host runs Linux.
func (s *System) IsLinux() bool {
	return s.GOOS == "linux"
}

// Family returns the distribution id followed by the ids it derives from.
func (s *System) Family() []string {
	return append([]string{s.ID}, s.IDLike...)
}

// Is reports whether the host is, or derives from, any of ids.
func (s *System) Is(ids ...string) bool {
	for _, id := range s.Family() {
		if slices.Contains(ids, id) {
			return true
		}
	}
	return false
}

// NativeBackend returns the backend for the host's distribution family,
// or "" when none is known.
func (s *System) NativeBackend() string {
	for _, id := range s.Family() {
		if b, ok := nativeBackends[id]; ok {
			return b
		}
	}
	return ""
}

// PackageArch returns the host architecture as package ids spell it.
func (s *System) PackageArch() string {
	return PackageArch(s.Arch)
}

// PackageArch maps a Go architecture name to the name used in package ids.
func PackageArch(goarch string) string {
	if a, ok := packageArches[goarch]; ok {
		return a
	}
	return goarch
}
