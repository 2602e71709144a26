package detector

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// OSReleasePath is where the distribution identity is read from.
var OSReleasePath = "/etc/os-release"

// releaseMarkers identify distributions that ship without os-release.
var releaseMarkers = []struct {
	path, id, pretty string
}{
	{"/etc/arch-release", "arch", "Arch Linux"},
	{"/etc/manjaro-release", "manjaro", "Manjaro Linux"},
	{"/etc/artix-release", "artix", "Artix Linux"},
}

func (s *System) readRelease() error {
	f, err := os.Open(OSReleasePath)
	if err == nil {
		defer f.Close()
		return s.parseRelease(f)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	for _, m := range releaseMarkers {
		if _, err := os.Stat(m.path); err == nil {
			s.ID, s.PrettyName = m.id, m.pretty
			return nil
		}
	}
	s.ID, s.PrettyName = "unknown", "Unknown Linux"
	return nil
}

// ParseOSRelease reads an os-release file into a System for the current
// architecture.
func ParseOSRelease(r io.Reader) (*System, error) {
	s := &System{GOOS: "linux", Arch: runtime.GOARCH}
	return s, s.parseRelease(r)
}

func (s *System) parseRelease(r io.Reader) error {
	fields := map[string]*string{
		"ID":          &s.ID,
		"NAME":        &s.Name,
		"PRETTY_NAME": &s.PrettyName,
		"VERSION_ID":  &s.VersionID,
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		v = unquote(strings.TrimSpace(v))

		switch k = strings.TrimSpace(k); {
		case k == "ID_LIKE":
			s.IDLike = strings.Fields(v)
		case fields[k] != nil:
			*fields[k] = v
		}
	}
	if s.PrettyName == "" {
		s.PrettyName = s.Name
	}
	return sc.Err()
}

// unquote strips shell-style quoting from an os-release value.
func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' {
		if u, err := strconv.Unquote(v); err == nil {
			return u
		}
	}
	return strings.Trim(v, `"'`)
}
