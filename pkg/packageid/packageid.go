// Package packageid handles package identifiers of the form
// "name;version;arch;data".
package packageid

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DataInstalled marks a package that is installed on the system.
const DataInstalled = "installed"

// ErrInvalid is returned for malformed identifiers.
var ErrInvalid = errors.New("invalid package id")

// ID is a parsed package identifier.
type ID struct {
	Name    string
	Version string
	Arch    string
	Data    string
}

// Parse splits a package identifier into its four sections.
func Parse(s string) (ID, error) {
	if !utf8.ValidString(s) {
		return ID{}, fmt.Errorf("%w: not valid UTF-8", ErrInvalid)
	}
	sections := strings.Split(s, ";")
	if len(sections) != 4 {
		return ID{}, fmt.Errorf("%w: %q has %d sections, expected 4", ErrInvalid, s, len(sections))
	}
	if sections[0] == "" {
		return ID{}, fmt.Errorf("%w: %q has no name", ErrInvalid, s)
	}
	return ID{
		Name:    sections[0],
		Version: sections[1],
		Arch:    sections[2],
		Data:    sections[3],
	}, nil
}

// Valid reports whether s is a well-formed package identifier.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Build joins the four sections into an identifier.
func Build(name, version, arch, data string) string {
	return name + ";" + version + ";" + arch + ";" + data
}

// String returns the identifier text.
func (id ID) String() string {
	return Build(id.Name, id.Version, id.Arch, id.Data)
}

// Installed reports whether the data section marks the package as installed.
func (id ID) Installed() bool {
	return id.Data == DataInstalled || strings.HasPrefix(id.Data, DataInstalled+":")
}

// Printable returns "name-version.arch" for display.
func (id ID) Printable() string {
	var sb strings.Builder
	sb.WriteString(id.Name)
	if id.Version != "" {
		sb.WriteString("-")
		sb.WriteString(id.Version)
	}
	if id.Arch != "" {
		sb.WriteString(".")
		sb.WriteString(id.Arch)
	}
	return sb.String()
}

// Name returns the name section of s, or s itself when it is not an identifier.
func Name(s string) string {
	if id, err := Parse(s); err == nil {
		return id.Name
	}
	return s
}

// Names returns the name section of every identifier in ids.
func Names(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, s := range ids {
		names = append(names, Name(s))
	}
	return names
}
