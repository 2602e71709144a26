// Package history records transactions in a BoltDB database.
package history

import (
	"fmt"
	"strings"
	"time"

	"pkgd/pkg/enum"
)

// Entry is one recorded transaction.
type Entry struct {
	TID       string    `json:"tid"`
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	UID       uint32    `json:"uid"`
	Cmdline   string    `json:"cmdline"`
	Succeeded bool      `json:"succeeded"`
	Duration  uint      `json:"duration_ms"`

	// Data holds one "info\tpackage_id\tsummary" line per package.
	Data string `json:"data,omitempty"`
}

// PackageLine is one parsed line of Entry.Data.
type PackageLine struct {
	Info      enum.Info
	PackageID string
	Summary   string
}

// NewEntry creates an entry stamped with the current time.
func NewEntry(tid string, role enum.Role, uid uint32, cmdline string) *Entry {
	return &Entry{
		TID:       tid,
		Timestamp: time.Now(),
		Role:      role.String(),
		UID:       uid,
		Cmdline:   cmdline,
	}
}

// RoleValue returns the parsed role.
func (e *Entry) RoleValue() enum.Role {
	return enum.ParseRole(e.Role)
}

// Packages parses the package list recorded for the entry.
func (e *Entry) Packages() []PackageLine {
	var lines []PackageLine
	for _, line := range strings.Split(e.Data, "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 2 {
			continue
		}
		pl := PackageLine{Info: enum.ParseInfo(parts[0]), PackageID: parts[1]}
		if len(parts) == 3 {
			pl.Summary = parts[2]
		}
		lines = append(lines, pl)
	}
	return lines
}

// FormatPackageList renders package lines into the Data format.
func FormatPackageList(lines []PackageLine) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s\t%s\t%s", l.Info, l.PackageID, l.Summary)
	}
	return b.String()
}

// FormatTime returns a human-readable timestamp.
func (e *Entry) FormatTime() string {
	return e.Timestamp.Format("2006-01-02 15:04:05")
}

// Summary returns a brief summary of the transaction.
func (e *Entry) Summary() string {
	status := "success"
	if !e.Succeeded {
		status = "failed"
	}

	pkgs := e.Packages()
	if len(pkgs) == 0 {
		return fmt.Sprintf("%s %s (%s)", e.FormatTime(), e.Role, status)
	}

	more := ""
	if len(pkgs) > 1 {
		more = fmt.Sprintf(" +%d", len(pkgs)-1)
	}
	return fmt.Sprintf("%s %s %s%s (%s)", e.FormatTime(), e.Role, pkgs[0].PackageID, more, status)
}
