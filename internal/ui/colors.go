// Package ui provides terminal output helpers for the pkgd client commands.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"pkgd/pkg/enum"
)

// Element colors.
var (
	Muted          = color.New(color.FgHiBlack)
	PackageName    = color.New(color.FgWhite, color.Bold)
	PackageVersion = color.New(color.FgGreen)
	PackageRepo    = color.New(color.FgCyan)
	Installed      = color.New(color.FgGreen)
	NotInstalled   = color.New(color.FgHiBlack)
	Security       = color.New(color.FgRed)
)

// Out receives every message line.
var Out io.Writer = color.Output

var (
	// UseColors is cleared by Init when colors are off.
	UseColors = true
	// UseUnicode selects unicode marks and spinner frames.
	UseUnicode = true
)

// level is one kind of status line: a color plus its leading mark.
type level struct {
	color   *color.Color
	unicode string
	ascii   string
}

var (
	lvlSuccess = level{color.New(color.FgGreen, color.Bold), "✓", "[OK]"}
	lvlError   = level{color.New(color.FgRed, color.Bold), "✗", "[ERROR]"}
	lvlWarning = level{color.New(color.FgYellow, color.Bold), "!", "[WARN]"}
	lvlInfo    = level{color.New(color.FgCyan), "→", "->"}
)

func (l level) printf(format string, args ...any) {
	mark := l.unicode
	if !UseUnicode {
		mark = l.ascii
	}
	l.color.Fprintf(Out, "%s %s\n", mark, fmt.Sprintf(format, args...))
}

// Init applies the client's output settings. NO_COLOR always wins.
func Init(useColors, useUnicode bool) {
	UseColors = useColors && os.Getenv("NO_COLOR") == ""
	UseUnicode = useUnicode
	color.NoColor = !UseColors
}

// SuccessMsg prints a success line.
func SuccessMsg(format string, args ...any) { lvlSuccess.printf(format, args...) }

// ErrorMsg prints an error line.
func ErrorMsg(format string, args ...any) { lvlError.printf(format, args...) }

// WarningMsg prints a warning line.
func WarningMsg(format string, args ...any) { lvlWarning.printf(format, args...) }

// InfoMsg prints an informational line.
func InfoMsg(format string, args ...any) { lvlInfo.printf(format, args...) }

// HeaderMsg prints a section heading preceded by a blank line.
func HeaderMsg(format string, args ...any) {
	color.New(color.FgMagenta, color.Bold).Fprintf(Out, "\n%s\n", fmt.Sprintf(format, args...))
}

// MutedMsg prints a dim line.
func MutedMsg(format string, args ...any) {
	Muted.Fprintf(Out, "%s\n", fmt.Sprintf(format, args...))
}

func Bold(s string) string  { return color.New(color.Bold).Sprint(s) }
func Green(s string) string { return color.GreenString(s) }
func Red(s string) string   { return color.RedString(s) }
func Cyan(s string) string  { return color.CyanString(s) }

// InfoColor returns the color for a package info kind.
func InfoColor(info enum.Info) *color.Color {
	switch info {
	case enum.InfoInstalled, enum.InfoInstalling, enum.InfoFinished:
		return Installed
	case enum.InfoSecurity, enum.InfoRemoving:
		return Security
	case enum.InfoAvailable, enum.InfoNormal:
		return NotInstalled
	default:
		return lvlInfo.color
	}
}

// ExitMsg prints the closing line of a transaction.
func ExitMsg(exit enum.Exit, elapsedMs uint) {
	took := elapsed(elapsedMs)
	switch {
	case exit == enum.ExitSuccess:
		SuccessMsg("Finished in %s", took)
	case exit.Cancelled():
		WarningMsg("Cancelled after %s", took)
	case exit == enum.ExitKeyRequired, exit == enum.ExitEulaRequired,
		exit == enum.ExitMediaChangeRequired, exit == enum.ExitNeedUntrusted:
		WarningMsg("Needs attention: %s", exit)
	default:
		ErrorMsg("Failed (%s) after %s", exit, took)
	}
}

func elapsed(ms uint) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
