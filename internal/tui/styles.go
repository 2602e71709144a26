// Package tui provides the interactive transaction console for pkgd.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"pkgd/internal/transaction"
	"pkgd/pkg/enum"
)

// Palette colors, shared with the CLI output
var (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorSecondary = lipgloss.Color("#06B6D4")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorError     = lipgloss.Color("#EF4444")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorText      = lipgloss.Color("#F3F4F6")
	ColorBg        = lipgloss.Color("#1F2937")
	ColorBgAlt     = lipgloss.Color("#374151")
)

// RepoColors is keyed by the data section of a package id.
var RepoColors = map[string]lipgloss.Color{
	"installed": ColorSuccess,
	"core":      lipgloss.Color("#1793D1"),
	"extra":     lipgloss.Color("#4A90D9"),
	"multilib":  lipgloss.Color("#294172"),
	"testing":   ColorWarning,
}

// StateColors colors the state column of the transaction table.
var StateColors = map[transaction.State]lipgloss.Color{
	transaction.StateNew:            ColorMuted,
	transaction.StateWaitingForAuth: ColorWarning,
	transaction.StateReady:          ColorSecondary,
	transaction.StateRunning:        ColorPrimary,
	transaction.StateFinished:       ColorSuccess,
	transaction.StateError:          ColorError,
}

// Styles holds the lipgloss styles the console renders with.
type Styles struct {
	Header      lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style

	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Description lipgloss.Style

	ListItemSelected lipgloss.Style
	PackageName      lipgloss.Style
	PackageVersion   lipgloss.Style
	PackageDesc      lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style

	InputPrompt lipgloss.Style

	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
	HelpSep  lipgloss.Style

	Dialog       lipgloss.Style
	DialogTitle  lipgloss.Style
	DialogButton lipgloss.Style
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// DefaultStyles returns the console styles
func DefaultStyles() *Styles {
	tab := lipgloss.NewStyle().Padding(0, 2)
	heading := fg(ColorText).Bold(true)

	return &Styles{
		Header: heading.
			Background(ColorBgAlt).
			Padding(0, 1),
		TabActive:   tab.Foreground(ColorPrimary).Bold(true).Underline(true),
		TabInactive: tab.Foreground(ColorMuted),

		Title:       heading.MarginBottom(1),
		Subtitle:    fg(ColorSecondary).Bold(true),
		Description: fg(ColorMuted),

		ListItemSelected: fg(ColorPrimary).Bold(true),
		PackageName:      heading,
		PackageVersion:   fg(ColorSuccess),
		PackageDesc:      fg(ColorMuted),

		Success: fg(ColorSuccess).Bold(true),
		Error:   fg(ColorError).Bold(true),

		InputPrompt: fg(ColorPrimary).Bold(true),

		HelpKey:  fg(ColorSecondary).Bold(true),
		HelpDesc: fg(ColorMuted),
		HelpSep:  fg(ColorMuted).SetString(" - "),

		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(1, 2).
			Width(64),
		DialogTitle: heading.MarginBottom(1),
		DialogButton: fg(ColorText).
			Background(ColorPrimary).
			Padding(0, 2).
			MarginRight(1),
	}
}

// StateStyle returns the style for a transaction state.
func StateStyle(state transaction.State) lipgloss.Style {
	color, ok := StateColors[state]
	if !ok {
		color = ColorMuted
	}
	return fg(color).Bold(true)
}

// ExitStyle colors a finished transaction's exit.
func ExitStyle(exit enum.Exit) lipgloss.Style {
	switch {
	case exit == enum.ExitSuccess:
		return fg(ColorSuccess)
	case exit.Cancelled():
		return fg(ColorWarning)
	default:
		return fg(ColorError)
	}
}

// Badge renders text as a colored label.
func Badge(text string, color lipgloss.Color) string {
	return fg(lipgloss.Color("#FFFFFF")).
		Background(color).
		Padding(0, 1).
		Render(text)
}

// RepoBadge renders the repository a package comes from.
func RepoBadge(repo string) string {
	color, ok := RepoColors[repo]
	if !ok {
		color = ColorMuted
	}
	return Badge(repo, color)
}
