package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pkgd/pkg/backend"
	"pkgd/pkg/packageid"
)

// View implements tea.Model.
func (a *App) View() string {
	switch {
	case !a.ready:
		return "Loading..."
	case a.quitting:
		return ""
	case a.dialog != nil:
		return a.renderDialog()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		a.renderTabs(),
		a.renderContent(),
		a.renderFooter(),
	)
}

// renderHeader renders the title bar with the current notice on the right.
func (a *App) renderHeader() string {
	title := a.styles.Header.Render(" pkgd - Transaction Console ")

	var right string
	switch n := a.notice; {
	case n.busy:
		right = a.spinner.View() + " " + n.text
	case n.failed:
		right = a.styles.Error.Render(n.text)
	case n.text != "":
		right = a.styles.Success.Render(n.text)
	}

	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(right)-2, 0)
	return title + strings.Repeat(" ", gap) + right
}

// renderTabs renders the tab bar; the transactions tab shows a count.
func (a *App) renderTabs() string {
	labels := make([]string, len(a.tabs))
	for i, tab := range a.tabs {
		name := tab.Name
		if tab.View == ViewTransactions && len(a.transactions) > 0 {
			name += fmt.Sprintf(" (%d)", len(a.transactions))
		}
		style := a.styles.TabInactive
		if i == a.tab {
			style = a.styles.TabActive
		}
		labels[i] = style.Render(fmt.Sprintf("[%d] %s", i+1, name))
	}
	return a.bar().Render(strings.Join(labels, " "))
}

// bar is the full-width style shared by the tab bar and footer.
func (a *App) bar() lipgloss.Style {
	return lipgloss.NewStyle().Width(a.width).Background(ColorBgAlt).Padding(0, 1)
}

// renderContent renders the body for the current view.
func (a *App) renderContent() string {
	var body string
	switch a.view {
	case ViewTransactions:
		body = a.renderTransactionsView()
	case ViewPackages:
		body = a.renderSearchView()
	case ViewUpdates:
		body = a.renderUpdatesView()
	case ViewHistory:
		body = a.renderHistoryView()
	case ViewBackend:
		body = a.renderBackendView()
	case ViewDetails:
		body = a.renderDetailsView()
	case ViewHelp:
		body = a.renderHelpView()
	}
	return lipgloss.NewStyle().Width(a.width).Height(max(a.height-3, 1)).Render(body)
}

// renderTransactionsView renders the live transaction table. Finished
// transactions show their exit in place of the status.
func (a *App) renderTransactionsView() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render(fmt.Sprintf("Transactions (%d)", len(a.transactions))))
	b.WriteString("\n\n")

	if len(a.transactions) == 0 {
		b.WriteString(a.styles.Description.Render("No transactions. Press / to search for packages."))
		return b.String()
	}

	b.WriteString(a.styles.Subtitle.Render(fmt.Sprintf("  %-20s %-22s %-18s %-16s %5s %6s  %s",
		"TID", "ROLE", "STATE", "STATUS/EXIT", "%", "UID", "FLAGS")))
	b.WriteString("\n")

	start, end := a.visibleRange(len(a.transactions), 2)
	for i := start; i < end; i++ {
		row := a.transactions[i]
		prefix := a.mark(i)

		pct := "-"
		if row.Percentage <= 100 {
			pct = fmt.Sprintf("%d", row.Percentage)
		}
		var flags []string
		if row.Exclusive {
			flags = append(flags, "exclusive")
		}
		if row.Background {
			flags = append(flags, "background")
		}

		status := fmt.Sprintf("%-16s", row.Status)
		if row.Finished {
			status = ExitStyle(row.Exit).Render(fmt.Sprintf("%-16s", row.Exit))
		}

		fmt.Fprintf(&b, "%s%-20s %-22s %s %s %5s %6d  %s\n",
			prefix,
			row.TID,
			row.Role,
			StateStyle(row.State).Render(fmt.Sprintf("%-18s", row.State)),
			status,
			pct,
			row.UID,
			a.styles.Description.Render(strings.Join(flags, ",")),
		)
	}

	return b.String()
}

// visibleRange returns the window [start, end) of a list of n lines that
// fits below extra heading lines.
func (a *App) visibleRange(n, extra int) (int, int) {
	start := min(a.list().offset, n)
	return start, min(start+max(a.VisibleHeight()-extra, 1), n)
}

// mark is the cursor gutter for line i.
func (a *App) mark(i int) string {
	if i == a.Cursor() {
		return a.styles.ListItemSelected.Render("> ")
	}
	return "  "
}

func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

func (a *App) renderPackageList(packages []backend.PackageEvent, extra int) string {
	var b strings.Builder
	start, end := a.visibleRange(len(packages), extra)
	for i := start; i < end; i++ {
		b.WriteString(a.mark(i) + a.renderPackageLine(packages[i], i == a.Cursor()) + "\n")
	}
	if end-start < len(packages) {
		b.WriteString(a.styles.Description.Render(fmt.Sprintf("\n  (%d/%d)", a.Cursor()+1, len(packages))))
	}
	return b.String()
}

// renderPackageLine renders name, version, repository badge and as much of
// the summary as fits.
func (a *App) renderPackageLine(pkg backend.PackageEvent, selected bool) string {
	id, err := packageid.Parse(pkg.PackageID)
	if err != nil {
		return pkg.PackageID
	}

	nameStyle := fg(ColorText)
	if selected {
		nameStyle = a.styles.PackageName
	}
	cols := []string{
		nameStyle.Render(fmt.Sprintf("%-25s", id.Name)),
		a.styles.PackageVersion.Render(id.Version),
		RepoBadge(id.Data),
	}
	used := 12
	for _, c := range cols {
		used += lipgloss.Width(c)
	}
	cols = append(cols, a.styles.PackageDesc.Render(truncate(pkg.Summary, a.width-used)))
	return strings.Join(cols, " ")
}

// renderSearchView renders the results of the last search.
func (a *App) renderSearchView() string {
	var b strings.Builder

	switch {
	case a.searchQuery != "":
		title := fmt.Sprintf("Search results for '%s'", a.searchQuery)
		if a.filterText != "" {
			title += " - Filter: " + a.filterText
		}
		b.WriteString(a.styles.Title.Render(title) + "\n\n")
	default:
		b.WriteString(a.styles.Title.Render("Search Packages") + "\n")
		b.WriteString(a.styles.Description.Render("Press / to search") + "\n\n")
	}

	if packages := a.filterPackages(a.packages); len(packages) > 0 {
		b.WriteString(a.renderPackageList(packages, 4))
	} else if a.searchQuery != "" && !a.notice.busy {
		b.WriteString(a.styles.Description.Render("No results found"))
	}
	return b.String()
}

func (a *App) renderUpdatesView() string {
	title := a.styles.Title.Render(fmt.Sprintf("Available Updates (%d)", len(a.updates))) + "\n\n"
	if len(a.updates) == 0 {
		return title + a.styles.Description.Render("Press 'u' to refresh package metadata")
	}
	return title + a.renderPackageList(a.filterPackages(a.updates), 4)
}

// renderHistoryView lists finished transactions, newest first.
func (a *App) renderHistoryView() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Transaction History") + "\n\n")
	if len(a.history) == 0 {
		b.WriteString(a.styles.Description.Render("No history entries"))
		return b.String()
	}

	start, end := a.visibleRange(len(a.history), 2)
	for i, entry := range a.history[start:end] {
		result := a.styles.Success.Render("OK")
		if !entry.Succeeded {
			result = a.styles.Error.Render("FAILED")
		}
		var names []string
		for _, p := range entry.Packages() {
			names = append(names, packageid.Name(p.PackageID))
		}
		fmt.Fprintf(&b, "%s%s  %-20s  %-40s  %s\n",
			a.mark(start+i),
			entry.Timestamp.Format("2006-01-02 15:04"),
			entry.Role,
			truncate(strings.Join(names, ", "), 40),
			result)
	}
	return b.String()
}

func (a *App) renderBackendView() string {
	var b strings.Builder

	d := a.engine.BackendDetails()

	b.WriteString(a.styles.Title.Render("Backend"))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "  Name:        %s\n", d.Name)
	fmt.Fprintf(&b, "  Description: %s\n", d.Description)
	if d.Author != "" {
		fmt.Fprintf(&b, "  Author:      %s\n", d.Author)
	}
	fmt.Fprintf(&b, "  Parallel:    %v\n", d.Parallel)
	fmt.Fprintf(&b, "  Locked:      %v\n", a.engine.Locked())
	fmt.Fprintf(&b, "  Roles:       %d\n", len(d.Roles.List()))
	b.WriteString("\n")

	b.WriteString(a.styles.Subtitle.Render("Scheduler"))
	b.WriteString("\n")
	dump := a.engine.Scheduler().StateDump()
	if dump == "" {
		b.WriteString(a.styles.Description.Render("  idle"))
		b.WriteString("\n")
	}
	for _, line := range strings.Split(strings.TrimRight(dump, "\n"), "\n") {
		if line != "" {
			b.WriteString("  " + line + "\n")
		}
	}

	return b.String()
}

func (a *App) renderDetailsView() string {
	var b strings.Builder

	if a.details == nil {
		b.WriteString(a.styles.Error.Render("No package selected"))
		return b.String()
	}

	d := a.details
	id, _ := packageid.Parse(d.PackageID)

	// Header
	b.WriteString(a.styles.Title.Render(id.Name))
	b.WriteString(" ")
	b.WriteString(RepoBadge(id.Data))
	b.WriteString("\n\n")

	// Version
	b.WriteString(a.styles.Subtitle.Render("Version: "))
	b.WriteString(a.styles.PackageVersion.Render(id.Version))
	b.WriteString("\n\n")

	// Description
	b.WriteString(a.styles.Subtitle.Render("Description"))
	b.WriteString("\n")
	desc := d.Description
	if desc == "" {
		desc = d.Summary
	}
	b.WriteString(a.styles.Description.Render(desc))
	b.WriteString("\n\n")

	if d.License != "" {
		b.WriteString(a.styles.Subtitle.Render("License: "))
		b.WriteString(d.License)
		b.WriteString("\n")
	}
	if d.URL != "" {
		b.WriteString(a.styles.Subtitle.Render("URL: "))
		b.WriteString(d.URL)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	// Actions
	b.WriteString(a.styles.Subtitle.Render("Actions"))
	b.WriteString("\n")
	if id.Installed() {
		b.WriteString("  [r] Remove package\n")
	} else {
		b.WriteString("  [i] Install package\n")
	}
	b.WriteString("  [b] Back\n")

	return b.String()
}

// renderHelpView lists every binding, grouped by KeyMap.Sections.
func (a *App) renderHelpView() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, section := range a.keys.Sections() {
		b.WriteString(a.styles.Subtitle.Render(section.Title))
		b.WriteString("\n")
		for _, kb := range section.Bindings {
			h := kb.Help()
			fmt.Fprintf(&b, "  %-20s%s %s\n",
				a.styles.HelpKey.Render(h.Key),
				a.styles.HelpSep.String(),
				a.styles.HelpDesc.Render(h.Desc))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// renderFooter renders key hints, or the open prompt.
func (a *App) renderFooter() string {
	if a.input != nil {
		return a.bar().Render(a.styles.InputPrompt.Render(a.input.label) + a.field.View())
	}

	var hints []string
	switch a.view {
	case ViewTransactions:
		hints = []string{"c:cancel", "R:reload", "/:search"}
	case ViewPackages:
		hints = []string{"i:install", "r:remove", "f:filter", "enter:details"}
	case ViewUpdates:
		hints = []string{"u:refresh", "U:update all", "enter:details"}
	case ViewDetails:
		hints = []string{"i:install", "r:remove", "b:back"}
	}
	hints = append(hints, "?:help", "q:quit")
	return a.bar().Foreground(ColorMuted).Render(strings.Join(hints, "  "))
}

// renderDialog draws the open question centred on an empty screen.
func (a *App) renderDialog() string {
	box := a.styles.Dialog.Render(
		a.styles.DialogTitle.Render(a.dialog.title) + "\n\n" +
			a.styles.DialogButton.Render("[Y]es") + " " + fg(ColorMuted).Render("[N]o"),
	)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(ColorBg))
}
