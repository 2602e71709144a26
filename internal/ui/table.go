package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
	"pkgd/pkg/packageid"
)

// Table wraps tabwriter for consistent styling.
type Table struct {
	writer  *tabwriter.Writer
	headers []string
}

// NewTable creates a new table with default styling.
func NewTable(header []string) *Table {
	return NewTableWriter(os.Stdout, header)
}

// NewTableWriter creates a new table that writes to a specific writer.
func NewTableWriter(w io.Writer, header []string) *Table {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	t := &Table{
		writer:  tw,
		headers: header,
	}
	if len(header) > 0 {
		headerRow := make([]string, len(header))
		for i, h := range header {
			headerRow[i] = Bold(strings.ToUpper(h))
		}
		fmt.Fprintln(tw, strings.Join(headerRow, "\t"))
	}
	return t
}

// AddRow adds a row to the table.
func (t *Table) AddRow(row []string) {
	fmt.Fprintln(t.writer, strings.Join(row, "\t"))
}

// Render flushes the table.
func (t *Table) Render() {
	t.writer.Flush()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// PrintPackages prints package events in a formatted table.
func PrintPackages(packages []backend.PackageEvent) {
	FprintPackages(os.Stdout, packages)
}

// FprintPackages is PrintPackages writing to w.
func FprintPackages(w io.Writer, packages []backend.PackageEvent) {
	if len(packages) == 0 {
		MutedMsg("No packages found")
		return
	}

	t := NewTableWriter(w, []string{"info", "name", "version", "arch", "repo", "summary"})
	for _, pkg := range packages {
		id, err := packageid.Parse(pkg.PackageID)
		if err != nil {
			continue
		}
		t.AddRow([]string{
			InfoColor(pkg.Info).Sprint(pkg.Info.String()),
			PackageName.Sprint(id.Name),
			PackageVersion.Sprint(id.Version),
			id.Arch,
			PackageRepo.Sprint(id.Data),
			truncate(pkg.Summary, 50),
		})
	}
	t.Render()
}

// PrintDetails prints the details of one package.
func PrintDetails(d backend.DetailsEvent) {
	HeaderMsg("%s", printable(d.PackageID))

	printField("Summary", d.Summary)
	if d.Description != "" && d.Description != d.Summary {
		printField("Description", d.Description)
	}
	if d.License != "" {
		printField("License", d.License)
	}
	if d.Group != enum.GroupUnknown {
		printField("Group", d.Group.String())
	}
	if d.URL != "" {
		printField("URL", d.URL)
	}
	if d.Size > 0 {
		printField("Size", FormatSize(d.Size))
	}
}

// PrintFiles prints the file list of one package.
func PrintFiles(f backend.FilesEvent) {
	HeaderMsg("%s (%d files)", printable(f.PackageID), len(f.Files))
	for _, file := range f.Files {
		fmt.Println("  " + file)
	}
}

// PrintUpdateDetail prints what an update changes.
func PrintUpdateDetail(u backend.UpdateDetailEvent) {
	HeaderMsg("%s", printable(u.PackageID))

	if len(u.Updates) > 0 {
		printField("Updates", strings.Join(packageid.Names(u.Updates), ", "))
	}
	if len(u.Obsoletes) > 0 {
		printField("Obsoletes", strings.Join(packageid.Names(u.Obsoletes), ", "))
	}
	if u.Restart != enum.RestartNone && u.Restart != enum.RestartUnknown {
		printField("Restart", u.Restart.String())
	}
	if u.UpdateText != "" {
		printField("Text", u.UpdateText)
	}
	for _, url := range u.CVEURLs {
		printField("CVE", url)
	}
	if u.Issued != "" {
		printField("Issued", u.Issued)
	}
}

// PrintRepos prints the configured repositories.
func PrintRepos(repos []backend.RepoDetailEvent) {
	if len(repos) == 0 {
		MutedMsg("No repositories configured")
		return
	}

	t := NewTable([]string{"id", "enabled", "description"})
	for _, r := range repos {
		enabled := NotInstalled.Sprint("no")
		if r.Enabled {
			enabled = Installed.Sprint("yes")
		}
		t.AddRow([]string{PackageRepo.Sprint(r.RepoID), enabled, r.Description})
	}
	t.Render()
}

// printField prints a single field with formatting.
func printField(label, value string) {
	fmt.Printf("  %s: %s\n", Cyan(label), value)
}

// FormatSize renders a byte count.
func FormatSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// PrintSystemInfo prints system and backend information.
func PrintSystemInfo(prettyName, arch, distro, active string, available []string) {
	HeaderMsg("System Information")

	printField("Operating System", prettyName)
	printField("Architecture", arch)

	if distro != "" {
		printField("Distribution", distro)
	}

	if active != "" {
		printField("Active Backend", active)
	}

	if len(available) > 0 {
		printField("Available Backends", strings.Join(available, ", "))
	}
}

func printable(s string) string {
	id, err := packageid.Parse(s)
	if err != nil {
		return s
	}
	return id.Printable()
}
