package cli

import (
	"fmt"
	"strings"

	"pkgd/internal/ui"
	"pkgd/pkg/backend/detector"

	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:     "backends",
	Aliases: []string{"system", "backend-details"},
	Short:   "Show system and backend information",
	Long: `Display the detected system, the active backend and what it
supports.

Examples:
  pkgd backends               # Show system and backend info
  pkgd backends -b dummy -v   # Inspect the dummy backend in detail`,
	Args: cobra.NoArgs,
	RunE: runBackends,
}

func runBackends(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		var prettyName, arch, distro string
		if info, err := detector.Detect(); err == nil {
			prettyName, arch, distro = info.PrettyName, info.PackageArch(), info.ID
		} else {
			ui.WarningMsg("System detection failed: %v", err)
		}

		var available []string
		for _, b := range s.engine.Pool().Available() {
			available = append(available, b.Name())
		}

		d := s.engine.BackendDetails()
		ui.PrintSystemInfo(prettyName, arch, distro, d.Name, available)

		ui.HeaderMsg("Backend %s", d.Name)
		fmt.Printf("  %s: %s\n", ui.Cyan("Description"), d.Description)
		if d.Author != "" {
			fmt.Printf("  %s: %s\n", ui.Cyan("Author"), d.Author)
		}
		fmt.Printf("  %s: %v\n", ui.Cyan("Parallel"), d.Parallel)
		fmt.Printf("  %s: %v\n", ui.Cyan("Locked"), s.engine.Locked())
		fmt.Printf("  %s: %d\n", ui.Cyan("Roles"), len(d.Roles.List()))

		if verbose {
			fmt.Printf("  %s: %s\n", ui.Cyan("Filters"), d.Filters)
			for _, r := range d.Roles.List() {
				ui.MutedMsg("    %s", r)
			}
			groups := make([]string, 0, len(d.Groups))
			for _, g := range d.Groups {
				groups = append(groups, g.String())
			}
			fmt.Printf("  %s: %s\n", ui.Cyan("Groups"), strings.Join(groups, ", "))
			if len(d.MimeTypes) > 0 {
				fmt.Printf("  %s: %s\n", ui.Cyan("MIME types"), strings.Join(d.MimeTypes, ", "))
			}
		}
		return nil
	})
}
