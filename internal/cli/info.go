package cli

import (
	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/enum"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:     "info PACKAGE...",
	Aliases: []string{"get-details"},
	Short:   "Show package details",
	Long: `Show the summary, license, group, URL and size of packages. Names are
resolved to package ids first.

Examples:
  pkgd info powertop                        # Details of powertop
  pkgd info "powertop;2.15-1;x86_64;extra"  # Details of an exact package id`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

var filesCmd = &cobra.Command{
	Use:     "files PACKAGE...",
	Aliases: []string{"get-files"},
	Short:   "List the files of packages",
	Long: `List every file a package installs.

Examples:
  pkgd files glib2                          # Files owned by glib2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFiles,
}

var updateDetailCmd = &cobra.Command{
	Use:     "update-detail PACKAGE...",
	Aliases: []string{"get-update-detail"},
	Short:   "Show what an update changes",
	Long: `Show the changelog, bug references and restart requirement of pending
updates.

Examples:
  pkgd update-detail glib2                  # What the glib2 update brings`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdateDetail,
}

// details resolves args and runs a details-style request of the given role.
func details(s *session, role enum.Role, args []string) (transaction.Results, error) {
	ids, err := s.resolve(args, enum.FilterNone)
	if err != nil {
		return transaction.Results{}, err
	}
	return s.query("Getting "+role.String(), &transaction.DetailsRequest{Kind: role, PackageIDs: ids})
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		res, err := details(s, enum.RoleGetDetails, args)
		if err != nil {
			return err
		}
		for _, d := range res.Details {
			ui.PrintDetails(d)
		}
		return nil
	})
}

func runFiles(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		res, err := details(s, enum.RoleGetFiles, args)
		if err != nil {
			return err
		}
		for _, f := range res.Files {
			ui.PrintFiles(f)
		}
		return nil
	})
}

func runUpdateDetail(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		res, err := details(s, enum.RoleGetUpdateDetail, args)
		if err != nil {
			return err
		}
		if len(res.UpdateDetails) == 0 {
			ui.MutedMsg("No update details available")
		}
		for _, u := range res.UpdateDetails {
			ui.PrintUpdateDetail(u)
		}
		return nil
	})
}
