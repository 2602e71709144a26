package cli

import (
	"pkgd/internal/transaction"
	"pkgd/pkg/enum"

	"github.com/spf13/cobra"
)

var (
	removeAllowDeps  bool
	removeAutoremove bool
	removeSimulate   bool
)

var removeCmd = &cobra.Command{
	Use:     "remove PACKAGE...",
	Aliases: []string{"uninstall", "rm"},
	Short:   "Remove one or more packages",
	Long: `Remove installed packages. Names are resolved among installed packages
only.

Examples:
  pkgd remove powertop              # Remove a package
  pkgd remove -y powertop           # Remove without confirmation
  pkgd remove --deps glib2          # Also remove packages that need it
  pkgd remove --autoremove scribus  # Also remove dependencies left unused`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVar(&removeAllowDeps, "deps", false, "remove packages that depend on the given packages")
	removeCmd.Flags().BoolVar(&removeAutoremove, "autoremove", false, "remove dependencies no longer needed")
	removeCmd.Flags().BoolVar(&removeSimulate, "simulate", false, "show what would change without changing anything")
}

func runRemove(cmd *cobra.Command, args []string) error {
	flags := enum.FlagNone
	if removeSimulate {
		flags |= enum.FlagSimulate
	}
	return withSession(func(s *session) error {
		ids, err := s.resolve(args, enum.FilterInstalled)
		if err != nil {
			return err
		}
		return change(s, "removal", flags, func(f enum.TransactionFlag) transaction.Request {
			return &transaction.RemoveRequest{
				Flags:      f,
				PackageIDs: ids,
				AllowDeps:  removeAllowDeps,
				Autoremove: removeAutoremove,
			}
		})
	})
}
