package cli

import (
	"time"

	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/enum"

	"github.com/spf13/cobra"
)

var refreshForce bool

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Aliases: []string{"refresh-cache"},
	Short:   "Refresh repository metadata",
	Long: `Download fresh package metadata from every enabled repository.

Examples:
  pkgd refresh                      # Refresh metadata
  pkgd refresh --force              # Refresh even if the cache is current`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVarP(&refreshForce, "force", "f", false, "refresh even when the cache is current")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		if since, ok, err := s.engine.TimeSinceAction(enum.RoleRefreshCache); err == nil && ok {
			ui.MutedMsg("Metadata was last refreshed %s ago", since.Round(time.Second))
		}
		_, err := s.run("Refreshing package metadata", &transaction.RefreshRequest{Force: refreshForce})
		return err
	})
}
