package cli

import (
	"fmt"

	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/enum"

	"github.com/spf13/cobra"
)

var (
	updateSimulate     bool
	updateOnlyDownload bool
	upgradeKind        string
)

var updateCmd = &cobra.Command{
	Use:     "update [PACKAGE...]",
	Aliases: []string{"up"},
	Short:   "Install available updates",
	Long: `Update the given packages, or every package with an update available
when none are given.

Examples:
  pkgd update                       # Install all updates
  pkgd update glib2                 # Update one package
  pkgd update --only-download       # Fetch updates for later`,
	RunE: runUpdate,
}

var upgradeCmd = &cobra.Command{
	Use:     "upgrade-system DISTRO",
	Aliases: []string{"upgrade"},
	Short:   "Upgrade to a new distribution release",
	Long: `Upgrade the system to the named distribution release. Use
"pkgd distro-upgrades" to see what is available.

Examples:
  pkgd upgrade-system rolling               # Default upgrade
  pkgd upgrade-system rolling -k minimal    # Change as little as possible`,
	Args: cobra.ExactArgs(1),
	RunE: runUpgrade,
}

var distroUpgradesCmd = &cobra.Command{
	Use:     "distro-upgrades",
	Aliases: []string{"get-distro-upgrades"},
	Short:   "List available distribution upgrades",
	Args:    cobra.NoArgs,
	RunE:    runDistroUpgrades,
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair a broken package database",
	Long: `Try to recover from an interrupted transaction or a broken package
database.

Examples:
  pkgd repair`,
	Args: cobra.NoArgs,
	RunE: runRepair,
}

func init() {
	updateCmd.Flags().BoolVar(&updateSimulate, "simulate", false, "show what would change without changing anything")
	updateCmd.Flags().BoolVar(&updateOnlyDownload, "only-download", false, "download updates without installing")
	upgradeCmd.Flags().StringVarP(&upgradeKind, "kind", "k", "default", "upgrade kind (minimal, default, complete)")
}

func updateFlags() enum.TransactionFlag {
	flags := enum.FlagOnlyTrusted
	if updateSimulate {
		flags |= enum.FlagSimulate
	}
	if updateOnlyDownload {
		flags |= enum.FlagOnlyDownload
	}
	return flags
}

func runUpdate(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		var ids []string
		if len(args) > 0 {
			var err error
			if ids, err = s.resolve(args, enum.FilterNone); err != nil {
				return err
			}
		} else {
			res, err := s.query("Checking for updates", &transaction.ListRequest{Kind: enum.RoleGetUpdates, Filters: enum.FilterNone})
			if err != nil {
				return err
			}
			for _, p := range res.Packages {
				if p.Info == enum.InfoBlocked {
					continue
				}
				ids = append(ids, p.PackageID)
			}
		}
		if len(ids) == 0 {
			ui.SuccessMsg("System is up to date")
			return nil
		}

		return change(s, "update", updateFlags(), func(f enum.TransactionFlag) transaction.Request {
			return &transaction.UpdateRequest{Flags: f, PackageIDs: ids}
		})
	})
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	kind := enum.ParseUpgradeKind(upgradeKind)
	if kind == enum.UpgradeKindUnknown {
		return fmt.Errorf("unknown upgrade kind: %s", upgradeKind)
	}
	return withSession(func(s *session) error {
		return change(s, "system upgrade", updateFlags(), func(f enum.TransactionFlag) transaction.Request {
			return &transaction.UpgradeRequest{Flags: f, DistroID: args[0], Kind: kind}
		})
	})
}

func runDistroUpgrades(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		res, err := s.query("Checking for distribution upgrades", &transaction.DistroUpgradesRequest{})
		if err != nil {
			return err
		}
		if len(res.DistroUpgrades) == 0 {
			ui.MutedMsg("No distribution upgrades available")
			return nil
		}
		t := ui.NewTable([]string{"name", "state", "summary"})
		for _, u := range res.DistroUpgrades {
			t.AddRow([]string{ui.Bold(u.Name), u.State.String(), u.Summary})
		}
		t.Render()
		return nil
	})
}

func runRepair(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		_, err := s.run("Repairing system", &transaction.RepairRequest{Flags: enum.FlagOnlyTrusted})
		return err
	})
}
