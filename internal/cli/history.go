package cli

import (
	"fmt"

	"pkgd/internal/history"
	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/packageid"

	"github.com/spf13/cobra"
)

var (
	historyLimit    int
	historyPackages bool
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"get-old-transactions"},
	Short:   "Show transaction history",
	Long: `Display past transactions that changed the system, newest first.

Examples:
  pkgd history              # Show recent history
  pkgd history -l 20        # Show last 20 transactions
  pkgd history -p           # Include the packages each one touched`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 10, "number of entries to show (0 = all)")
	historyCmd.Flags().BoolVarP(&historyPackages, "packages", "p", false, "list the packages of each transaction")
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		res, err := s.query("Reading history", &transaction.OldTransactionsRequest{Number: historyLimit})
		if err != nil {
			return err
		}

		if len(res.Transactions) == 0 {
			ui.MutedMsg("No history entries found")
			return nil
		}

		ui.HeaderMsg("Transaction History")

		for i, ev := range res.Transactions {
			printEntry(i+1, ev.Entry)
		}
		return nil
	})
}

func printEntry(n int, entry history.Entry) {
	status := ui.Green("success")
	if !entry.Succeeded {
		status = ui.Red("failed")
	}

	var names []string
	for _, p := range entry.Packages() {
		names = append(names, packageid.Name(p.PackageID))
	}

	fmt.Printf("%2d. %s %s %s (%s, %s) %s\n",
		n,
		ui.Muted.Sprint(entry.FormatTime()),
		ui.Bold(entry.Role),
		formatPackages(names),
		status,
		elapsed(entry.Duration),
		ui.Muted.Sprintf("uid %d", entry.UID),
	)

	if historyPackages {
		for _, p := range entry.Packages() {
			ui.MutedMsg("      %s %s", ui.InfoColor(p.Info).Sprint(p.Info), p.PackageID)
		}
	}
	if verbose && entry.Cmdline != "" {
		ui.MutedMsg("      %s", entry.Cmdline)
	}
}

// formatPackages formats a list of packages for display.
func formatPackages(packages []string) string {
	if len(packages) == 0 {
		return ""
	}
	if len(packages) == 1 {
		return packages[0]
	}
	if len(packages) <= 3 {
		return fmt.Sprintf("%v", packages)
	}
	return fmt.Sprintf("%s (+%d more)", packages[0], len(packages)-1)
}

func elapsed(ms uint) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
