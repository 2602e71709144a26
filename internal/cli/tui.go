package cli

import (
	"pkgd/internal/authority"
	"pkgd/internal/tui"

	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:     "console",
	Aliases: []string{"tui"},
	Short:   "Launch the interactive transaction console",
	Long: `Launch the interactive terminal console for pkgd.

The console provides a live view of:
  - Queued, running and finished transactions
  - Package search results and available updates
  - Transaction history
  - The active backend and scheduler state

Authorization requests are answered in a dialog inside the console.

Navigation:
  - Use arrow keys or j/k to navigate
  - Press 1-5 to switch tabs
  - Press / to search
  - Press i to install, r to remove, c to cancel a transaction
  - Press ? for help
  - Press q to quit`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		agent := authority.NewQueueAgent(4)
		if yes {
			s.engine.SetAgent(authority.AutoAgent(true))
		} else {
			s.engine.SetAgent(agent)
		}
		return tui.Run(s.engine, s.subject, agent)
	})
}
