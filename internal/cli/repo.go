package cli

import (
	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/enum"

	"github.com/spf13/cobra"
)

var (
	repoFilter     string
	repoAutoremove bool
)

var repoCmd = &cobra.Command{
	Use:     "repo",
	Aliases: []string{"repos"},
	Short:   "Manage package repositories",
	Long: `List, enable, disable, configure and remove package repositories.

Examples:
  pkgd repo list                    # Show all repositories
  pkgd repo disable multilib        # Stop using a repository
  pkgd repo set extra url https://mirror.example/extra`,
}

var repoListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List repositories",
	Args:    cobra.NoArgs,
	RunE:    runRepoList,
}

var repoEnableCmd = &cobra.Command{
	Use:   "enable REPO",
	Short: "Enable a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepoEnable(args[0], true)
	},
}

var repoDisableCmd = &cobra.Command{
	Use:   "disable REPO",
	Short: "Disable a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepoEnable(args[0], false)
	},
}

var repoSetCmd = &cobra.Command{
	Use:   "set REPO PARAMETER VALUE",
	Short: "Change a repository setting",
	Args:  cobra.ExactArgs(3),
	RunE:  runRepoSet,
}

var repoRemoveCmd = &cobra.Command{
	Use:     "remove REPO",
	Aliases: []string{"rm"},
	Short:   "Remove a repository",
	Args:    cobra.ExactArgs(1),
	RunE:    runRepoRemove,
}

func init() {
	repoListCmd.Flags().StringVarP(&repoFilter, "filter", "f", "", "filter repositories (e.g. ~devel)")
	repoRemoveCmd.Flags().BoolVar(&repoAutoremove, "autoremove", false, "remove packages installed from the repository")

	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoEnableCmd)
	repoCmd.AddCommand(repoDisableCmd)
	repoCmd.AddCommand(repoSetCmd)
	repoCmd.AddCommand(repoRemoveCmd)
}

func runRepoList(cmd *cobra.Command, args []string) error {
	f, err := parseFilter(repoFilter)
	if err != nil {
		return err
	}
	return withSession(func(s *session) error {
		res, err := s.query("Getting repositories", &transaction.ListRequest{Kind: enum.RoleGetRepoList, Filters: f})
		if err != nil {
			return err
		}
		ui.PrintRepos(res.Repos)
		return nil
	})
}

func runRepoEnable(repo string, enabled bool) error {
	title := "Disabling " + repo
	if enabled {
		title = "Enabling " + repo
	}
	return withSession(func(s *session) error {
		_, err := s.run(title, &transaction.RepoEnableRequest{RepoID: repo, Enabled: enabled})
		return err
	})
}

func runRepoSet(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		_, err := s.run("Configuring "+args[0], &transaction.RepoSetDataRequest{
			RepoID:    args[0],
			Parameter: args[1],
			Value:     args[2],
		})
		return err
	})
}

func runRepoRemove(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		if !yes {
			confirmed, err := ui.Confirm("Remove repository "+args[0]+"?", false)
			if err != nil || !confirmed {
				return ErrAborted
			}
		}
		_, err := s.run("Removing "+args[0], &transaction.RepoRemoveRequest{
			Flags:      enum.FlagOnlyTrusted,
			RepoID:     args[0],
			Autoremove: repoAutoremove,
		})
		return err
	})
}
