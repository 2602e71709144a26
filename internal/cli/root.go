// Package cli implements the command-line interface for pkgd.
package cli

import (
	"pkgd/internal/config"
	"pkgd/internal/ui"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	backendName string
	yes         bool
	verbose     bool
	noColor     bool

	// cfg is loaded before any command runs.
	cfg *config.Config
)

// Set with -ldflags at build time.
var (
	Version   = "0.1.0-dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pkgd",
	Short: "Package transaction daemon and client",
	Long: `pkgd queues, authorizes and runs package management transactions
against the system's native package backend. Read-only queries run side by
side; anything that changes the system runs one at a time.

Examples:
  pkgd search name vim              # Search package names
  pkgd install vim                  # Install a package
  pkgd update                       # Install all available updates
  pkgd daemon                       # Run the transaction daemon
  pkgd console                      # Watch and drive transactions interactively`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeApp()
	},
}

// Command groups shown in help.
const (
	groupQuery  = "query"
	groupChange = "change"
	groupAdmin  = "admin"
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file path")
	flags.StringVarP(&backendName, "backend", "b", "", "backend to use (pacman, dummy, auto)")
	flags.BoolVarP(&yes, "yes", "y", false, "assume yes to all prompts")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupQuery, Title: "Query commands:"},
		&cobra.Group{ID: groupChange, Title: "Commands that change the system:"},
		&cobra.Group{ID: groupAdmin, Title: "Daemon and administration:"},
	)

	grouped := map[string][]*cobra.Command{
		groupQuery: {
			searchCmd, whatProvidesCmd, resolveCmd, infoCmd, filesCmd,
			updateDetailCmd, listCmd, updatesCmd, categoriesCmd,
			dependsOnCmd, requiredByCmd, distroUpgradesCmd, historyCmd,
		},
		groupChange: {
			installCmd, installLocalCmd, downloadCmd, removeCmd, refreshCmd,
			updateCmd, upgradeCmd, repairCmd, repoCmd,
			acceptEulaCmd, installSignatureCmd,
		},
		groupAdmin: {
			daemonCmd, consoleCmd, backendsCmd, proxyCmd, doctorCmd,
		},
	}
	for id, cmds := range grouped {
		for _, c := range cmds {
			c.GroupID = id
			rootCmd.AddCommand(c)
		}
	}
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		ui.ErrorMsg("%v", err)
	}
	return err
}

// initializeApp sets up the application state.
func initializeApp() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if backendName != "" {
		cfg.Daemon.Backend = backendName
	}
	if noColor {
		cfg.Output.Color = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ui.Init(cfg.ShouldUseColor(), cfg.Output.Unicode)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print pkgd version",
	Run: func(cmd *cobra.Command, args []string) {
		ui.InfoMsg("pkgd version %s", Version)
		if Commit != "unknown" {
			ui.MutedMsg("  Commit: %s", Commit)
		}
		if BuildTime != "unknown" {
			ui.MutedMsg("  Built:  %s", BuildTime)
		}
	},
}
