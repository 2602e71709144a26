package cli

import (
	"fmt"
	"os"

	"pkgd/internal/config"
	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/backend/detector"
	"pkgd/pkg/enum"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration and backend issues",
	Long: `Check the configuration, the data directory and the backend, then
run a harmless query end to end.

Examples:
  pkgd doctor               # Run diagnostics`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	issues := 0

	ui.HeaderMsg("Running diagnostics...")

	// Check system detection
	if info, err := detector.Detect(); err != nil {
		ui.ErrorMsg("System detection failed: %v", err)
		issues++
	} else {
		ui.SuccessMsg("System detected: %s (%s)", info.PrettyName, info.PackageArch())
		if native := info.NativeBackend(); native != "" {
			ui.SuccessMsg("Native backend: %s", native)
		} else {
			ui.WarningMsg("No native backend for this distribution; only the dummy backend is usable")
		}
	}

	// Check config
	ui.HeaderMsg("Configuration")
	path := cfgFile
	if path == "" {
		path = config.ConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		ui.MutedMsg("No config file at %s, using defaults", path)
	} else {
		ui.SuccessMsg("Config file: %s", path)
	}
	if err := cfg.Validate(); err != nil {
		ui.ErrorMsg("Configuration is invalid: %v", err)
		issues++
	} else {
		ui.SuccessMsg("Configuration is valid (backend %s, default policy %s)", cfg.Daemon.Backend, cfg.Authorization.Default)
	}

	if err := config.EnsureDataDir(); err != nil {
		ui.ErrorMsg("Data directory %s is not writable: %v", config.DataDir(), err)
		issues++
	} else {
		ui.SuccessMsg("Data directory: %s", config.DataDir())
	}

	// Test basic operations
	ui.HeaderMsg("Testing Operations")

	err := withSession(func(s *session) error {
		d := s.engine.BackendDetails()
		ui.SuccessMsg("Backend %s loaded (%d roles)", d.Name, len(d.Roles.List()))

		if !d.Roles.Has(enum.RoleSearchName) {
			ui.MutedMsg("Backend cannot search names, skipping query test")
			return nil
		}
		s.quiet = true
		if _, err := s.query("Testing search", &transaction.SearchRequest{
			Kind:    enum.RoleSearchName,
			Filters: enum.FilterNone,
			Values:  []string{"test"},
		}); err != nil {
			return fmt.Errorf("search test failed: %w", err)
		}
		ui.SuccessMsg("Search operation works")

		if _, err := s.query("Reading history", &transaction.OldTransactionsRequest{Number: 1}); err != nil {
			return fmt.Errorf("history test failed: %w", err)
		}
		ui.SuccessMsg("Transaction database works")
		return nil
	})
	if err != nil {
		ui.ErrorMsg("%v", err)
		issues++
	}

	// Summary
	ui.HeaderMsg("Summary")
	if issues == 0 {
		ui.SuccessMsg("No issues found! pkgd is ready to use.")
	} else {
		ui.WarningMsg("Found %d issue(s). Some features may not work correctly.", issues)
	}

	return nil
}
