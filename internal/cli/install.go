package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/enum"

	"github.com/spf13/cobra"
)

var (
	installOnlyDownload   bool
	installSimulate       bool
	installAllowReinstall bool
	installAllowDowngrade bool
	installAllowUntrusted bool
)

var installCmd = &cobra.Command{
	Use:     "install PACKAGE...",
	Aliases: []string{"in", "add"},
	Short:   "Install one or more packages",
	Long: `Install packages from the configured repositories. Names are resolved
to package ids among packages that are not installed yet. Unless --yes is
given, the change is simulated and shown before anything is installed.

Examples:
  pkgd install powertop             # Install a package
  pkgd install -y powertop scribus  # Install without confirmation
  pkgd install --simulate scribus   # Show what would be installed
  pkgd install --only-download vim  # Fetch packages into the cache only`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

var installLocalCmd = &cobra.Command{
	Use:   "install-local FILE...",
	Short: "Install local package files",
	Long: `Install package files from disk. Local files are untrusted unless
their signatures can be verified.

Examples:
  pkgd install-local ./foo-1.0-1-x86_64.pkg.tar.zst`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstallLocal,
}

var downloadCmd = &cobra.Command{
	Use:   "download DIRECTORY PACKAGE...",
	Short: "Download packages into a directory",
	Long: `Download package files without installing them.

Examples:
  pkgd download /tmp/pkgs powertop  # Fetch powertop into /tmp/pkgs`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDownload,
}

func init() {
	installCmd.Flags().BoolVar(&installOnlyDownload, "only-download", false, "download packages without installing")
	installCmd.Flags().BoolVar(&installSimulate, "simulate", false, "show what would change without changing anything")
	installCmd.Flags().BoolVar(&installAllowReinstall, "allow-reinstall", false, "allow reinstalling installed packages")
	installCmd.Flags().BoolVar(&installAllowDowngrade, "allow-downgrade", false, "allow installing older versions")
	installCmd.Flags().BoolVar(&installAllowUntrusted, "allow-untrusted", false, "allow packages without a trusted signature")
	installLocalCmd.Flags().BoolVar(&installAllowUntrusted, "allow-untrusted", false, "allow files without a trusted signature")
	installLocalCmd.Flags().BoolVar(&installSimulate, "simulate", false, "show what would change without changing anything")
}

// installFlags maps the install flags onto transaction flags.
func installFlags() enum.TransactionFlag {
	flags := enum.FlagOnlyTrusted
	if installAllowUntrusted {
		flags = enum.FlagNone
	}
	if installSimulate {
		flags |= enum.FlagSimulate
	}
	if installOnlyDownload {
		flags |= enum.FlagOnlyDownload
	}
	if installAllowReinstall {
		flags |= enum.FlagAllowReinstall
	}
	if installAllowDowngrade {
		flags |= enum.FlagAllowDowngrade
	}
	return flags
}

// change previews a package-changing request, asks for confirmation and
// runs it. build is called once with FlagSimulate added for the preview.
func change(s *session, verb string, flags enum.TransactionFlag, build func(enum.TransactionFlag) transaction.Request) error {
	if flags.Has(enum.FlagSimulate) {
		res, err := s.run("Simulating "+verb, build(flags))
		ui.PrintPackages(res.Packages)
		return err
	}

	if !yes {
		res, err := s.query("Simulating "+verb, build(flags|enum.FlagSimulate))
		if err != nil {
			return err
		}
		if len(res.Packages) > 0 {
			ui.InfoMsg("The following packages will be affected:")
			ui.PrintPackages(res.Packages)
		}
		confirmed, err := ui.Confirm(fmt.Sprintf("Proceed with %s?", verb), true)
		if err != nil || !confirmed {
			return ErrAborted
		}
	}

	_, err := s.run("Running "+verb, build(flags))
	return err
}

func runInstall(cmd *cobra.Command, args []string) error {
	flags := installFlags()
	filter := enum.FilterNotInstalled
	if installAllowReinstall {
		filter = enum.FilterNone
	}
	return withSession(func(s *session) error {
		ids, err := s.resolve(args, filter)
		if err != nil {
			return err
		}
		return change(s, "installation", flags, func(f enum.TransactionFlag) transaction.Request {
			return &transaction.InstallRequest{Flags: f, PackageIDs: ids}
		})
	})
}

func runInstallLocal(cmd *cobra.Command, args []string) error {
	files := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		files = append(files, abs)
	}
	flags := installFlags()
	return withSession(func(s *session) error {
		return change(s, "installation", flags, func(f enum.TransactionFlag) transaction.Request {
			return &transaction.InstallFilesRequest{Flags: f, Files: files}
		})
	})
}

func runDownload(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return withSession(func(s *session) error {
		ids, err := s.resolve(args[1:], enum.FilterNone)
		if err != nil {
			return err
		}
		res, err := s.run("Downloading packages", &transaction.DownloadRequest{PackageIDs: ids, Directory: dir})
		for _, f := range res.Files {
			for _, file := range f.Files {
				ui.MutedMsg("  %s", file)
			}
		}
		return err
	})
}
