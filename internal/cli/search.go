package cli

import (
	"fmt"

	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/enum"

	"github.com/spf13/cobra"
)

var (
	searchFilter  string
	resolveFilter string
)

var searchKinds = map[string]enum.Role{
	"name":    enum.RoleSearchName,
	"details": enum.RoleSearchDetails,
	"file":    enum.RoleSearchFile,
	"group":   enum.RoleSearchGroup,
}

var searchCmd = &cobra.Command{
	Use:   "search {name|details|file|group} TERMS...",
	Short: "Search for packages",
	Long: `Search package names, descriptions, file lists or groups. Every term
must match.

Examples:
  pkgd search name power                  # Packages whose name contains "power"
  pkgd search details editor              # Search summaries and descriptions
  pkgd search file /usr/bin/vim           # Which package owns a file
  pkgd search group games -f ~installed   # Games that are not installed`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSearch,
}

var whatProvidesCmd = &cobra.Command{
	Use:   "what-provides CAPABILITY...",
	Short: "Find packages providing a capability",
	Long: `List packages that provide a capability such as a library soname or
a virtual package.

Examples:
  pkgd what-provides libgl                # Packages providing libgl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWhatProvides,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve NAME...",
	Short: "Resolve package names to package ids",
	Long: `Print the package ids that exactly match each name.

Examples:
  pkgd resolve glib2                      # Every glib2 the backend knows
  pkgd resolve glib2 -f installed         # Only the installed one`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	searchCmd.Flags().StringVarP(&searchFilter, "filter", "f", "", "filter results (e.g. installed;~devel)")
	whatProvidesCmd.Flags().StringVarP(&searchFilter, "filter", "f", "", "filter results (e.g. installed;~devel)")
	resolveCmd.Flags().StringVarP(&resolveFilter, "filter", "f", "", "filter results (e.g. installed)")
}

// searchRequest builds the request for "search KIND TERMS...".
func searchRequest(kind string, terms []string, filter string) (*transaction.SearchRequest, error) {
	role, ok := searchKinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSearch, kind)
	}
	f, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}
	return &transaction.SearchRequest{Kind: role, Filters: f, Values: terms}, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	req, err := searchRequest(args[0], args[1:], searchFilter)
	if err != nil {
		return err
	}
	return withSession(func(s *session) error {
		res, err := s.query(fmt.Sprintf("Searching %ss", args[0]), req)
		if err != nil {
			return err
		}
		ui.PrintPackages(res.Packages)
		return nil
	})
}

func runWhatProvides(cmd *cobra.Command, args []string) error {
	f, err := parseFilter(searchFilter)
	if err != nil {
		return err
	}
	req := &transaction.SearchRequest{Kind: enum.RoleWhatProvides, Filters: f, Values: args}
	return withSession(func(s *session) error {
		res, err := s.query("Searching providers", req)
		if err != nil {
			return err
		}
		ui.PrintPackages(res.Packages)
		return nil
	})
}

func runResolve(cmd *cobra.Command, args []string) error {
	f, err := parseFilter(resolveFilter)
	if err != nil {
		return err
	}
	return withSession(func(s *session) error {
		res, err := s.query("Resolving packages", &transaction.ResolveRequest{Filters: f, Packages: args})
		if err != nil {
			return err
		}
		if len(res.Packages) == 0 {
			return fmt.Errorf("%w: %v", ErrPackageNotFound, args)
		}
		for _, p := range res.Packages {
			fmt.Printf("%s\t%s\n", ui.InfoColor(p.Info).Sprint(p.Info), p.PackageID)
		}
		return nil
	})
}
