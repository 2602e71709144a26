package cli

import (
	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/enum"

	"github.com/spf13/cobra"
)

var (
	listFilter      string
	dependsFilter   string
	dependsRecurse  bool
	categoriesLimit int
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"get-packages"},
	Short:   "List packages",
	Long: `List every package the backend knows about, narrowed by a filter.

Examples:
  pkgd list -f installed            # Installed packages
  pkgd list -f ~installed;gui       # Graphical packages that are not installed`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(enum.RoleGetPackages, "Listing packages")
	},
}

var updatesCmd = &cobra.Command{
	Use:     "updates",
	Aliases: []string{"get-updates"},
	Short:   "List available updates",
	Long: `List packages with a newer version available. Run "pkgd refresh" first
to make sure the metadata is current.

Examples:
  pkgd updates                      # Pending updates`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(enum.RoleGetUpdates, "Checking for updates")
	},
}

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"get-categories"},
	Short:   "List package categories",
	Args:    cobra.NoArgs,
	RunE:    runCategories,
}

var dependsOnCmd = &cobra.Command{
	Use:     "depends-on PACKAGE...",
	Aliases: []string{"deps"},
	Short:   "List the dependencies of packages",
	Long: `List the packages the given packages depend on.

Examples:
  pkgd depends-on scribus           # Direct dependencies of scribus
  pkgd depends-on scribus -r        # And their dependencies, recursively`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDepends(enum.RoleDependsOn, args)
	},
}

var requiredByCmd = &cobra.Command{
	Use:     "required-by PACKAGE...",
	Aliases: []string{"rdeps"},
	Short:   "List packages that require the given packages",
	Long: `List the packages that would break if the given packages were removed.

Examples:
  pkgd required-by glib2 -f installed   # Installed packages needing glib2`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDepends(enum.RoleRequiredBy, args)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "filter results (e.g. installed;~devel)")
	updatesCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "filter results (e.g. ~devel)")
	categoriesCmd.Flags().IntVarP(&categoriesLimit, "limit", "l", 0, "limit results (0 = all)")
	for _, c := range []*cobra.Command{dependsOnCmd, requiredByCmd} {
		c.Flags().StringVarP(&dependsFilter, "filter", "f", "", "filter results (e.g. installed)")
		c.Flags().BoolVarP(&dependsRecurse, "recursive", "r", false, "follow dependencies recursively")
	}
}

func runList(role enum.Role, title string) error {
	f, err := parseFilter(listFilter)
	if err != nil {
		return err
	}
	return withSession(func(s *session) error {
		res, err := s.query(title, &transaction.ListRequest{Kind: role, Filters: f})
		if err != nil {
			return err
		}
		ui.PrintPackages(res.Packages)
		if role == enum.RoleGetUpdates && len(res.Packages) > 0 {
			ui.InfoMsg("%d update(s) available", len(res.Packages))
		}
		return nil
	})
}

func runCategories(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		res, err := s.query("Getting categories", &transaction.CategoriesRequest{})
		if err != nil {
			return err
		}
		if len(res.Categories) == 0 {
			ui.MutedMsg("No categories found")
			return nil
		}
		t := ui.NewTable([]string{"id", "parent", "name", "summary"})
		for i, c := range res.Categories {
			if categoriesLimit > 0 && i >= categoriesLimit {
				break
			}
			t.AddRow([]string{c.CatID, c.ParentID, c.Name, c.Summary})
		}
		t.Render()
		return nil
	})
}

func runDepends(role enum.Role, args []string) error {
	f, err := parseFilter(dependsFilter)
	if err != nil {
		return err
	}
	return withSession(func(s *session) error {
		ids, err := s.resolve(args, enum.FilterNone)
		if err != nil {
			return err
		}
		res, err := s.query("Getting "+role.String(), &transaction.DependsRequest{
			Kind:       role,
			Filters:    f,
			PackageIDs: ids,
			Recursive:  dependsRecurse,
		})
		if err != nil {
			return err
		}
		ui.PrintPackages(res.Packages)
		return nil
	})
}
