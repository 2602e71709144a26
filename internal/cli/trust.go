package cli

import (
	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/enum"
	"pkgd/pkg/packageid"

	"github.com/spf13/cobra"
)

var signatureType string

var acceptEulaCmd = &cobra.Command{
	Use:   "accept-eula EULA_ID",
	Short: "Accept a package licence agreement",
	Long: `Record that you accept a licence agreement so packages shipped under
it can be installed.

Examples:
  pkgd accept-eula nvidia-eula      # Accept the licence, then retry the install`,
	Args: cobra.ExactArgs(1),
	RunE: runAcceptEula,
}

var installSignatureCmd = &cobra.Command{
	Use:   "install-signature KEY_ID PACKAGE",
	Short: "Trust a repository signing key",
	Long: `Import the signing key of the repository PACKAGE comes from.

Examples:
  pkgd install-signature BB7576AC vips-doc    # Trust the key, then retry`,
	Args: cobra.ExactArgs(2),
	RunE: runInstallSignature,
}

func init() {
	installSignatureCmd.Flags().StringVarP(&signatureType, "type", "t", "gpg", "signature type")
}

func runAcceptEula(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		if _, err := s.run("Accepting licence", &transaction.AcceptEulaRequest{EulaID: args[0]}); err != nil {
			return err
		}
		ui.SuccessMsg("Licence %s accepted", args[0])
		return nil
	})
}

func runInstallSignature(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		id := args[1]
		if !packageid.Valid(id) {
			ids, err := s.resolve([]string{id}, enum.FilterNone)
			if err != nil {
				return err
			}
			id = ids[0]
		}
		req := &transaction.InstallSignatureRequest{
			Type:      enum.ParseSigType(signatureType),
			KeyID:     args[0],
			PackageID: id,
		}
		if _, err := s.run("Importing key", req); err != nil {
			return err
		}
		ui.SuccessMsg("Key %s is now trusted", args[0])
		return nil
	})
}
