package cli

import (
	"context"
	"os"
	"strings"

	"pkgd/internal/ui"
	"pkgd/pkg/backend"

	"github.com/spf13/cobra"
)

var (
	proxySettings backend.Proxy
	proxyFromEnv  bool
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Set the network proxy used for your transactions",
	Long: `Store the network proxy backends use for transactions started from
your login session. Running without flags clears the settings.

Examples:
  pkgd proxy --http http://proxy:3128 --no-proxy localhost
  pkgd proxy --from-env             # Copy http_proxy, https_proxy, ...
  pkgd proxy                        # Clear the proxy`,
	Args: cobra.NoArgs,
	RunE: runProxy,
}

func init() {
	proxyCmd.Flags().StringVar(&proxySettings.HTTP, "http", "", "HTTP proxy")
	proxyCmd.Flags().StringVar(&proxySettings.HTTPS, "https", "", "HTTPS proxy")
	proxyCmd.Flags().StringVar(&proxySettings.FTP, "ftp", "", "FTP proxy")
	proxyCmd.Flags().StringVar(&proxySettings.Socks, "socks", "", "SOCKS proxy")
	proxyCmd.Flags().StringVar(&proxySettings.NoProxy, "no-proxy", "", "hosts that bypass the proxy")
	proxyCmd.Flags().StringVar(&proxySettings.PAC, "pac", "", "proxy auto-config URL")
	proxyCmd.Flags().BoolVar(&proxyFromEnv, "from-env", false, "read the proxy from the environment")
}

// proxyFromEnvironment reads the conventional proxy variables, preferring
// the lower-case spelling.
func proxyFromEnvironment() backend.Proxy {
	get := func(name string) string {
		if v := os.Getenv(name); v != "" {
			return v
		}
		return os.Getenv(strings.ToUpper(name))
	}
	return backend.Proxy{
		HTTP:    get("http_proxy"),
		HTTPS:   get("https_proxy"),
		FTP:     get("ftp_proxy"),
		Socks:   get("all_proxy"),
		NoProxy: get("no_proxy"),
	}
}

func runProxy(cmd *cobra.Command, args []string) error {
	p := proxySettings
	if proxyFromEnv {
		p = proxyFromEnvironment()
	}
	return withSession(func(s *session) error {
		if err := s.engine.SetProxy(context.Background(), s.subject, p); err != nil {
			return err
		}
		if p == (backend.Proxy{}) {
			ui.SuccessMsg("Proxy cleared")
		} else {
			ui.SuccessMsg("Proxy saved for session %s", s.subject.Session)
		}
		return nil
	})
}
