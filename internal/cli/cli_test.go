package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgd/internal/config"
	"pkgd/internal/engine"
	"pkgd/internal/history"
	"pkgd/internal/metrics"
	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/backend"
	"pkgd/pkg/backend/dummy"
	"pkgd/pkg/enum"
)

const powertop = "powertop;2.15-1;x86_64;extra"

// useDummy points the commands at an engine running the dummy backend with
// a throwaway history database.
func useDummy(t *testing.T) {
	t.Helper()
	ui.Init(false, false)

	hist, err := history.Open(filepath.Join(t.TempDir(), "transactions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	prevCfg, prevOpen, prevYes := cfg, openEngine, yes
	t.Cleanup(func() {
		cfg, openEngine, yes = prevCfg, prevOpen, prevYes
	})

	cfg = config.Default()
	cfg.Daemon.Backend = "dummy"
	cfg.Authorization.Default = "allow"
	yes = true
	openEngine = func(c *config.Config, logger *logrus.Logger, m *metrics.Collector) (*engine.Engine, error) {
		return engine.New(engine.Options{
			Config:   c,
			Logger:   logger,
			Metrics:  m,
			History:  hist,
			Backends: []backend.Backend{dummy.New(dummy.Options{})},
		})
	}
}

func quietSession(t *testing.T) *session {
	t.Helper()
	s, err := openSession()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.quiet = true
	return s
}

func TestParseFilter(t *testing.T) {
	f, err := parseFilter("")
	require.NoError(t, err)
	assert.Equal(t, enum.FilterNone, f)

	f, err = parseFilter("installed;~devel")
	require.NoError(t, err)
	assert.True(t, f.Has(enum.FilterInstalled))
	assert.True(t, f.Has(enum.FilterNotDevelopment))

	_, err = parseFilter("bogus")
	assert.Error(t, err)
}

func TestSearchRequest(t *testing.T) {
	req, err := searchRequest("details", []string{"power"}, "")
	require.NoError(t, err)
	assert.Equal(t, enum.RoleSearchDetails, req.Kind)
	assert.Equal(t, []string{"power"}, req.Values)

	_, err = searchRequest("colour", []string{"x"}, "")
	assert.True(t, errors.Is(err, ErrUnknownSearch))
}

func TestFormatPackages(t *testing.T) {
	assert.Equal(t, "", formatPackages(nil))
	assert.Equal(t, "a", formatPackages([]string{"a"}))
	assert.Equal(t, "[a b]", formatPackages([]string{"a", "b"}))
	assert.Equal(t, "a (+3 more)", formatPackages([]string{"a", "b", "c", "d"}))
}

func TestElapsed(t *testing.T) {
	assert.Equal(t, "250ms", elapsed(250))
	assert.Equal(t, "1.5s", elapsed(1500))
}

func TestProxyFromEnvironment(t *testing.T) {
	t.Setenv("http_proxy", "")
	t.Setenv("HTTP_PROXY", "http://upper:3128")
	t.Setenv("https_proxy", "http://lower:3128")
	t.Setenv("no_proxy", "localhost")

	p := proxyFromEnvironment()
	assert.Equal(t, "http://upper:3128", p.HTTP)
	assert.Equal(t, "http://lower:3128", p.HTTPS)
	assert.Equal(t, "localhost", p.NoProxy)
}

func TestSessionResolve(t *testing.T) {
	useDummy(t)
	s := quietSession(t)

	ids, err := s.resolve([]string{"powertop"}, enum.FilterNone)
	require.NoError(t, err)
	assert.Equal(t, []string{powertop}, ids)

	ids, err = s.resolve([]string{"glib2;2.80.0-1;x86_64;installed"}, enum.FilterNone)
	require.NoError(t, err)
	assert.Equal(t, []string{"glib2;2.80.0-1;x86_64;installed"}, ids)

	_, err = s.resolve([]string{"no-such-package"}, enum.FilterNone)
	assert.True(t, errors.Is(err, ErrPackageNotFound))

	_, err = s.resolve(nil, enum.FilterNone)
	assert.True(t, errors.Is(err, ErrNoPackages))
}

func TestSessionInstallAndHistory(t *testing.T) {
	useDummy(t)
	s := quietSession(t)

	err := change(s, "install", enum.FlagOnlyTrusted, func(f enum.TransactionFlag) transaction.Request {
		return &transaction.InstallRequest{Flags: f, PackageIDs: []string{powertop}}
	})
	require.NoError(t, err)

	ids, err := s.resolve([]string{"powertop"}, enum.FilterInstalled)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	res, err := s.query("Reading history", &transaction.OldTransactionsRequest{Number: 5})
	require.NoError(t, err)
	require.NotEmpty(t, res.Transactions)
	assert.Equal(t, "install-packages", res.Transactions[0].Entry.Role)
	assert.True(t, res.Transactions[0].Entry.Succeeded)
}

func TestSessionFailedTransaction(t *testing.T) {
	useDummy(t)
	s := quietSession(t)

	_, err := s.run("Installing", &transaction.InstallRequest{
		Flags:      enum.FlagOnlyTrusted,
		PackageIDs: []string{"glib2;2.80.0-1;x86_64;core"},
	})
	assert.True(t, errors.Is(err, ErrTransactionFailed))
}

func TestEulaThenInstall(t *testing.T) {
	useDummy(t)
	s := quietSession(t)

	ids, err := s.resolve([]string{dummy.EulaPackage}, enum.FilterNone)
	require.NoError(t, err)

	install := &transaction.InstallRequest{Flags: enum.FlagOnlyTrusted, PackageIDs: ids}
	res, err := s.run("Installing", install)
	require.ErrorIs(t, err, ErrTransactionFailed)
	require.Len(t, res.Eulas, 1)
	assert.Equal(t, dummy.EulaID, res.Eulas[0].EulaID)

	_, err = s.run("Accepting licence", &transaction.AcceptEulaRequest{EulaID: res.Eulas[0].EulaID})
	require.NoError(t, err)

	_, err = s.run("Installing", &transaction.InstallRequest{Flags: enum.FlagOnlyTrusted, PackageIDs: ids})
	assert.NoError(t, err)
}

func TestCommandsGrouped(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c == versionCmd || !c.IsAvailableCommand() {
			continue
		}
		assert.NotEmpty(t, c.GroupID, "command %q has no help group", c.Name())
	}
}
