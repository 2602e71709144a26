package engine

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgd/internal/authority"
	"pkgd/internal/config"
	"pkgd/internal/history"
	"pkgd/internal/logging"
	"pkgd/internal/metrics"
	"pkgd/internal/proxy"
	"pkgd/internal/transaction"
	"pkgd/pkg/backend"
	"pkgd/pkg/backend/dummy"
	"pkgd/pkg/enum"
)

const powertop = "powertop;2.15-1;x86_64;extra"

var user = authority.Subject{UID: 1000, Session: "s1", Cmdline: "pkgd test"}

type fixture struct {
	engine  *Engine
	dummy   *dummy.Dummy
	history *history.Store
	proxies *proxy.Store
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()

	hist, err := history.Open(filepath.Join(dir, "transactions.db"))
	if err != nil {
		t.Fatalf("history.Open() error: %v", err)
	}
	t.Cleanup(func() { hist.Close() })
	proxies, err := proxy.Open(filepath.Join(dir, "proxy.db"))
	if err != nil {
		t.Fatalf("proxy.Open() error: %v", err)
	}
	t.Cleanup(func() { proxies.Close() })

	cfg := config.Default()
	cfg.Daemon.Backend = "dummy"
	cfg.Authorization.Default = "allow"
	if mutate != nil {
		mutate(cfg)
	}

	d := dummy.New(dummy.Options{})
	e, err := New(Options{
		Config:   cfg,
		Logger:   logging.Discard(),
		Metrics:  metrics.NewCollector(),
		History:  hist,
		Proxies:  proxies,
		Backends: []backend.Backend{d},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &fixture{engine: e, dummy: d, history: hist, proxies: proxies}
}

// collect returns a handler gathering events and a channel closed on the
// finished event.
func collect() (func(backend.Event), func() []backend.Event, <-chan struct{}) {
	var mu sync.Mutex
	var events []backend.Event
	done := make(chan struct{})
	var once sync.Once
	fn := func(ev backend.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		if _, ok := ev.(transaction.FinishedEvent); ok {
			once.Do(func() { close(done) })
		}
	}
	get := func() []backend.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]backend.Event(nil), events...)
	}
	return fn, get, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("transaction did not finish")
	}
}

func TestNewTID(t *testing.T) {
	f := newFixture(t, nil)
	pattern := regexp.MustCompile(`^/(\d+)_[a-z]{8}$`)

	first, err := f.engine.NewTID()
	require.NoError(t, err)
	second, err := f.engine.NewTID()
	require.NoError(t, err)

	assert.Regexp(t, pattern, first)
	assert.Regexp(t, pattern, second)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "1", pattern.FindStringSubmatch(first)[1])
	assert.Equal(t, "2", pattern.FindStringSubmatch(second)[1])
}

func TestNewTIDWithoutHistory(t *testing.T) {
	cfg := config.Default()
	cfg.Daemon.Backend = "dummy"
	e, err := New(Options{Config: cfg, Logger: logging.Discard(), Backends: []backend.Backend{dummy.New(dummy.Options{})}})
	require.NoError(t, err)

	tid, err := e.NewTID()
	require.NoError(t, err)
	assert.Regexp(t, `^/1_[a-z]{8}$`, tid)

	_, err = e.GetOldTransactions(5)
	assert.True(t, errors.Is(err, ErrNoHistory))
	assert.True(t, errors.Is(e.SetProxy(context.Background(), user, backend.Proxy{HTTP: "x"}), ErrNoProxyStore))
}

func TestNewUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Daemon.Backend = "zypper"
	_, err := New(Options{Config: cfg, Logger: logging.Discard(), Backends: []backend.Backend{dummy.New(dummy.Options{})}})
	assert.True(t, errors.Is(err, backend.ErrBackendNotFound), "got %v", err)
}

func TestSubmitSearch(t *testing.T) {
	f := newFixture(t, nil)
	fn, events, done := collect()

	tx, err := f.engine.Submit(user, []string{"locale=en_GB.UTF-8"}, &transaction.SearchRequest{
		Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"},
	}, fn)
	require.NoError(t, err)
	waitDone(t, done)

	packages := 0
	for _, ev := range events() {
		if _, ok := ev.(backend.PackageEvent); ok {
			packages++
		}
	}
	assert.Equal(t, 2, packages)
	assert.Equal(t, enum.ExitSuccess, tx.Exit())
	assert.Equal(t, "en_GB.UTF-8", tx.Hints().Locale)
}

func TestSubmitRejectsBadHints(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.Submit(user, []string{"background=maybe"}, &transaction.RefreshRequest{}, nil)
	assert.True(t, errors.Is(err, transaction.ErrInputInvalid), "got %v", err)
	assert.Empty(t, f.engine.Transactions())
}

func TestInstallRecordedInHistory(t *testing.T) {
	f := newFixture(t, nil)
	fn, _, done := collect()

	tx, err := f.engine.Submit(user, nil, &transaction.InstallRequest{
		Flags: enum.FlagOnlyTrusted, PackageIDs: []string{powertop},
	}, fn)
	require.NoError(t, err)
	waitDone(t, done)
	require.Equal(t, enum.ExitSuccess, tx.Exit())

	entries, err := f.engine.GetOldTransactions(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, tx.TID(), entries[0].TID)
	assert.Equal(t, "install-packages", entries[0].Role)
	assert.True(t, entries[0].Succeeded)
	assert.Contains(t, entries[0].Data, "powertop")

	since, ok, err := f.engine.TimeSinceAction(enum.RoleInstallPackages)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Less(t, since, time.Minute)
}

func TestDeniedByPolicy(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Authorization.Actions[authority.ActionPackageRemove] = "deny"
	})
	fn, events, done := collect()

	tx, err := f.engine.Submit(user, nil, &transaction.RemoveRequest{PackageIDs: []string{"glib2;2.80.0-1;x86_64;installed"}}, fn)
	require.NoError(t, err)
	waitDone(t, done)

	assert.Equal(t, enum.ExitFailed, tx.Exit())
	var codes []enum.ErrorCode
	for _, ev := range events() {
		if e, ok := ev.(backend.ErrorEvent); ok {
			codes = append(codes, e.Code)
		}
	}
	assert.Equal(t, []enum.ErrorCode{enum.ErrorNotAuthorized}, codes)
	assert.Zero(t, f.dummy.Calls(enum.RoleRemovePackages))
}

func TestSetProxy(t *testing.T) {
	f := newFixture(t, nil)
	p := backend.Proxy{HTTP: "http://proxy:3128", NoProxy: "localhost"}

	require.NoError(t, f.engine.SetProxy(context.Background(), user, p))
	got, ok, err := f.proxies.Get(user.UID, user.Session)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, p, got)
	assert.Equal(t, p, f.engine.proxyFor(user.UID, user.Session))
}

func TestSetProxyDenied(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Authorization.Default = "deny"
	})
	err := f.engine.SetProxy(context.Background(), user, backend.Proxy{HTTP: "http://proxy:3128"})
	assert.True(t, errors.Is(err, transaction.ErrNotAuthorized), "got %v", err)

	_, ok, err := f.proxies.Get(user.UID, user.Session)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	err := f.engine.Cancel(context.Background(), "/9_missing", user.UID)
	assert.True(t, errors.Is(err, transaction.ErrNoSuchTransaction), "got %v", err)

	tx, err := f.engine.Create(user)
	require.NoError(t, err)
	require.NoError(t, f.engine.Cancel(context.Background(), tx.TID(), user.UID))
	require.Eventually(t, func() bool { return tx.State() == transaction.StateFinished }, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, enum.ExitCancelled, tx.Exit())
}

func TestBackendDetails(t *testing.T) {
	f := newFixture(t, nil)
	d := f.engine.BackendDetails()

	assert.Equal(t, "dummy", d.Name)
	assert.True(t, d.Roles.Has(enum.RoleInstallPackages))
	assert.False(t, d.Roles.Has(enum.RoleGetOldTransactions))
	assert.NotEmpty(t, d.Groups)
	assert.False(t, d.Parallel)
	assert.False(t, f.engine.Locked())
}

func TestBackgroundRefresh(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Daemon.RefreshInterval = config.Duration(20 * time.Millisecond)
	})
	require.Eventually(t, func() bool {
		return f.dummy.Calls(enum.RoleRefreshCache) >= 1
	}, 3*time.Second, 5*time.Millisecond)

	entries, err := f.history.List(0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "refresh-cache", entries[0].Role)
	assert.Equal(t, uint32(0), entries[0].UID)
}

func TestShutdown(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Authorization.Default = "challenge"
	})
	agent := authority.NewQueueAgent(1)
	f.engine.SetAgent(agent)

	tx, err := f.engine.Submit(user, nil, &transaction.InstallRequest{
		Flags: enum.FlagOnlyTrusted, PackageIDs: []string{powertop},
	}, nil)
	require.NoError(t, err)
	req := <-agent.Requests()
	assert.Equal(t, authority.ActionPackageInstall, req.Action)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Shutdown(ctx))
	assert.True(t, tx.IsFinished())
	assert.Equal(t, enum.ExitFailed, tx.Exit())
	assert.Zero(t, f.dummy.Calls(enum.RoleInstallPackages))
}
