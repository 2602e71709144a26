package transaction

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pkgd/internal/authority"
	"pkgd/internal/config"
	"pkgd/internal/history"
	"pkgd/internal/logging"
	"pkgd/pkg/backend"
	"pkgd/pkg/backend/dummy"
	"pkgd/pkg/enum"
)

const powertop = "powertop;2.15-1;x86_64;extra"

type recordingOwner struct {
	mu       sync.Mutex
	states   []State
	finished int
}

func (o *recordingOwner) StateChanged(_ *Transaction, s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordingOwner) Finished(*Transaction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished++
}

func (o *recordingOwner) finishedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finished
}

func (o *recordingOwner) lastState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.states) == 0 {
		return StateNew
	}
	return o.states[len(o.states)-1]
}

type eventLog struct {
	mu     sync.Mutex
	events []backend.Event
}

func watch(tx *Transaction) *eventLog {
	l := &eventLog{}
	tx.Subscribe(func(ev backend.Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.events = append(l.events, ev)
	})
	return l
}

func (l *eventLog) all() []backend.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]backend.Event(nil), l.events...)
}

func (l *eventLog) count(name string) int {
	n := 0
	for _, ev := range l.all() {
		if ev.EventName() == name {
			n++
		}
	}
	return n
}

func (l *eventLog) finished() (FinishedEvent, bool) {
	for _, ev := range l.all() {
		if f, ok := ev.(FinishedEvent); ok {
			return f, true
		}
	}
	return FinishedEvent{}, false
}

func (l *eventLog) states() []State {
	var states []State
	for _, ev := range l.all() {
		if s, ok := ev.(StateEvent); ok {
			states = append(states, s.State)
		}
	}
	return states
}

func testDeps() Deps {
	return Deps{
		Gate:   authority.Static(authority.Allowed),
		Limits: config.Default().Limits,
		Log:    logging.Component(logging.Discard(), "transaction"),
	}
}

func newTx(b backend.Backend, deps Deps) (*Transaction, *recordingOwner) {
	owner := &recordingOwner{}
	return New("/1_test", authority.Subject{UID: 1000, Cmdline: "pkgd test"}, owner, b, deps), owner
}

// runNow does what the scheduler does when it admits a transaction.
func runNow(t *testing.T, tx *Transaction, b backend.Backend) {
	t.Helper()
	if err := tx.SetState(StateRunning); err != nil {
		t.Fatalf("SetState(running) error: %v", err)
	}
	tx.Run(b)
}

// scripted is a backend whose search verb is supplied by the test.
type scripted struct {
	backend.Unsupported
	search func(job *backend.Job)
}

func (s *scripted) Name() string         { return "scripted" }
func (s *scripted) Description() string  { return "scripted backend" }
func (s *scripted) IsAvailable() bool    { return true }
func (s *scripted) Filters() enum.Filter { return enum.FilterInstalled | enum.FilterNotInstalled }
func (s *scripted) Roles() enum.Roles {
	return enum.NewRoles(enum.RoleSearchName, enum.RoleInstallPackages)
}
func (s *scripted) SearchNames(job *backend.Job, _ enum.Filter, _ []string) { s.search(job) }
func (s *scripted) InstallPackages(job *backend.Job, _ enum.TransactionFlag, _ []string) {
	s.search(job)
}

func TestCanMove(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateNew, StateWaitingForAuth, true},
		{StateNew, StateReady, true},
		{StateReady, StateRunning, true},
		{StateRunning, StateFinished, true},
		{StateNew, StateFinished, true},
		{StateWaitingForAuth, StateError, true},
		{StateReady, StateError, true},
		{StateRunning, StateError, false},
		{StateRunning, StateReady, false},
		{StateRunning, StateNew, false},
		{StateFinished, StateError, false},
		{StateError, StateFinished, false},
		{StateReady, StateReady, false},
	}

	for _, tt := range tests {
		if got := canMove(tt.from, tt.to); got != tt.want {
			t.Errorf("canMove(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSearchRunsWithoutAuthorization(t *testing.T) {
	b := dummy.New(dummy.Options{})
	deps := testDeps()
	asked := 0
	deps.Gate = authority.GateFunc(func(context.Context, string, authority.Subject, map[string]string) (authority.Result, error) {
		asked++
		return authority.Allowed, nil
	})
	tx, owner := newTx(b, deps)
	events := watch(tx)

	err := tx.Submit(&SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"}})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if tx.State() != StateReady {
		t.Fatalf("State() = %s, want ready", tx.State())
	}
	if owner.lastState() != StateReady {
		t.Errorf("owner was not told about ready")
	}

	runNow(t, tx, b)

	fin, ok := events.finished()
	if !ok {
		t.Fatal("no finished event")
	}
	if fin.Exit != enum.ExitSuccess {
		t.Errorf("exit = %s, want success", fin.Exit)
	}
	if asked != 0 {
		t.Errorf("gate asked %d times, want 0", asked)
	}
	if owner.finishedCount() != 1 {
		t.Errorf("owner.Finished called %d times, want 1", owner.finishedCount())
	}
	if len(tx.Results().Packages) != 2 {
		t.Errorf("got %d packages, want powertop and gnome-power-manager", len(tx.Results().Packages))
	}
	if tx.Exclusive() {
		t.Error("search should not be exclusive")
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"short search", &SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"a"}}, ErrSearchInvalid},
		{"wildcard search", &SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"po*"}}, ErrSearchInvalid},
		{"question mark", &SearchRequest{Kind: enum.RoleSearchDetails, Filters: enum.FilterNone, Values: []string{"po?"}}, ErrSearchInvalid},
		{"shell characters", &SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"po$x"}}, ErrInputInvalid},
		{"no filter", &SearchRequest{Kind: enum.RoleSearchName, Values: []string{"power"}}, ErrFilterInvalid},
		{"unknown group", &SearchRequest{Kind: enum.RoleSearchGroup, Filters: enum.FilterNone, Values: []string{"nothing"}}, ErrSearchInvalid},
		{"bad package id", &InstallRequest{PackageIDs: []string{"powertop;2.15"}}, ErrPackageIDInvalid},
		{"no packages", &RemoveRequest{}, ErrNumberOfPackagesInvalid},
		{"empty resolve", &ResolveRequest{Filters: enum.FilterNone}, ErrNumberOfPackagesInvalid},
		{"relative file", &InstallFilesRequest{Files: []string{"foo.pkg"}}, ErrNoSuchFile},
		{"missing file", &InstallFilesRequest{Files: []string{"/nonexistent/foo.pkg"}}, ErrNoSuchFile},
		{"empty repo id", &RepoEnableRequest{}, ErrInputInvalid},
		{"negative history count", &OldTransactionsRequest{Number: -1}, ErrInputInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, owner := newTx(dummy.New(dummy.Options{}), testDeps())
			err := tx.Submit(tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.want)
			}
			if tx.State() != StateError {
				t.Errorf("State() = %s, want error", tx.State())
			}
			if owner.lastState() != StateError {
				t.Errorf("owner was not told about the error")
			}
		})
	}
}

func TestSubmitNotSupported(t *testing.T) {
	tx, _ := newTx(&scripted{}, testDeps())
	err := tx.Submit(&RefreshRequest{})
	if !errors.Is(err, ErrNotSupported) {
		t.Fatalf("Submit() error = %v, want ErrNotSupported", err)
	}
}

func TestSubmitTwice(t *testing.T) {
	tx, _ := newTx(dummy.New(dummy.Options{}), testDeps())
	req := &SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"}}
	if err := tx.Submit(req); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if err := tx.Submit(req); !errors.Is(err, ErrAlreadyHasRole) {
		t.Errorf("second Submit() error = %v, want ErrAlreadyHasRole", err)
	}
}

func TestInstallAuthorizationChain(t *testing.T) {
	var (
		mu    sync.Mutex
		asked []string
	)
	deps := testDeps()
	deps.Gate = authority.GateFunc(func(_ context.Context, action string, s authority.Subject, details map[string]string) (authority.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		asked = append(asked, action)
		if s.UID != 1000 || details["role"] != "install-packages" {
			return authority.Denied, nil
		}
		return authority.Allowed, nil
	})
	b := dummy.New(dummy.Options{})
	tx, _ := newTx(b, deps)
	events := watch(tx)

	err := tx.Submit(&InstallRequest{Flags: enum.FlagOnlyTrusted | enum.FlagAllowReinstall, PackageIDs: []string{powertop}})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if !tx.Exclusive() {
		t.Error("install should be exclusive")
	}

	require.Eventually(t, func() bool { return tx.State() == StateReady }, time.Second, 5*time.Millisecond)

	mu.Lock()
	want := []string{authority.ActionPackageInstall, authority.ActionPackageReinstall}
	require.Equal(t, want, asked)
	mu.Unlock()

	runNow(t, tx, b)
	require.Equal(t, []State{StateWaitingForAuth, StateReady, StateRunning}, events.states())
	require.True(t, tx.Exclusive())
	require.Equal(t, enum.ExitSuccess, tx.Exit())
}

func TestAuthorizationDenied(t *testing.T) {
	var asked int
	deps := testDeps()
	deps.Gate = authority.GateFunc(func(context.Context, string, authority.Subject, map[string]string) (authority.Result, error) {
		asked++
		return authority.Denied, nil
	})
	tx, owner := newTx(dummy.New(dummy.Options{}), deps)
	events := watch(tx)

	err := tx.Submit(&InstallRequest{Flags: enum.FlagOnlyTrusted | enum.FlagAllowDowngrade, PackageIDs: []string{powertop}})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	require.Eventually(t, func() bool { return tx.State() == StateError }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, asked, "a denial must stop the chain")
	require.Equal(t, StateError, owner.lastState())

	res := tx.Results()
	require.Len(t, res.Errors, 1)
	require.Equal(t, enum.ErrorNotAuthorized, res.Errors[0].Code)
	fin, ok := events.finished()
	require.True(t, ok)
	require.Equal(t, enum.ExitFailed, fin.Exit)
}

func TestCallerVanishedWhileWaiting(t *testing.T) {
	deps := testDeps()
	deps.Gate = authority.GateFunc(func(ctx context.Context, _ string, _ authority.Subject, _ map[string]string) (authority.Result, error) {
		<-ctx.Done()
		return authority.Challenge, ctx.Err()
	})
	tx, _ := newTx(dummy.New(dummy.Options{}), deps)

	if err := tx.Submit(&RemoveRequest{PackageIDs: []string{"evince;46.0-1;x86_64;installed"}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	require.Equal(t, StateWaitingForAuth, tx.State())

	tx.CallerVanished()

	require.Eventually(t, func() bool { return tx.State() == StateError }, time.Second, 5*time.Millisecond)
	require.False(t, tx.CallerActive())
	require.Equal(t, enum.ExitFailed, tx.Exit())
}

func TestCancelWhileWaitingForAuth(t *testing.T) {
	deps := testDeps()
	deps.Gate = authority.GateFunc(func(ctx context.Context, _ string, _ authority.Subject, _ map[string]string) (authority.Result, error) {
		<-ctx.Done()
		return authority.Challenge, nil
	})
	tx, _ := newTx(dummy.New(dummy.Options{}), deps)
	if err := tx.Submit(&RefreshRequest{}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if err := tx.CancelWith(enum.ExitCancelled); err != nil {
		t.Fatalf("CancelWith() error: %v", err)
	}
	require.Eventually(t, func() bool { return tx.State() == StateError }, time.Second, 5*time.Millisecond)
	require.Equal(t, enum.ErrorNotAuthorized, tx.Results().Errors[0].Code)
}

func TestCancelAsAuthorizationCompletes(t *testing.T) {
	var tx *Transaction
	deps := testDeps()
	deps.Gate = authority.GateFunc(func(context.Context, string, authority.Subject, map[string]string) (authority.Result, error) {
		if err := tx.CancelWith(enum.ExitCancelled); err != nil {
			t.Errorf("CancelWith() error: %v", err)
		}
		return authority.Allowed, nil
	})
	tx, _ = newTx(dummy.New(dummy.Options{}), deps)
	events := watch(tx)
	require.NoError(t, tx.Submit(&RefreshRequest{}))

	require.Eventually(t, func() bool { return tx.State() == StateError }, time.Second, 5*time.Millisecond)
	require.NotContains(t, events.states(), StateReady)
	require.Equal(t, enum.ExitFailed, tx.Exit())
}

func TestCancelRacingAuthorizationAlwaysFinishes(t *testing.T) {
	for i := 0; i < 50; i++ {
		release := make(chan struct{})
		deps := testDeps()
		deps.Gate = authority.GateFunc(func(context.Context, string, authority.Subject, map[string]string) (authority.Result, error) {
			<-release
			return authority.Allowed, nil
		})
		tx, _ := newTx(dummy.New(dummy.Options{}), deps)
		require.NoError(t, tx.Submit(&RefreshRequest{}))

		close(release)
		_ = tx.CancelWith(enum.ExitCancelled)
		require.Eventually(t, tx.IsFinished, time.Second, time.Millisecond, "iteration %d left in %s", i, tx.State())
	}
}

func TestSelfTestSkipsAuthorization(t *testing.T) {
	deps := testDeps()
	deps.Gate = authority.Static(authority.Denied)
	deps.SelfTest = true
	tx, _ := newTx(dummy.New(dummy.Options{}), deps)

	if err := tx.Submit(&InstallRequest{PackageIDs: []string{powertop}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if tx.State() != StateReady {
		t.Errorf("State() = %s, want ready", tx.State())
	}
}

func TestFilterDropsContradictingPackages(t *testing.T) {
	b := &scripted{search: func(job *backend.Job) {
		job.Package(enum.InfoInstalled, "glib2;2.80.0-1;x86_64;installed", "The GLib library")
		job.Package(enum.InfoAvailable, powertop, "Power consumption monitor")
		job.Finished()
	}}
	tx, _ := newTx(b, testDeps())
	events := watch(tx)

	if err := tx.Submit(&SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNotInstalled, Values: []string{"li"}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	runNow(t, tx, b)

	if n := events.count("package"); n != 1 {
		t.Fatalf("forwarded %d packages, want 1", n)
	}
	pkgs := tx.Results().Packages
	if len(pkgs) != 1 || pkgs[0].PackageID != powertop {
		t.Errorf("Results().Packages = %v, want only powertop", pkgs)
	}
	if tx.Exit() != enum.ExitSuccess {
		t.Errorf("Exit() = %s, want success", tx.Exit())
	}
}

func TestInstallDropsInstalledInfo(t *testing.T) {
	b := &scripted{search: func(job *backend.Job) {
		job.Package(enum.InfoInstalled, powertop, "Power consumption monitor")
		job.Package(enum.InfoInstalling, powertop, "Power consumption monitor")
		job.Finished()
	}}
	tx, _ := newTx(b, testDeps())
	if err := tx.Submit(&InstallRequest{Flags: enum.FlagOnlyTrusted, PackageIDs: []string{powertop}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	require.Eventually(t, func() bool { return tx.State() == StateReady }, time.Second, 5*time.Millisecond)
	runNow(t, tx, b)

	pkgs := tx.Results().Packages
	if len(pkgs) != 1 || pkgs[0].Info != enum.InfoInstalling {
		t.Errorf("Results().Packages = %v, want only the installing entry", pkgs)
	}
}

func TestFinishedIsIdempotent(t *testing.T) {
	b := &scripted{search: func(job *backend.Job) {
		job.Finished()
		job.Status(enum.StatusQuery)
		job.Finished()
	}}
	tx, owner := newTx(b, testDeps())
	events := watch(tx)

	if err := tx.Submit(&SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	runNow(t, tx, b)

	if n := events.count("finished"); n != 1 {
		t.Errorf("got %d finished events, want 1", n)
	}
	if n := events.count("status"); n != 0 {
		t.Errorf("status after finish was forwarded")
	}
	if owner.finishedCount() != 1 {
		t.Errorf("owner.Finished called %d times, want 1", owner.finishedCount())
	}
}

func TestWaitStatusSuppressed(t *testing.T) {
	b := &scripted{search: func(job *backend.Job) {
		job.Status(enum.StatusWait)
		job.Status(enum.StatusQuery)
		job.Finished()
	}}
	tx, _ := newTx(b, testDeps())
	events := watch(tx)
	if err := tx.Submit(&SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	runNow(t, tx, b)

	if n := events.count("status"); n != 1 {
		t.Errorf("got %d status events, want 1", n)
	}
	if tx.Status() != enum.StatusQuery {
		t.Errorf("Status() = %s, want query", tx.Status())
	}
}

func TestLockRequiredIsSwallowed(t *testing.T) {
	calls := 0
	b := &scripted{search: func(job *backend.Job) {
		calls++
		if calls == 1 {
			job.ErrorCode(enum.ErrorLockRequired, "database locked")
			job.Finished()
			return
		}
		job.Package(enum.InfoAvailable, powertop, "Power consumption monitor")
		job.Finished()
	}}
	tx, owner := newTx(b, testDeps())
	events := watch(tx)

	if err := tx.Submit(&SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	runNow(t, tx, b)

	if !tx.FinishedWithLockRequired() {
		t.Fatal("FinishedWithLockRequired() = false after lock error")
	}
	if events.count("error-code") != 0 || events.count("finished") != 0 {
		t.Fatal("lock error must not reach the caller")
	}
	if tx.Exclusive() {
		t.Error("a running transaction must not become exclusive")
	}
	if owner.finishedCount() != 1 {
		t.Errorf("owner.Finished called %d times, want 1", owner.finishedCount())
	}

	if err := tx.ResetAfterLockError(); err != nil {
		t.Fatalf("ResetAfterLockError() error: %v", err)
	}
	if tx.State() != StateReady {
		t.Fatalf("State() = %s after reset, want ready", tx.State())
	}
	if !tx.Exclusive() {
		t.Error("the retry should be exclusive")
	}
	runNow(t, tx, b)

	if tx.Exit() != enum.ExitSuccess {
		t.Errorf("Exit() = %s, want success", tx.Exit())
	}
	if tx.Attempts() != 2 {
		t.Errorf("Attempts() = %d, want 2", tx.Attempts())
	}
	if err := tx.ResetAfterLockError(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ResetAfterLockError() without lock error = %v, want ErrInvalidState", err)
	}
}

func TestLockRequiredReportedWhenExclusive(t *testing.T) {
	b := &scripted{search: func(job *backend.Job) {
		job.ErrorCode(enum.ErrorLockRequired, "database locked")
		job.Finished()
	}}
	tx, owner := newTx(b, testDeps())
	events := watch(tx)
	if err := tx.Submit(&SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	tx.MakeExclusive()
	runNow(t, tx, b)

	require.True(t, tx.FinishedWithLockRequired(), "the retry must still happen")
	require.Equal(t, 1, events.count("error-code"))
	require.Zero(t, events.count("finished"))
	require.Equal(t, enum.ErrorLockRequired, tx.Results().Errors[0].Code)
	require.Equal(t, 1, owner.finishedCount())

	require.NoError(t, tx.ResetAfterLockError())
	require.Empty(t, tx.Results().Errors)
}

func TestFailAfterLockError(t *testing.T) {
	b := &scripted{search: func(job *backend.Job) {
		job.ErrorCode(enum.ErrorLockRequired, "database locked")
		job.Finished()
	}}
	tx, owner := newTx(b, testDeps())
	events := watch(tx)
	if err := tx.Submit(&SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	runNow(t, tx, b)
	if err := tx.ResetAfterLockError(); err != nil {
		t.Fatalf("ResetAfterLockError() error: %v", err)
	}

	tx.Fail(enum.ErrorCannotGetLock, "could not get lock")

	fin, ok := events.finished()
	require.True(t, ok)
	require.Equal(t, enum.ExitFailed, fin.Exit)
	require.Equal(t, enum.ErrorCannotGetLock, tx.Results().Errors[0].Code)
	require.Equal(t, 2, owner.finishedCount())
	require.False(t, tx.FinishedWithLockRequired())
}

func TestExitOverriddenByPendingQuestion(t *testing.T) {
	tests := []struct {
		pkg  string
		want enum.Exit
	}{
		{"nvidia-utils;550.67-1;x86_64;extra", enum.ExitEulaRequired},
		{"offline-docs;1.0-1;any;extra", enum.ExitMediaChangeRequired},
		{"vips-doc;8.15.2-1;any;testing", enum.ExitKeyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.pkg, func(t *testing.T) {
			deps := testDeps()
			deps.SelfTest = true
			b := dummy.New(dummy.Options{})
			tx, _ := newTx(b, deps)
			if err := tx.Submit(&InstallRequest{Flags: enum.FlagOnlyTrusted, PackageIDs: []string{tt.pkg}}); err != nil {
				t.Fatalf("Submit() error: %v", err)
			}
			runNow(t, tx, b)
			if tx.Exit() != tt.want {
				t.Errorf("Exit() = %s, want %s", tx.Exit(), tt.want)
			}
		})
	}
}

func TestCancelBeforeRun(t *testing.T) {
	tx, owner := newTx(dummy.New(dummy.Options{}), testDeps())
	events := watch(tx)
	if err := tx.Submit(&SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if err := tx.CancelWith(enum.ExitCancelled); err != nil {
		t.Fatalf("CancelWith() error: %v", err)
	}
	fin, ok := events.finished()
	if !ok || fin.Exit != enum.ExitCancelled {
		t.Errorf("finished = %v, want cancelled", fin)
	}
	if owner.finishedCount() != 1 {
		t.Errorf("owner.Finished called %d times, want 1", owner.finishedCount())
	}
	if err := tx.CancelWith(enum.ExitCancelled); err == nil {
		t.Error("second CancelWith() should fail")
	}
}

func TestCancelRunning(t *testing.T) {
	b := dummy.New(dummy.Options{Delay: 20 * time.Millisecond, Steps: 50})
	deps := testDeps()
	deps.SelfTest = true
	tx, _ := newTx(b, deps)
	if err := tx.Submit(&InstallRequest{Flags: enum.FlagOnlyTrusted, PackageIDs: []string{powertop}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if err := tx.SetState(StateRunning); err != nil {
		t.Fatalf("SetState() error: %v", err)
	}
	go tx.Run(b)

	require.Eventually(t, func() bool { return tx.Status() == enum.StatusInstall }, time.Second, 5*time.Millisecond)
	require.NoError(t, tx.Cancel(context.Background(), 1000))
	require.Eventually(t, tx.IsFinished, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, enum.ExitCancelled, tx.Exit())
}

func TestCancelForeignNeedsAuthorization(t *testing.T) {
	deps := testDeps()
	deps.Gate = authority.GateFunc(func(_ context.Context, action string, _ authority.Subject, _ map[string]string) (authority.Result, error) {
		if action == authority.ActionCancelForeign {
			return authority.Denied, nil
		}
		return authority.Allowed, nil
	})
	tx, _ := newTx(dummy.New(dummy.Options{}), deps)
	if err := tx.Submit(&SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: []string{"power"}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if err := tx.Cancel(context.Background(), 2000); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Cancel() by another user = %v, want ErrNotAuthorized", err)
	}
	if err := tx.Cancel(context.Background(), 0); err != nil {
		t.Errorf("Cancel() by root error: %v", err)
	}
}

func TestHistoryRecorded(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "transactions.db"))
	if err != nil {
		t.Fatalf("history.Open() error: %v", err)
	}
	defer store.Close()

	deps := testDeps()
	deps.History = store
	deps.SelfTest = true
	b := dummy.New(dummy.Options{})
	tx, _ := newTx(b, deps)
	if err := tx.Submit(&InstallRequest{Flags: enum.FlagOnlyTrusted, PackageIDs: []string{powertop}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	runNow(t, tx, b)

	entry, err := store.Get(tx.TID())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !entry.Succeeded || entry.Role != "install-packages" || entry.UID != 1000 {
		t.Errorf("entry = %+v", entry)
	}
	if len(entry.Packages()) == 0 {
		t.Error("package list was not recorded")
	}
}

func TestSimulationNotRecorded(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "transactions.db"))
	if err != nil {
		t.Fatalf("history.Open() error: %v", err)
	}
	defer store.Close()

	deps := testDeps()
	deps.History = store
	b := dummy.New(dummy.Options{})
	tx, _ := newTx(b, deps)
	if err := tx.Submit(&InstallRequest{Flags: enum.FlagSimulate, PackageIDs: []string{powertop}}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	runNow(t, tx, b)

	if _, err := store.Get(tx.TID()); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestOldTransactions(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "transactions.db"))
	if err != nil {
		t.Fatalf("history.Open() error: %v", err)
	}
	defer store.Close()
	for _, tid := range []string{"/1_aaaaaaaa", "/2_bbbbbbbb"} {
		if err := store.RecordTransaction(tid, enum.RoleRefreshCache, 0, "pkgd refresh"); err != nil {
			t.Fatalf("RecordTransaction() error: %v", err)
		}
	}

	deps := testDeps()
	deps.History = store
	tx, _ := newTx(&scripted{}, deps)
	if err := tx.Submit(&OldTransactionsRequest{Number: 1}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	runNow(t, tx, &scripted{})

	if got := len(tx.Results().Transactions); got != 1 {
		t.Errorf("got %d transactions, want 1", got)
	}
	if tx.Exit() != enum.ExitSuccess {
		t.Errorf("Exit() = %s, want success", tx.Exit())
	}
}
