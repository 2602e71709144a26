package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"pkgd/internal/authority"
	"pkgd/internal/config"
	"pkgd/internal/engine"
	"pkgd/internal/logging"
	"pkgd/internal/metrics"
	"pkgd/internal/transaction"
	"pkgd/internal/ui"
	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
	"pkgd/pkg/packageid"

	"github.com/sirupsen/logrus"
)

// openEngine is swapped in tests.
var openEngine = func(c *config.Config, logger *logrus.Logger, m *metrics.Collector) (*engine.Engine, error) {
	return engine.Open(c, logger, m)
}

// session is an in-process engine serving a single command.
type session struct {
	engine  *engine.Engine
	subject authority.Subject
	quiet   bool

	cancel context.CancelFunc
	done   chan error

	mu      sync.Mutex
	spinner *ui.Spinner
}

// openSession starts an engine for the current user. Close stops it.
func openSession() (*session, error) {
	c := *cfg
	// Only the daemon refreshes in the background.
	c.Daemon.RefreshInterval = 0

	logCfg := c.Log
	if !verbose {
		logCfg.Level = "warn"
	}
	logger, err := logging.New(logCfg, verbose)
	if err != nil {
		return nil, err
	}

	e, err := openEngine(&c, logger, nil)
	if err != nil {
		return nil, err
	}

	s := &session{
		engine:  e,
		subject: currentSubject(),
		done:    make(chan error, 1),
	}
	if yes {
		e.SetAgent(authority.AutoAgent(true))
	} else {
		e.SetAgent(&authority.TTYAgent{Confirm: s.confirm})
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		s.done <- e.Run(ctx)
	}()
	return s, nil
}

// Close stops the engine and releases its databases.
func (s *session) Close() error {
	s.cancel()
	err := <-s.done
	if cerr := s.engine.Close(); err == nil {
		err = cerr
	}
	return err
}

// currentSubject describes the calling user. Proxy settings are keyed by
// the login session, so commands run from one session share them.
func currentSubject() authority.Subject {
	session := os.Getenv("XDG_SESSION_ID")
	if session == "" {
		session = "cli"
	}
	return authority.Subject{
		UID:     uint32(os.Getuid()),
		Session: session,
		Cmdline: strings.Join(os.Args, " "),
	}
}

// hints are sent with every transaction the session submits.
func (s *session) hints() []string {
	hints := []string{fmt.Sprintf("interactive=%t", !yes)}
	if lang := os.Getenv("LANG"); lang != "" && !strings.ContainsAny(lang, "\t\n") {
		hints = append(hints, "locale="+lang)
	}
	return hints
}

// confirm pauses the progress spinner while the user answers a prompt.
func (s *session) confirm(prompt string, defaultYes bool) (bool, error) {
	s.mu.Lock()
	sp := s.spinner
	s.mu.Unlock()
	if sp != nil && !s.quiet {
		sp.Stop()
		defer sp.Start()
	}
	return ui.Confirm(prompt, defaultYes)
}

func (s *session) setSpinner(sp *ui.Spinner) {
	s.mu.Lock()
	s.spinner = sp
	s.mu.Unlock()
}

// run submits req, shows its progress and reports how it finished.
func (s *session) run(title string, req transaction.Request) (transaction.Results, error) {
	return s.exec(title, req, true)
}

// query is run without the exit report, for lookups a command makes on
// its own behalf.
func (s *session) query(title string, req transaction.Request) (transaction.Results, error) {
	return s.exec(title, req, false)
}

func (s *session) exec(title string, req transaction.Request, report bool) (transaction.Results, error) {
	sp := ui.NewSpinner(title)
	s.setSpinner(sp)
	defer s.setSpinner(nil)

	finished := make(chan transaction.FinishedEvent, 1)
	handler := func(ev backend.Event) {
		switch e := ev.(type) {
		case backend.StatusEvent:
			sp.SetStatus(e.Status)
		case backend.PercentageEvent:
			sp.SetPercentage(e.Percentage)
		case transaction.FinishedEvent:
			select {
			case finished <- e:
			default:
			}
		}
	}

	if !s.quiet {
		sp.Start()
	}
	tx, err := s.engine.Submit(s.subject, s.hints(), req, handler)
	if err != nil {
		sp.Stop()
		return transaction.Results{}, err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	var fin transaction.FinishedEvent
	for waiting := true; waiting; {
		select {
		case fin = <-finished:
			waiting = false
		case <-interrupt:
			sp.Note("cancelling")
			if err := s.engine.Cancel(context.Background(), tx.TID(), s.subject.UID); err != nil {
				sp.Note(err.Error())
			}
		}
	}
	sp.Stop()

	res := tx.Results()
	if !s.quiet {
		for _, e := range res.Errors {
			ui.ErrorMsg("%s: %s", e.Code, e.Details)
		}
		for _, e := range res.Eulas {
			ui.WarningMsg("%s requires accepting the %s licence: run 'pkgd accept-eula %s'", packageid.Name(e.PackageID), e.VendorName, e.EulaID)
		}
		for _, sig := range res.Signatures {
			ui.WarningMsg("Repository %s is signed with untrusted key %s: run 'pkgd install-signature %s %s'", sig.RepoName, sig.KeyID, sig.KeyID, sig.PackageID)
		}
		for _, m := range res.Media {
			ui.WarningMsg("Insert %s %s: %s", m.MediaType, m.MediaID, m.MediaText)
		}
		if res.Restart > enum.RestartNone {
			ui.WarningMsg("A restart is required: %s", res.Restart)
		}
		if report {
			ui.ExitMsg(fin.Exit, uint(fin.Runtime.Milliseconds()))
		}
	}
	if fin.Exit != enum.ExitSuccess {
		return res, fmt.Errorf("%w: %s", ErrTransactionFailed, fin.Exit)
	}
	return res, nil
}

// resolve maps package names to package ids, asking the user to pick when
// a name matches more than one package. Arguments that already are package
// ids are kept as given.
func (s *session) resolve(names []string, filter enum.Filter) ([]string, error) {
	if len(names) == 0 {
		return nil, ErrNoPackages
	}

	var ids, lookup []string
	for _, name := range names {
		if packageid.Valid(name) {
			ids = append(ids, name)
		} else {
			lookup = append(lookup, name)
		}
	}
	if len(lookup) == 0 {
		return ids, nil
	}

	res, err := s.query("Resolving packages", &transaction.ResolveRequest{Filters: filter, Packages: lookup})
	if err != nil {
		return nil, err
	}

	for _, name := range lookup {
		var matches []backend.PackageEvent
		for _, p := range res.Packages {
			if packageid.Name(p.PackageID) == name {
				matches = append(matches, p)
			}
		}

		switch {
		case len(matches) == 0:
			return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
		case len(matches) == 1 || yes:
			ids = append(ids, matches[0].PackageID)
		default:
			id, err := ui.SelectPackage(matches, fmt.Sprintf("Multiple packages match %q", name))
			if err != nil {
				return nil, ErrAborted
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// parseFilter parses a --filter value, defaulting to no filter.
func parseFilter(s string) (enum.Filter, error) {
	if s == "" {
		return enum.FilterNone, nil
	}
	f, err := transaction.ParseFilter(s)
	if err != nil {
		return 0, err
	}
	return f, nil
}

// withSession opens a session, runs fn and closes the session.
func withSession(fn func(s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
