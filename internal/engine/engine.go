// Package engine assembles the daemon: the backend pool, the scheduler, the
// transaction and proxy databases and the authorization gate.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pkgd/internal/authority"
	"pkgd/internal/config"
	"pkgd/internal/executor"
	"pkgd/internal/history"
	"pkgd/internal/logging"
	"pkgd/internal/metrics"
	"pkgd/internal/proxy"
	"pkgd/internal/scheduler"
	"pkgd/internal/transaction"
	"pkgd/pkg/backend"
	"pkgd/pkg/backend/dummy"
	"pkgd/pkg/backend/native"
	"pkgd/pkg/enum"
)

const (
	tidAlphabet = "abcdefghijklmnopqrstuvwxyz"
	tidSuffix   = 8

	pruneInterval = 24 * time.Hour
)

// Options configure an Engine. Only Config is required.
type Options struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Metrics *metrics.Collector

	// History and Proxies may be nil; the related operations then fail
	// with ErrNoHistory and ErrNoProxyStore.
	History *history.Store
	Proxies *proxy.Store

	// Gate defaults to a PolicyGate built from the configuration.
	Gate authority.Gate

	// Backends default to DefaultBackends.
	Backends []backend.Backend
}

// Details describes the active backend.
type Details struct {
	Name        string
	Description string
	Author      string
	Roles       enum.Roles
	Filters     enum.Filter
	Groups      []enum.Group
	MimeTypes   []string
	Parallel    bool
}

// Engine is the in-process daemon.
type Engine struct {
	cfg     *config.Config
	logger  *logrus.Logger
	log     *logrus.Entry
	metrics *metrics.Collector
	pool    *backend.Pool
	sched   *scheduler.Scheduler
	history *history.Store
	proxies *proxy.Store
	gate    authority.Gate

	// owned stores are closed by Close.
	owned bool
	count atomic.Uint64
}

// DefaultBackends returns the backends pkgd ships with.
func DefaultBackends(logger *logrus.Logger) []backend.Backend {
	exec := executor.New(false, logging.Component(logger, "executor"))
	return []backend.Backend{
		native.NewPacman(exec),
		dummy.New(dummy.Options{Delay: 150 * time.Millisecond, Steps: 10}),
	}
}

// New creates an engine and selects the configured backend.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		log:     logging.Component(logger, "engine"),
		metrics: opts.Metrics,
		pool:    backend.NewPool(),
		history: opts.History,
		proxies: opts.Proxies,
		gate:    opts.Gate,
	}
	if e.gate == nil {
		e.gate = authority.NewPolicyGate(cfg.Authorization, logging.Component(logger, "authority"), opts.Metrics)
	}

	backends := opts.Backends
	if len(backends) == 0 {
		backends = DefaultBackends(logger)
	}
	for _, b := range backends {
		e.pool.Register(b)
	}
	if err := e.pool.Select(cfg.Daemon.Backend); err != nil {
		return nil, fmt.Errorf("failed to load backend: %w", err)
	}

	sopts := scheduler.OptionsFrom(cfg)
	sopts.Log = logging.Component(logger, "scheduler")
	sopts.Metrics = opts.Metrics
	sopts.Deps.Gate = e.gate
	sopts.Deps.Log = logging.Component(logger, "transaction")
	if e.history != nil {
		sopts.Deps.History = e.history
	}
	if e.proxies != nil {
		sopts.Deps.Proxy = e.proxyFor
	}
	e.sched = scheduler.New(e.pool, sopts)

	e.log.WithField("backend", e.pool.Active().Name()).Debug("engine ready")
	return e, nil
}

// Open creates an engine backed by the databases in the data directory.
// Close releases them.
func Open(cfg *config.Config, logger *logrus.Logger, m *metrics.Collector) (*Engine, error) {
	hist, err := history.OpenDefault()
	if err != nil {
		return nil, err
	}
	proxies, err := proxy.OpenDefault()
	if err != nil {
		hist.Close()
		return nil, err
	}

	e, err := New(Options{Config: cfg, Logger: logger, Metrics: m, History: hist, Proxies: proxies})
	if err != nil {
		hist.Close()
		proxies.Close()
		return nil, err
	}
	e.owned = true
	return e, nil
}

// Close closes the databases opened by Open.
func (e *Engine) Close() error {
	if !e.owned {
		return nil
	}
	var firstErr error
	if err := e.history.Close(); err != nil {
		firstErr = err
	}
	if err := e.proxies.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Run drives the scheduler and the periodic maintenance tasks until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.sched.Run(gctx)
	})
	if interval := e.cfg.Daemon.RefreshInterval.Std(); interval > 0 {
		g.Go(func() error {
			e.every(gctx, interval, e.backgroundRefresh)
			return nil
		})
	}
	if e.history != nil && e.cfg.History.KeepDays > 0 {
		g.Go(func() error {
			e.prune()
			e.every(gctx, pruneInterval, e.prune)
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Shutdown cancels every transaction that has not started and waits for
// the running ones to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	if n := e.sched.CancelQueued(); n > 0 {
		e.log.WithField("count", n).Info("cancelled queued transactions")
	}
	if err := e.sched.WaitIdle(ctx); err != nil {
		return fmt.Errorf("failed to wait for running transactions: %w", err)
	}
	return nil
}

// Scheduler returns the engine's scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Pool returns the backend pool.
func (e *Engine) Pool() *backend.Pool { return e.pool }

// Metrics returns the metrics collector, which may be nil.
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// SetAgent installs the agent answering authorization challenges when the
// engine uses the policy gate.
func (e *Engine) SetAgent(agent authority.Agent) {
	if g, ok := e.gate.(*authority.PolicyGate); ok {
		g.SetAgent(agent)
	}
}

// NewTID returns a fresh transaction id of the form /<count>_<random>.
func (e *Engine) NewTID() (string, error) {
	n, err := e.nextCount()
	if err != nil {
		return "", err
	}
	suffix, err := gonanoid.Generate(tidAlphabet, tidSuffix)
	if err != nil {
		return "", fmt.Errorf("failed to generate transaction id: %w", err)
	}
	return fmt.Sprintf("/%d_%s", n, suffix), nil
}

func (e *Engine) nextCount() (uint64, error) {
	if e.history == nil {
		return e.count.Add(1), nil
	}
	n, err := e.history.NextJobCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction count: %w", err)
	}
	return n, nil
}

// Create allocates a transaction for subject.
func (e *Engine) Create(subject authority.Subject) (*transaction.Transaction, error) {
	tid, err := e.NewTID()
	if err != nil {
		return nil, err
	}
	return e.sched.Create(tid, subject)
}

// Submit creates a transaction, applies hints, subscribes fn (when not
// nil) and submits req. Errors from validation are returned directly; the
// rest of the outcome arrives through fn.
func (e *Engine) Submit(subject authority.Subject, hints []string, req transaction.Request, fn func(backend.Event)) (*transaction.Transaction, error) {
	tx, err := e.Create(subject)
	if err != nil {
		return nil, err
	}
	if err := tx.SetHints(hints); err != nil {
		e.sched.Remove(tx.TID())
		return nil, err
	}
	if fn != nil {
		tx.Subscribe(fn)
	}
	if err := tx.Submit(req); err != nil {
		return nil, err
	}
	return tx, nil
}

// Get returns the queued transaction tid, or nil.
func (e *Engine) Get(tid string) *transaction.Transaction {
	return e.sched.Get(tid)
}

// Transactions returns every queued transaction.
func (e *Engine) Transactions() []*transaction.Transaction {
	return e.sched.Transactions()
}

// TransactionList returns the ids of the Ready and Running transactions.
func (e *Engine) TransactionList() []string {
	return e.sched.Array()
}

// Cancel cancels tid on behalf of uid.
func (e *Engine) Cancel(ctx context.Context, tid string, uid uint32) error {
	tx := e.sched.Get(tid)
	if tx == nil {
		return fmt.Errorf("%w: %s", transaction.ErrNoSuchTransaction, tid)
	}
	return tx.Cancel(ctx, uid)
}

// Locked reports whether a running transaction holds the backend lock.
func (e *Engine) Locked() bool {
	return e.sched.Locked()
}

// BackendDetails describes the active backend.
func (e *Engine) BackendDetails() Details {
	b := e.pool.Active()
	return Details{
		Name:        b.Name(),
		Description: b.Description(),
		Author:      b.Author(),
		Roles:       b.Roles(),
		Filters:     b.Filters(),
		Groups:      b.Groups(),
		MimeTypes:   b.MimeTypes(),
		Parallel:    b.SupportsParallelization(),
	}
}

// SetProxy stores the proxy settings used by the transactions of the
// caller's session. It needs the network-proxy action.
func (e *Engine) SetProxy(ctx context.Context, subject authority.Subject, p backend.Proxy) error {
	if e.proxies == nil {
		return ErrNoProxyStore
	}
	details := map[string]string{"http": p.HTTP, "https": p.HTTPS}
	res, err := e.gate.CheckAuthorization(ctx, authority.ActionSystemNetworkProxy, subject, details)
	if err != nil {
		return fmt.Errorf("%w: %v", transaction.ErrNotAuthorized, err)
	}
	if res != authority.Allowed {
		return fmt.Errorf("%w: setting the proxy was %s", transaction.ErrNotAuthorized, res)
	}
	if err := e.proxies.Set(subject.UID, subject.Session, p); err != nil {
		return fmt.Errorf("failed to store proxy: %w", err)
	}
	e.log.WithField("uid", subject.UID).Info("proxy settings changed")
	return nil
}

func (e *Engine) proxyFor(uid uint32, session string) backend.Proxy {
	p, _, err := e.proxies.Get(uid, session)
	if err != nil {
		e.log.WithError(err).Warn("failed to read proxy settings")
	}
	return p
}

// TimeSinceAction returns how long ago role last succeeded. The boolean is
// false if it never did.
func (e *Engine) TimeSinceAction(role enum.Role) (time.Duration, bool, error) {
	if e.history == nil {
		return 0, false, ErrNoHistory
	}
	return e.history.TimeSinceAction(role)
}

// GetOldTransactions returns the newest recorded transactions. Zero
// returns all of them.
func (e *Engine) GetOldTransactions(n int) ([]history.Entry, error) {
	if e.history == nil {
		return nil, ErrNoHistory
	}
	return e.history.List(n)
}

// backgroundRefresh queues a low priority cache refresh unless one is
// already queued or the last one is recent.
func (e *Engine) backgroundRefresh() {
	if !e.pool.Active().Roles().Has(enum.RoleRefreshCache) {
		return
	}
	if e.sched.RolePresent(enum.RoleRefreshCache) {
		e.log.Debug("refresh already queued")
		return
	}
	if e.history != nil {
		since, ok, err := e.history.TimeSinceAction(enum.RoleRefreshCache)
		if err == nil && ok && since < e.cfg.Daemon.RefreshInterval.Std() {
			return
		}
	}

	subject := authority.Subject{UID: 0, Cmdline: "pkgd scheduled refresh"}
	tx, err := e.Submit(subject, []string{"background=true", "interactive=false"}, &transaction.RefreshRequest{}, nil)
	if err != nil {
		e.log.WithError(err).Warn("failed to queue background refresh")
		return
	}
	e.log.WithField("tid", tx.TID()).Info("queued background refresh")
}

func (e *Engine) prune() {
	maxAge := time.Duration(e.cfg.History.KeepDays) * 24 * time.Hour
	n, err := e.history.Prune(maxAge)
	if err != nil {
		e.log.WithError(err).Warn("failed to prune transaction database")
		return
	}
	if n > 0 {
		e.log.WithField("count", n).Info("pruned old transactions")
	}
}
