// Package scheduler owns every transaction from creation until it is reaped
// and is the only place that decides which of them may run.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"pkgd/internal/authority"
	"pkgd/internal/config"
	"pkgd/internal/metrics"
	"pkgd/internal/transaction"
	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
)

// Options configure a Scheduler.
type Options struct {
	// KeepFinished is how long a finished transaction stays queryable.
	KeepFinished time.Duration

	// CommitTimeout discards transactions that never left StateNew.
	CommitTimeout time.Duration

	// WedgeInterval is the period of the consistency check and
	// WedgeRecheck the delay before a failed check is repeated.
	WedgeInterval time.Duration
	WedgeRecheck  time.Duration

	// MaxPerUID caps the transactions a single caller may hold.
	MaxPerUID int

	// MaxLockRetries is how often a transaction is requeued after the
	// backend reported it needed its lock.
	MaxLockRetries int

	// Deps are handed to every transaction.
	Deps transaction.Deps

	Log     *logrus.Entry
	Metrics *metrics.Collector
}

// OptionsFrom builds options from the daemon configuration.
func OptionsFrom(cfg *config.Config) Options {
	d := cfg.Daemon
	return Options{
		KeepFinished:   d.KeepFinishedTimeout.Std(),
		CommitTimeout:  d.CommitTimeout.Std(),
		WedgeInterval:  d.WedgeCheckInterval.Std(),
		WedgeRecheck:   d.WedgeRecheckDelay.Std(),
		MaxPerUID:      d.MaxTransactionsPerUID,
		MaxLockRetries: d.MaxLockRetries,
		Deps: transaction.Deps{
			Limits:   cfg.Limits,
			SelfTest: d.SelfTest,
		},
	}
}

// DefaultOptions returns the options of the default configuration.
func DefaultOptions() Options {
	return OptionsFrom(config.Default())
}

type item struct {
	tx    *transaction.Transaction
	tries int

	// runPending is set between admission and the dispatch of the run.
	runPending bool

	commitTimer *time.Timer
	removeTimer *time.Timer
}

// Scheduler queues transactions and admits them to the active backend of
// its pool. Admission, retirement and timers are serialized on the loop
// started by Run; queries may be made from any goroutine.
type Scheduler struct {
	pool    *backend.Pool
	opts    Options
	log     *logrus.Entry
	metrics *metrics.Collector

	mu         sync.Mutex
	items      []*item
	wedgeTimer *time.Timer
	lastArray  []string
	watchers   map[int]func([]string)
	nextWatch  int

	qmu    sync.Mutex
	queue  []func()
	closed bool

	wake    chan struct{}
	stopped chan struct{}
	started atomic.Bool
}

// New creates a scheduler for the backends in pool. Run must be called for
// transactions to make progress.
func New(pool *backend.Pool, opts Options) *Scheduler {
	def := DefaultOptions()
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = def.CommitTimeout
	}
	if opts.WedgeInterval <= 0 {
		opts.WedgeInterval = def.WedgeInterval
	}
	if opts.WedgeRecheck <= 0 {
		opts.WedgeRecheck = def.WedgeRecheck
	}
	if opts.MaxPerUID <= 0 {
		opts.MaxPerUID = def.MaxPerUID
	}
	if opts.MaxLockRetries < 0 {
		opts.MaxLockRetries = 0
	}
	log := opts.Log
	if log == nil {
		log = logrus.WithField("component", "scheduler")
	}
	if opts.Deps.Log == nil {
		opts.Deps.Log = log.WithField("component", "transaction")
	}
	return &Scheduler{
		pool:     pool,
		opts:     opts,
		log:      log,
		metrics:  opts.Metrics,
		watchers: make(map[int]func([]string)),
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
}

// owner receives the transitions of the scheduler's transactions and
// queues them for the loop.
type owner struct{ s *Scheduler }

func (o owner) StateChanged(t *transaction.Transaction, state transaction.State) {
	o.s.post(func() { o.s.stateChanged(t, state) })
}

func (o owner) Finished(t *transaction.Transaction) {
	o.s.post(func() { o.s.finished(t) })
}

// Run processes scheduler work until ctx is cancelled. It may be called
// once.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: loop already started", ErrClosed)
	}
	ticker := time.NewTicker(s.opts.WedgeInterval)
	defer ticker.Stop()

	s.log.Debug("scheduler started")
	s.drain()
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-s.wake:
			s.drain()
		case <-ticker.C:
			s.checkWedge()
		}
	}
}

// Done is closed once Run returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

func (s *Scheduler) shutdown() {
	s.qmu.Lock()
	s.closed = true
	s.queue = nil
	s.qmu.Unlock()

	s.mu.Lock()
	for _, it := range s.items {
		stopTimer(it.commitTimer)
		stopTimer(it.removeTimer)
	}
	stopTimer(s.wedgeTimer)
	s.mu.Unlock()

	close(s.stopped)
	s.log.Debug("scheduler stopped")
}

// post queues fn for the loop. It never blocks.
func (s *Scheduler) post(fn func()) bool {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		return false
	}
	s.queue = append(s.queue, fn)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Scheduler) drain() {
	for {
		s.qmu.Lock()
		work := s.queue
		s.queue = nil
		s.qmu.Unlock()
		if len(work) == 0 {
			return
		}
		for _, fn := range work {
			fn()
		}
	}
}

func (s *Scheduler) isClosed() bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return s.closed
}

// Create adds a transaction for subject in StateNew. It is discarded if
// it is not submitted within the commit timeout.
func (s *Scheduler) Create(tid string, subject authority.Subject) (*transaction.Transaction, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	b := s.pool.Active()
	if b == nil {
		return nil, backend.ErrNoBackend
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(tid) != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionExists, tid)
	}
	count := 0
	for _, it := range s.items {
		if it.tx.UID() == subject.UID {
			count++
		}
	}
	if count > s.opts.MaxPerUID {
		return nil, fmt.Errorf("%w: uid %d has %d", ErrTooManyTransactions, subject.UID, count)
	}

	tx := transaction.New(tid, subject, owner{s}, b, s.opts.Deps)
	it := &item{tx: tx}
	it.commitTimer = time.AfterFunc(s.opts.CommitTimeout, func() {
		s.post(func() { s.commitExpired(it) })
	})
	s.items = append(s.items, it)

	s.metrics.RecordCreated()
	s.log.WithFields(logrus.Fields{"tid": tid, "uid": subject.UID}).Debug("transaction created")
	return tx, nil
}

// Commit re-runs admission for a transaction that is Ready. Transactions
// are committed automatically when they become Ready.
func (s *Scheduler) Commit(tid string) error {
	tx := s.Get(tid)
	if tx == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, tid)
	}
	if state := tx.State(); state != transaction.StateReady {
		return fmt.Errorf("%w: transaction is %s", transaction.ErrCommitFailed, state)
	}
	if !s.post(func() {
		if it := s.lookup(tx); it != nil {
			s.commit(it)
		}
	}) {
		return ErrClosed
	}
	return nil
}

// Remove drops a transaction that is not running. It returns false for a
// running transaction, which must be cancelled instead.
func (s *Scheduler) Remove(tid string) bool {
	s.mu.Lock()
	it := s.find(tid)
	if it == nil {
		s.mu.Unlock()
		return false
	}
	if it.tx.State() == transaction.StateRunning && !it.runPending {
		s.mu.Unlock()
		s.log.WithField("tid", tid).Warn("not removing running transaction")
		return false
	}
	s.mu.Unlock()

	s.removeItem(it)
	s.post(func() {
		s.admit()
		s.updateStats()
	})
	return true
}

// CancelQueued cancels every transaction that has not started running and
// returns how many were cancelled.
func (s *Scheduler) CancelQueued() int {
	n := 0
	for _, it := range s.snapshot() {
		if it.tx.State() >= transaction.StateRunning {
			continue
		}
		if err := it.tx.CancelWith(enum.ExitCancelled); err != nil {
			s.log.WithField("tid", it.tx.TID()).WithError(err).Debug("failed to cancel queued transaction")
			continue
		}
		n++
	}
	return n
}

// CancelBackground asks every running background transaction to stop and
// returns how many were asked.
func (s *Scheduler) CancelBackground() int {
	n := 0
	for _, it := range s.snapshot() {
		if it.tx.State() != transaction.StateRunning || !it.tx.Background() {
			continue
		}
		if err := it.tx.CancelWith(enum.ExitCancelledPriority); err != nil {
			s.log.WithField("tid", it.tx.TID()).WithError(err).Debug("failed to cancel background transaction")
			continue
		}
		s.log.WithField("tid", it.tx.TID()).Info("cancelled background transaction for foreground work")
		n++
	}
	return n
}

func (s *Scheduler) stateChanged(t *transaction.Transaction, state transaction.State) {
	it := s.lookup(t)
	if it == nil {
		return
	}
	switch state {
	case transaction.StateReady:
		s.commit(it)
	case transaction.StateError:
		s.removeItem(it)
	}
	s.updateStats()
}

func (s *Scheduler) commit(it *item) {
	if it.tx.State() != transaction.StateReady {
		return
	}
	s.mu.Lock()
	stopTimer(it.commitTimer)
	s.mu.Unlock()

	if !s.pool.SupportsParallelization() {
		it.tx.MakeExclusive()
	}
	if !it.tx.Background() {
		s.CancelBackground()
	}
	s.admit()
}

// admit starts at most one Ready transaction: the oldest foreground one
// that may run, else the oldest background one. An exclusive transaction
// may only run while no other exclusive transaction does. A waiting
// foreground transaction cancels running background ones.
func (s *Scheduler) admit() {
	items := s.snapshot()

	exclusiveRunning := false
	backgroundRunning := false
	for _, it := range items {
		if it.tx.State() != transaction.StateRunning {
			continue
		}
		if it.tx.Exclusive() {
			exclusiveRunning = true
		}
		if it.tx.Background() {
			backgroundRunning = true
		}
	}

	preempted := false
	for _, background := range []bool{false, true} {
		if background && preempted {
			return
		}
		for _, it := range items {
			tx := it.tx
			if tx.State() != transaction.StateReady || tx.Background() != background || tx.IsFinished() {
				continue
			}
			if !background && backgroundRunning {
				s.CancelBackground()
				backgroundRunning = false
				preempted = true
			}
			if tx.Exclusive() && exclusiveRunning {
				continue
			}
			s.runItem(it)
			return
		}
	}
}

// runItem marks it Running and dispatches the run on a later loop pass.
func (s *Scheduler) runItem(it *item) {
	s.mu.Lock()
	if !slices.Contains(s.items, it) {
		s.mu.Unlock()
		return
	}
	it.runPending = true
	s.mu.Unlock()

	if err := it.tx.SetState(transaction.StateRunning); err != nil {
		s.log.WithField("tid", it.tx.TID()).WithError(err).Warn("failed to start transaction")
		s.mu.Lock()
		it.runPending = false
		s.mu.Unlock()
		return
	}
	s.post(func() { s.dispatch(it) })
}

func (s *Scheduler) dispatch(it *item) {
	s.mu.Lock()
	pending := it.runPending && slices.Contains(s.items, it)
	it.runPending = false
	s.mu.Unlock()
	if !pending {
		return
	}

	b := s.pool.Active()
	if b == nil {
		it.tx.Fail(enum.ErrorInternalError, "no backend is loaded")
		return
	}
	go it.tx.Run(b)
	s.admit()
	s.updateStats()
}

func (s *Scheduler) finished(t *transaction.Transaction) {
	it := s.lookup(t)
	if it == nil {
		s.log.WithField("tid", t.TID()).Warn("finished transaction is not queued")
		return
	}
	log := s.log.WithField("tid", t.TID())
	if t.State() == transaction.StateFinished {
		log.Warn("transaction finished twice")
		return
	}

	if t.FinishedWithLockRequired() {
		s.mu.Lock()
		it.tries++
		tries := it.tries
		s.mu.Unlock()

		if tries > s.opts.MaxLockRetries {
			s.metrics.RecordLockTimeout()
			log.WithField("attempts", tries).Warn("giving up waiting for the backend lock")
			t.Fail(enum.ErrorCannotGetLock, fmt.Sprintf("failed to get the package manager lock after %d attempts", tries))
			return
		}
		s.metrics.RecordLockRetry()
		log.WithField("attempt", tries).Info("backend needs its lock, requeueing as exclusive")
		if err := t.ResetAfterLockError(); err != nil {
			log.WithError(err).Warn("failed to requeue transaction")
			return
		}
		s.admit()
		s.updateStats()
		return
	}

	s.mu.Lock()
	stopTimer(it.commitTimer)
	it.removeTimer = time.AfterFunc(s.opts.KeepFinished, func() {
		s.post(func() { s.removeItem(it) })
	})
	s.mu.Unlock()

	if err := t.SetState(transaction.StateFinished); err != nil {
		log.WithError(err).Warn("failed to mark transaction finished")
	}
	s.metrics.RecordFinished(t.Role().String(), t.Exit().String(), t.Runtime())
	s.admit()
	s.updateStats()
}

func (s *Scheduler) commitExpired(it *item) {
	if it.tx.State() != transaction.StateNew {
		return
	}
	s.log.WithField("tid", it.tx.TID()).Info("transaction was never committed, discarding")
	s.removeItem(it)
	s.updateStats()
}

func (s *Scheduler) removeItem(it *item) {
	s.mu.Lock()
	i := slices.Index(s.items, it)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.items = slices.Delete(s.items, i, i+1)
	stopTimer(it.commitTimer)
	stopTimer(it.removeTimer)
	it.runPending = false
	s.mu.Unlock()

	it.tx.Destroy()
	s.log.WithField("tid", it.tx.TID()).Debug("transaction removed")
}

// Get returns the transaction tid, or nil.
func (s *Scheduler) Get(tid string) *transaction.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it := s.find(tid); it != nil {
		return it.tx
	}
	return nil
}

// Transactions returns every queued transaction in creation order.
func (s *Scheduler) Transactions() []*transaction.Transaction {
	items := s.snapshot()
	txs := make([]*transaction.Transaction, len(items))
	for i, it := range items {
		txs[i] = it.tx
	}
	return txs
}

// Size returns the number of queued transactions.
func (s *Scheduler) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Array returns the ids of Ready and Running transactions in creation
// order.
func (s *Scheduler) Array() []string {
	var tids []string
	for _, it := range s.snapshot() {
		switch it.tx.State() {
		case transaction.StateReady, transaction.StateRunning:
			tids = append(tids, it.tx.TID())
		}
	}
	return tids
}

// RolePresent reports whether an unfinished transaction has role.
func (s *Scheduler) RolePresent(role enum.Role) bool {
	for _, it := range s.snapshot() {
		if it.tx.State().Terminal() {
			continue
		}
		if it.tx.Role() == role {
			return true
		}
	}
	return false
}

// Locked reports whether a running transaction holds the backend lock.
func (s *Scheduler) Locked() bool {
	for _, it := range s.snapshot() {
		if it.tx.State() == transaction.StateRunning && it.tx.Locked() {
			return true
		}
	}
	return false
}

// Watch calls fn with Array whenever it changes. fn is called on the
// loop and must not block. The returned func stops the notifications.
func (s *Scheduler) Watch(fn func(tids []string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// WaitIdle blocks until no transaction is waiting, queued or running.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) idle() bool {
	for _, it := range s.snapshot() {
		switch it.tx.State() {
		case transaction.StateWaitingForAuth, transaction.StateReady, transaction.StateRunning:
			return false
		}
	}
	return true
}

// IsConsistent reports whether at most one exclusive transaction is
// running and not every transaction is stuck in Ready.
func (s *Scheduler) IsConsistent() bool {
	items := s.snapshot()
	exclusive := 0
	ready := 0
	for _, it := range items {
		switch it.tx.State() {
		case transaction.StateRunning:
			if it.tx.Exclusive() {
				exclusive++
			}
		case transaction.StateReady:
			ready++
		}
	}
	if exclusive > 1 {
		return false
	}
	return len(items) == 0 || ready != len(items)
}

// StateDump describes every queued transaction, one per line.
func (s *Scheduler) StateDump() string {
	items := s.snapshot()
	var b strings.Builder
	ready := 0
	for i, it := range items {
		tx := it.tx
		if tx.State() == transaction.StateReady {
			ready++
		}
		fmt.Fprintf(&b, "%d\t%s\t%s\tstate[%s] exclusive[%v] background[%v]\n",
			i, tx.TID(), tx.Role(), tx.State(), tx.Exclusive(), tx.Background())
	}
	if len(items) > 0 && ready == len(items) {
		b.WriteString("WARNING: everything is waiting!\n")
	}
	return b.String()
}

func (s *Scheduler) checkWedge() {
	if s.IsConsistent() {
		return
	}
	s.log.Debug("scheduler looks inconsistent, checking again")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wedgeTimer != nil {
		s.wedgeTimer.Reset(s.opts.WedgeRecheck)
		return
	}
	s.wedgeTimer = time.AfterFunc(s.opts.WedgeRecheck, func() {
		s.post(s.recheckWedge)
	})
}

func (s *Scheduler) recheckWedge() {
	if s.IsConsistent() {
		return
	}
	s.metrics.RecordWedge()
	s.log.WithField("dump", s.StateDump()).Error("scheduler is wedged")
}

// updateStats refreshes the queue gauges and notifies watchers when the
// set of active transactions changed.
func (s *Scheduler) updateStats() {
	queued, running := 0, 0
	for _, it := range s.snapshot() {
		switch it.tx.State() {
		case transaction.StateNew, transaction.StateWaitingForAuth, transaction.StateReady:
			queued++
		case transaction.StateRunning:
			running++
		}
	}
	s.metrics.UpdateQueueStats(queued, running)

	array := s.Array()
	s.mu.Lock()
	if slices.Equal(array, s.lastArray) {
		s.mu.Unlock()
		return
	}
	s.lastArray = array
	watchers := make([]func([]string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(slices.Clone(array))
	}
}

func (s *Scheduler) snapshot() []*item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *Scheduler) lookup(t *transaction.Transaction) *item {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.tx == t {
			return it
		}
	}
	return nil
}

// find must be called with s.mu held.
func (s *Scheduler) find(tid string) *item {
	for _, it := range s.items {
		if it.tx.TID() == tid {
			return it
		}
	}
	return nil
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
