// Package transaction implements the lifecycle of one client request: the
// state machine, request validation, authorization and the handling of the
// events a backend emits while running it.
package transaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pkgd/internal/authority"
	"pkgd/internal/config"
	"pkgd/internal/history"
	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
)

// Owner is told about the transitions a transaction makes on its own.
// Implementations must not block and must not call back into the
// transaction synchronously.
type Owner interface {
	// StateChanged is called after the transaction moved to Ready,
	// WaitingForAuth or Error by itself.
	StateChanged(t *Transaction, state State)

	// Finished is called once a run ended, including runs that ended
	// because the backend needed its lock (see FinishedWithLockRequired).
	Finished(t *Transaction)
}

// History is the transaction database sink. Failures are logged only.
type History interface {
	RecordTransaction(tid string, role enum.Role, uid uint32, cmdline string) error
	RecordOutcome(tid string, succeeded bool, durationMs uint) error
	RecordPackageList(tid, data string) error
	List(limit int) ([]history.Entry, error)
}

// Deps are the collaborators shared by every transaction.
type Deps struct {
	Gate    authority.Gate
	History History

	// Proxy returns the proxy settings of a caller session.
	Proxy func(uid uint32, session string) backend.Proxy

	Limits config.LimitsConfig

	// SelfTest skips authorization.
	SelfTest bool

	Log *logrus.Entry
}

// Transaction is one request and everything that happens to it until it
// is reaped.
type Transaction struct {
	tid     string
	subject authority.Subject
	owner   Owner
	backend backend.Backend
	deps    Deps
	log     *logrus.Entry
	created time.Time

	ctx     context.Context
	destroy context.CancelFunc

	mu           sync.Mutex
	state        State
	request      Request
	hints        Hints
	exclusive    bool
	callerActive bool
	status       enum.Status
	percentage   uint
	allowCancel  bool
	locked       bool
	authCancel   context.CancelFunc
	// authAbandoned stops a pending authorization from making the
	// transaction Ready.
	authAbandoned bool

	job        *backend.Job
	runBackend backend.Backend
	gen        int
	attempts   int
	started    time.Time
	recorded   bool

	lockRequired bool
	lockPending  bool
	finished     bool
	exit         enum.Exit
	runtime      time.Duration
	results      Results

	pendingSignature bool
	pendingEula      bool
	pendingMedia     bool

	subs    map[int]func(backend.Event)
	nextSub int
}

// New creates a transaction in StateNew. b is the backend requests are
// checked against; the backend the transaction finally runs on is passed
// to Run.
func New(tid string, subject authority.Subject, owner Owner, b backend.Backend, deps Deps) *Transaction {
	log := deps.Log
	if log == nil {
		log = logrus.WithField("component", "transaction")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Transaction{
		tid:          tid,
		subject:      subject,
		owner:        owner,
		backend:      b,
		deps:         deps,
		log:          log.WithField("tid", tid),
		created:      time.Now(),
		ctx:          ctx,
		destroy:      cancel,
		callerActive: true,
		status:       enum.StatusWait,
		percentage:   backend.PercentageUnknown,
		subs:         make(map[int]func(backend.Event)),
	}
}

// TID returns the transaction id.
func (t *Transaction) TID() string { return t.tid }

// Subject returns the caller that created the transaction.
func (t *Transaction) Subject() authority.Subject { return t.subject }

// UID returns the uid of the caller.
func (t *Transaction) UID() uint32 { return t.subject.UID }

// Created returns when the transaction was created.
func (t *Transaction) Created() time.Time { return t.created }

// State returns the current lifecycle state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Role returns the requested verb, RoleUnknown before a request was made.
func (t *Transaction) Role() enum.Role {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.request == nil {
		return enum.RoleUnknown
	}
	return t.request.Role()
}

// Request returns the request, nil before one was made.
func (t *Transaction) Request() Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.request
}

// Exclusive reports whether the transaction must not run next to another
// exclusive one.
func (t *Transaction) Exclusive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exclusive
}

// MakeExclusive marks the transaction exclusive.
func (t *Transaction) MakeExclusive() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exclusive = true
}

// Background reports whether the caller asked for low priority.
func (t *Transaction) Background() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hints.Background
}

// Hints returns the caller hints.
func (t *Transaction) Hints() Hints {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hints
}

// CallerActive reports whether the caller is still connected.
func (t *Transaction) CallerActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callerActive
}

// Status returns the last status the backend reported.
func (t *Transaction) Status() enum.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Percentage returns the last progress the backend reported.
func (t *Transaction) Percentage() uint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentage
}

// AllowCancel reports whether Cancel can currently interrupt the backend.
func (t *Transaction) AllowCancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job == nil || t.allowCancel
}

// Locked reports whether the backend holds its database lock for this run.
func (t *Transaction) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locked
}

// Exit returns the exit code, ExitUnknown until the transaction finished.
func (t *Transaction) Exit() enum.Exit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exit
}

// Runtime returns how long the transaction ran, across lock retries.
func (t *Transaction) Runtime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished || t.started.IsZero() {
		return t.runtime
	}
	return time.Since(t.started)
}

// Attempts returns how many times the transaction was run.
func (t *Transaction) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// IsFinished reports whether the terminal finished event was emitted.
func (t *Transaction) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Results returns a copy of what the backend reported so far.
func (t *Transaction) Results() Results {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.results
	r.Packages = append([]backend.PackageEvent(nil), r.Packages...)
	r.Errors = append([]backend.ErrorEvent(nil), r.Errors...)
	return r
}

// Subscribe registers fn for every event forwarded to the caller. fn is
// called from backend goroutines and must not block. The returned func
// removes the subscription.
func (t *Transaction) Subscribe(fn func(backend.Event)) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *Transaction) publish(ev backend.Event) {
	t.mu.Lock()
	subs := make([]func(backend.Event), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// SetHints applies "key=value" hints. Unknown keys are logged and ignored.
func (t *Transaction) SetHints(hints []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateNew {
		return fmt.Errorf("%w: hints must be set before the request", ErrInvalidState)
	}
	h := t.hints
	for _, hint := range hints {
		known, err := h.applyHint(hint)
		if err != nil {
			return err
		}
		if !known {
			t.log.Warnf("unknown hint %q, ignoring", hint)
		}
	}
	t.hints = h
	return nil
}

// move performs a transition the transaction decided on itself and tells
// the owner about it.
func (t *Transaction) move(state State) bool {
	return t.moveIf(state, nil)
}

// moveIf is move, skipped when ok returns false. ok runs with t.mu held.
func (t *Transaction) moveIf(state State, ok func() bool) bool {
	t.mu.Lock()
	if ok != nil && !ok() {
		t.mu.Unlock()
		return false
	}
	from := t.state
	if !canMove(from, state) {
		t.mu.Unlock()
		t.log.Warnf("refusing transition %s -> %s", from, state)
		return false
	}
	t.state = state
	t.mu.Unlock()

	t.log.Debugf("state %s -> %s", from, state)
	t.publish(StateEvent{State: state})
	if t.owner != nil {
		t.owner.StateChanged(t, state)
	}
	return true
}

// SetState is used by the scheduler to mark the transaction Running or
// Finished. Backward transitions are refused.
func (t *Transaction) SetState(state State) error {
	t.mu.Lock()
	from := t.state
	if !canMove(from, state) {
		t.mu.Unlock()
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, from, state)
	}
	t.state = state
	t.mu.Unlock()

	t.log.Debugf("state %s -> %s", from, state)
	t.publish(StateEvent{State: state})
	return nil
}

// Submit validates req and authorizes it. On success the transaction is
// either Ready (and the owner was told) or WaitingForAuth, in which case the
// outcome is delivered through the event stream. Validation failures move
// the transaction to Error and are returned.
func (t *Transaction) Submit(req Request) error {
	t.mu.Lock()
	if t.request != nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: already running %s", ErrAlreadyHasRole, t.request.Role())
	}
	if t.state != StateNew {
		t.mu.Unlock()
		return fmt.Errorf("%w: transaction is %s", ErrInvalidState, t.state)
	}
	t.mu.Unlock()

	role := req.Role()
	if err := t.checkSupported(role); err != nil {
		return t.reject(err)
	}
	if err := req.validate(limits(t.deps.Limits)); err != nil {
		return t.reject(err)
	}

	t.mu.Lock()
	t.request = req
	if role.Exclusive() {
		t.exclusive = true
	}
	t.mu.Unlock()

	t.log.WithField("role", role.String()).Debug("request accepted")
	return t.authorize(role, flagsOf(req))
}

func (t *Transaction) checkSupported(role enum.Role) error {
	if role == enum.RoleUnknown {
		return fmt.Errorf("%w: unknown role", ErrNotSupported)
	}
	if role == enum.RoleGetOldTransactions {
		return nil
	}
	if t.backend == nil || !t.backend.Roles().Has(role) {
		return fmt.Errorf("%w: %s", ErrNotSupported, role)
	}
	return nil
}

func (t *Transaction) reject(err error) error {
	t.log.WithError(err).Debug("request rejected")
	t.move(StateError)
	return err
}

// Run executes the request on b. The scheduler calls it on its own
// goroutine after marking the transaction Running.
func (t *Transaction) Run(b backend.Backend) {
	t.mu.Lock()
	if t.state != StateRunning || t.finished || t.job != nil {
		state := t.state
		t.mu.Unlock()
		t.log.Warnf("not running transaction in state %s", state)
		return
	}
	t.gen++
	gen := t.gen
	t.attempts++
	attempt := t.attempts
	first := t.started.IsZero()
	if first {
		t.started = time.Now()
	}
	req := t.request
	opts := backend.JobOptions{
		Role:           req.Role(),
		Filters:        filtersOf(req),
		Flags:          flagsOf(req),
		UID:            t.subject.UID,
		Locale:         t.hints.Locale,
		CacheAge:       t.hints.CacheAge,
		Background:     t.hints.Background,
		Interactive:    t.hints.Interactive,
		FrontendSocket: t.hints.FrontendSocket,
		Logger:         t.log,
	}
	if t.deps.Proxy != nil {
		opts.Proxy = t.deps.Proxy(t.subject.UID, t.subject.Session)
	}
	job := backend.NewJob(t.ctx, opts, func(ev backend.Event) { t.handle(gen, ev) })
	t.job = job
	t.runBackend = b
	t.allowCancel = true
	t.mu.Unlock()

	if first {
		t.recordStart(req)
	}
	t.log.WithFields(logrus.Fields{"role": opts.Role.String(), "attempt": attempt, "backend": b.Name()}).Debug("running")
	req.run(&runEnv{backend: b, job: job, history: t.deps.History})
}

// handle receives every event of run gen.
func (t *Transaction) handle(gen int, ev backend.Event) {
	if fin, ok := ev.(backend.FinishedEvent); ok {
		t.finish(gen, fin.Exit)
		return
	}

	t.mu.Lock()
	if gen != t.gen || t.job == nil || t.finished {
		t.mu.Unlock()
		t.log.Warnf("backend emitted %s after the run ended, ignoring", ev.EventName())
		return
	}

	switch e := ev.(type) {
	case backend.StatusEvent:
		if e.Status == enum.StatusWait {
			t.mu.Unlock()
			return
		}
		t.status = e.Status
	case backend.PercentageEvent:
		t.percentage = e.Percentage
	case backend.AllowCancelEvent:
		t.allowCancel = e.AllowCancel
	case backend.LockedEvent:
		t.locked = e.Locked
	case backend.PackageEvent:
		if reason := t.packageRejected(e); reason != "" {
			t.mu.Unlock()
			t.log.Warnf("backend bug, dropping %s: %s", e.PackageID, reason)
			return
		}
	case backend.ErrorEvent:
		// A lock error is retried as exclusive once the run ended. Only
		// an exclusive run reports it to the caller.
		if e.Code == enum.ErrorLockRequired {
			t.lockRequired = true
			if !t.exclusive {
				t.mu.Unlock()
				t.log.Infof("backend needs its lock: %s", e.Details)
				return
			}
		}
	case backend.RepoSignatureRequiredEvent:
		t.pendingSignature = true
	case backend.EulaRequiredEvent:
		t.pendingEula = true
	case backend.MediaChangeRequiredEvent:
		t.pendingMedia = true
	}
	t.results.add(ev)
	t.mu.Unlock()

	t.publish(ev)
}

// packageRejected returns why a package contradicts the request, or "".
// Callers hold t.mu.
func (t *Transaction) packageRejected(p backend.PackageEvent) string {
	filters := filtersOf(t.request)
	switch {
	case filters.Has(enum.FilterNotInstalled) && p.Info == enum.InfoInstalled:
		return "installed package with the ~installed filter"
	case filters.Has(enum.FilterInstalled) && p.Info == enum.InfoAvailable:
		return "available package with the installed filter"
	}
	switch t.request.Role() {
	case enum.RoleInstallPackages, enum.RoleUpdatePackages, enum.RoleUpgradeSystem:
		if p.Info == enum.InfoInstalled {
			return "emitted 'installed' rather than 'installing'"
		}
	}
	return ""
}

// finish handles the backend's finished callback for run gen.
func (t *Transaction) finish(gen int, exit enum.Exit) {
	t.mu.Lock()
	if gen != t.gen || t.job == nil || t.finished {
		t.mu.Unlock()
		t.log.Warn("backend finished a run that already ended, ignoring")
		return
	}
	job := t.job
	t.job = nil
	t.locked = false

	if t.lockRequired {
		t.lockPending = true
		t.mu.Unlock()
		job.Detach()
		if t.owner != nil {
			t.owner.Finished(t)
		}
		return
	}
	t.mu.Unlock()

	t.complete(exit, job)
}

// complete emits the terminal finished event.
func (t *Transaction) complete(exit enum.Exit, job *backend.Job) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		t.log.Warn("transaction already finished")
		return
	}
	switch {
	case t.pendingSignature:
		exit = enum.ExitKeyRequired
	case t.pendingEula:
		exit = enum.ExitEulaRequired
	case t.pendingMedia:
		exit = enum.ExitMediaChangeRequired
	}
	t.finished = true
	t.exit = exit
	if !t.started.IsZero() {
		t.runtime = time.Since(t.started)
	}
	t.allowCancel = false
	t.job = nil
	runtime := t.runtime
	packages := append([]backend.PackageEvent(nil), t.results.Packages...)
	req := t.request
	t.mu.Unlock()

	if job != nil {
		job.Detach()
	}

	t.log.WithFields(logrus.Fields{"exit": exit.String(), "runtime": runtime}).Info("transaction finished")
	t.recordOutcome(req, exit, runtime, packages)
	t.publish(FinishedEvent{Exit: exit, Runtime: runtime})
	if t.owner != nil {
		t.owner.Finished(t)
	}
}

// FinishedWithLockRequired reports whether the last run ended because the
// backend could not get its lock. The transaction waits for
// ResetAfterLockError or Fail.
func (t *Transaction) FinishedWithLockRequired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lockPending
}

// ResetAfterLockError prepares a transaction that bounced off the backend
// lock to be run again: results are cleared, the transaction becomes
// exclusive and moves back to Ready.
func (t *Transaction) ResetAfterLockError() error {
	t.mu.Lock()
	if !t.lockPending {
		t.mu.Unlock()
		return fmt.Errorf("%w: no lock error to reset", ErrInvalidState)
	}
	t.lockPending = false
	t.lockRequired = false
	t.exclusive = true
	t.results = Results{}
	t.pendingSignature, t.pendingEula, t.pendingMedia = false, false, false
	t.status = enum.StatusWait
	t.percentage = backend.PercentageUnknown
	t.allowCancel = true
	moved := t.state == StateRunning
	if moved {
		t.state = StateReady
	}
	t.mu.Unlock()

	if moved {
		t.publish(StateEvent{State: StateReady})
	}
	return nil
}

// Fail reports code to the caller and finishes the transaction as failed.
func (t *Transaction) Fail(code enum.ErrorCode, details string) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	job := t.job
	t.job = nil
	t.lockPending = false
	t.mu.Unlock()

	ev := backend.ErrorEvent{Code: code, Details: details}
	t.mu.Lock()
	t.results.add(ev)
	t.mu.Unlock()
	t.publish(ev)
	t.complete(enum.ExitFailed, job)
}

// Cancel stops the transaction on behalf of uid. Cancelling a transaction
// of another user needs the cancel-foreign action.
func (t *Transaction) Cancel(ctx context.Context, uid uint32) error {
	if uid != 0 && uid != t.subject.UID {
		if err := t.authorizeOne(ctx, authority.ActionCancelForeign, authority.Subject{UID: uid}); err != nil {
			return err
		}
	}
	return t.CancelWith(enum.ExitCancelled)
}

// CancelWith stops the transaction and finishes it with exit. A transaction
// that never ran finishes immediately; a running one asks the backend to
// stop and finishes when it does.
func (t *Transaction) CancelWith(exit enum.Exit) error {
	t.mu.Lock()
	if t.finished || t.state.Terminal() {
		t.mu.Unlock()
		return fmt.Errorf("%w: transaction is %s", ErrNotRunning, t.state)
	}

	if t.state == StateWaitingForAuth {
		t.authAbandoned = true
		cancel := t.authCancel
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil
	}

	if t.job == nil {
		t.mu.Unlock()
		t.log.Debug("cancelling transaction that is not running")
		t.complete(exit, nil)
		return nil
	}

	if !t.allowCancel {
		t.mu.Unlock()
		return ErrCannotCancel
	}
	job := t.job
	b := t.runBackend
	t.allowCancel = false
	t.mu.Unlock()

	t.log.Infof("cancelling running transaction (%s)", exit)
	t.publish(backend.AllowCancelEvent{AllowCancel: false})
	job.Cancel(exit)
	if b != nil {
		b.Cancel(job)
	}
	return nil
}

// CallerVanished is called when the caller disconnected. A pending
// authorization is abandoned, which fails the transaction.
func (t *Transaction) CallerVanished() {
	t.mu.Lock()
	t.callerActive = false
	cancel := t.authCancel
	waiting := t.state == StateWaitingForAuth
	if waiting {
		t.authAbandoned = true
	}
	t.mu.Unlock()

	t.log.Debug("caller vanished")
	if waiting && cancel != nil {
		cancel()
	}
}

// Destroy releases the transaction. Pending authorization checks and the
// context of a run are cancelled and subscribers are dropped.
func (t *Transaction) Destroy() {
	t.destroy()
	t.mu.Lock()
	t.subs = make(map[int]func(backend.Event))
	t.mu.Unlock()
}

func (t *Transaction) recordStart(req Request) {
	role := req.Role()
	if t.deps.History == nil || !role.Recorded() || flagsOf(req).Has(enum.FlagSimulate) {
		return
	}
	if err := t.deps.History.RecordTransaction(t.tid, role, t.subject.UID, t.subject.Cmdline); err != nil {
		t.log.WithError(err).Warn("failed to record transaction")
		return
	}
	t.mu.Lock()
	t.recorded = true
	t.mu.Unlock()
}

func (t *Transaction) recordOutcome(req Request, exit enum.Exit, runtime time.Duration, packages []backend.PackageEvent) {
	t.mu.Lock()
	recorded := t.recorded
	t.mu.Unlock()
	if !recorded {
		return
	}

	if req.Role().ChangesSystem() && len(packages) > 0 {
		lines := make([]history.PackageLine, 0, len(packages))
		for _, p := range packages {
			lines = append(lines, history.PackageLine{Info: p.Info, PackageID: p.PackageID, Summary: p.Summary})
		}
		if err := t.deps.History.RecordPackageList(t.tid, history.FormatPackageList(lines)); err != nil {
			t.log.WithError(err).Warn("failed to record package list")
		}
	}
	if err := t.deps.History.RecordOutcome(t.tid, exit == enum.ExitSuccess, uint(runtime.Milliseconds())); err != nil {
		t.log.WithError(err).Warn("failed to record transaction outcome")
	}
}
