package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pkgd/pkg/enum"
)

// Proxy holds the proxy settings that apply to one job.
type Proxy struct {
	HTTP    string `json:"http,omitempty"`
	HTTPS   string `json:"https,omitempty"`
	FTP     string `json:"ftp,omitempty"`
	Socks   string `json:"socks,omitempty"`
	NoProxy string `json:"no_proxy,omitempty"`
	PAC     string `json:"pac,omitempty"`
}

// Environ returns the proxy settings as environment assignments for subprocesses.
func (p Proxy) Environ() []string {
	var env []string
	add := func(key, value string) {
		if value != "" {
			env = append(env, key+"="+value)
		}
	}
	add("http_proxy", p.HTTP)
	add("https_proxy", p.HTTPS)
	add("ftp_proxy", p.FTP)
	add("all_proxy", p.Socks)
	add("no_proxy", p.NoProxy)
	return env
}

// JobOptions are the per-run parameters a backend may consult.
type JobOptions struct {
	Role           enum.Role
	Filters        enum.Filter
	Flags          enum.TransactionFlag
	UID            uint32
	Locale         string
	CacheAge       uint
	Background     bool
	Interactive    bool
	FrontendSocket string
	Proxy          Proxy
	Logger         *logrus.Entry
}

// Job is the execution context of one backend verb invocation. It is
// created fresh for every run and carries the callback wiring back to the
// owning transaction until it is detached.
type Job struct {
	opts    JobOptions
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logrus.Entry
	started time.Time

	mu          sync.Mutex
	handler     func(Event)
	exit        enum.Exit
	finished    bool
	locked      bool
	allowCancel bool
}

// NewJob creates an execution context that delivers events to handler.
func NewJob(parent context.Context, opts JobOptions, handler func(Event)) *Job {
	ctx, cancel := context.WithCancel(parent)
	log := opts.Logger
	if log == nil {
		log = logrus.WithField("component", "backend")
	}
	return &Job{
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		log:         log.WithField("role", opts.Role.String()),
		started:     time.Now(),
		handler:     handler,
		allowCancel: true,
	}
}

// Context is cancelled when the job is cancelled or detached.
func (j *Job) Context() context.Context { return j.ctx }

// Role returns the verb being run.
func (j *Job) Role() enum.Role { return j.opts.Role }

// Filters returns the result filters requested by the caller.
func (j *Job) Filters() enum.Filter { return j.opts.Filters }

// Flags returns the transaction flags requested by the caller.
func (j *Job) Flags() enum.TransactionFlag { return j.opts.Flags }

// UID returns the uid of the caller.
func (j *Job) UID() uint32 { return j.opts.UID }

// Locale returns the caller's locale hint.
func (j *Job) Locale() string { return j.opts.Locale }

// CacheAge returns the maximum acceptable metadata age in seconds, 0 meaning unset.
func (j *Job) CacheAge() uint { return j.opts.CacheAge }

// Background reports whether the job runs at low priority.
func (j *Job) Background() bool { return j.opts.Background }

// Interactive reports whether the caller can answer questions.
func (j *Job) Interactive() bool { return j.opts.Interactive }

// Proxy returns the caller's proxy settings.
func (j *Job) Proxy() Proxy { return j.opts.Proxy }

// Logger returns the job's logger.
func (j *Job) Logger() *logrus.Entry { return j.log }

// Elapsed returns the time since the job was created.
func (j *Job) Elapsed() time.Duration { return time.Since(j.started) }

// IsCancelled reports whether the job has been asked to stop.
func (j *Job) IsCancelled() bool { return j.ctx.Err() != nil }

func (j *Job) emit(ev Event) {
	j.mu.Lock()
	handler := j.handler
	j.mu.Unlock()

	if handler == nil {
		j.log.Warnf("backend emitted %s after the job was finished, ignoring", ev.EventName())
		return
	}
	handler(ev)
}

// Emit delivers an event the typed emitters do not cover.
func (j *Job) Emit(ev Event) { j.emit(ev) }

// Package reports a package.
func (j *Job) Package(info enum.Info, packageID, summary string) {
	j.emit(PackageEvent{Info: info, PackageID: packageID, Summary: summary})
}

// Details reports package details.
func (j *Job) Details(d DetailsEvent) { j.emit(d) }

// Files reports the files of a package.
func (j *Job) Files(packageID string, files []string) {
	j.emit(FilesEvent{PackageID: packageID, Files: files})
}

// UpdateDetail reports details of an update.
func (j *Job) UpdateDetail(d UpdateDetailEvent) { j.emit(d) }

// RepoDetail reports a repository.
func (j *Job) RepoDetail(repoID, description string, enabled bool) {
	j.emit(RepoDetailEvent{RepoID: repoID, Description: description, Enabled: enabled})
}

// Category reports a category.
func (j *Job) Category(c CategoryEvent) { j.emit(c) }

// DistroUpgrade reports an available distribution upgrade.
func (j *Job) DistroUpgrade(d DistroUpgradeEvent) { j.emit(d) }

// RequireRestart reports that a restart is needed after the change.
func (j *Job) RequireRestart(restart enum.Restart, packageID string) {
	j.emit(RequireRestartEvent{Restart: restart, PackageID: packageID})
}

// RepoSignatureRequired asks the caller to import a repository key.
func (j *Job) RepoSignatureRequired(s RepoSignatureRequiredEvent) { j.emit(s) }

// EulaRequired asks the caller to accept a licence.
func (j *Job) EulaRequired(e EulaRequiredEvent) { j.emit(e) }

// MediaChangeRequired asks the caller to insert media.
func (j *Job) MediaChangeRequired(m MediaChangeRequiredEvent) { j.emit(m) }

// Status reports the current activity.
func (j *Job) Status(s enum.Status) { j.emit(StatusEvent{Status: s}) }

// Percentage reports overall progress, PercentageUnknown when unknown.
func (j *Job) Percentage(p uint) {
	if p > PercentageUnknown {
		j.log.Warnf("percentage %d out of range", p)
		return
	}
	j.emit(PercentageEvent{Percentage: p})
}

// ItemProgress reports progress for one package.
func (j *Job) ItemProgress(packageID string, status enum.Status, p uint) {
	j.emit(ItemProgressEvent{PackageID: packageID, Status: status, Percentage: p})
}

// SetAllowCancel tells the caller whether cancelling is possible right now.
func (j *Job) SetAllowCancel(allow bool) {
	j.mu.Lock()
	changed := j.allowCancel != allow
	j.allowCancel = allow
	j.mu.Unlock()
	if changed {
		j.emit(AllowCancelEvent{AllowCancel: allow})
	}
}

// AllowCancel reports the last value set with SetAllowCancel.
func (j *Job) AllowCancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.allowCancel
}

// SetLocked records whether the backend holds its package database lock.
func (j *Job) SetLocked(locked bool) {
	j.mu.Lock()
	changed := j.locked != locked
	j.locked = locked
	j.mu.Unlock()
	if changed {
		j.emit(LockedEvent{Locked: locked})
	}
}

// Locked reports whether the backend holds its package database lock.
func (j *Job) Locked() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.locked
}

// ErrorCode reports an error. The job will finish as failed unless an exit
// code was already decided.
func (j *Job) ErrorCode(code enum.ErrorCode, format string, args ...interface{}) {
	j.mu.Lock()
	if j.exit == enum.ExitUnknown {
		switch code {
		case enum.ErrorTransactionCancelled:
			j.exit = enum.ExitCancelled
		case enum.ErrorCancelledPriority:
			j.exit = enum.ExitCancelledPriority
		case enum.ErrorCannotInstallRepoUnsigned, enum.ErrorCannotUpdateRepoUnsigned:
			j.exit = enum.ExitNeedUntrusted
		default:
			j.exit = enum.ExitFailed
		}
	}
	j.mu.Unlock()

	j.emit(ErrorEvent{Code: code, Details: fmt.Sprintf(format, args...)})
}

// SetExitCode overrides the exit code reported by Finished.
func (j *Job) SetExitCode(exit enum.Exit) {
	j.mu.Lock()
	j.exit = exit
	j.mu.Unlock()
}

// Exit returns the exit code decided so far.
func (j *Job) Exit() enum.Exit {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exit
}

// Finished is the terminal callback; backends call it exactly once.
func (j *Job) Finished() {
	j.mu.Lock()
	if j.finished {
		j.mu.Unlock()
		j.log.Warn("backend called finished more than once")
		j.emit(FinishedEvent{Exit: j.Exit()})
		return
	}
	j.finished = true
	if j.exit == enum.ExitUnknown {
		j.exit = enum.ExitSuccess
	}
	exit := j.exit
	j.locked = false
	j.mu.Unlock()

	j.emit(FinishedEvent{Exit: exit})
}

// Cancel asks the backend to stop, recording exit as the result.
func (j *Job) Cancel(exit enum.Exit) {
	j.mu.Lock()
	if j.finished {
		j.mu.Unlock()
		return
	}
	if j.exit == enum.ExitUnknown || j.exit == enum.ExitSuccess {
		j.exit = exit
	}
	j.mu.Unlock()
	j.cancel()
}

// Detach drops the callback wiring and releases the context. Events emitted
// afterwards are logged and discarded.
func (j *Job) Detach() {
	j.mu.Lock()
	j.handler = nil
	j.mu.Unlock()
	j.cancel()
}
