// Package native implements backends driving the system package manager.
package native

import (
	"context"
	"errors"
	"os/exec"

	"github.com/sirupsen/logrus"

	"pkgd/internal/executor"
	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
)

// classifier maps a failed command to a backend error code.
type classifier func(stderr string) (enum.ErrorCode, string, bool)

// baseBackend provides the functionality shared by native backends.
type baseBackend struct {
	backend.Unsupported

	name        string
	description string
	binary      string
	exec        *executor.Executor
	log         *logrus.Entry
	classify    classifier
}

func newBaseBackend(name, description, binary string, exec *executor.Executor, classify classifier) baseBackend {
	if exec == nil {
		exec = executor.New(false, nil)
	}
	return baseBackend{
		name:        name,
		description: description,
		binary:      binary,
		exec:        exec,
		log:         logrus.WithField("component", "backend").WithField("backend", name),
		classify:    classify,
	}
}

// Name returns the short identifier for this backend.
func (b *baseBackend) Name() string {
	return b.name
}

// Description returns the human-readable name.
func (b *baseBackend) Description() string {
	return b.description
}

// IsAvailable returns true if the package manager binary is installed.
func (b *baseBackend) IsAvailable() bool {
	_, err := exec.LookPath(b.binary)
	return err == nil
}

// Binary returns the primary binary name for this backend.
func (b *baseBackend) Binary() string {
	return b.binary
}

// SetBinary changes the binary to use.
func (b *baseBackend) SetBinary(binary string) {
	b.binary = binary
}

// Cancel is handled by the job context, which kills the running command.
func (b *baseBackend) Cancel(job *backend.Job) {
	b.log.WithField("role", job.Role().String()).Debug("cancel requested")
}

// executorFor returns an executor carrying the job's proxy settings.
func (b *baseBackend) executorFor(job *backend.Job) *executor.Executor {
	return b.exec.WithEnv(job.Proxy().Environ()...)
}

// run executes fn on behalf of job, reports any error and finishes the job.
func (b *baseBackend) run(job *backend.Job, status enum.Status, fn func(ctx context.Context) error) {
	defer job.Finished()

	job.Status(status)
	job.Percentage(backend.PercentageUnknown)

	if err := fn(job.Context()); err != nil {
		b.fail(job, err)
		return
	}
	job.Percentage(100)
}

// fail converts err into an error event.
func (b *baseBackend) fail(job *backend.Job, err error) {
	if job.IsCancelled() {
		job.ErrorCode(enum.ErrorTransactionCancelled, "the task was stopped successfully")
		return
	}

	var be *backendError
	if errors.As(err, &be) {
		job.ErrorCode(be.code, "%s", be.msg)
		return
	}

	if errors.Is(err, executor.ErrNoPrivileges) {
		job.ErrorCode(enum.ErrorNotAuthorized, "%v", err)
		return
	}

	var cmdErr *executor.CommandError
	if errors.As(err, &cmdErr) && b.classify != nil {
		if code, msg, ok := b.classify(cmdErr.Stderr); ok {
			job.ErrorCode(code, "%s", msg)
			return
		}
	}

	job.ErrorCode(enum.ErrorTransactionError, "%v", err)
}

// backendError is an error with a known error code.
type backendError struct {
	code enum.ErrorCode
	msg  string
}

func (e *backendError) Error() string {
	return e.msg
}

func newError(code enum.ErrorCode, msg string) error {
	return &backendError{code: code, msg: msg}
}
