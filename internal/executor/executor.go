// Package executor runs package manager commands on behalf of backends,
// with optional privilege elevation and proxy environment.
package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// CommandError is returned when a command exits unsuccessfully. It keeps
// the captured stderr so callers can classify the failure.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, msg)
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Executor handles command execution with optional sudo elevation.
type Executor struct {
	dryRun bool
	env    []string
	log    *logrus.Entry
}

// New creates a new Executor with the given options.
func New(dryRun bool, log *logrus.Entry) *Executor {
	if log == nil {
		log = logrus.WithField("component", "executor")
	}
	return &Executor{
		dryRun: dryRun,
		log:    log,
	}
}

// SetDryRun enables or disables dry-run mode.
func (e *Executor) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

// DryRun reports whether commands are only logged.
func (e *Executor) DryRun() bool {
	return e.dryRun
}

// WithEnv returns a copy of the executor that adds env to every command.
func (e *Executor) WithEnv(env ...string) *Executor {
	c := *e
	c.env = append(append([]string(nil), e.env...), env...)
	return &c
}

func (e *Executor) command(ctx context.Context, privileged bool, name string, args []string) (*exec.Cmd, error) {
	el, err := elevation(privileged)
	if err != nil {
		return nil, err
	}
	prog, argv := el.argv(name, args)
	cmd := exec.CommandContext(ctx, prog, argv...)

	// Package managers localise their output; parsers expect English.
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Env = append(cmd.Env, e.env...)

	e.log.WithField("privileged", privileged).Debugf("Executing: %s %s", name, strings.Join(args, " "))
	return cmd, nil
}

func (e *Executor) dryRunLog(name string, args []string) {
	e.log.Infof("[dry-run] Would execute: %s %s", name, strings.Join(args, " "))
}

// Output runs a command and returns its stdout.
func (e *Executor) Output(ctx context.Context, name string, args ...string) (string, error) {
	return e.output(ctx, false, name, args)
}

// OutputPrivileged runs a command as root and returns its stdout.
func (e *Executor) OutputPrivileged(ctx context.Context, name string, args ...string) (string, error) {
	return e.output(ctx, true, name, args)
}

func (e *Executor) output(ctx context.Context, privileged bool, name string, args []string) (string, error) {
	if e.dryRun && privileged {
		e.dryRunLog(name, args)
		return "", nil
	}

	cmd, err := e.command(ctx, privileged, name, args)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), &CommandError{Command: name, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// OutputCombined runs a command and returns both stdout and stderr combined.
func (e *Executor) OutputCombined(ctx context.Context, name string, args ...string) (string, error) {
	cmd, err := e.command(ctx, false, name, args)
	if err != nil {
		return "", err
	}

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if err := cmd.Run(); err != nil {
		return combined.String(), &CommandError{Command: name, Stderr: combined.String(), Err: err}
	}
	return combined.String(), nil
}

// Stream runs a command as root and calls onLine for every stdout line as
// it is produced. Stderr is captured into the returned CommandError.
func (e *Executor) Stream(ctx context.Context, onLine func(string), name string, args ...string) error {
	if e.dryRun {
		e.dryRunLog(name, args)
		return nil
	}

	cmd, err := e.command(ctx, true, name, args)
	if err != nil {
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return &CommandError{Command: name, Err: err}
	}

	scanLines(stdout, onLine)

	if err := cmd.Wait(); err != nil {
		return &CommandError{Command: name, Stderr: stderr.String(), Err: err}
	}
	return nil
}

func scanLines(r io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	// Drain so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}
