package executor

import (
	"errors"
	"os"
	"os/exec"
)

// ErrNoPrivileges is returned for a privileged command when the daemon is
// not root and sudo cannot be found.
var ErrNoPrivileges = errors.New("executor: root privileges required but sudo is not available")

// Elevation is how a privileged command gets run.
type Elevation int

const (
	ElevateNone Elevation = iota
	ElevateSudo
)

// Overridden in tests.
var (
	geteuid  = os.Geteuid
	lookPath = exec.LookPath
)

// elevation picks how to start a command. Unprivileged commands and any
// command issued by root run directly.
func elevation(privileged bool) (Elevation, error) {
	if !privileged || geteuid() == 0 {
		return ElevateNone, nil
	}
	if _, err := lookPath("sudo"); err != nil {
		return ElevateNone, ErrNoPrivileges
	}
	return ElevateSudo, nil
}

// argv returns the program and arguments to start for name and args.
// sudo runs with -n so a missing credential fails instead of prompting on
// the daemon's terminal.
func (el Elevation) argv(name string, args []string) (string, []string) {
	if el == ElevateSudo {
		return "sudo", append([]string{"-n", name}, args...)
	}
	return name, args
}
