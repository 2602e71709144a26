package executor

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeHost(t *testing.T, euid int, sudo bool) {
	t.Helper()
	prevEuid, prevLook := geteuid, lookPath
	t.Cleanup(func() { geteuid, lookPath = prevEuid, prevLook })

	geteuid = func() int { return euid }
	lookPath = func(file string) (string, error) {
		if sudo && file == "sudo" {
			return "/usr/bin/sudo", nil
		}
		return "", exec.ErrNotFound
	}
}

func TestElevationUnprivileged(t *testing.T) {
	fakeHost(t, 1000, false)

	el, err := elevation(false)
	require.NoError(t, err)
	assert.Equal(t, ElevateNone, el)
}

func TestElevationAsRoot(t *testing.T) {
	fakeHost(t, 0, false)

	el, err := elevation(true)
	require.NoError(t, err)
	prog, args := el.argv("pacman", []string{"-Sy"})
	assert.Equal(t, "pacman", prog)
	assert.Equal(t, []string{"-Sy"}, args)
}

func TestElevationSudo(t *testing.T) {
	fakeHost(t, 1000, true)

	el, err := elevation(true)
	require.NoError(t, err)
	prog, args := el.argv("pacman", []string{"-S", "powertop"})
	assert.Equal(t, "sudo", prog)
	assert.Equal(t, []string{"-n", "pacman", "-S", "powertop"}, args)
}

func TestElevationUnavailable(t *testing.T) {
	fakeHost(t, 1000, false)

	_, err := elevation(true)
	assert.True(t, errors.Is(err, ErrNoPrivileges))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e := New(false, nil)
	_, err = e.OutputPrivileged(ctx, "true")
	assert.ErrorIs(t, err, ErrNoPrivileges)
}
