package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOutput(t *testing.T) {
	out, err := New(false, nil).Output(testContext(t), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestOutputRunsInCLocale(t *testing.T) {
	out, err := New(false, nil).Output(testContext(t), "sh", "-c", "echo $LC_ALL")
	require.NoError(t, err)
	assert.Equal(t, "C", strings.TrimSpace(out))
}

func TestCommandErrorKeepsStderr(t *testing.T) {
	_, err := New(false, nil).Output(testContext(t), "sh", "-c", "echo 'error: target not found: foo' >&2; exit 1")

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "got %T", err)
	assert.Equal(t, "sh", cmdErr.Command)
	assert.Contains(t, cmdErr.Stderr, "target not found")
	assert.Contains(t, cmdErr.Error(), "target not found")
}

func TestWithEnvDoesNotLeak(t *testing.T) {
	base := New(false, nil)
	proxied := base.WithEnv("http_proxy=http://proxy:3128")

	out, err := proxied.Output(testContext(t), "sh", "-c", "echo $http_proxy")
	require.NoError(t, err)
	assert.Equal(t, "http://proxy:3128", strings.TrimSpace(out))

	out, err = base.WithEnv("http_proxy=").Output(testContext(t), "sh", "-c", "echo $http_proxy")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestOutputCombined(t *testing.T) {
	out, err := New(false, nil).OutputCombined(testContext(t), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Contains(t, out, "out")
	assert.Contains(t, out, "err")
}

func TestStreamLines(t *testing.T) {
	fakeHost(t, 0, false)

	var lines []string
	err := New(false, nil).Stream(testContext(t), func(l string) { lines = append(lines, l) },
		"sh", "-c", "echo one; echo two")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestDryRunSkipsPrivileged(t *testing.T) {
	e := New(true, nil)
	assert.True(t, e.DryRun())

	called := false
	require.NoError(t, e.Stream(context.Background(), func(string) { called = true }, "false"))
	assert.False(t, called)

	out, err := e.OutputPrivileged(context.Background(), "false")
	require.NoError(t, err)
	assert.Empty(t, out)

	// Unprivileged queries still run.
	out, err = e.Output(testContext(t), "echo", "query")
	require.NoError(t, err)
	assert.Equal(t, "query\n", out)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(false, nil).Output(ctx, "sleep", "10")
	assert.Error(t, err)
}
