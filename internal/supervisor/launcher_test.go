//go:build !windows

package supervisor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperModeEnv = "OVERWATCH_HELPER_MODE"

// TestHelperProcess is the child started by the launcher tests. It does nothing
// unless helperModeEnv is set.
func TestHelperProcess(t *testing.T) {
	switch os.Getenv(helperModeEnv) {
	case "":
		return
	case "exit3":
		os.Exit(3)
	case "runid":
		if os.Getenv(RunIDEnv) != "run-42" {
			os.Exit(4)
		}
		os.Exit(0)
	case "sleep":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func startHelper(t *testing.T, mode string) Process {
	t.Helper()
	launcher := NewExecLauncher(zerolog.Nop())
	launcher.Stdout = nil
	launcher.Stderr = nil

	proc, err := launcher.Start(context.Background(), ProcessSpec{
		Name: "helper-" + mode,
		Path: os.Args[0],
		Args: []string{"-test.run=^TestHelperProcess$"},
		Dir:  t.TempDir(),
		Env:  []string{helperModeEnv + "=" + mode, RunIDEnv + "=run-42"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = proc.Kill() })
	return proc
}

func waitExit(t *testing.T, proc Process) int {
	t.Helper()
	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := proc.Wait()
		done <- result{code, err}
	}()
	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.code
	case <-time.After(10 * time.Second):
		t.Fatal("child did not exit")
		return 0
	}
}

func TestExecLauncher_ReportsExitCode(t *testing.T) {
	proc := startHelper(t, "exit3")
	assert.Positive(t, proc.Pid())

	assert.Equal(t, 3, waitExit(t, proc))
	assert.False(t, proc.Alive())
}

func TestExecLauncher_PassesEnvironment(t *testing.T) {
	proc := startHelper(t, "runid")
	assert.Equal(t, 0, waitExit(t, proc))
}

func TestExecLauncher_TerminateStopsChild(t *testing.T) {
	proc := startHelper(t, "sleep")
	assert.True(t, proc.Alive())

	require.NoError(t, proc.Terminate())
	assert.Equal(t, -1, waitExit(t, proc), "signalled child has no exit code")
	assert.False(t, proc.Alive())

	assert.NoError(t, proc.Terminate(), "terminating a finished child is a no-op")
}

func TestExecLauncher_KillReportsSignal(t *testing.T) {
	proc := startHelper(t, "sleep")

	require.NoError(t, proc.Kill())
	assert.Equal(t, -1, waitExit(t, proc))
	assert.False(t, proc.Alive())
	assert.NoError(t, proc.Kill())
}

func TestExecLauncher_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecLauncher(zerolog.Nop()).Start(ctx, ProcessSpec{Name: "never", Path: os.Args[0]})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecLauncher_MissingBinary(t *testing.T) {
	_, err := NewExecLauncher(zerolog.Nop()).Start(context.Background(), ProcessSpec{Name: "ghost", Path: "/nonexistent/overwatch-helper"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start ghost")
}
