package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessSpec describes a child process to start.
type ProcessSpec struct {
	Name string
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Process is a started child.
type Process interface {
	Pid() int
	// Wait blocks until the child exits and returns its exit code.
	// A child killed by a signal reports -1.
	Wait() (int, error)
	// Terminate asks the child to stop.
	Terminate() error
	Kill() error
	// Alive reports whether the OS still knows the process.
	Alive() bool
}

// Launcher starts child processes.
type Launcher interface {
	Start(ctx context.Context, spec ProcessSpec) (Process, error)
}

// ExecLauncher runs children with os/exec, sharing this process's standard streams.
type ExecLauncher struct {
	Stdout io.Writer
	Stderr io.Writer
	logger zerolog.Logger
}

func NewExecLauncher(logger zerolog.Logger) *ExecLauncher {
	return &ExecLauncher{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		logger: logger.With().Str("module", "ExecLauncher").Logger(),
	}
}

// Start launches spec. The child is not bound to ctx; the supervisor stops it explicitly.
func (l *ExecLauncher) Start(ctx context.Context, spec ProcessSpec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), spec.Env...)

	if err := cmd.Start(); err != nil {
		return nil, common.WrapErrorf(err, "failed to start %s", spec.Name)
	}
	l.logger.Info().Str("name", spec.Name).Int("pid", cmd.Process.Pid).Str("path", spec.Path).Strs("args", spec.Args).Msg("Started child process")
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (p *execProcess) Terminate() error {
	if runtime.GOOS == "windows" {
		return p.cmd.Process.Kill()
	}
	return ignoreFinished(p.cmd.Process.Signal(syscall.SIGTERM))
}

func (p *execProcess) Kill() error {
	return ignoreFinished(p.cmd.Process.Kill())
}

func (p *execProcess) Alive() bool {
	alive, err := process.PidExists(int32(p.cmd.Process.Pid))
	return err == nil && alive
}

func ignoreFinished(err error) error {
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
