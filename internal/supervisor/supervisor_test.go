package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleister1102/overwatch/internal/findings"
	"github.com/aleister1102/overwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStore  = "/work/data/findings.jsonl"
	testMarker = "/work/data/.scanner_done"
)

type fakeProcess struct {
	pid        int
	ignoreTerm bool
	exit       chan int
	once       sync.Once
	exited     atomic.Bool
	terminated atomic.Bool
	killed     atomic.Bool
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, exit: make(chan int, 1)}
}

func (p *fakeProcess) finish(code int) {
	p.once.Do(func() { p.exit <- code })
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() (int, error) {
	code := <-p.exit
	p.exited.Store(true)
	return code, nil
}

func (p *fakeProcess) Terminate() error {
	p.terminated.Store(true)
	if !p.ignoreTerm {
		p.finish(143)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.finish(-1)
	return nil
}

func (p *fakeProcess) Alive() bool { return !p.exited.Load() }

type fakeLauncher struct {
	mu      sync.Mutex
	procs   map[string]*fakeProcess
	specs   []ProcessSpec
	onStart func(spec ProcessSpec, p *fakeProcess)
	failFor string
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{procs: map[string]*fakeProcess{
		"scanner":  newFakeProcess(100),
		"notifier": newFakeProcess(200),
	}}
}

func (l *fakeLauncher) Start(ctx context.Context, spec ProcessSpec) (Process, error) {
	l.mu.Lock()
	l.specs = append(l.specs, spec)
	p := l.procs[spec.Name]
	fail := l.failFor == spec.Name
	l.mu.Unlock()

	if fail {
		return nil, errors.New("exec format error")
	}
	if l.onStart != nil {
		l.onStart(spec, p)
	}
	return p, nil
}

type env struct {
	fs       afero.Fs
	store    *findings.PendingStore
	marker   *findings.CompletionMarker
	launcher *fakeLauncher
}

func newEnv() *env {
	fs := afero.NewMemMapFs()
	return &env{
		fs:       fs,
		store:    findings.NewPendingStore(fs, testStore, zerolog.Nop()),
		marker:   findings.NewCompletionMarker(fs, testMarker),
		launcher: newFakeLauncher(),
	}
}

func (e *env) supervisor(history RunHistory, grace time.Duration) *Supervisor {
	return New(e.launcher, e.store, e.marker, history, Options{
		Query:         "filename:.env",
		MaxRepos:      5,
		DryRun:        true,
		ScannerPath:   "/opt/scanner",
		NotifierPath:  "/opt/overwatch",
		NotifierArgs:  []string{"--config", "cfg.yaml"},
		WorkDir:       "/work",
		StartupDelay:  time.Millisecond,
		ShutdownGrace: grace,
	}, zerolog.Nop())
}

// notifierUntilMarker exits with code once the completion marker appears.
func notifierUntilMarker(e *env, code int) func(ProcessSpec, *fakeProcess) {
	return func(spec ProcessSpec, p *fakeProcess) {
		if spec.Name != "notifier" {
			return
		}
		go func() {
			for !e.marker.IsDone() {
				time.Sleep(time.Millisecond)
			}
			p.finish(code)
		}()
	}
}

func runAsync(t *testing.T, s *Supervisor, ctx context.Context) (RunResult, error) {
	t.Helper()
	type out struct {
		res RunResult
		err error
	}
	ch := make(chan out, 1)
	go func() {
		res, err := s.Run(ctx)
		ch <- out{res, err}
	}()
	select {
	case o := <-ch:
		return o.res, o.err
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not return")
		return RunResult{}, nil
	}
}

func TestSupervisor_NormalRun(t *testing.T) {
	e := newEnv()
	var markerSeenWhileProducing atomic.Bool
	waitMarker := notifierUntilMarker(e, 0)
	e.launcher.onStart = func(spec ProcessSpec, p *fakeProcess) {
		waitMarker(spec, p)
		if spec.Name == "scanner" {
			go func() {
				time.Sleep(20 * time.Millisecond)
				markerSeenWhileProducing.Store(e.marker.IsDone())
				p.finish(0)
			}()
		}
	}

	s := e.supervisor(nil, time.Second)
	res, err := runAsync(t, s, context.Background())
	require.NoError(t, err)

	assert.Equal(t, []State{StateIdle, StateProducerStarting, StateBothRunning, StateProducerExited, StateBothExited, StateCleanedUp}, res.States)
	assert.True(t, res.Succeeded())
	assert.NotEmpty(t, res.RunID)
	assert.False(t, markerSeenWhileProducing.Load(), "marker must not exist before the producer exits")
	assert.False(t, e.marker.IsDone(), "marker is removed during cleanup")

	require.Len(t, e.launcher.specs, 2)
	runEnv := []string{RunIDEnv + "=" + res.RunID}
	assert.Equal(t, ProcessSpec{Name: "scanner", Path: "/opt/scanner", Args: []string{"run", "filename:.env", "--max-repos", "5"}, Dir: "/work", Env: runEnv}, e.launcher.specs[0])
	assert.Equal(t, ProcessSpec{
		Name: "notifier",
		Path: "/opt/overwatch",
		Args: []string{"notify", "--stream", "--input", testStore, "--dry-run", "--config", "cfg.yaml"},
		Dir:  "/work",
		Env:  runEnv,
	}, e.launcher.specs[1])
}

func TestSupervisor_ClearsStaleState(t *testing.T) {
	e := newEnv()
	require.NoError(t, e.store.Append(context.Background(), models.Finding{Owner: "o", Repo: "r", File: "f", Line: 1, SecretType: "x", Timestamp: "t"}))
	require.NoError(t, e.marker.Mark())

	var staleStore, staleMarker atomic.Bool
	waitMarker := notifierUntilMarker(e, 0)
	e.launcher.onStart = func(spec ProcessSpec, p *fakeProcess) {
		if spec.Name == "scanner" {
			exists, _ := afero.Exists(e.fs, testStore)
			staleStore.Store(exists)
			staleMarker.Store(e.marker.IsDone())
			p.finish(0)
		}
		waitMarker(spec, p)
	}

	_, err := runAsync(t, e.supervisor(nil, time.Second), context.Background())
	require.NoError(t, err)
	assert.False(t, staleStore.Load())
	assert.False(t, staleMarker.Load())
}

func TestSupervisor_PropagatesExitCodes(t *testing.T) {
	e := newEnv()
	waitMarker := notifierUntilMarker(e, 2)
	e.launcher.onStart = func(spec ProcessSpec, p *fakeProcess) {
		if spec.Name == "scanner" {
			p.finish(1)
		}
		waitMarker(spec, p)
	}

	res, err := runAsync(t, e.supervisor(nil, time.Second), context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ProducerExit)
	assert.Equal(t, 2, res.ConsumerExit)
	assert.False(t, res.Succeeded())
}

func TestSupervisor_InterruptTerminatesChildren(t *testing.T) {
	e := newEnv()
	ctx, cancel := context.WithCancel(context.Background())
	e.launcher.onStart = func(spec ProcessSpec, p *fakeProcess) {
		if spec.Name == "notifier" {
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
		}
	}

	res, err := runAsync(t, e.supervisor(nil, time.Second), ctx)
	require.ErrorIs(t, err, ErrInterrupted)

	assert.True(t, res.Interrupted)
	assert.Equal(t, []State{StateIdle, StateProducerStarting, StateBothRunning, StateInterrupted}, res.States)
	assert.True(t, e.launcher.procs["scanner"].terminated.Load())
	assert.True(t, e.launcher.procs["notifier"].terminated.Load())
	assert.False(t, e.launcher.procs["scanner"].killed.Load())
	assert.Equal(t, 143, res.ProducerExit)
	assert.False(t, e.marker.IsDone())
}

func TestSupervisor_InterruptAfterProducerExit(t *testing.T) {
	e := newEnv()
	ctx, cancel := context.WithCancel(context.Background())
	e.launcher.onStart = func(spec ProcessSpec, p *fakeProcess) {
		if spec.Name == "scanner" {
			p.finish(0)
			return
		}
		go func() {
			for !e.marker.IsDone() {
				time.Sleep(time.Millisecond)
			}
			cancel()
		}()
	}

	res, err := runAsync(t, e.supervisor(nil, time.Second), ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, []State{StateIdle, StateProducerStarting, StateBothRunning, StateProducerExited, StateInterrupted}, res.States)
	assert.Equal(t, 0, res.ProducerExit)
	assert.Equal(t, 143, res.ConsumerExit)
	assert.False(t, e.marker.IsDone(), "marker is removed on interrupt")
}

func TestSupervisor_KillsAfterGracePeriod(t *testing.T) {
	e := newEnv()
	e.launcher.procs["scanner"].ignoreTerm = true
	e.launcher.procs["notifier"].ignoreTerm = true
	ctx, cancel := context.WithCancel(context.Background())
	e.launcher.onStart = func(spec ProcessSpec, p *fakeProcess) {
		if spec.Name == "notifier" {
			cancel()
		}
	}

	start := time.Now()
	res, err := runAsync(t, e.supervisor(nil, 50*time.Millisecond), ctx)
	require.ErrorIs(t, err, ErrInterrupted)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.True(t, e.launcher.procs["scanner"].killed.Load())
	assert.True(t, e.launcher.procs["notifier"].killed.Load())
	assert.Equal(t, -1, res.ProducerExit)
	assert.Equal(t, -1, res.ConsumerExit)
}

func TestSupervisor_EscalateSkipsGrace(t *testing.T) {
	e := newEnv()
	e.launcher.procs["scanner"].ignoreTerm = true
	e.launcher.procs["notifier"].ignoreTerm = true
	ctx, cancel := context.WithCancel(context.Background())

	s := e.supervisor(nil, time.Minute)
	e.launcher.onStart = func(spec ProcessSpec, p *fakeProcess) {
		if spec.Name == "notifier" {
			cancel()
			go func() {
				time.Sleep(20 * time.Millisecond)
				s.Escalate()
				s.Escalate()
			}()
		}
	}

	start := time.Now()
	_, err := runAsync(t, s, ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, e.launcher.procs["notifier"].killed.Load())
}

func TestSupervisor_InterruptDuringStartupDelay(t *testing.T) {
	e := newEnv()
	ctx, cancel := context.WithCancel(context.Background())
	e.launcher.onStart = func(spec ProcessSpec, p *fakeProcess) { cancel() }

	s := New(e.launcher, e.store, e.marker, nil, Options{Query: "q", ScannerPath: "s", NotifierPath: "n", StartupDelay: time.Minute, ShutdownGrace: time.Second}, zerolog.Nop())
	res, err := runAsync(t, s, ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, []State{StateIdle, StateProducerStarting, StateInterrupted}, res.States)
	assert.Len(t, e.launcher.specs, 1, "notifier never starts")
}

func TestSupervisor_NotifierFailsToStart(t *testing.T) {
	e := newEnv()
	e.launcher.failFor = "notifier"

	res, err := runAsync(t, e.supervisor(nil, time.Second), context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, StateFailed, res.States[len(res.States)-1])
	assert.True(t, e.launcher.procs["scanner"].terminated.Load())
}

func TestSupervisor_RecordsHistory(t *testing.T) {
	history, err := NewHistoryDB(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	require.NoError(t, err)
	defer history.Close()

	e := newEnv()
	waitMarker := notifierUntilMarker(e, 0)
	e.launcher.onStart = func(spec ProcessSpec, p *fakeProcess) {
		if spec.Name == "scanner" {
			p.finish(0)
		}
		waitMarker(spec, p)
	}

	res, err := runAsync(t, e.supervisor(history, time.Second), context.Background())
	require.NoError(t, err)

	runs, err := history.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].RunID)
	assert.Equal(t, "filename:.env", runs[0].Query)
	assert.Equal(t, 5, runs[0].MaxRepos)
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, StateCleanedUp, runs[0].State)
	assert.True(t, runs[0].EndedAt.Valid)
	assert.True(t, runs[0].ProducerExit.Valid)
	assert.Equal(t, int64(0), runs[0].ConsumerExit.Int64)
	assert.False(t, runs[0].Interrupted)
}
