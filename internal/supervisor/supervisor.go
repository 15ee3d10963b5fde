// Package supervisor runs the scanner and the notifier as cooperating child processes.
package supervisor

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/findings"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunIDEnv carries the run ID to both children.
const RunIDEnv = "OVERWATCH_RUN_ID"

// ErrInterrupted is returned when a run was cancelled before both children exited.
var ErrInterrupted = errors.New("run interrupted")

// State is a step of the supervisor lifecycle.
type State string

const (
	StateIdle             State = "Idle"
	StateProducerStarting State = "ProducerStarting"
	StateBothRunning      State = "BothRunning"
	StateProducerExited   State = "ProducerExited"
	StateBothExited       State = "BothExited"
	StateCleanedUp        State = "CleanedUp"
	StateInterrupted      State = "Interrupted"
	StateFailed           State = "Failed"
)

// Options describe one run.
type Options struct {
	Query    string
	MaxRepos int
	DryRun   bool
	Verbose  bool

	ScannerPath  string
	NotifierPath string
	// NotifierArgs are appended to the notify command, e.g. --config.
	NotifierArgs []string
	WorkDir      string

	StartupDelay  time.Duration
	ShutdownGrace time.Duration
}

// RunHistory persists run records. Failures are logged and never abort a run.
type RunHistory interface {
	RecordRunStart(ctx context.Context, rec RunRecord) (int64, error)
	UpdateRunCompletion(ctx context.Context, id int64, rec RunRecord) error
}

// RunResult is what a run reports back to the command.
type RunResult struct {
	RunID        string
	ProducerExit int
	ConsumerExit int
	States       []State
	Interrupted  bool
}

// Succeeded reports a clean run where both children exited zero.
func (r RunResult) Succeeded() bool {
	return !r.Interrupted && r.ProducerExit == 0 && r.ConsumerExit == 0
}

// Supervisor coordinates the producer and consumer through the findings store and
// completion marker. The marker is created only after the producer has exited and
// is always removed before Run returns.
type Supervisor struct {
	launcher Launcher
	store    *findings.PendingStore
	marker   *findings.CompletionMarker
	history  RunHistory
	opts     Options
	logger   zerolog.Logger

	escalate     chan struct{}
	escalateOnce sync.Once

	mu     sync.Mutex
	states []State
}

func New(launcher Launcher, store *findings.PendingStore, marker *findings.CompletionMarker, history RunHistory, opts Options, logger zerolog.Logger) *Supervisor {
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 5 * time.Second
	}
	return &Supervisor{
		launcher: launcher,
		store:    store,
		marker:   marker,
		history:  history,
		opts:     opts,
		logger:   logger.With().Str("module", "Supervisor").Logger(),
		escalate: make(chan struct{}),
	}
}

// Escalate skips the remaining grace period and kills running children.
// It is meant for a second interrupt and is safe to call more than once.
func (s *Supervisor) Escalate() {
	s.escalateOnce.Do(func() { close(s.escalate) })
}

// States returns the transitions taken so far.
func (s *Supervisor) States() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.states...)
}

// child tracks a started process and its exit.
type child struct {
	name string
	proc Process
	done chan struct{}
	code int
	err  error
}

func watch(name string, proc Process) *child {
	c := &child{name: name, proc: proc, done: make(chan struct{})}
	go func() {
		c.code, c.err = proc.Wait()
		close(c.done)
	}()
	return c
}

func (c *child) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Run executes one full producer/consumer cycle. On cancellation the children are
// terminated, then killed after the grace period, and ErrInterrupted is returned.
func (s *Supervisor) Run(ctx context.Context) (RunResult, error) {
	result := RunResult{RunID: uuid.NewString()}
	log := s.logger.With().Str("run_id", result.RunID).Logger()

	historyID := s.recordStart(ctx, result.RunID)
	defer func() {
		s.recordEnd(historyID, result)
	}()

	s.transition(&result, StateIdle)
	if err := s.store.Reset(); err != nil {
		s.transition(&result, StateFailed)
		return result, common.WrapError(err, "failed to clear stale findings")
	}
	if err := s.marker.Clear(); err != nil {
		s.transition(&result, StateFailed)
		return result, err
	}

	s.transition(&result, StateProducerStarting)
	producerProc, err := s.launcher.Start(ctx, s.producerSpec(result.RunID))
	if err != nil {
		s.transition(&result, StateFailed)
		return result, common.WrapError(err, "failed to start scanner")
	}
	producer := watch("scanner", producerProc)

	if err := common.SleepContext(ctx, s.opts.StartupDelay); err != nil {
		return s.interrupt(&result, producer, nil)
	}

	consumerProc, err := s.launcher.Start(ctx, s.consumerSpec(result.RunID))
	if err != nil {
		if ctx.Err() != nil {
			return s.interrupt(&result, producer, nil)
		}
		s.shutdown(producer, nil)
		s.clearMarker()
		result.ProducerExit = producer.code
		s.transition(&result, StateFailed)
		return result, common.WrapError(err, "failed to start notifier")
	}
	consumer := watch("notifier", consumerProc)
	s.transition(&result, StateBothRunning)

	select {
	case <-producer.done:
	case <-ctx.Done():
		return s.interrupt(&result, producer, consumer)
	}
	result.ProducerExit = producer.code
	log.Info().Int("exit_code", producer.code).Msg("Scanner exited")
	s.transition(&result, StateProducerExited)

	if err := s.marker.Mark(); err != nil {
		log.Error().Err(err).Msg("Failed to create completion marker, stopping notifier")
		s.shutdown(nil, consumer)
		result.ConsumerExit = consumer.code
		s.clearMarker()
		s.transition(&result, StateFailed)
		return result, err
	}

	select {
	case <-consumer.done:
	case <-ctx.Done():
		return s.interrupt(&result, nil, consumer)
	}
	result.ConsumerExit = consumer.code
	log.Info().Int("exit_code", consumer.code).Msg("Notifier exited")
	s.transition(&result, StateBothExited)

	s.clearMarker()
	s.transition(&result, StateCleanedUp)
	return result, nil
}

func (s *Supervisor) interrupt(result *RunResult, producer, consumer *child) (RunResult, error) {
	s.transition(result, StateInterrupted)
	result.Interrupted = true
	s.logger.Warn().Dur("grace", s.opts.ShutdownGrace).Msg("Interrupted, stopping child processes")

	s.shutdown(producer, consumer)
	if producer != nil {
		result.ProducerExit = producer.code
	}
	if consumer != nil {
		result.ConsumerExit = consumer.code
	}
	s.clearMarker()
	return *result, ErrInterrupted
}

// shutdown terminates the running children and waits up to the grace period,
// or until Escalate, before killing whatever is still alive.
func (s *Supervisor) shutdown(children ...*child) {
	var running []*child
	for _, c := range children {
		if c == nil || c.exited() {
			continue
		}
		if err := c.proc.Terminate(); err != nil {
			s.logger.Warn().Err(err).Str("child", c.name).Msg("Failed to terminate child")
		}
		running = append(running, c)
	}
	if len(running) == 0 {
		return
	}

	grace := time.NewTimer(s.opts.ShutdownGrace)
	defer grace.Stop()

	for _, c := range running {
		select {
		case <-c.done:
			continue
		case <-grace.C:
		case <-s.escalate:
		}
		s.killRemaining(running)
		break
	}

	for _, c := range running {
		<-c.done
		s.logger.Info().Str("child", c.name).Int("exit_code", c.code).Msg("Child stopped")
	}
}

func (s *Supervisor) killRemaining(running []*child) {
	for _, c := range running {
		if c.exited() {
			continue
		}
		s.logger.Warn().Str("child", c.name).Int("pid", c.proc.Pid()).Bool("alive", c.proc.Alive()).Msg("Grace period over, killing child")
		if err := c.proc.Kill(); err != nil {
			s.logger.Error().Err(err).Str("child", c.name).Msg("Failed to kill child")
		}
	}
}

func (s *Supervisor) clearMarker() {
	if err := s.marker.Clear(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to remove completion marker")
	}
}

func (s *Supervisor) transition(result *RunResult, state State) {
	s.mu.Lock()
	s.states = append(s.states, state)
	result.States = append([]State(nil), s.states...)
	s.mu.Unlock()
	s.logger.Debug().Str("state", string(state)).Msg("Supervisor state")
}

func (s *Supervisor) producerSpec(runID string) ProcessSpec {
	args := []string{"run", s.opts.Query}
	if s.opts.MaxRepos > 0 {
		args = append(args, "--max-repos", strconv.Itoa(s.opts.MaxRepos))
	}
	return ProcessSpec{Name: "scanner", Path: s.opts.ScannerPath, Args: args, Dir: s.opts.WorkDir, Env: runEnv(runID)}
}

func (s *Supervisor) consumerSpec(runID string) ProcessSpec {
	args := []string{"notify", "--stream", "--input", s.store.Path()}
	if s.opts.DryRun {
		args = append(args, "--dry-run")
	}
	if s.opts.Verbose {
		args = append(args, "--verbose")
	}
	args = append(args, s.opts.NotifierArgs...)
	return ProcessSpec{Name: "notifier", Path: s.opts.NotifierPath, Args: args, Dir: s.opts.WorkDir, Env: runEnv(runID)}
}

func runEnv(runID string) []string {
	return []string{RunIDEnv + "=" + runID}
}

func (s *Supervisor) recordStart(ctx context.Context, runID string) int64 {
	if s.history == nil {
		return 0
	}
	id, err := s.history.RecordRunStart(context.WithoutCancel(ctx), RunRecord{
		RunID:     runID,
		Query:     s.opts.Query,
		MaxRepos:  s.opts.MaxRepos,
		DryRun:    s.opts.DryRun,
		StartedAt: time.Now(),
		State:     StateIdle,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record run start")
		return 0
	}
	return id
}

func (s *Supervisor) recordEnd(id int64, result RunResult) {
	if s.history == nil || id == 0 {
		return
	}
	state := StateIdle
	if len(result.States) > 0 {
		state = result.States[len(result.States)-1]
	}
	rec := RunRecord{
		EndedAt:      sql.NullTime{Time: time.Now(), Valid: true},
		State:        state,
		ProducerExit: sql.NullInt64{Int64: int64(result.ProducerExit), Valid: reached(result.States, StateProducerExited) || result.Interrupted},
		ConsumerExit: sql.NullInt64{Int64: int64(result.ConsumerExit), Valid: reached(result.States, StateBothExited) || result.Interrupted},
		Interrupted:  result.Interrupted,
	}
	if err := s.history.UpdateRunCompletion(context.Background(), id, rec); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record run completion")
	}
}

func reached(states []State, target State) bool {
	for _, st := range states {
		if st == target {
			return true
		}
	}
	return false
}
