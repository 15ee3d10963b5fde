package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/config"
	"github.com/aleister1102/overwatch/internal/findings"
	"github.com/aleister1102/overwatch/internal/supervisor"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type runOptions struct {
	maxRepos int
	dryRun   bool
}

func runCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Run the scanner and a streaming notifier together",
		Long: `Start the scanner with the given search query, then a notifier that
follows the findings it writes. Once the scanner exits the notifier drains
the remaining findings and stops.

Interrupt once to stop both gracefully, twice to kill them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervised(cmd.Context(), root, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.maxRepos, "max-repos", 0, "Maximum repositories the scanner inspects (0 = scanner default)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Run the notifier without creating issues")

	return cmd
}

func runSupervised(parent context.Context, root *rootOptions, query string, opts *runOptions) error {
	a, err := root.load("supervisor")
	if err != nil {
		return err
	}
	log := a.logger
	sc := a.cfg.SupervisorConfig

	workDir, err := resolveWorkDir(sc.WorkDir)
	if err != nil {
		return withExitCode(exitFailure, err)
	}
	storePath := resolvePath(workDir, a.cfg.PipelineConfig.FindingsFile)
	scannerPath := resolvePath(workDir, sc.ScannerPath)

	notifierPath := sc.NotifierPath
	if notifierPath == "" {
		if notifierPath, err = os.Executable(); err != nil {
			return withExitCode(exitFailure, common.WrapError(err, "could not locate the overwatch binary"))
		}
	}

	if err := checkPrerequisites(a.cfg.TrackerConfig, scannerPath, notifierPath); err != nil {
		log.Error().Err(err).Msg("Prerequisites not met")
		return withExitCode(exitFailure, err)
	}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return withExitCode(exitFailure, common.WrapError(err, "failed to create findings directory"))
	}
	store := findings.NewPendingStore(fs, storePath, log)
	marker := findings.NewCompletionMarker(fs, config.MarkerPathFor(storePath, a.cfg.PipelineConfig.MarkerFileName))

	var history supervisor.RunHistory
	if db, err := supervisor.NewHistoryDB(a.cfg.StorageConfig.HistoryDBPath, log); err != nil {
		log.Warn().Err(err).Msg("Run history unavailable, continuing without it")
	} else {
		defer db.Close()
		history = db
	}

	launcher := supervisor.NewExecLauncher(log)
	if !root.verbose {
		launcher.Stdout = io.Discard
	}

	sup := supervisor.New(launcher, store, marker, history, supervisor.Options{
		Query:         query,
		MaxRepos:      opts.maxRepos,
		DryRun:        opts.dryRun,
		Verbose:       root.verbose,
		ScannerPath:   scannerPath,
		NotifierPath:  notifierPath,
		NotifierArgs:  notifierArgs(a.configFile, root.envFile),
		WorkDir:       workDir,
		StartupDelay:  sc.StartupDelay(),
		ShutdownGrace: sc.ShutdownGrace(),
	}, log)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stopSignals := handleInterrupts(cancel, sup.Escalate, log)
	defer stopSignals()

	log.Info().Str("query", query).Int("max_repos", opts.maxRepos).Bool("dry_run", opts.dryRun).Msg("Starting OverWatch run")
	result, err := sup.Run(ctx)

	switch {
	case errors.Is(err, supervisor.ErrInterrupted):
		log.Warn().Str("run_id", result.RunID).Int("scanner_exit", result.ProducerExit).Int("notifier_exit", result.ConsumerExit).Msg("Run interrupted")
		return withExitCode(exitInterrupted, nil)
	case err != nil:
		return withExitCode(exitFailure, err)
	case !result.Succeeded():
		return withExitCode(exitFailure, fmt.Errorf("scanner exited with %d, notifier exited with %d", result.ProducerExit, result.ConsumerExit))
	}

	log.Info().Str("run_id", result.RunID).Msg("Run completed")
	return nil
}

// handleInterrupts cancels the run on the first SIGINT/SIGTERM and escalates on the second.
func handleInterrupts(cancel context.CancelFunc, escalate func(), log zerolog.Logger) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		interrupted := false
		for {
			select {
			case sig := <-sigCh:
				if !interrupted {
					interrupted = true
					log.Warn().Str("signal", sig.String()).Msg("Shutdown requested, stopping children (interrupt again to kill)")
					cancel()
					continue
				}
				log.Warn().Str("signal", sig.String()).Msg("Second interrupt, killing children")
				escalate()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// checkPrerequisites reports every missing piece at once.
func checkPrerequisites(tc config.TrackerConfig, scannerPath, notifierPath string) error {
	var problems common.ErrorList
	if _, err := os.Stat(scannerPath); err != nil {
		problems.Add(common.NewValidationError("scanner_path", scannerPath, "scanner binary not found"))
	}
	if _, err := os.Stat(notifierPath); err != nil {
		problems.Add(common.NewValidationError("notifier_path", notifierPath, "notifier binary not found"))
	}
	if _, err := tc.Token(); err != nil {
		problems.Add(err)
	}
	return problems.Err()
}

// notifierArgs makes the child notifier load the config file the supervisor loaded,
// including one found implicitly, since the child runs in the work dir.
func notifierArgs(configFile, envFile string) []string {
	var args []string
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			args = append(args, "--config", abs)
		}
	}
	if envFile != "" {
		if abs, err := filepath.Abs(envFile); err == nil {
			args = append(args, "--env-file", abs)
		}
	}
	return args
}

func resolveWorkDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", common.WrapErrorf(err, "invalid work dir '%s'", dir)
	}
	return abs, nil
}

// resolvePath anchors relative paths at workDir so the parent and the children agree on them.
func resolvePath(workDir, path string) string {
	if workDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}
