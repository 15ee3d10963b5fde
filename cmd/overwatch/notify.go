package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/config"
	"github.com/aleister1102/overwatch/internal/consumer"
	"github.com/aleister1102/overwatch/internal/datastore"
	"github.com/aleister1102/overwatch/internal/findings"
	"github.com/aleister1102/overwatch/internal/notifier"
	"github.com/aleister1102/overwatch/internal/notifier/discord"
	"github.com/aleister1102/overwatch/internal/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type notifyOptions struct {
	dryRun      bool
	stream      bool
	input       string
	metricsAddr string
}

func notifyCmd(root *rootOptions) *cobra.Command {
	opts := &notifyOptions{}

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "File tracker issues for pending findings",
		Long: `Process the findings store and file one issue per finding.

Without --stream the store is read once and rewritten to hold only the
findings that should be retried. With --stream the store is followed until
the scanner's completion marker appears and the store has been drained.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Classify findings without creating issues or rewriting the store")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Follow the store while the scanner is running")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Findings store path (defaults to pipeline_config.findings_file)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9102")

	return cmd
}

func runNotify(parent context.Context, root *rootOptions, opts *notifyOptions) error {
	a, err := root.load("notifier")
	if err != nil {
		return err
	}
	log := a.logger
	pipeline := a.cfg.PipelineConfig

	input := opts.input
	if input == "" {
		input = pipeline.FindingsFile
	}

	token, err := a.cfg.TrackerConfig.Token()
	if err != nil {
		log.Error().Err(err).Msg("Tracker credentials missing")
		return withExitCode(exitFailure, err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := notifier.NewMetrics(registry)

	client, err := newTrackerClient(a.cfg.TrackerConfig, token, metrics, log)
	if err != nil {
		return withExitCode(exitFailure, err)
	}

	identity, err := client.Authenticate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Authentication with the tracker failed")
		return withExitCode(exitFailure, common.WrapError(err, "authentication failed"))
	}
	log.Info().Str("login", identity.Login).Bool("dry_run", opts.dryRun).Msg("Authenticated with tracker")

	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, registry, log)
		defer shutdown()
	}

	classifier, err := notifier.NewClassifier(client, notifier.ClassifierConfig{
		DryRun:  opts.dryRun,
		Labels:  a.cfg.TrackerConfig.Labels,
		Metrics: metrics,
	}, log)
	if err != nil {
		return withExitCode(exitFailure, err)
	}

	session := notifier.NewSession()
	log.Info().Str("session_id", session.ID()).Str("input", input).Bool("stream", opts.stream).Msg("Notifier session started")

	var archive consumer.Archive
	if a.cfg.StorageConfig.EnableArchive && !opts.dryRun {
		archive = datastore.NewResolutionArchive(a.cfg.StorageConfig.ArchivePath, log)
	}

	fs := afero.NewOsFs()
	store := findings.NewPendingStore(fs, input, log)

	var result consumer.Result
	if opts.stream {
		result, err = runStream(ctx, fs, input, pipeline, store, classifier, session, archive, opts.dryRun, log)
	} else {
		result, err = consumer.NewBatch(store, classifier, session, archive, opts.dryRun, log).Run(ctx)
	}
	if err != nil && !common.IsCancellation(err) {
		return withExitCode(exitFailure, err)
	}

	if !opts.dryRun || a.cfg.NotificationConfig.NotifyOnDryRun {
		reportSession(ctx, a.cfg.NotificationConfig, session, result, opts.dryRun, log)
	}

	log.Info().
		Int("success", result.Summary.Success).
		Int("permanent_skip", result.Summary.PermanentSkip).
		Int("transient_failure", result.Summary.TransientFailure).
		Int("remaining", result.Retained).
		Int("malformed", result.Faults).
		Bool("interrupted", result.Interrupted).
		Msg("Notifier finished")
	return nil
}

func runStream(
	ctx context.Context,
	fs afero.Fs,
	input string,
	pipeline config.PipelineConfig,
	store *findings.PendingStore,
	classifier consumer.Classifier,
	session *notifier.Session,
	archive consumer.Archive,
	dryRun bool,
	log zerolog.Logger,
) (consumer.Result, error) {
	if err := fs.MkdirAll(filepath.Dir(input), 0755); err != nil {
		return consumer.Result{}, common.WrapError(err, "failed to create findings directory")
	}

	reader := findings.NewTailReader(fs, input, log)
	defer reader.Close()
	if pipeline.WatchFile {
		if err := reader.Watch(); err != nil {
			log.Warn().Err(err).Msg("File watching unavailable, polling only")
		}
	}

	marker := findings.NewCompletionMarker(fs, config.MarkerPathFor(input, pipeline.MarkerFileName))
	stream := consumer.NewStream(reader, store, marker, classifier, session, archive, consumer.StreamConfig{
		PollInterval: pipeline.PollInterval(),
		SummaryEvery: pipeline.SummaryEvery,
		DryRun:       dryRun,
	}, log)
	return stream.Run(ctx)
}

func newTrackerClient(tc config.TrackerConfig, token string, observer tracker.RequestObserver, log zerolog.Logger) (*tracker.GitHubClient, error) {
	transport := tracker.DefaultTransportConfig()
	transport.Timeout = tc.Timeout()
	transport.EnableHTTP2 = tc.EnableHTTP2

	return tracker.NewGitHubClientBuilder(log).
		WithBaseURL(tc.APIURL).
		WithToken(token).
		WithUserAgent(tc.UserAgent).
		WithPagination(tc.IssuesPerPage, tc.MaxIssuePages).
		WithRateLimit(tc.RequestsPerMinute, tc.Burst).
		WithTransport(transport).
		WithObserver(observer).
		Build()
}

// serveMetrics exposes reg over HTTP and returns a function that stops the server.
func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown")
		}
	}
}

// reportSession posts the session summary to Discord when a webhook is configured.
// It runs after cancellation too, so an interrupted session is still reported.
func reportSession(ctx context.Context, nc config.NotificationConfig, session *notifier.Session, result consumer.Result, dryRun bool, log zerolog.Logger) {
	reporter := notifier.NewSummaryReporter(discord.NewWebhookClient(nil, log), nc.WebhookURL(), log)
	if reporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := reporter.Report(ctx, notifier.SessionReport{
		SessionID:   session.ID(),
		Summary:     result.Summary,
		Remaining:   result.Retained,
		Malformed:   result.Faults,
		DryRun:      dryRun,
		Interrupted: result.Interrupted,
		StartedAt:   session.StartedAt(),
		FinishedAt:  time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to post session summary")
	}
}
