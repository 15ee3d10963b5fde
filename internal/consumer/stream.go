package consumer

import (
	"context"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/findings"
	"github.com/aleister1102/overwatch/internal/notifier"
	"github.com/rs/zerolog"
)

// StreamConfig tunes the streaming loop.
type StreamConfig struct {
	PollInterval time.Duration
	SummaryEvery int
	DryRun       bool
}

// Stream follows the pending store while the producer is running and stops once the
// completion marker exists and a poll comes back empty.
type Stream struct {
	reader *findings.TailReader
	store  *findings.PendingStore
	marker *findings.CompletionMarker
	tally  *tally
	cfg    StreamConfig
	logger zerolog.Logger
}

func NewStream(
	reader *findings.TailReader,
	store *findings.PendingStore,
	marker *findings.CompletionMarker,
	classifier Classifier,
	session *notifier.Session,
	archive Archive,
	cfg StreamConfig,
	logger zerolog.Logger,
) *Stream {
	logger = logger.With().Str("module", "Stream").Logger()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Stream{
		reader: reader,
		store:  store,
		marker: marker,
		tally: &tally{
			classifier: classifier,
			session:    session,
			archive:    archive,
			dryRun:     cfg.DryRun,
			logger:     logger,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Run drains the store until completion or cancellation, then compacts it once so
// that only transient failures and unread records remain.
func (s *Stream) Run(ctx context.Context) (Result, error) {
	s.logger.Info().Str("path", s.store.Path()).Dur("poll_interval", s.cfg.PollInterval).Msg("Streaming findings")

	interrupted := s.drain(ctx)
	if interrupted {
		s.logger.Warn().Msg("Shutdown requested, saving progress")
	} else {
		s.logger.Info().Msg("Scanner completed and all findings drained")
	}

	return s.finish(ctx, interrupted)
}

func (s *Stream) drain(ctx context.Context) bool {
	processed := 0
	for {
		if ctx.Err() != nil {
			return true
		}

		// The marker is checked before polling so a record written just before it is still read.
		done := s.marker.IsDone()

		lines, pollErr := s.reader.Poll()
		if pollErr != nil {
			s.logger.Error().Err(pollErr).Msg("Failed to poll findings file")
		}

		for _, line := range lines {
			f, err := findings.Parse(line)
			if err != nil {
				s.tally.faults++
				s.logger.Warn().Err(err).Str("line", line).Msg("Skipping malformed record")
				continue
			}
			if ctx.Err() != nil {
				s.tally.retained = append(s.tally.retained, f)
				continue
			}
			s.tally.classify(ctx, f)
			processed++
			if s.cfg.SummaryEvery > 0 && processed%s.cfg.SummaryEvery == 0 {
				logSummary(s.logger, "Progress", s.tally.session.Summary(), len(s.tally.retained))
			}
		}

		// A failed poll proves nothing about what is left unread.
		if done && pollErr == nil && len(lines) == 0 {
			return ctx.Err() != nil
		}

		if err := s.reader.Wait(ctx, s.cfg.PollInterval); err != nil && !common.IsCancellation(err) {
			s.logger.Debug().Err(err).Msg("Wait interrupted")
		}
	}
}

func (s *Stream) finish(ctx context.Context, interrupted bool) (Result, error) {
	// Persisting progress must outlive the cancelled run context.
	saveCtx := context.WithoutCancel(ctx)
	keep := s.tally.pending()

	var err error
	if s.cfg.DryRun {
		s.logger.Info().Int("would_keep", len(keep)).Msg("[DRY-RUN] Findings file left unchanged")
	} else {
		err = s.store.CompactAfter(saveCtx, keep, s.reader.Offset())
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to save findings for retry")
		}
	}
	s.tally.flushArchive(saveCtx)

	result := Result{
		Summary:     s.tally.session.Summary(),
		Retained:    len(keep),
		Faults:      s.tally.faults,
		Interrupted: interrupted,
	}
	logSummary(s.logger, "Summary", result.Summary, result.Retained)
	return result, err
}

var _ Classifier = (*notifier.Classifier)(nil)
