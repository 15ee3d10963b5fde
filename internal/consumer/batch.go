package consumer

import (
	"context"

	"github.com/aleister1102/overwatch/internal/findings"
	"github.com/aleister1102/overwatch/internal/notifier"
	"github.com/rs/zerolog"
)

// Batch processes every record currently in the store, then rewrites the store with
// the records that must be retried. No producer may be appending while it runs.
type Batch struct {
	store  *findings.PendingStore
	tally  *tally
	dryRun bool
	logger zerolog.Logger
}

func NewBatch(store *findings.PendingStore, classifier Classifier, session *notifier.Session, archive Archive, dryRun bool, logger zerolog.Logger) *Batch {
	logger = logger.With().Str("module", "Batch").Logger()
	return &Batch{
		store: store,
		tally: &tally{
			classifier: classifier,
			session:    session,
			archive:    archive,
			dryRun:     dryRun,
			logger:     logger,
		},
		dryRun: dryRun,
		logger: logger,
	}
}

func (b *Batch) Run(ctx context.Context) (Result, error) {
	records, faults, err := b.store.ReadAll(ctx)
	if err != nil {
		return Result{}, err
	}
	for _, fault := range faults {
		b.logger.Warn().Err(fault).Str("line", fault.Line).Msg("Skipping malformed record")
	}
	b.tally.faults = len(faults)
	b.logger.Info().Int("records", len(records)).Str("path", b.store.Path()).Msg("Loaded findings")

	interrupted := false
	for i, f := range records {
		if ctx.Err() != nil {
			interrupted = true
			b.tally.retained = append(b.tally.retained, records[i:]...)
			break
		}
		b.logger.Debug().Int("index", i+1).Int("total", len(records)).Str("finding", f.Key().String()).Msg("Processing finding")
		b.tally.classify(ctx, f)
	}

	saveCtx := context.WithoutCancel(ctx)
	keep := b.tally.pending()
	summary := b.tally.session.Summary()
	resolved := summary.Success + summary.PermanentSkip

	switch {
	case resolved == 0:
		b.logger.Info().Msg("Nothing resolved, findings file left unchanged")
	case b.dryRun:
		b.logger.Info().Int("would_remove", resolved).Int("would_keep", len(keep)).Msg("[DRY-RUN] Would update findings file")
	default:
		if err = b.store.Compact(saveCtx, keep); err != nil {
			b.logger.Error().Err(err).Msg("Failed to update findings file")
		} else {
			b.logger.Info().Int("removed", resolved).Int("kept", len(keep)).Msg("Updated findings file")
		}
	}
	b.tally.flushArchive(saveCtx)

	result := Result{Summary: summary, Retained: len(keep), Faults: len(faults), Interrupted: interrupted}
	logSummary(b.logger, "Summary", result.Summary, result.Retained)
	return result, err
}
